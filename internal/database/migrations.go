package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ripplefeed/ripple/backend/internal/source"
)

const migrationRepairNegativeCounters = "2026-07-18_repair_negative_post_counters"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRepairNegativeCounters, apply: repairNegativeCounters},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Counters written before decrements were clamped can sit below zero.
func repairNegativeCounters(db *gorm.DB) error {
	if err := db.Model(&source.PostStat{}).
		Where("like_count < 0").
		Update("like_count", 0).Error; err != nil {
		return err
	}
	if err := db.Model(&source.PostStat{}).
		Where("comment_count < 0").
		Update("comment_count", 0).Error; err != nil {
		return err
	}
	return db.Model(&source.PostStat{}).
		Where("share_count < 0").
		Update("share_count", 0).Error
}
