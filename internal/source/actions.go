package source

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ripplefeed/ripple/backend/internal/feed"
)

const (
	reasonTxFailed = "tx_failed"

	counterLikes  = "like_count"
	counterShares = "share_count"
)

// Like records a like and bumps the post's counter. Submitting the same like
// twice is a no-op thanks to the conflict-do-nothing insert.
func (s *Service) Like(ctx context.Context, viewer, postID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Like{
			UserID:           viewer,
			PostID:           postID,
			CreatedAtSeconds: s.clock().UTC().Unix(),
		})
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			return nil
		}
		if err := s.adjustCounter(tx, postID, counterLikes, 1); err != nil {
			return err
		}
		return s.auditAction(tx, viewer, postID, actionKindLike)
	})
	if txErr != nil {
		s.logError(opLike, reasonTxFailed, txErr, zap.String(fieldUserID, viewer), zap.String(fieldPostID, postID))
		return newServiceError(opLike, reasonTxFailed, txErr)
	}
	return nil
}

// Unlike removes a like and decrements the counter, clamping at zero.
func (s *Service) Unlike(ctx context.Context, viewer, postID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removal := tx.Where("user_id = ? AND post_id = ?", viewer, postID).Delete(&Like{})
		if removal.Error != nil {
			return removal.Error
		}
		if removal.RowsAffected == 0 {
			return nil
		}
		if err := s.adjustCounter(tx, postID, counterLikes, -1); err != nil {
			return err
		}
		return s.auditAction(tx, viewer, postID, actionKindUnlike)
	})
	if txErr != nil {
		s.logError(opUnlike, reasonTxFailed, txErr, zap.String(fieldUserID, viewer), zap.String(fieldPostID, postID))
		return newServiceError(opUnlike, reasonTxFailed, txErr)
	}
	return nil
}

// Repost records a reshare, materializes its feed row, and bumps the share
// counter. Reposting a post the viewer already reshared is a no-op.
func (s *Service) Repost(ctx context.Context, viewer, postID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original FeedRow
		err := tx.Where("post_id = ? AND action = ?", postID, string(feed.ActionAuthored)).Take(&original).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownPost
		}
		if err != nil {
			return err
		}

		rowID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		now := s.clock().UTC().Unix()

		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Repost{
			UserID:           viewer,
			PostID:           postID,
			RowID:            rowID,
			CreatedAtSeconds: now,
		})
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			return nil
		}

		if err := tx.Create(&FeedRow{
			RowID:            rowID,
			PostID:           postID,
			OwnerID:          viewer,
			OriginalOwnerID:  original.OwnerID,
			Kind:             string(feed.KindShareNoContent),
			Action:           string(feed.ActionShared),
			CreatedAtSeconds: now,
		}).Error; err != nil {
			return err
		}
		if err := s.adjustCounter(tx, postID, counterShares, 1); err != nil {
			return err
		}
		return s.auditAction(tx, viewer, postID, actionKindRepost)
	})
	if txErr != nil {
		s.logError(opRepost, reasonTxFailed, txErr, zap.String(fieldUserID, viewer), zap.String(fieldPostID, postID))
		return newServiceError(opRepost, reasonTxFailed, txErr)
	}
	return nil
}

// Unrepost removes the viewer's reshare row and decrements the counter.
func (s *Service) Unrepost(ctx context.Context, viewer, postID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var repost Repost
		err := tx.Where("user_id = ? AND post_id = ?", viewer, postID).Take(&repost).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Delete(&Repost{UserID: viewer, PostID: postID}).Error; err != nil {
			return err
		}
		if err := tx.Where("row_id = ?", repost.RowID).Delete(&FeedRow{}).Error; err != nil {
			return err
		}
		if err := s.adjustCounter(tx, postID, counterShares, -1); err != nil {
			return err
		}
		return s.auditAction(tx, viewer, postID, actionKindUnrepost)
	})
	if txErr != nil {
		s.logError(opUnrepost, reasonTxFailed, txErr, zap.String(fieldUserID, viewer), zap.String(fieldPostID, postID))
		return newServiceError(opUnrepost, reasonTxFailed, txErr)
	}
	return nil
}

// Pin sets the viewer's single pinned post, replacing any previous pin.
func (s *Service) Pin(ctx context.Context, viewer, postID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pin := Pin{
			UserID:           viewer,
			PostID:           postID,
			CreatedAtSeconds: s.clock().UTC().Unix(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: fieldUserID}},
			DoUpdates: clause.AssignmentColumns([]string{fieldPostID, "created_at_s"}),
		}).Create(&pin).Error; err != nil {
			return err
		}
		return s.auditAction(tx, viewer, postID, actionKindPin)
	})
	if txErr != nil {
		s.logError(opPin, reasonTxFailed, txErr, zap.String(fieldUserID, viewer), zap.String(fieldPostID, postID))
		return newServiceError(opPin, reasonTxFailed, txErr)
	}
	return nil
}

// Unpin clears the viewer's pin regardless of which post it references.
func (s *Service) Unpin(ctx context.Context, viewer, postID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(queryViewer, viewer).Delete(&Pin{}).Error; err != nil {
			return err
		}
		return s.auditAction(tx, viewer, postID, actionKindUnpin)
	})
	if txErr != nil {
		s.logError(opUnpin, reasonTxFailed, txErr, zap.String(fieldUserID, viewer), zap.String(fieldPostID, postID))
		return newServiceError(opUnpin, reasonTxFailed, txErr)
	}
	return nil
}

// Delete removes an authored post and everything hanging off it: feed rows
// (including reshares), likes, reposts, counters, and any pins referencing
// it. Only the author may delete.
func (s *Service) Delete(ctx context.Context, viewer, postID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original FeedRow
		err := tx.Where("post_id = ? AND action = ?", postID, string(feed.ActionAuthored)).Take(&original).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownPost
		}
		if err != nil {
			return err
		}
		if original.OwnerID != viewer {
			return ErrNotOwner
		}

		if err := tx.Where("post_id = ?", postID).Delete(&FeedRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&Repost{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&Pin{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&PostStat{}).Error; err != nil {
			return err
		}
		return s.auditAction(tx, viewer, postID, actionKindDelete)
	})
	if txErr != nil {
		s.logError(opDelete, reasonTxFailed, txErr, zap.String(fieldUserID, viewer), zap.String(fieldPostID, postID))
		return newServiceError(opDelete, reasonTxFailed, txErr)
	}
	return nil
}

// adjustCounter moves a denormalized counter by delta, creating the stats row
// lazily and clamping decrements at zero.
func (s *Service) adjustCounter(tx *gorm.DB, postID, column string, delta int64) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&PostStat{PostID: postID}).Error; err != nil {
		return err
	}
	expr := gorm.Expr("CASE WHEN "+column+" + ? >= 0 THEN "+column+" + ? ELSE 0 END", delta, delta)
	return tx.Model(&PostStat{}).
		Where("post_id = ?", postID).
		UpdateColumn(column, expr).Error
}
