package source

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ripplefeed/ripple/backend/internal/feed"
)

const (
	opCompose         = "source.compose"
	actionKindCompose = "compose"
	maxBodyLength     = 4000
)

// ErrInvalidBody rejects an empty or oversized post body.
var ErrInvalidBody = errors.New("source: invalid post body")

// Compose creates an authored post for the viewer and returns its entry so
// the caller can splice it into a materialized feed without refetching.
func (s *Service) Compose(ctx context.Context, viewer, body string) (feed.FeedEntry, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || len(trimmed) > maxBodyLength {
		return feed.FeedEntry{}, ErrInvalidBody
	}

	var row FeedRow
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		postID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		rowID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}

		row = FeedRow{
			RowID:            rowID,
			PostID:           postID,
			OwnerID:          viewer,
			Kind:             string(feed.KindPost),
			Action:           string(feed.ActionAuthored),
			BodyText:         trimmed,
			CreatedAtSeconds: s.clock().UTC().Unix(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&PostStat{PostID: postID}).Error; err != nil {
			return err
		}
		return s.auditAction(tx, viewer, postID, actionKindCompose)
	})
	if txErr != nil {
		s.logError(opCompose, reasonTxFailed, txErr, zap.String(fieldUserID, viewer))
		return feed.FeedEntry{}, newServiceError(opCompose, reasonTxFailed, txErr)
	}

	entry := rowToEntry(row)
	entry.NewlyInserted = true
	return entry, nil
}
