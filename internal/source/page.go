package source

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ripplefeed/ripple/backend/internal/feed"
)

const (
	fieldUserID          = "user_id"
	fieldPostID          = "post_id"
	queryViewer          = fieldUserID + " = ?"
	queryUserIn          = fieldUserID + " IN ?"
	queryPostIn          = fieldPostID + " IN ?"
	queryViewerAndPostIn = fieldUserID + " = ? AND " + fieldPostID + " IN ?"

	reasonQueryFailed = "query_failed"
)

// FetchPage reads one raw page of feed rows at the cursor offset, drops rows
// authored by users the viewer blocks, and returns the visible entries plus
// how many consumed rows were dropped. The removed count is what lets the
// client's reach-end arithmetic stay correct even when filtering empties a
// page.
func (s *Service) FetchPage(ctx context.Context, viewer string, offset int) (feed.FeedPage, error) {
	blocked, err := s.blockedAuthors(ctx, viewer)
	if err != nil {
		s.logError(opFetchPage, reasonQueryFailed, err, zap.String(fieldUserID, viewer))
		return feed.FeedPage{}, newServiceError(opFetchPage, reasonQueryFailed, err)
	}

	var rows []FeedRow
	if err := s.db.WithContext(ctx).
		Order("created_at_s DESC, row_id DESC").
		Limit(s.pageSize).
		Offset(offset).
		Find(&rows).Error; err != nil {
		s.logError(opFetchPage, reasonQueryFailed, err, zap.String(fieldUserID, viewer))
		return feed.FeedPage{}, newServiceError(opFetchPage, reasonQueryFailed, err)
	}

	entries := make([]feed.FeedEntry, 0, len(rows))
	postIDs := make([]string, 0, len(rows))
	ownerIDs := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, hidden := blocked[row.OwnerID]; hidden {
			continue
		}
		if _, hidden := blocked[row.OriginalOwnerID]; hidden && row.OriginalOwnerID != "" {
			continue
		}
		entries = append(entries, rowToEntry(row))
		postIDs = append(postIDs, row.PostID)
		ownerIDs[row.OwnerID] = struct{}{}
		if row.OriginalOwnerID != "" {
			ownerIDs[row.OriginalOwnerID] = struct{}{}
		}
	}

	page := feed.FeedPage{
		Entries:      entries,
		RemovedCount: len(rows) - len(entries),
	}
	if len(postIDs) == 0 {
		return page, nil
	}

	if page.Stats, err = s.statsFor(ctx, postIDs); err != nil {
		s.logError(opFetchPage, reasonQueryFailed, err, zap.String(fieldUserID, viewer))
		return feed.FeedPage{}, newServiceError(opFetchPage, reasonQueryFailed, err)
	}
	if page.Users, err = s.profilesFor(ctx, ownerIDs); err != nil {
		s.logError(opFetchPage, reasonQueryFailed, err, zap.String(fieldUserID, viewer))
		return feed.FeedPage{}, newServiceError(opFetchPage, reasonQueryFailed, err)
	}
	if page.LikedIDs, err = s.likedWithin(ctx, viewer, postIDs); err != nil {
		s.logError(opFetchPage, reasonQueryFailed, err, zap.String(fieldUserID, viewer))
		return feed.FeedPage{}, newServiceError(opFetchPage, reasonQueryFailed, err)
	}
	if page.SharedIDs, err = s.sharedWithin(ctx, viewer, postIDs); err != nil {
		s.logError(opFetchPage, reasonQueryFailed, err, zap.String(fieldUserID, viewer))
		return feed.FeedPage{}, newServiceError(opFetchPage, reasonQueryFailed, err)
	}

	return page, nil
}

// FetchPinned returns the viewer's pinned post as a materialized entry, or
// nil when nothing is pinned.
func (s *Service) FetchPinned(ctx context.Context, viewer string) (*feed.FeedEntry, error) {
	var pin Pin
	err := s.db.WithContext(ctx).Where(queryViewer, viewer).Take(&pin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(opFetchPinned, reasonQueryFailed, err, zap.String(fieldUserID, viewer))
		return nil, newServiceError(opFetchPinned, reasonQueryFailed, err)
	}

	var row FeedRow
	err = s.db.WithContext(ctx).
		Where("post_id = ? AND action = ?", pin.PostID, string(feed.ActionAuthored)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(opFetchPinned, reasonQueryFailed, err, zap.String(fieldUserID, viewer))
		return nil, newServiceError(opFetchPinned, reasonQueryFailed, err)
	}

	entry := rowToEntry(row)
	return &entry, nil
}

func rowToEntry(row FeedRow) feed.FeedEntry {
	return feed.FeedEntry{
		ID:              feed.PostID(row.PostID),
		OwnerID:         feed.UserID(row.OwnerID),
		OriginalOwnerID: feed.UserID(row.OriginalOwnerID),
		Kind:            feed.EntryKind(row.Kind),
		Action:          feed.EntryAction(row.Action),
		DomKey:          feed.DomKey(row.RowID),
	}
}

func (s *Service) blockedAuthors(ctx context.Context, viewer string) (map[string]struct{}, error) {
	var blocks []Block
	if err := s.db.WithContext(ctx).Where(queryViewer, viewer).Find(&blocks).Error; err != nil {
		return nil, err
	}
	blocked := make(map[string]struct{}, len(blocks))
	for _, block := range blocks {
		blocked[block.BlockedID] = struct{}{}
	}
	return blocked, nil
}

func (s *Service) statsFor(ctx context.Context, postIDs []string) (map[feed.PostID]feed.PostStats, error) {
	var stats []PostStat
	if err := s.db.WithContext(ctx).Where(queryPostIn, postIDs).Find(&stats).Error; err != nil {
		return nil, err
	}
	byPost := make(map[feed.PostID]feed.PostStats, len(stats))
	for _, stat := range stats {
		byPost[feed.PostID(stat.PostID)] = feed.PostStats{
			Likes:    int(stat.LikeCount),
			Comments: int(stat.CommentCount),
			Shares:   int(stat.ShareCount),
		}
	}
	return byPost, nil
}

func (s *Service) profilesFor(ctx context.Context, ownerIDs map[string]struct{}) (map[feed.UserID]feed.UserSummary, error) {
	ids := make([]string, 0, len(ownerIDs))
	for ownerID := range ownerIDs {
		ids = append(ids, ownerID)
	}
	var profiles []Profile
	if err := s.db.WithContext(ctx).Where(queryUserIn, ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	byUser := make(map[feed.UserID]feed.UserSummary, len(profiles))
	for _, profile := range profiles {
		byUser[feed.UserID(profile.UserID)] = feed.UserSummary{
			ID:          feed.UserID(profile.UserID),
			DisplayName: profile.DisplayName,
			AvatarURL:   profile.AvatarURL,
		}
	}
	return byUser, nil
}

func (s *Service) likedWithin(ctx context.Context, viewer string, postIDs []string) ([]feed.PostID, error) {
	var likes []Like
	if err := s.db.WithContext(ctx).Where(queryViewerAndPostIn, viewer, postIDs).Find(&likes).Error; err != nil {
		return nil, err
	}
	ids := make([]feed.PostID, 0, len(likes))
	for _, like := range likes {
		ids = append(ids, feed.PostID(like.PostID))
	}
	return ids, nil
}

func (s *Service) sharedWithin(ctx context.Context, viewer string, postIDs []string) ([]feed.PostID, error) {
	var reposts []Repost
	if err := s.db.WithContext(ctx).Where(queryViewerAndPostIn, viewer, postIDs).Find(&reposts).Error; err != nil {
		return nil, err
	}
	ids := make([]feed.PostID, 0, len(reposts))
	for _, repost := range reposts {
		ids = append(ids, feed.PostID(repost.PostID))
	}
	return ids, nil
}
