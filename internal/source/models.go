package source

// FeedRow is one materializable feed row at the origin. Several rows may
// reference the same post id: the authored row and any reshare rows share the
// post's counters.
type FeedRow struct {
	RowID            string `gorm:"column:row_id;primaryKey;size:190;not null"`
	PostID           string `gorm:"column:post_id;size:190;not null;index:idx_feed_rows_post;uniqueIndex:idx_feed_rows_dedupe,priority:1"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;uniqueIndex:idx_feed_rows_dedupe,priority:2"`
	OriginalOwnerID  string `gorm:"column:original_owner_id;size:190;not null;default:''"`
	Kind             string `gorm:"column:kind;size:32;not null"`
	Action           string `gorm:"column:action;size:32;not null;uniqueIndex:idx_feed_rows_dedupe,priority:3"`
	BodyText         string `gorm:"column:body_text;type:text;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_feed_rows_created"`
}

// TableName provides the explicit table binding for GORM.
func (FeedRow) TableName() string {
	return "feed_rows"
}

// PostStat keeps the denormalized counters for one post.
type PostStat struct {
	PostID       string `gorm:"column:post_id;primaryKey;size:190;not null"`
	LikeCount    int64  `gorm:"column:like_count;not null;default:0"`
	CommentCount int64  `gorm:"column:comment_count;not null;default:0"`
	ShareCount   int64  `gorm:"column:share_count;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (PostStat) TableName() string {
	return "post_stats"
}

// Like records that a user liked a post. The composite key makes repeated
// like submissions idempotent.
type Like struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	PostID           string `gorm:"column:post_id;primaryKey;size:190;not null;index:idx_likes_post"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Like) TableName() string {
	return "likes"
}

// Repost records a reshare and points at the feed row it materialized.
type Repost struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	PostID           string `gorm:"column:post_id;primaryKey;size:190;not null;index:idx_reposts_post"`
	RowID            string `gorm:"column:row_id;size:190;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Repost) TableName() string {
	return "reposts"
}

// Pin is the user's single pinned post. The user id is the whole key, so
// pinning replaces any previous pin.
type Pin struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	PostID           string `gorm:"column:post_id;size:190;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Pin) TableName() string {
	return "pins"
}

// Block hides one author's rows from a viewer's fetched pages.
type Block struct {
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null"`
	BlockedID        string `gorm:"column:blocked_id;primaryKey;size:190;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Block) TableName() string {
	return "blocks"
}

// Profile carries the author fields a feed row renders.
type Profile struct {
	UserID      string `gorm:"column:user_id;primaryKey;size:190;not null"`
	DisplayName string `gorm:"column:display_name;size:320;not null;default:''"`
	AvatarURL   string `gorm:"column:avatar_url;size:512;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (Profile) TableName() string {
	return "profiles"
}

// FeedAction is the append-only audit trail of accepted user actions.
type FeedAction struct {
	ActionID         string `gorm:"column:action_id;primaryKey;size:190;not null"`
	UserID           string `gorm:"column:user_id;size:190;not null;index:idx_feed_actions_user_time,priority:1"`
	PostID           string `gorm:"column:post_id;size:190;not null"`
	Kind             string `gorm:"column:kind;size:32;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null;index:idx_feed_actions_user_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (FeedAction) TableName() string {
	return "feed_actions"
}
