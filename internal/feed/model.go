package feed

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultPageSize is the fixed number of feed rows requested per fetch.
const DefaultPageSize = 20

const maxIdentifierLength = 190

var (
	// ErrInvalidPostID indicates that a post identifier is empty or exceeds storage bounds.
	ErrInvalidPostID = errors.New("feed: invalid post id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("feed: invalid user id")
	// ErrInvalidDomKey indicates that a layout correlation key is empty or exceeds storage bounds.
	ErrInvalidDomKey = errors.New("feed: invalid dom key")
	// ErrInvalidPage indicates that a fetched page payload is malformed.
	ErrInvalidPage = errors.New("feed: invalid page payload")
)

// PostID represents a validated post identifier.
type PostID string

// NewPostID validates raw input and returns a PostID.
func NewPostID(rawInput string) (PostID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPostID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidPostID, maxIdentifierLength)
	}
	return PostID(trimmed), nil
}

// String returns the underlying string identifier.
func (id PostID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// DomKey represents a validated layout correlation key. It survives
// re-sorting and is the join key between feed entries and height records.
type DomKey string

// NewDomKey validates raw input and returns a DomKey.
func NewDomKey(rawInput string) (DomKey, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomKey)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidDomKey, maxIdentifierLength)
	}
	return DomKey(trimmed), nil
}

// String returns the underlying string key.
func (key DomKey) String() string {
	return string(key)
}

// EntryKind enumerates the renderable shapes of a feed row.
type EntryKind string

const (
	// KindPost is an original post with content.
	KindPost EntryKind = "post"
	// KindComment is a comment surfaced into the feed.
	KindComment EntryKind = "comment"
	// KindShareNoContent is a reshare marker that carries no content of its own.
	KindShareNoContent EntryKind = "share_no_content"
)

// EntryAction enumerates why a row appears in the feed.
type EntryAction string

const (
	// ActionAuthored marks a row the owner wrote themselves.
	ActionAuthored EntryAction = "authored"
	// ActionShared marks a reshare row.
	ActionShared EntryAction = "shared"
	// ActionLikedShare marks a row surfaced because the owner liked a reshare.
	ActionLikedShare EntryAction = "liked_share"
	// ActionCommented marks a row surfaced because the owner commented.
	ActionCommented EntryAction = "commented"
)

// FeedEntry is one row of the materialized feed window.
type FeedEntry struct {
	ID              PostID
	OwnerID         UserID
	OriginalOwnerID UserID
	Kind            EntryKind
	Action          EntryAction
	SortIndex       int
	DomKey          DomKey
	NewlyInserted   bool
}

// PostStats holds the denormalized per-post counters. Counters never go
// negative; decrements clamp at zero.
type PostStats struct {
	Likes    int
	Comments int
	Shares   int
}

// UserSummary carries the author fields a feed row renders.
type UserSummary struct {
	ID          UserID
	DisplayName string
	AvatarURL   string
}

// FeedPage is the payload returned by one Feed Fetch Service call.
// RemovedCount reports how many rows the origin consumed from its cursor but
// dropped before returning the page (blocked or muted authors).
type FeedPage struct {
	Entries      []FeedEntry
	RemovedCount int
	Users        map[UserID]UserSummary
	Stats        map[PostID]PostStats
	LikedIDs     []PostID
	SharedIDs    []PostID
}

// Validate rejects malformed page payloads before they can corrupt the
// materialized window. A failing page is treated as empty by the engine.
func (page FeedPage) Validate() error {
	if page.RemovedCount < 0 {
		return fmt.Errorf("%w: negative removed count %d", ErrInvalidPage, page.RemovedCount)
	}
	for position, entry := range page.Entries {
		if strings.TrimSpace(entry.ID.String()) == "" {
			return fmt.Errorf("%w: entry %d missing post id", ErrInvalidPage, position)
		}
		if strings.TrimSpace(entry.DomKey.String()) == "" {
			return fmt.Errorf("%w: entry %d missing dom key", ErrInvalidPage, position)
		}
		if entry.Action == "" {
			return fmt.Errorf("%w: entry %d missing action", ErrInvalidPage, position)
		}
	}
	for postID, stats := range page.Stats {
		if stats.Likes < 0 || stats.Comments < 0 || stats.Shares < 0 {
			return fmt.Errorf("%w: negative counters for post %s", ErrInvalidPage, postID.String())
		}
	}
	return nil
}
