package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingFetcher       = errors.New("fetcher is required")
	errMissingActionService = errors.New("action service is required")
	noOpLogger              = zap.NewNop()

	// ErrActionPending rejects a re-entrant toggle for a post that already
	// has the same action kind awaiting origin confirmation.
	ErrActionPending = errors.New("feed: action already pending for post")
	// ErrDuplicateEntry rejects an entry whose (id, action) pair is already
	// materialized in the feed window.
	ErrDuplicateEntry = errors.New("feed: entry already present")
)

// ServiceError carries a dotted operation code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opEngineNew     = "feed.engine.new"
	opLoadNextPage  = "feed.load_next_page"
	opAddEntry      = "feed.add_entry"
	opToggleLike    = "feed.toggle_like"
	opToggleRepost  = "feed.toggle_repost"
	opTogglePin     = "feed.toggle_pin"
	opDeletePost    = "feed.delete_post"
	opRefreshPinned = "feed.refresh_pinned"

	reasonFetchFailed    = "fetch_failed"
	reasonInvalidPage    = "invalid_page"
	reasonActionRejected = "action_rejected"
	reasonActionPending  = "action_pending"
	reasonDuplicateEntry = "duplicate_entry"
	reasonDeleteRejected = "delete_rejected"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Fetcher is the Feed Fetch Service the engine consumes. FetchPage returns
// one page of feed rows starting at the origin cursor offset together with
// the side tables the page references. FetchPinned is the dedicated lazy
// fetch for the session user's pinned post.
type Fetcher interface {
	FetchPage(ctx context.Context, offset int) (FeedPage, error)
	FetchPinned(ctx context.Context) (*FeedEntry, error)
}

// ActionService performs the network side of user actions. Every call
// resolves fully: there are no partial results.
type ActionService interface {
	Like(ctx context.Context, postID PostID) error
	Unlike(ctx context.Context, postID PostID) error
	Repost(ctx context.Context, postID PostID) error
	Unrepost(ctx context.Context, postID PostID) error
	Pin(ctx context.Context, postID PostID) error
	Unpin(ctx context.Context, postID PostID) error
	Delete(ctx context.Context, postID PostID) error
}

// EngineConfig carries the collaborators for one feed engine instance.
type EngineConfig struct {
	Fetcher  Fetcher
	Actions  ActionService
	PageSize int
	Clock    func() time.Time
	Logger   *zap.Logger
}

// actionKind distinguishes pending-operation slots per post.
type actionKind string

const (
	actionLike   actionKind = "like"
	actionRepost actionKind = "repost"
	actionPin    actionKind = "pin"
)

type pendingKey struct {
	postID PostID
	kind   actionKind
}

// Engine owns the session-scoped feed state: the materialized entry window,
// per-post counters, membership sets, the height ledger, pagination progress,
// and the pinned-post slot. All state lives in this one container; there are
// no package-level mutable globals, so tests and multi-feed processes can
// hold independent engines.
//
// Mutations happen under the engine mutex in single atomic merge steps.
// Network calls are issued outside the lock and their completions re-acquire
// it, so the only races are interleavings of independent completions, which
// the generation counter and pending-operation guards resolve.
type Engine struct {
	mu       sync.Mutex
	fetcher  Fetcher
	actions  ActionService
	pageSize int
	clock    func() time.Time
	logger   *zap.Logger

	generation  int64
	loading     bool
	fetchFailed bool

	pagination paginationState
	list       feedList
	stats      statsTable
	users      map[UserID]UserSummary
	membership membershipSets
	heights    heightLedger
	pinned     pinnedSlot
	pending    map[pendingKey]struct{}
}

// NewEngine validates the configuration and returns an engine with an empty
// feed window.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Fetcher == nil {
		return nil, newServiceError(opEngineNew, "missing_fetcher", errMissingFetcher)
	}
	if cfg.Actions == nil {
		return nil, newServiceError(opEngineNew, "missing_action_service", errMissingActionService)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Engine{
		fetcher:    cfg.Fetcher,
		actions:    cfg.Actions,
		pageSize:   pageSize,
		clock:      clock,
		logger:     logger,
		stats:      newStatsTable(),
		users:      make(map[UserID]UserSummary),
		membership: newMembershipSets(),
		heights:    newHeightLedger(),
		pending:    make(map[pendingKey]struct{}),
	}, nil
}

// LoadNextPage fetches one page at the current origin cursor and merges it
// into the window. A call while a fetch is already in flight, or after the
// end of the feed has been reached, is a no-op: the in-flight guard also
// prevents a duplicate fetch at the same offset from double-counting the
// origin's removed-row accounting. A fetch failure records the error flag
// and leaves the cursor untouched so the caller can retry.
func (e *Engine) LoadNextPage(ctx context.Context) error {
	e.mu.Lock()
	if e.loading || e.pagination.reachEnd {
		e.mu.Unlock()
		return nil
	}
	e.loading = true
	e.fetchFailed = false
	generation := e.generation
	offset := e.pagination.offset
	e.mu.Unlock()

	page, fetchErr := e.fetcher.FetchPage(ctx, offset)

	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != e.generation {
		// The feed was reset while the fetch was in flight; the response
		// belongs to a window that no longer exists.
		return nil
	}
	e.loading = false

	if fetchErr != nil {
		e.fetchFailed = true
		e.logError(opLoadNextPage, reasonFetchFailed, fetchErr, zap.Int("offset", offset))
		return newServiceError(opLoadNextPage, reasonFetchFailed, fetchErr)
	}

	if validationErr := page.Validate(); validationErr != nil {
		e.logError(opLoadNextPage, reasonInvalidPage, validationErr, zap.Int("offset", offset))
		page = FeedPage{}
	}

	e.applyPage(page)
	return nil
}

// ResetFeed drops all session feed state and bumps the fetch generation so
// responses still in flight are discarded on arrival. Used on logout, tab
// switches away from the feed, and manual refresh.
func (e *Engine) ResetFeed() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	e.loading = false
	e.fetchFailed = false
	e.pagination = paginationState{}
	e.list.reset()
	e.stats.reset()
	e.users = make(map[UserID]UserSummary)
	e.membership.reset()
	e.heights.reset()
	e.pinned.clear()
	e.pending = make(map[pendingKey]struct{})
}

// AddEntry prepends a just-authored entry at index zero, renumbering the rest
// of the window. The entry stays flagged newly-inserted until a fetched page
// confirms it.
func (e *Engine) AddEntry(entry FeedEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := NewPostID(entry.ID.String()); err != nil {
		return newServiceError(opAddEntry, "invalid_post_id", err)
	}
	if _, err := NewDomKey(entry.DomKey.String()); err != nil {
		return newServiceError(opAddEntry, "invalid_dom_key", err)
	}
	if e.list.contains(entry.ID, entry.Action) {
		return newServiceError(opAddEntry, reasonDuplicateEntry, ErrDuplicateEntry)
	}

	e.list.prepend(entry)
	return nil
}

// RemoveEntry deletes the rows matching the post id and optional action
// predicate, compacts the indices, and drops the removed rows' height
// records. It returns how many rows were removed.
func (e *Engine) RemoveEntry(postID PostID, predicate func(EntryAction) bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(postID, predicate)
}

func (e *Engine) removeLocked(postID PostID, predicate func(EntryAction) bool) int {
	removed := e.list.removeMatching(postID, predicate)
	for _, entry := range removed {
		e.heights.drop(entry.DomKey)
	}
	return len(removed)
}

// RecordHeight stores one measured layout height. Repeated or out-of-order
// measurements are safe; the index argument is accepted for interface parity
// with the view layer but the ledger derives ordering itself.
func (e *Engine) RecordHeight(domKey DomKey, height float64, _ int, newlyInserted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heights.record(domKey, height, newlyInserted)
}

// VisibleEntries returns a copy of the materialized window in sort order.
func (e *Engine) VisibleEntries() []FeedEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.list.snapshot()
}

// Stats returns the counters for a post and whether any are known.
func (e *Engine) Stats(postID PostID) (PostStats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.get(postID)
}

// User returns the cached summary for a feed author.
func (e *Engine) User(userID UserID) (UserSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	summary, ok := e.users[userID]
	return summary, ok
}

// IsLiked reports whether the session user has liked the post.
func (e *Engine) IsLiked(postID PostID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.membership.isLiked(postID)
}

// IsReposted reports whether the session user has reshared the post.
func (e *Engine) IsReposted(postID PostID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.membership.isShared(postID)
}

// TotalHeight returns the running sum of all recorded layout heights.
func (e *Engine) TotalHeight() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heights.totalHeight()
}

// ReachEnd reports whether the origin has no further pages.
func (e *Engine) ReachEnd() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pagination.reachEnd
}

// Loading reports whether a page fetch is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// FetchFailed reports whether the most recent page fetch failed. The flag
// clears when the next fetch is issued.
func (e *Engine) FetchFailed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetchFailed
}

// PinnedPost returns the cached pinned entry snapshot, if any.
func (e *Engine) PinnedPost() (FeedEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pinned.get()
}

func (e *Engine) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	e.logger.Error("feed engine error", attrs...)
}
