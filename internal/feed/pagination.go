package feed

// paginationState tracks progress through the origin feed cursor.
//
// offset is the position of the next fetch in origin-row terms. It advances
// by the rows the origin actually consumed from its cursor (visible plus
// filtered), not by the page size, so filtered rows are never re-requested.
// removed accumulates the origin-filtered row count across pages and feeds
// only the reach-end arithmetic; it is never exposed to callers.
type paginationState struct {
	offset   int
	reachEnd bool
	removed  int
}

// applyPage merges one validated fetch payload into the engine state in a
// single step. Caller holds the engine mutex.
func (e *Engine) applyPage(page FeedPage) {
	consumed := len(page.Entries) + page.RemovedCount

	// The origin drops blocked and muted authors' rows before truncating to
	// the page size. If what it consumed does not fill a page, the cursor is
	// exhausted. An empty first page flips reachEnd immediately, which is how
	// the view distinguishes an empty feed from one still loading.
	e.pagination.reachEnd = consumed < e.pageSize
	e.pagination.offset += consumed
	e.pagination.removed += page.RemovedCount

	e.list.appendPage(page.Entries)

	for userID, summary := range page.Users {
		e.users[userID] = summary
	}
	e.stats.merge(page.Stats)
	e.membership.mergeLiked(page.LikedIDs)
	e.membership.mergeShared(page.SharedIDs)
}
