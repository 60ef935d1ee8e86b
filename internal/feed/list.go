package feed

// feedList keeps the ordered, index-contiguous window of materialized feed
// rows. SortIndex values are always exactly 0..N-1 after any mutation, and no
// two rows share an (id, action) pair.
type feedList struct {
	entries []FeedEntry
}

// contains reports whether a row with the given (id, action) pair exists.
func (list *feedList) contains(postID PostID, action EntryAction) bool {
	for _, entry := range list.entries {
		if entry.ID == postID && entry.Action == action {
			return true
		}
	}
	return false
}

// prepend inserts a locally originated row at index zero and renumbers the
// rest. Prepend is a rare user-initiated event, so the O(n) renumber is fine.
func (list *feedList) prepend(entry FeedEntry) {
	entry.NewlyInserted = true
	list.entries = append([]FeedEntry{entry}, list.entries...)
	list.renumber()
}

// appendPage concatenates fetched rows, numbering them from the current tail.
// Rows whose (id, action) pair is already materialized are skipped; the fetch
// confirms them instead, clearing their transient newly-inserted flag.
func (list *feedList) appendPage(entries []FeedEntry) {
	for _, entry := range entries {
		if list.confirmExisting(entry.ID, entry.Action) {
			continue
		}
		entry.NewlyInserted = false
		entry.SortIndex = len(list.entries)
		list.entries = append(list.entries, entry)
	}
}

func (list *feedList) confirmExisting(postID PostID, action EntryAction) bool {
	for position := range list.entries {
		if list.entries[position].ID == postID && list.entries[position].Action == action {
			list.entries[position].NewlyInserted = false
			return true
		}
	}
	return false
}

// find returns the first row for the post id, in sort order.
func (list *feedList) find(postID PostID) (FeedEntry, bool) {
	for _, entry := range list.entries {
		if entry.ID == postID {
			return entry, true
		}
	}
	return FeedEntry{}, false
}

// removeMatching deletes every row whose id equals postID and whose action
// satisfies the predicate (a nil predicate matches all actions), compacts the
// indices, and returns the removed rows so callers can drop height records.
func (list *feedList) removeMatching(postID PostID, predicate func(EntryAction) bool) []FeedEntry {
	kept := list.entries[:0]
	var removed []FeedEntry
	for _, entry := range list.entries {
		if entry.ID == postID && (predicate == nil || predicate(entry.Action)) {
			removed = append(removed, entry)
			continue
		}
		kept = append(kept, entry)
	}
	if len(removed) == 0 {
		return nil
	}
	list.entries = kept
	list.renumber()
	return removed
}

func (list *feedList) renumber() {
	for position := range list.entries {
		list.entries[position].SortIndex = position
	}
}

func (list *feedList) snapshot() []FeedEntry {
	if len(list.entries) == 0 {
		return nil
	}
	copied := make([]FeedEntry, len(list.entries))
	copy(copied, list.entries)
	return copied
}

func (list *feedList) reset() {
	list.entries = nil
}
