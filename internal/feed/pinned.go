package feed

// pinnedSlot caches at most one materialized snapshot of the session user's
// pinned post. It is a single-slot cache, not a set: unpinning clears it
// unconditionally regardless of id match.
type pinnedSlot struct {
	entry *FeedEntry
}

func (slot *pinnedSlot) set(entry FeedEntry) {
	copied := entry
	slot.entry = &copied
}

func (slot *pinnedSlot) clear() {
	slot.entry = nil
}

func (slot *pinnedSlot) get() (FeedEntry, bool) {
	if slot.entry == nil {
		return FeedEntry{}, false
	}
	return *slot.entry, true
}

func (slot *pinnedSlot) holds(postID PostID) bool {
	return slot.entry != nil && slot.entry.ID == postID
}
