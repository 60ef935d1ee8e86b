package feed

// membershipSets tracks which posts the session user has liked or reshared.
// They are mutated only by the optimistic mutation path and by fetched page
// side tables, never derived lazily.
type membershipSets struct {
	liked  map[PostID]struct{}
	shared map[PostID]struct{}
}

func newMembershipSets() membershipSets {
	return membershipSets{
		liked:  make(map[PostID]struct{}),
		shared: make(map[PostID]struct{}),
	}
}

func (sets *membershipSets) isLiked(postID PostID) bool {
	_, ok := sets.liked[postID]
	return ok
}

func (sets *membershipSets) isShared(postID PostID) bool {
	_, ok := sets.shared[postID]
	return ok
}

func (sets *membershipSets) setLiked(postID PostID, liked bool) {
	if liked {
		sets.liked[postID] = struct{}{}
		return
	}
	delete(sets.liked, postID)
}

func (sets *membershipSets) setShared(postID PostID, shared bool) {
	if shared {
		sets.shared[postID] = struct{}{}
		return
	}
	delete(sets.shared, postID)
}

func (sets *membershipSets) mergeLiked(ids []PostID) {
	for _, postID := range ids {
		sets.liked[postID] = struct{}{}
	}
}

func (sets *membershipSets) mergeShared(ids []PostID) {
	for _, postID := range ids {
		sets.shared[postID] = struct{}{}
	}
}

func (sets *membershipSets) reset() {
	sets.liked = make(map[PostID]struct{})
	sets.shared = make(map[PostID]struct{})
}
