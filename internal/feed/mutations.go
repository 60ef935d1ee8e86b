package feed

import (
	"context"

	"go.uber.org/zap"
)

// ToggleLike flips the like state for a post: membership and the like counter
// change synchronously before the Action Service call, and are reverted to
// their pre-action values if the origin rejects the action. A second toggle
// for the same post while one is pending is rejected.
func (e *Engine) ToggleLike(ctx context.Context, postID PostID) error {
	e.mu.Lock()
	key := pendingKey{postID: postID, kind: actionLike}
	if _, inFlight := e.pending[key]; inFlight {
		e.mu.Unlock()
		return newServiceError(opToggleLike, reasonActionPending, ErrActionPending)
	}
	wasLiked := e.membership.isLiked(postID)
	priorStats, _ := e.stats.get(postID)
	e.membership.setLiked(postID, !wasLiked)
	if wasLiked {
		e.stats.adjustLikes(postID, -1)
	} else {
		e.stats.adjustLikes(postID, 1)
	}
	e.pending[key] = struct{}{}
	generation := e.generation
	e.mu.Unlock()

	var actionErr error
	if wasLiked {
		actionErr = e.actions.Unlike(ctx, postID)
	} else {
		actionErr = e.actions.Like(ctx, postID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != e.generation {
		return nil
	}
	delete(e.pending, key)

	if actionErr == nil {
		return nil
	}

	e.membership.setLiked(postID, wasLiked)
	e.restoreLikes(postID, priorStats.Likes)
	e.logError(opToggleLike, reasonActionRejected, actionErr, zap.String("post_id", postID.String()))
	return newServiceError(opToggleLike, reasonActionRejected, actionErr)
}

// ToggleRepost flips the reshare state for a post. Membership and the share
// counter move optimistically; the reshare feed row itself is only removed
// once the origin confirms an un-repost, so the revert path never has to
// re-insert rows.
func (e *Engine) ToggleRepost(ctx context.Context, postID PostID) error {
	e.mu.Lock()
	key := pendingKey{postID: postID, kind: actionRepost}
	if _, inFlight := e.pending[key]; inFlight {
		e.mu.Unlock()
		return newServiceError(opToggleRepost, reasonActionPending, ErrActionPending)
	}
	wasShared := e.membership.isShared(postID)
	priorStats, _ := e.stats.get(postID)
	e.membership.setShared(postID, !wasShared)
	if wasShared {
		e.stats.adjustShares(postID, -1)
	} else {
		e.stats.adjustShares(postID, 1)
	}
	e.pending[key] = struct{}{}
	generation := e.generation
	e.mu.Unlock()

	var actionErr error
	if wasShared {
		actionErr = e.actions.Unrepost(ctx, postID)
	} else {
		actionErr = e.actions.Repost(ctx, postID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != e.generation {
		return nil
	}
	delete(e.pending, key)

	if actionErr == nil {
		if wasShared {
			// Drop only the reshare row; the original post row may coexist
			// in the window under the same post id.
			e.removeLocked(postID, func(action EntryAction) bool {
				return action == ActionShared
			})
		}
		return nil
	}

	e.membership.setShared(postID, wasShared)
	e.restoreShares(postID, priorStats.Shares)
	e.logError(opToggleRepost, reasonActionRejected, actionErr, zap.String("post_id", postID.String()))
	return newServiceError(opToggleRepost, reasonActionRejected, actionErr)
}

// TogglePin flips the single pinned-post slot. Pinning snapshots the local
// entry into the slot immediately and, once the origin confirms, refreshes
// the snapshot through the dedicated pinned fetch. Unpinning clears the slot
// unconditionally. A rejected action restores the prior slot value.
func (e *Engine) TogglePin(ctx context.Context, postID PostID) error {
	e.mu.Lock()
	key := pendingKey{postID: postID, kind: actionPin}
	if _, inFlight := e.pending[key]; inFlight {
		e.mu.Unlock()
		return newServiceError(opTogglePin, reasonActionPending, ErrActionPending)
	}
	unpinning := e.pinned.holds(postID)
	prior, hadPrior := e.pinned.get()
	if unpinning {
		e.pinned.clear()
	} else if entry, found := e.list.find(postID); found {
		e.pinned.set(entry)
	} else {
		e.pinned.clear()
	}
	e.pending[key] = struct{}{}
	generation := e.generation
	e.mu.Unlock()

	var actionErr error
	if unpinning {
		actionErr = e.actions.Unpin(ctx, postID)
	} else {
		actionErr = e.actions.Pin(ctx, postID)
	}

	e.mu.Lock()
	if generation != e.generation {
		e.mu.Unlock()
		return nil
	}
	delete(e.pending, key)

	if actionErr != nil {
		if hadPrior {
			e.pinned.set(prior)
		} else {
			e.pinned.clear()
		}
		e.logError(opTogglePin, reasonActionRejected, actionErr, zap.String("post_id", postID.String()))
		e.mu.Unlock()
		return newServiceError(opTogglePin, reasonActionRejected, actionErr)
	}
	e.mu.Unlock()

	if !unpinning {
		e.refreshPinned(ctx, generation)
	}
	return nil
}

// DeletePost removes every row for the post from the window and tells the
// origin to delete it. The removal is one-way: a rejected delete is surfaced
// but the rows are not restored.
func (e *Engine) DeletePost(ctx context.Context, postID PostID) error {
	e.mu.Lock()
	e.removeLocked(postID, nil)
	e.mu.Unlock()

	if actionErr := e.actions.Delete(ctx, postID); actionErr != nil {
		e.mu.Lock()
		e.logError(opDeletePost, reasonDeleteRejected, actionErr, zap.String("post_id", postID.String()))
		e.mu.Unlock()
		return newServiceError(opDeletePost, reasonDeleteRejected, actionErr)
	}
	return nil
}

// refreshPinned performs the lazy dedicated pinned-post fetch after a pin
// confirmation. A failure keeps the optimistic snapshot and is logged only.
func (e *Engine) refreshPinned(ctx context.Context, generation int64) {
	entry, fetchErr := e.fetcher.FetchPinned(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if generation != e.generation {
		return
	}
	if fetchErr != nil {
		e.logError(opRefreshPinned, reasonFetchFailed, fetchErr)
		return
	}
	if entry == nil {
		e.pinned.clear()
		return
	}
	e.pinned.set(*entry)
}

func (e *Engine) restoreLikes(postID PostID, likes int) {
	stats, _ := e.stats.get(postID)
	stats.Likes = clampCounter(likes)
	e.stats.set(postID, stats)
}

func (e *Engine) restoreShares(postID PostID, shares int) {
	stats, _ := e.stats.get(postID)
	stats.Shares = clampCounter(shares)
	e.stats.set(postID, stats)
}
