package feed

import (
	"context"
	"sync"
	"testing"
	"time"
)

func sleepBriefly() {
	time.Sleep(2 * time.Millisecond)
}

func mustEngine(t *testing.T, cfg EngineConfig) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("unexpected engine error: %v", err)
	}
	return engine
}

func mustPostID(t *testing.T, value string) PostID {
	t.Helper()
	id, err := NewPostID(value)
	if err != nil {
		t.Fatalf("unexpected post id error: %v", err)
	}
	return id
}

func mustDomKey(t *testing.T, value string) DomKey {
	t.Helper()
	key, err := NewDomKey(value)
	if err != nil {
		t.Fatalf("unexpected dom key error: %v", err)
	}
	return key
}

func makeEntry(id string, action EntryAction) FeedEntry {
	return FeedEntry{
		ID:      PostID(id),
		OwnerID: UserID("user-a"),
		Kind:    KindPost,
		Action:  action,
		DomKey:  DomKey("dom-" + id + "-" + string(action)),
	}
}

type stubFetcher struct {
	mu        sync.Mutex
	pages     []FeedPage
	pageErr   error
	offsets   []int
	pinned    *FeedEntry
	pinnedErr error
	blockPage chan struct{}
}

func (f *stubFetcher) FetchPage(_ context.Context, offset int) (FeedPage, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	block := f.blockPage
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.pageErr != nil {
		return FeedPage{}, f.pageErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pages) == 0 {
		return FeedPage{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *stubFetcher) FetchPinned(_ context.Context) (*FeedEntry, error) {
	if f.pinnedErr != nil {
		return nil, f.pinnedErr
	}
	return f.pinned, nil
}

type stubActions struct {
	mu          sync.Mutex
	likeErr     error
	unlikeErr   error
	repostErr   error
	unrepostErr error
	pinErr      error
	unpinErr    error
	deleteErr   error
	blockAction chan struct{}
	calls       []string
}

func (a *stubActions) recordCall(name string) {
	a.mu.Lock()
	a.calls = append(a.calls, name)
	block := a.blockAction
	a.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (a *stubActions) Like(_ context.Context, _ PostID) error {
	a.recordCall("like")
	return a.likeErr
}

func (a *stubActions) Unlike(_ context.Context, _ PostID) error {
	a.recordCall("unlike")
	return a.unlikeErr
}

func (a *stubActions) Repost(_ context.Context, _ PostID) error {
	a.recordCall("repost")
	return a.repostErr
}

func (a *stubActions) Unrepost(_ context.Context, _ PostID) error {
	a.recordCall("unrepost")
	return a.unrepostErr
}

func (a *stubActions) Pin(_ context.Context, _ PostID) error {
	a.recordCall("pin")
	return a.pinErr
}

func (a *stubActions) Unpin(_ context.Context, _ PostID) error {
	a.recordCall("unpin")
	return a.unpinErr
}

func (a *stubActions) Delete(_ context.Context, _ PostID) error {
	a.recordCall("delete")
	return a.deleteErr
}

func (a *stubActions) callNames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := make([]string, len(a.calls))
	copy(copied, a.calls)
	return copied
}

// assertContiguous fails the test unless the window's sort indices are
// exactly 0..N-1 in order.
func assertContiguous(t *testing.T, entries []FeedEntry) {
	t.Helper()
	for position, entry := range entries {
		if entry.SortIndex != position {
			t.Fatalf("expected sort index %d at position %d, got %d", position, position, entry.SortIndex)
		}
	}
}
