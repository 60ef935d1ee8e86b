package source

import (
	"context"

	"github.com/ripplefeed/ripple/backend/internal/feed"
)

// ViewerFacade binds the origin service to a single viewer so it satisfies
// the collaborator interfaces the sync engine expects.
type ViewerFacade struct {
	service *Service
	viewer  string
}

// ForViewer returns a facade scoped to the given viewer.
func (s *Service) ForViewer(viewer string) *ViewerFacade {
	return &ViewerFacade{service: s, viewer: viewer}
}

func (f *ViewerFacade) FetchPage(ctx context.Context, offset int) (feed.FeedPage, error) {
	return f.service.FetchPage(ctx, f.viewer, offset)
}

func (f *ViewerFacade) FetchPinned(ctx context.Context) (*feed.FeedEntry, error) {
	return f.service.FetchPinned(ctx, f.viewer)
}

func (f *ViewerFacade) Like(ctx context.Context, postID feed.PostID) error {
	return f.service.Like(ctx, f.viewer, postID.String())
}

func (f *ViewerFacade) Unlike(ctx context.Context, postID feed.PostID) error {
	return f.service.Unlike(ctx, f.viewer, postID.String())
}

func (f *ViewerFacade) Repost(ctx context.Context, postID feed.PostID) error {
	return f.service.Repost(ctx, f.viewer, postID.String())
}

func (f *ViewerFacade) Unrepost(ctx context.Context, postID feed.PostID) error {
	return f.service.Unrepost(ctx, f.viewer, postID.String())
}

func (f *ViewerFacade) Pin(ctx context.Context, postID feed.PostID) error {
	return f.service.Pin(ctx, f.viewer, postID.String())
}

func (f *ViewerFacade) Unpin(ctx context.Context, postID feed.PostID) error {
	return f.service.Unpin(ctx, f.viewer, postID.String())
}

func (f *ViewerFacade) Delete(ctx context.Context, postID feed.PostID) error {
	return f.service.Delete(ctx, f.viewer, postID.String())
}
