package source

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ripplefeed/ripple/backend/internal/feed"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrNotOwner rejects a delete issued by someone other than the post author.
	ErrNotOwner = errors.New("source: viewer does not own post")
	// ErrUnknownPost indicates the referenced post has no authored row.
	ErrUnknownPost = errors.New("source: unknown post")
)

const (
	opServiceNew  = "source.service.new"
	opFetchPage   = "source.fetch_page"
	opFetchPinned = "source.fetch_pinned"
	opLike        = "source.like"
	opUnlike      = "source.unlike"
	opRepost      = "source.repost"
	opUnrepost    = "source.unrepost"
	opPin         = "source.pin"
	opUnpin       = "source.unpin"
	opDelete      = "source.delete"

	actionKindLike     = "like"
	actionKindUnlike   = "unlike"
	actionKindRepost   = "repost"
	actionKindUnrepost = "unrepost"
	actionKindPin      = "pin"
	actionKindUnpin    = "unpin"
	actionKindDelete   = "delete"
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

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for feed rows and audit records.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig carries the collaborators for the feed origin.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	PageSize   int
	Logger     *zap.Logger
}

// Service is the feed origin: it serves filtered feed pages per viewer and
// applies like/repost/pin/delete actions transactionally.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	pageSize   int
	logger     *zap.Logger
}

// NewService validates the configuration and returns the origin service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = feed.DefaultPageSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		pageSize:   pageSize,
		logger:     logger,
	}, nil
}

// Models lists every schema type the origin persists, for migration.
func Models() []any {
	return []any{
		&FeedRow{},
		&PostStat{},
		&Like{},
		&Repost{},
		&Pin{},
		&Block{},
		&Profile{},
		&FeedAction{},
	}
}

func (s *Service) auditAction(tx *gorm.DB, viewer, postID, kind string) error {
	actionID, err := s.idProvider.NewID()
	if err != nil {
		return err
	}
	return tx.Create(&FeedAction{
		ActionID:         actionID,
		UserID:           viewer,
		PostID:           postID,
		Kind:             kind,
		AppliedAtSeconds: s.clock().UTC().Unix(),
	}).Error
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("feed origin error", attrs...)
}
