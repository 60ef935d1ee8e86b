package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ripplefeed/ripple/backend/internal/auth"
	"github.com/ripplefeed/ripple/backend/internal/feed"
	"github.com/ripplefeed/ripple/backend/internal/session"
)

const userIDContextKey = "ripple_user_id"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingIdentityResolver = errors.New("identity resolver dependency required")
	errMissingTokenManager     = errors.New("token manager dependency required")
	errMissingSessionManager   = errors.New("session manager dependency required")
	errMissingFeedOrigin       = errors.New("feed origin dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

type GatewaySessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

type IdentityResolver interface {
	ResolveCanonicalUserID(claims auth.SessionClaims) (string, error)
}

type BackendTokenManager interface {
	IssueBackendToken(ctx context.Context, claims auth.SessionClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

type FeedOrigin interface {
	Compose(ctx context.Context, viewer, body string) (feed.FeedEntry, error)
}

type Dependencies struct {
	SessionValidator GatewaySessionValidator
	Identities       IdentityResolver
	TokenManager     BackendTokenManager
	Sessions         *session.Manager
	Origin           FeedOrigin
	Realtime         *RealtimeDispatcher
	Logger           *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Identities == nil {
		return nil, errMissingIdentityResolver
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionManager
	}
	if deps.Origin == nil {
		return nil, errMissingFeedOrigin
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		sessionValidator: deps.SessionValidator,
		identities:       deps.Identities,
		tokens:           deps.TokenManager,
		sessions:         deps.Sessions,
		origin:           deps.Origin,
		realtime:         realtime,
		logger:           logger,
	}

	router.POST("/auth/session", handler.handleSessionExchange)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/logout", handler.handleLogout)
	protected.GET("/feed", handler.handleFeedSnapshot)
	protected.POST("/feed/page", handler.handleFeedPage)
	protected.POST("/feed/reset", handler.handleFeedReset)
	protected.POST("/feed/entries", handler.handleFeedCompose)
	protected.POST("/feed/heights", handler.handleFeedHeights)
	protected.POST("/feed/posts/:id/like", handler.handleToggleLike)
	protected.POST("/feed/posts/:id/repost", handler.handleToggleRepost)
	protected.POST("/feed/posts/:id/pin", handler.handleTogglePin)
	protected.DELETE("/feed/posts/:id", handler.handleDeletePost)
	protected.GET("/feed/stream", handler.handleFeedStream)

	return router, nil
}

// The session exchange reads the gateway cookie, so browsers must be allowed
// to send credentials cross-origin.
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return origin != ""
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Gateway-Tenant"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	sessionValidator GatewaySessionValidator
	identities       IdentityResolver
	tokens           BackendTokenManager
	sessions         *session.Manager
	origin           FeedOrigin
	realtime         *RealtimeDispatcher
	logger           *zap.Logger
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleSessionExchange(c *gin.Context) {
	claims, err := h.sessionValidator.ValidateRequest(c.Request)
	if err != nil {
		h.logger.Info("gateway session validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.identities.ResolveCanonicalUserID(claims)
	if err != nil {
		h.logger.Warn("identity resolution failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_identity"})
		return
	}

	claims.Subject = userID
	token, expiresIn, err := h.tokens.IssueBackendToken(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to issue backend token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID != "" {
		h.sessions.Drop(userID)
	}
	c.Status(http.StatusNoContent)
}

type feedEntryPayload struct {
	PostID          string `json:"post_id"`
	OwnerID         string `json:"owner_id"`
	OriginalOwnerID string `json:"original_owner_id,omitempty"`
	Kind            string `json:"kind"`
	Action          string `json:"action"`
	SortIndex       int    `json:"sort_index"`
	DomKey          string `json:"dom_key"`
	NewlyInserted   bool   `json:"newly_inserted,omitempty"`
	Liked           bool   `json:"liked"`
	Reposted        bool   `json:"reposted"`
}

type postStatsPayload struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

type userSummaryPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type feedSnapshotPayload struct {
	Entries     []feedEntryPayload            `json:"entries"`
	Stats       map[string]postStatsPayload   `json:"stats"`
	Users       map[string]userSummaryPayload `json:"users"`
	Pinned      *feedEntryPayload             `json:"pinned,omitempty"`
	TotalHeight float64                       `json:"total_height"`
	ReachEnd    bool                          `json:"reach_end"`
	Loading     bool                          `json:"loading"`
	FetchFailed bool                          `json:"fetch_failed"`
}

func (h *httpHandler) engineFor(c *gin.Context) (*feed.Engine, bool) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	engine, err := h.sessions.EngineFor(userID)
	if err != nil {
		h.logger.Error("failed to construct feed engine", zap.Error(err), zap.String("user_id", userID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "engine_unavailable"})
		return nil, false
	}
	return engine, true
}

func (h *httpHandler) handleFeedSnapshot(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshotPayload(engine))
}

func (h *httpHandler) handleFeedPage(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	if err := engine.LoadNextPage(c.Request.Context()); err != nil {
		h.logger.Error("failed to load feed page", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "fetch_failed"})
		return
	}
	c.JSON(http.StatusOK, snapshotPayload(engine))
}

func (h *httpHandler) handleFeedReset(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	engine.ResetFeed()
	c.Status(http.StatusNoContent)
}

type composeRequestPayload struct {
	Body string `json:"body"`
}

func (h *httpHandler) handleFeedCompose(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	userID := c.GetString(userIDContextKey)

	var request composeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entry, err := h.origin.Compose(c.Request.Context(), userID, request.Body)
	if err != nil {
		h.logger.Error("failed to compose post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "compose_failed"})
		return
	}

	if err := engine.AddEntry(entry); err != nil {
		h.logger.Warn("failed to splice composed post", zap.Error(err))
	}
	h.publishFeedChange(userID, entry.ID.String())

	c.JSON(http.StatusCreated, entryPayload(engine, entry))
}

type heightRequestPayload struct {
	Heights []heightItemPayload `json:"heights"`
}

type heightItemPayload struct {
	DomKey        string  `json:"dom_key"`
	Height        float64 `json:"height"`
	NewlyInserted bool    `json:"newly_inserted"`
}

func (h *httpHandler) handleFeedHeights(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}

	var request heightRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Heights) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	for index, item := range request.Heights {
		domKey, err := feed.NewDomKey(item.DomKey)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_dom_key"})
			return
		}
		engine.RecordHeight(domKey, item.Height, index, item.NewlyInserted)
	}

	c.JSON(http.StatusOK, gin.H{"total_height": engine.TotalHeight()})
}

func (h *httpHandler) handleToggleLike(c *gin.Context) {
	h.handleToggle(c, "like", func(ctx context.Context, engine *feed.Engine, postID feed.PostID) error {
		return engine.ToggleLike(ctx, postID)
	})
}

func (h *httpHandler) handleToggleRepost(c *gin.Context) {
	h.handleToggle(c, "repost", func(ctx context.Context, engine *feed.Engine, postID feed.PostID) error {
		return engine.ToggleRepost(ctx, postID)
	})
}

func (h *httpHandler) handleTogglePin(c *gin.Context) {
	h.handleToggle(c, "pin", func(ctx context.Context, engine *feed.Engine, postID feed.PostID) error {
		return engine.TogglePin(ctx, postID)
	})
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	h.handleToggle(c, "delete", func(ctx context.Context, engine *feed.Engine, postID feed.PostID) error {
		return engine.DeletePost(ctx, postID)
	})
}

func (h *httpHandler) handleToggle(c *gin.Context, action string, apply func(context.Context, *feed.Engine, feed.PostID) error) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	userID := c.GetString(userIDContextKey)

	postID, err := feed.NewPostID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_post_id"})
		return
	}

	if err := apply(c.Request.Context(), engine, postID); err != nil {
		if errors.Is(err, feed.ErrActionPending) {
			c.JSON(http.StatusConflict, gin.H{"error": "action_pending"})
			return
		}
		h.logger.Error("feed action failed", zap.Error(err), zap.String("action", action), zap.String("post_id", postID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "action_failed"})
		return
	}

	h.publishFeedChange(userID, postID.String())

	stats, _ := engine.Stats(postID)
	c.JSON(http.StatusOK, gin.H{
		"post_id":  postID.String(),
		"liked":    engine.IsLiked(postID),
		"reposted": engine.IsReposted(postID),
		"stats": postStatsPayload{
			Likes:    stats.Likes,
			Comments: stats.Comments,
			Shares:   stats.Shares,
		},
	})
}

func (h *httpHandler) publishFeedChange(userID, postID string) {
	h.realtime.Publish(RealtimeMessage{
		UserID:    userID,
		EventType: RealtimeEventFeedChanged,
		PostIDs:   []string{postID},
		Timestamp: time.Now().UTC(),
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := ""
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}

	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, subject)
	c.Next()
}

func snapshotPayload(engine *feed.Engine) feedSnapshotPayload {
	entries := engine.VisibleEntries()
	payload := feedSnapshotPayload{
		Entries:     make([]feedEntryPayload, 0, len(entries)),
		Stats:       make(map[string]postStatsPayload, len(entries)),
		Users:       make(map[string]userSummaryPayload, len(entries)),
		TotalHeight: engine.TotalHeight(),
		ReachEnd:    engine.ReachEnd(),
		Loading:     engine.Loading(),
		FetchFailed: engine.FetchFailed(),
	}

	for _, entry := range entries {
		payload.Entries = append(payload.Entries, entryPayload(engine, entry))
		if stats, ok := engine.Stats(entry.ID); ok {
			payload.Stats[entry.ID.String()] = postStatsPayload{
				Likes:    stats.Likes,
				Comments: stats.Comments,
				Shares:   stats.Shares,
			}
		}
		for _, owner := range []feed.UserID{entry.OwnerID, entry.OriginalOwnerID} {
			if owner == "" {
				continue
			}
			if summary, ok := engine.User(owner); ok {
				payload.Users[owner.String()] = userSummaryPayload{
					UserID:      summary.ID.String(),
					DisplayName: summary.DisplayName,
					AvatarURL:   summary.AvatarURL,
				}
			}
		}
	}

	if pinned, ok := engine.PinnedPost(); ok {
		entry := entryPayload(engine, pinned)
		payload.Pinned = &entry
	}

	return payload
}

func entryPayload(engine *feed.Engine, entry feed.FeedEntry) feedEntryPayload {
	return feedEntryPayload{
		PostID:          entry.ID.String(),
		OwnerID:         entry.OwnerID.String(),
		OriginalOwnerID: entry.OriginalOwnerID.String(),
		Kind:            string(entry.Kind),
		Action:          string(entry.Action),
		SortIndex:       entry.SortIndex,
		DomKey:          entry.DomKey.String(),
		NewlyInserted:   entry.NewlyInserted,
		Liked:           engine.IsLiked(entry.ID),
		Reposted:        engine.IsReposted(entry.ID),
	}
}
