package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ripplefeed/ripple/backend/internal/auth"
	"github.com/ripplefeed/ripple/backend/internal/feed"
	"github.com/ripplefeed/ripple/backend/internal/session"
	"github.com/ripplefeed/ripple/backend/internal/source"
	"github.com/ripplefeed/ripple/backend/internal/users"
)

const (
	testGatewaySecret = "gateway-signing-secret"
	testGatewayCookie = "app_session"
	testBackendSecret = "backend-signing-secret"
	testFeedPageSize  = 2
)

type feedTestEnv struct {
	server     *httptest.Server
	db         *gorm.DB
	origin     *source.Service
	issuer     *auth.TokenIssuer
	dispatcher *RealtimeDispatcher
}

func newFeedTestEnv(t *testing.T) *feedTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:ripple_server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	models := append(source.Models(), &users.Identity{})
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	origin, err := source.NewService(source.ServiceConfig{
		Database:   db,
		IDProvider: source.UUIDProvider{},
		PageSize:   testFeedPageSize,
	})
	if err != nil {
		t.Fatalf("failed to construct origin: %v", err)
	}

	identities, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct identity service: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testBackendSecret),
		Issuer:        "ripple-auth",
		Audience:      "ripple-api",
		TokenTTL:      time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to construct token issuer: %v", err)
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testGatewaySecret),
		CookieName:    testGatewayCookie,
	})
	if err != nil {
		t.Fatalf("failed to construct session validator: %v", err)
	}

	manager, err := session.NewManager(session.ManagerConfig{
		Origin:   origin,
		PageSize: testFeedPageSize,
	})
	if err != nil {
		t.Fatalf("failed to construct session manager: %v", err)
	}

	dispatcher := NewRealtimeDispatcher()
	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: validator,
		Identities:       identities,
		TokenManager:     issuer,
		Sessions:         manager,
		Origin:           origin,
		Realtime:         dispatcher,
		Logger:           zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &feedTestEnv{
		server:     server,
		db:         db,
		origin:     origin,
		issuer:     issuer,
		dispatcher: dispatcher,
	}
}

func (env *feedTestEnv) backendToken(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := env.issuer.IssueBackendToken(context.Background(), auth.SessionClaims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	})
	if err != nil {
		t.Fatalf("failed to issue backend token: %v", err)
	}
	return token
}

func (env *feedTestEnv) gatewayCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.SessionClaims{
		UserID:          userID,
		UserDisplayName: "Test User",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "ripple-auth",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testGatewaySecret))
	if err != nil {
		t.Fatalf("failed to sign gateway token: %v", err)
	}
	return &http.Cookie{Name: testGatewayCookie, Value: signed}
}

func (env *feedTestEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	request, err := http.NewRequest(method, env.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to construct request: %v", err)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return response
}

func decodeSnapshot(t *testing.T, response *http.Response) feedSnapshotPayload {
	t.Helper()
	defer func() { _ = response.Body.Close() }()
	var snapshot feedSnapshotPayload
	if err := json.NewDecoder(response.Body).Decode(&snapshot); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return snapshot
}

func seedFeedPost(t *testing.T, db *gorm.DB, rowID, postID, owner string, createdAt int64) {
	t.Helper()
	if err := db.Create(&source.FeedRow{
		RowID:            rowID,
		PostID:           postID,
		OwnerID:          owner,
		Kind:             string(feed.KindPost),
		Action:           string(feed.ActionAuthored),
		BodyText:         "seed " + postID,
		CreatedAtSeconds: createdAt,
	}).Error; err != nil {
		t.Fatalf("failed to seed feed row: %v", err)
	}
}

func TestSessionExchangeIssuesBackendToken(t *testing.T) {
	env := newFeedTestEnv(t)

	request, err := http.NewRequest(http.MethodPost, env.server.URL+"/auth/session", http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct request: %v", err)
	}
	request.AddCookie(env.gatewayCookie(t, "google:u-100"))

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("session exchange failed: %v", err)
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", response.StatusCode)
	}

	var payload authResponsePayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.TokenType != "Bearer" || payload.AccessToken == "" {
		t.Fatalf("unexpected token payload: %+v", payload)
	}

	subject, err := env.issuer.ValidateToken(payload.AccessToken)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if subject != "u-100" {
		t.Fatalf("expected canonical subject u-100, got %q", subject)
	}
}

func TestSessionExchangeRejectsMissingCookie(t *testing.T) {
	env := newFeedTestEnv(t)

	response := env.request(t, http.MethodPost, "/auth/session", "", nil)
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", response.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newFeedTestEnv(t)

	response := env.request(t, http.MethodGet, "/feed", "", nil)
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", response.StatusCode)
	}
}

func TestFeedPageAdvancesCursorAndReportsReachEnd(t *testing.T) {
	env := newFeedTestEnv(t)
	token := env.backendToken(t, "viewer")

	seedFeedPost(t, env.db, "row-1", "post-1", "alice", 100)
	seedFeedPost(t, env.db, "row-2", "post-2", "alice", 200)
	seedFeedPost(t, env.db, "row-3", "post-3", "bob", 300)

	first := decodeSnapshot(t, env.request(t, http.MethodPost, "/feed/page", token, nil))
	if len(first.Entries) != 2 {
		t.Fatalf("expected full first page, got %d entries", len(first.Entries))
	}
	if first.ReachEnd {
		t.Fatal("did not expect reach-end after a full page")
	}
	if first.Entries[0].PostID != "post-3" || first.Entries[0].SortIndex != 0 {
		t.Fatalf("unexpected first entry: %+v", first.Entries[0])
	}

	second := decodeSnapshot(t, env.request(t, http.MethodPost, "/feed/page", token, nil))
	if len(second.Entries) != 3 {
		t.Fatalf("expected all three entries materialized, got %d", len(second.Entries))
	}
	if !second.ReachEnd {
		t.Fatal("expected reach-end after the short page")
	}
	for index, entry := range second.Entries {
		if entry.SortIndex != index {
			t.Fatalf("expected contiguous sort indexes, got %d at %d", entry.SortIndex, index)
		}
	}
}

func TestToggleLikeRoundTrip(t *testing.T) {
	env := newFeedTestEnv(t)
	token := env.backendToken(t, "viewer")
	seedFeedPost(t, env.db, "row-1", "post-1", "alice", 100)

	response := env.request(t, http.MethodPost, "/feed/page", token, nil)
	_ = response.Body.Close()

	likeResponse := env.request(t, http.MethodPost, "/feed/posts/post-1/like", token, nil)
	defer func() { _ = likeResponse.Body.Close() }()
	if likeResponse.StatusCode != http.StatusOK {
		t.Fatalf("unexpected like status: %d", likeResponse.StatusCode)
	}
	var likePayload struct {
		PostID string           `json:"post_id"`
		Liked  bool             `json:"liked"`
		Stats  postStatsPayload `json:"stats"`
	}
	if err := json.NewDecoder(likeResponse.Body).Decode(&likePayload); err != nil {
		t.Fatalf("failed to decode like payload: %v", err)
	}
	if !likePayload.Liked || likePayload.Stats.Likes != 1 {
		t.Fatalf("expected confirmed like, got %+v", likePayload)
	}

	var stored source.Like
	if err := env.db.Where("user_id = ? AND post_id = ?", "viewer", "post-1").Take(&stored).Error; err != nil {
		t.Fatalf("expected persisted like row: %v", err)
	}

	unlikeResponse := env.request(t, http.MethodPost, "/feed/posts/post-1/like", token, nil)
	defer func() { _ = unlikeResponse.Body.Close() }()
	var unlikePayload struct {
		Liked bool             `json:"liked"`
		Stats postStatsPayload `json:"stats"`
	}
	if err := json.NewDecoder(unlikeResponse.Body).Decode(&unlikePayload); err != nil {
		t.Fatalf("failed to decode unlike payload: %v", err)
	}
	if unlikePayload.Liked || unlikePayload.Stats.Likes != 0 {
		t.Fatalf("expected like undone, got %+v", unlikePayload)
	}
}

func TestToggleRejectsInvalidPostID(t *testing.T) {
	env := newFeedTestEnv(t)
	token := env.backendToken(t, "viewer")

	response := env.request(t, http.MethodPost, "/feed/posts/%20/like", token, nil)
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank post id, got %d", response.StatusCode)
	}
}

func TestComposePrependsEntry(t *testing.T) {
	env := newFeedTestEnv(t)
	token := env.backendToken(t, "viewer")
	seedFeedPost(t, env.db, "row-1", "post-1", "alice", 100)

	pageResponse := env.request(t, http.MethodPost, "/feed/page", token, nil)
	_ = pageResponse.Body.Close()

	composeResponse := env.request(t, http.MethodPost, "/feed/entries", token, composeRequestPayload{Body: "hello ripple"})
	defer func() { _ = composeResponse.Body.Close() }()
	if composeResponse.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected compose status: %d", composeResponse.StatusCode)
	}
	var created feedEntryPayload
	if err := json.NewDecoder(composeResponse.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode created entry: %v", err)
	}
	if created.OwnerID != "viewer" || !created.NewlyInserted {
		t.Fatalf("unexpected created entry: %+v", created)
	}

	snapshot := decodeSnapshot(t, env.request(t, http.MethodGet, "/feed", token, nil))
	if len(snapshot.Entries) == 0 || snapshot.Entries[0].PostID != created.PostID {
		t.Fatalf("expected composed post at the top, got %+v", snapshot.Entries)
	}
	if snapshot.Entries[0].SortIndex != 0 {
		t.Fatalf("expected composed post at index zero, got %d", snapshot.Entries[0].SortIndex)
	}
}

func TestHeightsAccumulateTotal(t *testing.T) {
	env := newFeedTestEnv(t)
	token := env.backendToken(t, "viewer")

	payload := heightRequestPayload{Heights: []heightItemPayload{
		{DomKey: "dom-1", Height: 120.5},
		{DomKey: "dom-2", Height: 80},
	}}
	response := env.request(t, http.MethodPost, "/feed/heights", token, payload)
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected heights status: %d", response.StatusCode)
	}
	var result struct {
		TotalHeight float64 `json:"total_height"`
	}
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode heights response: %v", err)
	}
	if result.TotalHeight != 200.5 {
		t.Fatalf("expected total height 200.5, got %v", result.TotalHeight)
	}

	// Re-reporting an unchanged height must not double count.
	repeat := env.request(t, http.MethodPost, "/feed/heights", token, heightRequestPayload{
		Heights: []heightItemPayload{{DomKey: "dom-1", Height: 120.5}},
	})
	defer func() { _ = repeat.Body.Close() }()
	if err := json.NewDecoder(repeat.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode repeat response: %v", err)
	}
	if result.TotalHeight != 200.5 {
		t.Fatalf("expected stable total height, got %v", result.TotalHeight)
	}
}

func TestLogoutDropsFeedState(t *testing.T) {
	env := newFeedTestEnv(t)
	token := env.backendToken(t, "viewer")
	seedFeedPost(t, env.db, "row-1", "post-1", "alice", 100)

	first := decodeSnapshot(t, env.request(t, http.MethodPost, "/feed/page", token, nil))
	if len(first.Entries) != 1 {
		t.Fatalf("expected one materialized entry, got %d", len(first.Entries))
	}

	logout := env.request(t, http.MethodPost, "/auth/logout", token, nil)
	_ = logout.Body.Close()
	if logout.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected logout status: %d", logout.StatusCode)
	}

	snapshot := decodeSnapshot(t, env.request(t, http.MethodGet, "/feed", token, nil))
	if len(snapshot.Entries) != 0 {
		t.Fatalf("expected fresh engine after logout, got %d entries", len(snapshot.Entries))
	}
}
