package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verse-scribe/internal/auth"
	"github.com/verse-scribe/internal/catalog"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/service"
	"github.com/verse-scribe/internal/transcription"
	"github.com/verse-scribe/internal/types"
)

const (
	testSecret = "test-secret"
	testIssuer = "verse-scribe-test"
)

// Mock services for testing

type mockProfiles struct {
	resolved []string
	getFunc  func(ctx context.Context, userID string) (*models.ProfileSummary, error)
	updFunc  func(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.ProfileSummary, error)
}

func (m *mockProfiles) Resolve(ctx context.Context, claims *auth.Claims) (string, error) {
	m.resolved = append(m.resolved, claims.Subject)
	return "profile-" + claims.Subject, nil
}

func (m *mockProfiles) Get(ctx context.Context, userID string) (*models.ProfileSummary, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID)
	}
	return &models.ProfileSummary{UserID: userID, DisplayName: models.DefaultDisplayName}, nil
}

func (m *mockProfiles) Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.ProfileSummary, error) {
	if m.updFunc != nil {
		return m.updFunc(ctx, userID, upd)
	}
	return &models.ProfileSummary{UserID: userID, DisplayName: *upd.Name}, nil
}

type mockStats struct {
	dailyDates []string
	dailyErr   error
}

func (m *mockStats) Daily(ctx context.Context, userID, date string) (*service.DailyStats, error) {
	m.dailyDates = append(m.dailyDates, date)
	if m.dailyErr != nil {
		return nil, m.dailyErr
	}
	return &service.DailyStats{Date: date, Earned: 40, Limit: 300}, nil
}

func (m *mockStats) Month(ctx context.Context, userID, yearMonth string) (*service.MonthStats, error) {
	return &service.MonthStats{Month: yearMonth, TotalEarned: 350}, nil
}

func (m *mockStats) Dashboard(ctx context.Context, userID, date string) (*service.Dashboard, error) {
	return &service.Dashboard{Today: &service.DailyStats{Date: date}, CompletedCount: 7}, nil
}

func (m *mockStats) CompletedKeys(ctx context.Context, userID string) (types.CompletedSet, error) {
	return types.NewCompletedSet(
		types.VerseKey{Book: "genesis", Chapter: 1, Verse: 2},
		types.VerseKey{Book: "genesis", Chapter: 1, Verse: 1},
	), nil
}

func (m *mockStats) Recent(ctx context.Context, userID string, limit int) ([]*models.TranscriptionEvent, error) {
	return []*models.TranscriptionEvent{{UserID: userID, Book: "john", Chapter: 3, Verse: 16}}, nil
}

type mockRecorder struct {
	records []types.TranscriptionRecord
	err     error
}

func (m *mockRecorder) RecordTranscription(ctx context.Context, userID string, rec types.TranscriptionRecord) (*types.RecordResult, error) {
	m.records = append(m.records, rec)
	if m.err != nil {
		return nil, m.err
	}
	return &types.RecordResult{NewDailyEarnedTotal: 10 * len(m.records)}, nil
}

type mockSessions struct {
	started    []service.StartInput
	advanceErr error
}

func (m *mockSessions) Start(ctx context.Context, in service.StartInput) (*service.StartResult, error) {
	m.started = append(m.started, in)
	return &service.StartResult{Session: transcription.Snapshot{ID: "sess-1", Mode: types.ModeSequential}}, nil
}

func (m *mockSessions) Get(userID, id string) (transcription.Snapshot, error) {
	if id != "sess-1" {
		return transcription.Snapshot{}, apperrors.NewNotFoundError("session", id)
	}
	return transcription.Snapshot{ID: id}, nil
}

func (m *mockSessions) Input(userID, id, text string) (transcription.Snapshot, error) {
	return transcription.Snapshot{ID: id, Input: text, MatchState: types.MatchPending}, nil
}

func (m *mockSessions) Advance(ctx context.Context, userID, id string) (transcription.Snapshot, error) {
	return transcription.Snapshot{ID: id, State: transcription.StateCorrect}, m.advanceErr
}

func (m *mockSessions) Delete(userID, id string) error {
	if id != "sess-1" {
		return apperrors.NewNotFoundError("session", id)
	}
	return nil
}

type mockReader struct{}

func (m *mockReader) Chapter(ctx context.Context, userID, translation, book string, chapter int) (*service.ReaderChapter, error) {
	if book == "hezekiah" {
		return nil, apperrors.NewInvalidParameterError("book", "unknown book "+book)
	}
	return &service.ReaderChapter{Translation: "nkrv", Chapter: chapter}, nil
}

func (m *mockReader) Search(ctx context.Context, translation, query string, limit int) ([]types.Verse, error) {
	if query == "" {
		return nil, apperrors.NewInvalidParameterError("q", "must not be empty")
	}
	return []types.Verse{{Book: "john", Chapter: 3, Number: 16, Text: query}}, nil
}

type testServer struct {
	*Server
	profiles *mockProfiles
	stats    *mockStats
	recorder *mockRecorder
	sessions *mockSessions
}

func setupTestServer(t *testing.T, mutate ...func(*ServerConfig)) *testServer {
	t.Helper()
	topics, err := catalog.Default()
	require.NoError(t, err)

	config := &ServerConfig{
		Host:              "localhost",
		Port:              "0",
		RequestsPerSecond: 1000,
		Burst:             1000,
		AuthRequired:      true,
		DefaultLocation:   time.UTC,
	}
	for _, m := range mutate {
		m(config)
	}

	ts := &testServer{
		profiles: &mockProfiles{},
		stats:    &mockStats{},
		recorder: &mockRecorder{},
		sessions: &mockSessions{},
	}
	ts.Server = NewServer(config, Services{
		Profiles:       ts.profiles,
		Stats:          ts.stats,
		Transcriptions: ts.recorder,
		Sessions:       ts.sessions,
		Reader:         &mockReader{},
		Topics:         topics,
	}, auth.NewVerifier(testSecret, testIssuer))
	return ts
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, testIssuer, subject, time.Hour, auth.Claims{Email: subject + "@example.com"})
	require.NoError(t, err)
	return "Bearer " + token
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) types.ServiceError {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)
	rr := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "verse-scribe", body["service"])
}

func TestHealth_FailingCheck(t *testing.T) {
	topics, err := catalog.Default()
	require.NoError(t, err)
	s := NewServer(&ServerConfig{RequestsPerSecond: 10, Burst: 10}, Services{Topics: topics, Profiles: &mockProfiles{}}, nil,
		WithHealthCheck("postgres", func(ctx context.Context) error { return nil }),
		WithHealthCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") }),
	)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	topics, err := catalog.Default()
	require.NoError(t, err)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("scribe_verses_completed_total 3\n"))
	})
	s := NewServer(&ServerConfig{RequestsPerSecond: 10, Burst: 10}, Services{Topics: topics, Profiles: &mockProfiles{}}, nil,
		WithMetrics(nil, handler))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "scribe_verses_completed_total")
}

func TestAuthMiddleware(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantReason string
	}{
		{"no token", nil, http.StatusUnauthorized, "missing token"},
		{"garbage token", map[string]string{"Authorization": "Bearer abc.def.ghi"}, http.StatusUnauthorized, "invalid token"},
		{"dev header ignored when auth required", map[string]string{DevUserHeader: "u1"}, http.StatusUnauthorized, "missing token"},
		{"valid token", map[string]string{"Authorization": bearer(t, "kakao|42")}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodGet, "/api/me/profile", nil, tt.headers)
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantReason != "" {
				svcErr := decodeError(t, rr)
				assert.Equal(t, apperrors.CodeAuthRequired, svcErr.Code)
				assert.Equal(t, tt.wantReason, svcErr.Details["reason"])
			}
		})
	}

	assert.Equal(t, []string{"kakao|42"}, ts.profiles.resolved)
}

func TestAuthMiddleware_DevHeader(t *testing.T) {
	ts := setupTestServer(t, func(c *ServerConfig) { c.AuthRequired = false })

	rr := ts.do(t, http.MethodGet, "/api/me/profile", nil, map[string]string{DevUserHeader: "local-dev"})
	require.Equal(t, http.StatusOK, rr.Code)

	var summary models.ProfileSummary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&summary))
	assert.Equal(t, "profile-local-dev", summary.UserID)
}

func TestRateLimit(t *testing.T) {
	ts := setupTestServer(t, func(c *ServerConfig) {
		c.RequestsPerSecond = 0.001
		c.Burst = 2
	})

	for i := 0; i < 2; i++ {
		rr := ts.do(t, http.MethodGet, "/api/topics", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := ts.do(t, http.MethodGet, "/api/topics", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Equal(t, apperrors.CodeRateLimitExceeded, decodeError(t, rr).Code)

	// Authenticated callers have their own bucket
	rr = ts.do(t, http.MethodGet, "/api/me/profile", nil, map[string]string{"Authorization": bearer(t, "u1")})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	now = now.Add(time.Hour)
	assert.True(t, rl.Allow("b"))

	assert.Equal(t, 1, rl.Prune(30*time.Minute))
	assert.Equal(t, 0, rl.Prune(30*time.Minute))
}

func TestCORSPreflight(t *testing.T) {
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/me/profile", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), TimezoneHeader)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, apperrors.CodeInternalError, decodeError(t, rr).Code)
}
