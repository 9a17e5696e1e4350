package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-service/internal/client"
	"kyc-service/internal/config"
	"kyc-service/internal/fingerprint"
	"kyc-service/internal/kyccache"
	"kyc-service/internal/models"
	"kyc-service/internal/repository/scylla"
	"kyc-service/internal/service"
)

type stubUserRepo struct {
	users map[string]*models.User
}

func (r *stubUserRepo) GetUserByID(_ context.Context, userID string) (*models.User, error) {
	u, ok := r.users[userID]
	if !ok {
		return nil, scylla.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *stubUserRepo) SetKYCCompleted(_ context.Context, userID string, completedAt time.Time) error {
	r.users[userID].KYCCompleted = true
	r.users[userID].KYCCompletedAt = &completedAt
	return nil
}

func (r *stubUserRepo) SuspendUser(_ context.Context, userID string) error {
	r.users[userID].IsActive = false
	r.users[userID].KYCCompleted = false
	return nil
}

func (r *stubUserRepo) ResetKYC(_ context.Context, userID string) error {
	r.users[userID].IsActive = true
	r.users[userID].KYCCompleted = false
	return nil
}

func (r *stubUserRepo) HealthCheck(_ context.Context) error { return nil }

const testAdminKey = "test-admin-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Environment: "development",
		KYC: config.KYCConfig{
			MaxAttemptsPerUser:  3,
			MaxAttemptsPerFace:  2,
			AttemptWindow:       time.Hour,
			BanDuration:         time.Hour,
			SessionTimeout:      30 * time.Minute,
			ViolationRetention:  24 * time.Hour,
			ConfidenceThreshold: 80,
			FingerprintHexLen:   16,
			ProviderTimeout:     5 * time.Second,
		},
	}

	cache, err := kyccache.New(kyccache.Options{
		MaxAttemptsPerUser: cfg.KYC.MaxAttemptsPerUser,
		MaxAttemptsPerFace: cfg.KYC.MaxAttemptsPerFace,
		AttemptWindow:      cfg.KYC.AttemptWindow,
		BanDuration:        cfg.KYC.BanDuration,
		SessionTimeout:     cfg.KYC.SessionTimeout,
		ViolationRetention: cfg.KYC.ViolationRetention,
		FingerprintFile:    filepath.Join(t.TempDir(), "face_fingerprints.json"),
	})
	require.NoError(t, err)

	repo := &stubUserRepo{users: map[string]*models.User{
		"u1": {UserID: "u1", Email: "u1@example.com", IsActive: true},
	}}

	svc := service.NewKYCService(
		cfg,
		cache,
		fingerprint.NewDeriver(cfg.KYC.FingerprintHexLen),
		client.NewMockLivenessProvider(),
		repo,
		nil,
		nil,
		nil,
		nil,
	)

	router := NewRouter(NewKYCHandler(svc), NewAdminHandler(svc, testAdminKey), nil, false)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, path, userID string) (*http.Response, Response) {
	t.Helper()
	req, err := http.NewRequest(method, server.URL+path, nil)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestKYCHandler_MissingIdentityHeader(t *testing.T) {
	server := newTestServer(t)

	resp, body := doRequest(t, server, http.MethodPost, "/api/v1/kyc/sessions", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, body.Success)
}

func TestKYCHandler_VerificationFlow(t *testing.T) {
	server := newTestServer(t)

	resp, body := doRequest(t, server, http.MethodPost, "/api/v1/kyc/sessions", "u1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, body.Success)

	data := body.Data.(map[string]interface{})
	sessionID := data["session_id"].(string)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, float64(2), data["attempts_remaining"])

	resp, body = doRequest(t, server, http.MethodGet, "/api/v1/kyc/sessions/"+sessionID+"/result", "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body.Data.(map[string]interface{})
	assert.Equal(t, "succeeded", data["status"])

	resp, body = doRequest(t, server, http.MethodGet, "/api/v1/kyc/status", "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body.Data.(map[string]interface{})
	assert.Equal(t, true, data["completed"])
	assert.Equal(t, true, data["has_fingerprint"])
}

func TestKYCHandler_UnknownUser(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/kyc/sessions", "ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKYCHandler_RateLimitResponses(t *testing.T) {
	server := newTestServer(t)

	for i := 0; i < 2; i++ {
		resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/kyc/sessions", "u1")
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/kyc/sessions", "u1")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = doRequest(t, server, http.MethodPost, "/api/v1/kyc/sessions", "u1")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestKYCHandler_SessionOwnership(t *testing.T) {
	server := newTestServer(t)

	_, body := doRequest(t, server, http.MethodPost, "/api/v1/kyc/sessions", "u1")
	sessionID := body.Data.(map[string]interface{})["session_id"].(string)

	resp, _ := doRequest(t, server, http.MethodDelete, "/api/v1/kyc/sessions/"+sessionID, "u1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, server, http.MethodDelete, "/api/v1/kyc/sessions/"+sessionID, "u1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminHandler_KeyGate(t *testing.T) {
	server := newTestServer(t)

	// no key
	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/v1/admin/cache/stats", nil)
	require.NoError(t, err)
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// wrong key
	req.Header.Set(adminKeyHeader, "wrong")
	resp, err = server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// correct key
	req.Header.Set(adminKeyHeader, testAdminKey)
	resp, err = server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
}

func TestRouter_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp, err := server.Client().Get(server.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
