package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kyc-service/internal/service"
	"kyc-service/internal/util"
)

// userIDHeader carries the caller's identity, set by the API gateway after
// authentication.
const userIDHeader = "X-User-ID"

// KYCHandler handles HTTP requests for the verification flow
type KYCHandler struct {
	kycService *service.KYCService
}

// NewKYCHandler creates a new KYC handler
func NewKYCHandler(kycService *service.KYCService) *KYCHandler {
	return &KYCHandler{
		kycService: kycService,
	}
}

// RegisterRoutes registers the verification routes
func (h *KYCHandler) RegisterRoutes(router chi.Router) {
	router.Route("/kyc", func(r chi.Router) {
		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions/{sessionID}/result", h.GetResult)
		r.Delete("/sessions/{sessionID}", h.DeleteSession)
		r.Get("/status", h.GetStatus)
	})
}

// CreateSession opens a new liveness verification session for the caller
func (h *KYCHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("missing "+userIDHeader+" header"), "User identity required")
		return
	}

	session, err := h.kycService.CreateSession(ctx, userID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to create verification session")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(session, "Verification session created"))
	util.Info("Verification session created via HTTP",
		zap.String("user_id", userID),
		zap.String("session_id", session.ID),
		zap.Duration("duration", time.Since(startTime)),
	)
}

// GetResult fetches a session's outcome, resolving it on first terminal read
func (h *KYCHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("missing "+userIDHeader+" header"), "User identity required")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.kycService.GetResult(ctx, sessionID, userID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to get verification result")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(session, "Verification result retrieved"))
}

// DeleteSession cancels a pending session owned by the caller
func (h *KYCHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("missing "+userIDHeader+" header"), "User identity required")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.kycService.DeleteSession(ctx, sessionID, userID); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to delete verification session")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Verification session deleted"))
}

// GetStatus reports the caller's verification status
func (h *KYCHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("missing "+userIDHeader+" header"), "User identity required")
		return
	}

	report, err := h.kycService.GetStatus(ctx, userID)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to get verification status")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(report, "Verification status retrieved"))
}

// HealthCheck verifies the service's storage dependencies
func (h *KYCHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.kycService.HealthCheck(r.Context()); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, err, "Service unhealthy")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Service healthy"))
}
