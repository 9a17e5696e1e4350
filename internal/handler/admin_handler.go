package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kyc-service/internal/service"
	"kyc-service/internal/util"
)

// adminKeyHeader carries the shared moderation key.
const adminKeyHeader = "X-Admin-Key"

// AdminHandler exposes the moderation surface: cache resets, user KYC
// resets, and the violation log. Guarded by a shared key compared in
// constant time; an empty configured key disables the whole surface.
type AdminHandler struct {
	kycService *service.KYCService
	apiKey     string
}

func NewAdminHandler(kycService *service.KYCService, apiKey string) *AdminHandler {
	return &AdminHandler{
		kycService: kycService,
		apiKey:     apiKey,
	}
}

// RegisterRoutes registers the moderation routes
func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdminKey)
		r.Get("/cache/stats", h.CacheStats)
		r.Delete("/cache", h.ClearCaches)
		r.Post("/users/{userID}/reset", h.ResetUserKYC)
		r.Get("/violations", h.ListViolations)
		r.Delete("/violations", h.ClearViolations)
	})
}

func (h *AdminHandler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey == "" {
			respondWithError(w, http.StatusForbidden, errors.New("admin surface disabled"), "Admin access not configured")
			return
		}
		provided := r.Header.Get(adminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.apiKey)) != 1 {
			util.Warn("Admin key rejected",
				zap.String("remote_addr", r.RemoteAddr))
			respondWithError(w, http.StatusUnauthorized, errors.New("invalid admin key"), "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CacheStats reports per-structure cache sizes
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.kycService.CacheStats(r.Context())
	respondWithJSON(w, http.StatusOK, successResponse(stats, "Cache stats retrieved"))
}

// ClearCaches wipes all verification state
func (h *AdminHandler) ClearCaches(w http.ResponseWriter, r *http.Request) {
	if err := h.kycService.ClearAllCaches(r.Context()); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to clear caches")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "All verification caches cleared"))
}

// ResetUserKYC lets a user verify again after moderation review
func (h *AdminHandler) ResetUserKYC(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.kycService.ResetUserKYC(r.Context(), userID); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to reset user KYC")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "User KYC reset"))
}

// ListViolations returns recorded duplicate-face violations
func (h *AdminHandler) ListViolations(w http.ResponseWriter, r *http.Request) {
	violations := h.kycService.ListViolations(r.Context())
	respondWithJSON(w, http.StatusOK, successResponse(violations, "Violations retrieved"))
}

// ClearViolations empties the violation log
func (h *AdminHandler) ClearViolations(w http.ResponseWriter, r *http.Request) {
	h.kycService.ClearViolations(r.Context())
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Violation log cleared"))
}
