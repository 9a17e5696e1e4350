package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kyc-service/internal/client"
	"kyc-service/internal/config"
	"kyc-service/internal/fingerprint"
	"kyc-service/internal/kyccache"
	"kyc-service/internal/models"
	"kyc-service/internal/repository/scylla"
	"kyc-service/internal/util"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrSessionNotFound   = errors.New("verification session not found")
	ErrNotSessionOwner   = errors.New("session belongs to another user")
	ErrAlreadyVerified   = errors.New("user already completed verification")
	ErrAccountSuspended  = errors.New("account is suspended")
	ErrRateLimited       = errors.New("too many verification attempts")
	ErrBanned            = errors.New("verification temporarily blocked")
	ErrDuplicateFace     = errors.New("face already registered to another account")
	ErrProviderFailure   = errors.New("liveness provider failure")
	ErrInvalidInput      = errors.New("invalid input")
)

// ModerationNotifier publishes cross-ban events for trust & safety review.
type ModerationNotifier interface {
	PublishModerationEvent(ctx context.Context, key string, event client.ModerationEvent) error
}

// AuditRecorder writes verification decisions to the analytics store.
type AuditRecorder interface {
	InsertAuditEvent(ctx context.Context, event models.KYCAuditEvent) error
}

// ViolationIndexer mirrors violations into the moderation search index.
type ViolationIndexer interface {
	IndexViolation(v kyccache.DuplicateViolation) error
}

// StatusReport is the per-user verification status surface.
type StatusReport struct {
	KYCRequired       bool       `json:"kyc_required"`
	Completed         bool       `json:"completed"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	AccountActive     bool       `json:"account_active"`
	RemainingAttempts int        `json:"remaining_attempts"`
	IsBanned          bool       `json:"is_banned"`
	BanExpiresIn      float64    `json:"ban_expires_in_seconds,omitempty"`
	HasFingerprint    bool       `json:"has_fingerprint"`
	ActiveSessions    int        `json:"active_sessions"`
}

// KYCService owns the verification flow: session lifecycle, rate limiting,
// duplicate-face detection, and the account-state side effects. The
// moderation, audit, and search collaborators are optional; when nil their
// events are skipped. resolveMu serializes the lookup-check-store section of
// verification resolution so two accounts presenting the same face cannot
// both register it.
type KYCService struct {
	cfg      *config.Config
	cache    *kyccache.Cache
	deriver  *fingerprint.Deriver
	provider client.LivenessProvider
	userRepo scylla.UserRepository
	settings scylla.SettingsRepository

	notifier ModerationNotifier
	audit    AuditRecorder
	indexer  ViolationIndexer

	resolveMu sync.Mutex
	now       func() time.Time
}

func NewKYCService(
	cfg *config.Config,
	cache *kyccache.Cache,
	deriver *fingerprint.Deriver,
	provider client.LivenessProvider,
	userRepo scylla.UserRepository,
	settings scylla.SettingsRepository,
	notifier ModerationNotifier,
	audit AuditRecorder,
	indexer ViolationIndexer,
) *KYCService {
	return &KYCService{
		cfg:      cfg,
		cache:    cache,
		deriver:  deriver,
		provider: provider,
		userRepo: userRepo,
		settings: settings,
		notifier: notifier,
		audit:    audit,
		indexer:  indexer,
		now:      time.Now,
	}
}

// CreatedSession is a freshly opened session together with how many
// attempts its user has left in the current window.
type CreatedSession struct {
	kyccache.Session
	AttemptsRemaining int `json:"attempts_remaining"`
}

// CreateSession opens a verification session for a user. The attempt is
// counted against the per-user limit before the provider is called, so
// abandoned sessions still consume attempts.
func (s *KYCService) CreateSession(ctx context.Context, userID string) (CreatedSession, error) {
	if userID == "" {
		return CreatedSession{}, ErrInvalidInput
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, scylla.ErrUserNotFound) {
			return CreatedSession{}, ErrUserNotFound
		}
		return CreatedSession{}, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return CreatedSession{}, ErrAccountSuspended
	}
	if user.KYCCompleted {
		return CreatedSession{}, ErrAlreadyVerified
	}

	d := s.cache.Users.Check(userID)
	switch d.State {
	case kyccache.StateBanned:
		s.recordAudit(models.AuditEventBan, userID, "", "", "attempt while banned")
		return CreatedSession{}, fmt.Errorf("%w: retry in %.0f seconds", ErrBanned, d.RetryAfter.Seconds())
	case kyccache.StateRateLimited:
		s.recordAudit(models.AuditEventRateLimit, userID, "", "", "attempt limit reached")
		return CreatedSession{}, fmt.Errorf("%w: blocked for %.0f seconds", ErrRateLimited, d.RetryAfter.Seconds())
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.cfg.KYC.ProviderTimeout)
	defer cancel()

	providerSessionID, err := s.provider.CreateSession(providerCtx)
	if err != nil {
		util.Error("Liveness session creation failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return CreatedSession{}, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	session := s.cache.Sessions.Create(userID, providerSessionID, s.provider.IsMock())

	s.recordAudit(models.AuditEventAttempt, userID, session.ID, "", "session created")

	util.Info("Verification session created",
		zap.String("user_id", userID),
		zap.String("session_id", session.ID),
		zap.Bool("mock", session.Mock))

	return CreatedSession{Session: session, AttemptsRemaining: d.Remaining}, nil
}

// GetResult fetches and, on a terminal provider outcome, resolves a
// verification session. Resolving is idempotent: a session that already
// reached a terminal state is returned as is without another provider call.
func (s *KYCService) GetResult(ctx context.Context, sessionID, userID string) (kyccache.Session, error) {
	session, err := s.cache.Sessions.Get(sessionID)
	if err != nil {
		return kyccache.Session{}, ErrSessionNotFound
	}
	if session.UserID != userID {
		return kyccache.Session{}, ErrNotSessionOwner
	}
	if session.Status != kyccache.SessionCreated {
		return session, nil
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.cfg.KYC.ProviderTimeout)
	defer cancel()

	result, err := s.provider.GetResult(providerCtx, session.ProviderSessionID)
	if err != nil {
		util.Error("Liveness result fetch failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return kyccache.Session{}, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	if !result.Completed() {
		return session, nil
	}

	if result.Status != client.LivenessSucceeded || result.Confidence < s.cfg.KYC.ConfidenceThreshold {
		message := fmt.Sprintf("liveness check failed (status %s, confidence %.1f)", result.Status, result.Confidence)
		s.failSession(session, result.Confidence, message)
		s.recordAudit(models.AuditEventAttempt, userID, sessionID, "", message)
		return s.cache.Sessions.Get(sessionID)
	}

	if err := s.resolveVerification(ctx, session, result); err != nil {
		return kyccache.Session{}, err
	}
	return s.cache.Sessions.Get(sessionID)
}

// resolveVerification runs the success path: fingerprint the face, throttle
// repeat faces, detect duplicates, persist the fingerprint, and mark the
// user verified. The whole section holds resolveMu so concurrent sessions
// for the same face serialize on the registry.
func (s *KYCService) resolveVerification(ctx context.Context, session kyccache.Session, result *client.LivenessResult) error {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	fp, err := s.deriveFingerprint(ctx, session, result)
	if err != nil {
		return err
	}

	switch d := s.cache.Faces.Check(fp); d.State {
	case kyccache.StateBanned:
		s.failSession(session, result.Confidence, "face temporarily blocked")
		s.recordAudit(models.AuditEventBan, session.UserID, session.ID, fp, "face attempt while banned")
		return fmt.Errorf("%w: retry in %.0f seconds", ErrBanned, d.RetryAfter.Seconds())
	case kyccache.StateRateLimited:
		s.failSession(session, result.Confidence, "face attempt limit reached")
		s.recordAudit(models.AuditEventRateLimit, session.UserID, session.ID, fp, "face attempt limit reached")
		return fmt.Errorf("%w: blocked for %.0f seconds", ErrRateLimited, d.RetryAfter.Seconds())
	}

	if owner, ok := s.cache.Fingerprints.Lookup(fp); ok && owner != session.UserID {
		stale, err := s.ownerIsStale(ctx, owner)
		if err != nil {
			return err
		}
		if stale {
			// registry points at a deleted account; heal and continue
			if err := s.cache.Fingerprints.Delete(fp); err != nil {
				return fmt.Errorf("failed to heal stale fingerprint: %w", err)
			}
			util.Warn("Removed stale fingerprint reference",
				zap.String("fingerprint", fp),
				zap.String("stale_owner", owner))
		} else {
			return s.handleDuplicate(ctx, session, fp, owner)
		}
	}

	if err := s.cache.Fingerprints.Store(fp, session.UserID); err != nil {
		return err
	}

	completedAt := s.now().UTC()
	if err := s.userRepo.SetKYCCompleted(ctx, session.UserID, completedAt); err != nil {
		return err
	}

	// successful verification forgives prior throttling
	s.cache.Users.Forgive(session.UserID)
	s.cache.Faces.Forgive(fp)

	message := "verification successful"
	if session.Mock {
		message = "verification successful (mock)"
	}
	if err := s.cache.Sessions.Resolve(session.ID, session.UserID, kyccache.SessionSucceeded, &kyccache.SessionResult{
		Confidence: result.Confidence,
		Live:       true,
		Message:    message,
	}); err != nil {
		return err
	}

	s.recordAudit(models.AuditEventVerified, session.UserID, session.ID, fp, message)

	util.Info("Verification completed",
		zap.String("user_id", session.UserID),
		zap.String("session_id", session.ID),
		zap.Float64("confidence", result.Confidence))

	return nil
}

// deriveFingerprint maps a liveness result onto a face fingerprint.
// Landmarks are preferred; the raw reference image is the fallback, and
// mock sessions fingerprint the account email.
func (s *KYCService) deriveFingerprint(ctx context.Context, session kyccache.Session, result *client.LivenessResult) (string, error) {
	if session.Mock {
		user, err := s.userRepo.GetUserByID(ctx, session.UserID)
		if err != nil {
			return "", fmt.Errorf("failed to load user for mock fingerprint: %w", err)
		}
		return s.deriver.FromMockEmail(user.Email), nil
	}
	if len(result.Landmarks) > 0 {
		return s.deriver.FromLandmarks(result.Landmarks)
	}
	if len(result.ReferenceImage) > 0 {
		return s.deriver.FromImage(result.ReferenceImage)
	}
	return "", fmt.Errorf("%w: result carries no landmarks or reference image", ErrProviderFailure)
}

// ownerIsStale reports whether the registered owner of a fingerprint no
// longer exists in the users table.
func (s *KYCService) ownerIsStale(ctx context.Context, ownerID string) (bool, error) {
	_, err := s.userRepo.GetUserByID(ctx, ownerID)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, scylla.ErrUserNotFound) {
		return true, nil
	}
	return false, fmt.Errorf("failed to verify fingerprint owner: %w", err)
}

// handleDuplicate cross-bans both sides of a fingerprint collision:
// suspends both accounts, blocks both user IDs, records the violation, and
// notifies moderation. The moderation, audit, and search writes are best
// effort; the suspensions and the violation record are not.
func (s *KYCService) handleDuplicate(ctx context.Context, session kyccache.Session, fp, ownerID string) error {
	util.Warn("Duplicate face detected",
		zap.String("fingerprint", fp),
		zap.String("owner_id", ownerID),
		zap.String("user_id", session.UserID))

	var ownerEmail, userEmail string
	if owner, err := s.userRepo.GetUserByID(ctx, ownerID); err == nil {
		ownerEmail = owner.Email
	}
	if user, err := s.userRepo.GetUserByID(ctx, session.UserID); err == nil {
		userEmail = user.Email
	}
	collidingAccount := ownerEmail
	if collidingAccount == "" {
		collidingAccount = ownerID
	}

	if err := s.userRepo.SuspendUser(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to suspend account %s: %w", ownerID, err)
	}
	if err := s.userRepo.SuspendUser(ctx, session.UserID); err != nil {
		return fmt.Errorf("failed to suspend account %s: %w", session.UserID, err)
	}

	s.cache.Users.Ban(ownerID)
	s.cache.Users.Ban(session.UserID)
	s.cache.Faces.Ban(fp)

	violation := s.cache.Violations.Append(kyccache.DuplicateViolation{
		User1ID:    ownerID,
		User2ID:    session.UserID,
		User1Email: ownerEmail,
		User2Email: userEmail,
		Reason:     "duplicate face fingerprint",
	})

	s.failSession(session, 0, fmt.Sprintf("face already used by another account (%s), both accounts have been suspended", collidingAccount))
	s.recordAudit(models.AuditEventDuplicate, session.UserID, session.ID, fp, "collision with "+ownerID)

	if s.notifier != nil {
		event := client.ModerationEvent{
			EventType:  "kyc_duplicate_face",
			User1ID:    violation.User1ID,
			User2ID:    violation.User2ID,
			User1Email: violation.User1Email,
			User2Email: violation.User2Email,
			Reason:     violation.Reason,
			OccurredAt: violation.Timestamp,
		}
		if err := s.notifier.PublishModerationEvent(ctx, violation.ID, event); err != nil {
			util.Warn("Moderation event publish failed",
				zap.String("violation_id", violation.ID),
				zap.Error(err))
		}
	}
	if s.indexer != nil {
		if err := s.indexer.IndexViolation(violation); err != nil {
			util.Warn("Violation indexing failed",
				zap.String("violation_id", violation.ID),
				zap.Error(err))
		}
	}

	return fmt.Errorf("%w (%s)", ErrDuplicateFace, collidingAccount)
}

// GetStatus reports a user's verification state, remaining attempts, and
// any active ban.
func (s *KYCService) GetStatus(ctx context.Context, userID string) (*StatusReport, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, scylla.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	required := true
	if s.settings != nil {
		if v, err := s.settings.KYCRequired(ctx); err != nil {
			util.Warn("Failed to read kyc_required setting", zap.Error(err))
		} else {
			required = v
		}
	}

	report := &StatusReport{
		KYCRequired:       required,
		Completed:         user.KYCCompleted,
		CompletedAt:       user.KYCCompletedAt,
		AccountActive:     user.IsActive,
		RemainingAttempts: s.cache.Users.Remaining(userID),
		ActiveSessions:    s.cache.Sessions.CountForUser(userID),
	}
	if remaining, banned := s.cache.Users.BanRemaining(userID); banned {
		report.IsBanned = true
		report.BanExpiresIn = remaining.Seconds()
	}
	if _, ok := s.cache.Fingerprints.FingerprintOf(userID); ok {
		report.HasFingerprint = true
	}

	return report, nil
}

// DeleteSession cancels a pending session. Provider-side sessions expire on
// their own; only local state is removed.
func (s *KYCService) DeleteSession(_ context.Context, sessionID, userID string) error {
	err := s.cache.Sessions.Delete(sessionID, userID)
	switch {
	case errors.Is(err, kyccache.ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, kyccache.ErrNotSessionOwner):
		return ErrNotSessionOwner
	}
	return err
}

// ===================== MODERATION OPERATIONS =====================

// ClearAllCaches wipes every piece of verification state, including the
// persisted fingerprint registry.
func (s *KYCService) ClearAllCaches(_ context.Context) error {
	if err := s.cache.ClearAll(); err != nil {
		return err
	}
	s.recordAudit(models.AuditEventReset, "", "", "", "all caches cleared")
	util.Warn("All KYC caches cleared")
	return nil
}

// ResetUserKYC reactivates an account, revokes its verification, removes
// its fingerprint, and forgives its throttling so the user can verify again.
func (s *KYCService) ResetUserKYC(ctx context.Context, userID string) error {
	if _, err := s.userRepo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, scylla.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.userRepo.ResetKYC(ctx, userID); err != nil {
		return err
	}
	if fp, ok := s.cache.Fingerprints.FingerprintOf(userID); ok {
		s.cache.Faces.Forgive(fp)
	}
	if err := s.cache.Fingerprints.DeleteByUser(userID); err != nil {
		return err
	}
	s.cache.Users.Forgive(userID)

	s.recordAudit(models.AuditEventReset, userID, "", "", "user KYC reset")
	util.Info("User KYC reset", zap.String("user_id", userID))
	return nil
}

// ListViolations returns the recorded duplicate-face violations.
func (s *KYCService) ListViolations(_ context.Context) []kyccache.DuplicateViolation {
	return s.cache.Violations.List()
}

// ClearViolations empties the violation log.
func (s *KYCService) ClearViolations(_ context.Context) {
	s.cache.Violations.Clear()
	util.Warn("Violation log cleared")
}

// CacheStats reports per-structure cache sizes.
func (s *KYCService) CacheStats(_ context.Context) kyccache.Stats {
	return s.cache.Stats()
}

// HealthCheck fans out to the service's storage dependencies.
func (s *KYCService) HealthCheck(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.userRepo.HealthCheck(ctx)
	})

	return g.Wait()
}

func (s *KYCService) failSession(session kyccache.Session, confidence float64, message string) {
	if err := s.cache.Sessions.Resolve(session.ID, session.UserID, kyccache.SessionFailed, &kyccache.SessionResult{
		Confidence: confidence,
		Live:       false,
		Message:    message,
	}); err != nil {
		util.Warn("Failed to mark session failed",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
}

// recordAudit writes one analytics row; failures are logged and swallowed.
func (s *KYCService) recordAudit(eventType, userID, sessionID, fp, detail string) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := models.KYCAuditEvent{
		EventTime:   s.now().UTC(),
		EventType:   eventType,
		UserID:      userID,
		SessionID:   sessionID,
		Fingerprint: fp,
		Detail:      detail,
	}
	if err := s.audit.InsertAuditEvent(ctx, event); err != nil {
		util.Warn("Audit event insert failed",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
