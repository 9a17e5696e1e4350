package client

import (
	"context"

	"kyc-service/internal/fingerprint"
)

// Liveness session outcomes as reported by the provider.
const (
	LivenessCreated    = "CREATED"
	LivenessInProgress = "IN_PROGRESS"
	LivenessSucceeded  = "SUCCEEDED"
	LivenessFailed     = "FAILED"
	LivenessExpired    = "EXPIRED"
)

// LivenessResult is the provider-side outcome of a liveness session:
// whether the check completed, the liveness confidence, and the facial
// geometry of the reference capture used for duplicate detection.
type LivenessResult struct {
	Status         string
	Confidence     float64
	ReferenceImage []byte
	Landmarks      []fingerprint.Landmark
}

// Completed reports whether the provider reached a terminal state.
func (r *LivenessResult) Completed() bool {
	return r.Status == LivenessSucceeded || r.Status == LivenessFailed || r.Status == LivenessExpired
}

// LivenessProvider abstracts the face liveness backend. The production
// implementation talks to AWS Rekognition; a mock implementation backs
// development environments without AWS credentials.
type LivenessProvider interface {
	// CreateSession opens a provider-side liveness session and returns its ID.
	CreateSession(ctx context.Context) (string, error)
	// GetResult fetches the session outcome, including facial landmarks of
	// the reference capture when the session succeeded.
	GetResult(ctx context.Context, providerSessionID string) (*LivenessResult, error)
	// IsMock reports whether results come from the development stub.
	IsMock() bool
}
