package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"kyc-service/internal/util"
)

// MockLivenessProvider backs development environments where AWS is not
// configured. Every session succeeds with a fixed confidence and no
// landmarks; the service fingerprints mock verifications from the user's
// email instead, so each user still maps to a stable, distinct fingerprint.
type MockLivenessProvider struct{}

func NewMockLivenessProvider() *MockLivenessProvider {
	util.Warn("Using mock liveness provider, verification results are simulated")
	return &MockLivenessProvider{}
}

func (m *MockLivenessProvider) IsMock() bool {
	return true
}

func (m *MockLivenessProvider) CreateSession(_ context.Context) (string, error) {
	return fmt.Sprintf("mock-%s", uuid.NewString()), nil
}

func (m *MockLivenessProvider) GetResult(_ context.Context, _ string) (*LivenessResult, error) {
	return &LivenessResult{
		Status:     LivenessSucceeded,
		Confidence: 85.5,
	}, nil
}
