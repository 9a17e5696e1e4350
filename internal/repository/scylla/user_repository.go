package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"kyc-service/internal/bucketing"
	"kyc-service/internal/models"
	"kyc-service/internal/util"
)

// ErrUserNotFound is returned when a user ID resolves to no row.
var ErrUserNotFound = errors.New("user not found")

type userRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.BucketingManager
}

func NewUserRepository(client *ScyllaClient, bm *bucketing.BucketingManager) UserRepository {
	return &userRepository{
		client:    client,
		bucketing: bm,
	}
}

func (r *userRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	bucket := r.bucketing.GetUserBucket(userID)

	query := r.client.Prepared.GetUserByID.Bind(bucket, userID).WithContext(ctx)

	err := r.client.ScanWithRetry(query,
		&user.UserBucket, &user.UserID, &user.Email, &user.IsActive,
		&user.KYCCompleted, &user.KYCCompletedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrUserNotFound
		}
		util.Error("Failed to get user by ID",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

func (r *userRepository) SetKYCCompleted(ctx context.Context, userID string, completedAt time.Time) error {
	bucket := r.bucketing.GetUserBucket(userID)
	now := time.Now().UTC()

	query := r.client.Prepared.SetKYCCompleted.Bind(
		true, completedAt, now, bucket, userID).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 3); err != nil {
		util.Error("Failed to mark KYC completed",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to mark KYC completed: %w", err)
	}

	util.Info("KYC marked completed",
		zap.String("user_id", userID))

	return nil
}

func (r *userRepository) SuspendUser(ctx context.Context, userID string) error {
	bucket := r.bucketing.GetUserBucket(userID)
	now := time.Now().UTC()

	query := r.client.Prepared.SuspendUser.Bind(
		false, false, now, bucket, userID).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 3); err != nil {
		util.Error("Failed to suspend user",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to suspend user: %w", err)
	}

	util.Info("User suspended",
		zap.String("user_id", userID))

	return nil
}

func (r *userRepository) ResetKYC(ctx context.Context, userID string) error {
	bucket := r.bucketing.GetUserBucket(userID)
	now := time.Now().UTC()

	query := r.client.Prepared.ResetKYC.Bind(
		true, false, nil, now, bucket, userID).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 3); err != nil {
		util.Error("Failed to reset user KYC",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to reset user KYC: %w", err)
	}

	util.Info("User KYC reset",
		zap.String("user_id", userID))

	return nil
}

func (r *userRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}
