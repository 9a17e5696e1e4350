package scylla

import (
	"context"
	"fmt"
	"strings"

	"github.com/gocql/gocql"

	"kyc-service/internal/models"
)

// SettingsRepository reads the shared system_settings table. The only key
// this service cares about is kyc_required.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (*models.SystemSetting, error)

	// KYCRequired reports whether KYC gates rewards. A missing row means
	// KYC is required.
	KYCRequired(ctx context.Context) (bool, error)
}

type settingsRepository struct {
	client *ScyllaClient
}

func NewSettingsRepository(client *ScyllaClient) SettingsRepository {
	return &settingsRepository{client: client}
}

func (r *settingsRepository) GetSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	setting := &models.SystemSetting{}

	query := r.client.Prepared.GetSetting.Bind(key).WithContext(ctx)
	err := r.client.ScanWithRetry(query, &setting.Key, &setting.Value, &setting.UpdatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}

	return setting, nil
}

func (r *settingsRepository) KYCRequired(ctx context.Context) (bool, error) {
	setting, err := r.GetSetting(ctx, models.SettingKYCRequired)
	if err != nil {
		return false, err
	}
	if setting == nil {
		return true, nil
	}
	switch strings.ToLower(setting.Value) {
	case "false", "0", "off", "disabled":
		return false, nil
	default:
		return true, nil
	}
}
