package service

import (
	"kyc-service/internal/client"
	"kyc-service/internal/config"
	"kyc-service/internal/fingerprint"
	"kyc-service/internal/kyccache"
	"kyc-service/internal/repository/scylla"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	cfg      *config.Config
	cache    *kyccache.Cache
	deriver  *fingerprint.Deriver
	provider client.LivenessProvider
	userRepo scylla.UserRepository
	settings scylla.SettingsRepository
	notifier ModerationNotifier
	audit    AuditRecorder
	indexer  ViolationIndexer

	kycService *KYCService
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(
	cfg *config.Config,
	cache *kyccache.Cache,
	deriver *fingerprint.Deriver,
	provider client.LivenessProvider,
	userRepo scylla.UserRepository,
	settings scylla.SettingsRepository,
	notifier ModerationNotifier,
	audit AuditRecorder,
	indexer ViolationIndexer,
) *ServiceFactory {
	return &ServiceFactory{
		cfg:      cfg,
		cache:    cache,
		deriver:  deriver,
		provider: provider,
		userRepo: userRepo,
		settings: settings,
		notifier: notifier,
		audit:    audit,
		indexer:  indexer,
	}
}

// KYCService returns the KYC service instance (singleton)
func (f *ServiceFactory) KYCService() *KYCService {
	if f.kycService == nil {
		f.kycService = NewKYCService(
			f.cfg,
			f.cache,
			f.deriver,
			f.provider,
			f.userRepo,
			f.settings,
			f.notifier,
			f.audit,
			f.indexer,
		)
	}
	return f.kycService
}
