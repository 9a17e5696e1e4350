package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kyc-service/internal/bucketing"
	"kyc-service/internal/client"
	"kyc-service/internal/config"
	"kyc-service/internal/fingerprint"
	"kyc-service/internal/kyccache"
	redisrepo "kyc-service/internal/repository/redis"
	"kyc-service/internal/repository/scylla"
	"kyc-service/internal/service"
	"kyc-service/internal/tls"
	"kyc-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	livenessProvider client.LivenessProvider

	// Managers
	bucketingManager *bucketing.BucketingManager
	deriver          *fingerprint.Deriver

	// Verification state
	kycCache *kyccache.Cache
	sweeper  *kyccache.Sweeper

	// Repositories
	userRepository     scylla.UserRepository
	settingsRepository scylla.SettingsRepository
	rateLimitCache     *redisrepo.RateLimitCache

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		tlsConfig := &tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		}
		factory.tlsManager = tls.NewTLSManager(tlsConfig)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeVerificationState(); err != nil {
		return nil, fmt.Errorf("failed to initialize verification state: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("aws_liveness", cfg.AWS.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// ScyllaDB holds the account state; without it no verification can
	// complete, so failure is always fatal.
	scyllaClient, err := scylla.NewScyllaClient(f.config)
	if err != nil {
		return fmt.Errorf("scylla: %w", err)
	}
	f.scyllaClient = scyllaClient
	if err := f.scyllaClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("scylla health check: %w", err)
	}
	util.Info("ScyllaDB client initialized and healthy")

	// Redis
	if redisClient, err := client.NewRedisClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = redisClient
		util.Info("Redis client initialized and healthy")
	}

	// Kafka
	if producer, err := client.NewKafkaProducer(f.config); err != nil {
		util.Warn("Kafka producer initialization failed - proceeding without moderation events", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
	}

	// Elasticsearch
	if esClient, err := client.NewElasticsearchClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
	} else {
		f.esClient = esClient
	}

	// ClickHouse
	if chClient, err := client.NewClickHouseClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
	} else {
		f.clickhouseClient = chClient
	}

	// Liveness provider
	if f.config.AWS.Enabled {
		provider, err := client.NewRekognitionClient(ctx, f.config)
		if err != nil {
			return fmt.Errorf("rekognition: %w", err)
		}
		f.livenessProvider = provider
	} else {
		if f.config.IsProduction() {
			return fmt.Errorf("mock liveness provider is not allowed in production")
		}
		f.livenessProvider = client.NewMockLivenessProvider()
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeVerificationState builds the cache, the sweeper, and the
// managers around them.
func (f *Factory) initializeVerificationState() error {
	kycCfg := f.config.KYC

	cache, err := kyccache.New(kyccache.Options{
		MaxAttemptsPerUser: kycCfg.MaxAttemptsPerUser,
		MaxAttemptsPerFace: kycCfg.MaxAttemptsPerFace,
		AttemptWindow:      kycCfg.AttemptWindow,
		BanDuration:        kycCfg.BanDuration,
		SessionTimeout:     kycCfg.SessionTimeout,
		ViolationRetention: kycCfg.ViolationRetention,
		FingerprintFile:    kycCfg.FingerprintFile,
	})
	if err != nil {
		return err
	}
	f.kycCache = cache

	f.sweeper = kyccache.NewSweeper(cache, kycCfg.SweepInterval)
	f.sweeper.Start(context.Background())

	f.bucketingManager = bucketing.NewBucketingManager(f.config)
	f.deriver = fingerprint.NewDeriver(kycCfg.FingerprintHexLen)

	if f.redisClient != nil {
		f.rateLimitCache = redisrepo.NewRateLimitCache(f.redisClient, kycCfg.IPRateLimit, kycCfg.IPRateWindow)
	}

	return nil
}

// ==============================
// Repositories
// ==============================

func (f *Factory) UserRepository() scylla.UserRepository {
	if f.userRepository == nil {
		f.userRepository = scylla.NewUserRepository(f.scyllaClient, f.bucketingManager)
	}
	return f.userRepository
}

func (f *Factory) SettingsRepository() scylla.SettingsRepository {
	if f.settingsRepository == nil {
		f.settingsRepository = scylla.NewSettingsRepository(f.scyllaClient)
	}
	return f.settingsRepository
}

// ==============================
// Service Factory
// ==============================

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		// typed nils must not become non-nil interfaces
		var notifier service.ModerationNotifier
		if f.kafkaProducer != nil {
			notifier = f.kafkaProducer
		}
		var audit service.AuditRecorder
		if f.clickhouseClient != nil {
			audit = f.clickhouseClient
		}
		var indexer service.ViolationIndexer
		if f.esClient != nil {
			indexer = f.esClient
		}

		f.serviceFactory = service.NewServiceFactory(
			f.config,
			f.kycCache,
			f.deriver,
			f.livenessProvider,
			f.UserRepository(),
			f.SettingsRepository(),
			notifier,
			audit,
			indexer,
		)
	}
	return f.serviceFactory
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(ctx); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

// ==============================
// Shutdown
// ==============================

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		// stop reclamation before tearing down its collaborators
		if f.sweeper != nil {
			f.sweeper.Stop()
			util.Info("Cache sweeper stopped")
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

// ==============================
// Getters
// ==============================

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) ScyllaClient() *scylla.ScyllaClient {
	return f.scyllaClient
}

func (f *Factory) BucketingManager() *bucketing.BucketingManager {
	return f.bucketingManager
}

func (f *Factory) Cache() *kyccache.Cache {
	return f.kycCache
}

func (f *Factory) RateLimitCache() *redisrepo.RateLimitCache {
	return f.rateLimitCache
}
