package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"kyc-service/internal/util"
)

// Config holds all runtime configuration, loaded once from the environment.
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	KYC           KYCConfig
	AWS           AWSConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	Bucketing     BucketingConfig
	Admin         AdminConfig
}

type ServerConfig struct {
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// KYCConfig controls the verification cache: attempt windows, ban cooldowns,
// session lifetime, and the fingerprint registry.
type KYCConfig struct {
	MaxAttemptsPerUser  int
	MaxAttemptsPerFace  int
	AttemptWindow       time.Duration
	BanDuration         time.Duration
	SessionTimeout      time.Duration
	SweepInterval       time.Duration
	ViolationRetention  time.Duration
	ConfidenceThreshold float64
	FingerprintHexLen   int
	FingerprintFile     string
	ProviderTimeout     time.Duration
	IPRateLimit         int
	IPRateWindow        time.Duration
}

type AWSConfig struct {
	Enabled     bool
	Region      string
	KMSKeyID    string
	S3Bucket    string
	S3KeyPrefix string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Brokers         []string
	ModerationTopic string
}

type ClickhouseConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

type ElasticsearchConfig struct {
	URL            string
	Username       string
	Password       string
	ViolationIndex string
}

// BucketingConfig controls how users spread across ScyllaDB partitions.
type BucketingConfig struct {
	UserBuckets int
}

type AdminConfig struct {
	APIKey string
}

var (
	loaded   *Config
	loadOnce sync.Once
)

// LoadConfig reads configuration from the environment, loading a .env file
// first if one exists. Safe to call multiple times.
func LoadConfig() *Config {
	loadOnce.Do(func() {
		_ = godotenv.Load()
		loaded = &Config{
			Environment: util.GetEnv("ENVIRONMENT", "development"),
			Server: ServerConfig{
				Port:         util.GetEnvInt("SERVER_PORT", 8080),
				TLSPort:      util.GetEnvInt("SERVER_TLS_PORT", 8443),
				EnableTLS:    util.GetEnvBool("SERVER_ENABLE_TLS", false),
				AutoCert:     util.GetEnvBool("SERVER_AUTO_CERT", false),
				Domain:       util.GetEnv("SERVER_DOMAIN", ""),
				CertFile:     util.GetEnv("SERVER_CERT_FILE", ""),
				KeyFile:      util.GetEnv("SERVER_KEY_FILE", ""),
				AutoCertDir:  util.GetEnv("SERVER_AUTOCERT_DIR", "/var/lib/kyc-service/autocert"),
				Email:        util.GetEnv("SERVER_ACME_EMAIL", ""),
				ReadTimeout:  util.GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: util.GetEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
				IdleTimeout:  util.GetEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			},
			Logging: LoggingConfig{
				Level:  util.GetEnv("LOG_LEVEL", "info"),
				Format: util.GetEnv("LOG_FORMAT", "json"),
			},
			KYC: KYCConfig{
				MaxAttemptsPerUser:  util.GetEnvInt("KYC_MAX_ATTEMPTS_PER_USER", 3),
				MaxAttemptsPerFace:  util.GetEnvInt("KYC_MAX_ATTEMPTS_PER_FACE", 2),
				AttemptWindow:       util.GetEnvDuration("KYC_ATTEMPT_WINDOW", time.Hour),
				BanDuration:         util.GetEnvDuration("KYC_BAN_DURATION", time.Hour),
				SessionTimeout:      util.GetEnvDuration("KYC_SESSION_TIMEOUT", 30*time.Minute),
				SweepInterval:       util.GetEnvDuration("KYC_SWEEP_INTERVAL", 5*time.Minute),
				ViolationRetention:  util.GetEnvDuration("KYC_VIOLATION_RETENTION", 24*time.Hour),
				ConfidenceThreshold: float64(util.GetEnvInt("KYC_CONFIDENCE_THRESHOLD", 80)),
				FingerprintHexLen:   util.GetEnvInt("KYC_FINGERPRINT_HEX_LEN", 16),
				FingerprintFile:     util.GetEnv("KYC_FINGERPRINT_FILE", "face_fingerprints.json"),
				ProviderTimeout:     util.GetEnvDuration("KYC_PROVIDER_TIMEOUT", 15*time.Second),
				IPRateLimit:         util.GetEnvInt("KYC_IP_RATE_LIMIT", 30),
				IPRateWindow:        util.GetEnvDuration("KYC_IP_RATE_WINDOW", time.Minute),
			},
			AWS: AWSConfig{
				Enabled:     util.GetEnvBool("AWS_LIVENESS_ENABLED", false),
				Region:      util.GetEnv("AWS_REGION", "us-east-1"),
				KMSKeyID:    util.GetEnv("AWS_LIVENESS_KMS_KEY_ID", ""),
				S3Bucket:    util.GetEnv("AWS_LIVENESS_S3_BUCKET", ""),
				S3KeyPrefix: util.GetEnv("AWS_LIVENESS_S3_PREFIX", "face-liveness/"),
			},
			Redis: RedisConfig{
				URL:      util.GetEnv("REDIS_URL", "redis://localhost:6379"),
				Password: util.GetEnv("REDIS_PASSWORD", ""),
				DB:       util.GetEnvInt("REDIS_DB", 0),
				PoolSize: util.GetEnvInt("REDIS_POOL_SIZE", 50),
			},
			Scylla: ScyllaConfig{
				Nodes:    util.GetEnvSlice("SCYLLA_NODES", []string{"127.0.0.1:9042"}),
				Keyspace: util.GetEnv("SCYLLA_KEYSPACE", "kyc"),
				Username: util.GetEnv("SCYLLA_USERNAME", ""),
				Password: util.GetEnv("SCYLLA_PASSWORD", ""),
			},
			Kafka: KafkaConfig{
				Brokers:         util.GetEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
				ModerationTopic: util.GetEnv("KAFKA_MODERATION_TOPIC", "kyc-moderation-events"),
			},
			Clickhouse: ClickhouseConfig{
				URL:      util.GetEnv("CLICKHOUSE_URL", "localhost:9000"),
				Database: util.GetEnv("CLICKHOUSE_DATABASE", "kyc_analytics"),
				Username: util.GetEnv("CLICKHOUSE_USERNAME", "default"),
				Password: util.GetEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Elasticsearch: ElasticsearchConfig{
				URL:            util.GetEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
				Username:       util.GetEnv("ELASTICSEARCH_USERNAME", ""),
				Password:       util.GetEnv("ELASTICSEARCH_PASSWORD", ""),
				ViolationIndex: util.GetEnv("ELASTICSEARCH_VIOLATION_INDEX", "kyc-violations"),
			},
			Bucketing: BucketingConfig{
				UserBuckets: util.GetEnvInt("USER_BUCKETS", 100),
			},
			Admin: AdminConfig{
				APIKey: util.GetEnv("ADMIN_API_KEY", ""),
			},
		}
	})
	return loaded
}

// Get returns the loaded configuration, loading it on first use.
func Get() *Config {
	return LoadConfig()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
