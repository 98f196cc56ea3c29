// Package config provides configuration loading and validation for courtsync.
// Supports YAML files with environment variable overrides.
package config

// Config holds all configuration for a courtsync run.
type Config struct {
	Source        SourceConfig        `yaml:"source"`
	Storage       StorageConfig       `yaml:"storage"`
	ObjectStore   ObjectStoreConfig   `yaml:"objectStore"`
	Run           RunConfig           `yaml:"run"`
	Sync          SyncConfig          `yaml:"sync"`
	Notify        NotifyConfig        `yaml:"notify"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type SourceConfig struct {
	BaseURL   string `yaml:"baseUrl" env:"COURTSYNC_SOURCE_BASE_URL"`
	TimeoutMs int64  `yaml:"timeoutMs" env:"COURTSYNC_SOURCE_TIMEOUT_MS"`
	UserAgent string `yaml:"userAgent" env:"COURTSYNC_SOURCE_USER_AGENT"`
}

type StorageConfig struct {
	DataDir      string `yaml:"dataDir" env:"COURTSYNC_DATA_DIR"`
	DiscoveryDir string `yaml:"discoveryDir" env:"COURTSYNC_DISCOVERY_DIR"`
}

type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint" env:"COURTSYNC_S3_ENDPOINT"`
	Bucket    string `yaml:"bucket" env:"COURTSYNC_S3_BUCKET"`
	Region    string `yaml:"region" env:"COURTSYNC_S3_REGION"`
	AccessKey string `yaml:"accessKey" env:"COURTSYNC_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secretKey" env:"COURTSYNC_S3_SECRET_KEY"`
}

type RunConfig struct {
	MaxAttempts    int     `yaml:"maxAttempts" env:"COURTSYNC_RUN_MAX_ATTEMPTS"`
	InitialDelayMs int64   `yaml:"initialDelayMs" env:"COURTSYNC_RUN_INITIAL_DELAY_MS"`
	MaxDelayMs     int64   `yaml:"maxDelayMs" env:"COURTSYNC_RUN_MAX_DELAY_MS"`
	Multiplier     float64 `yaml:"multiplier" env:"COURTSYNC_RUN_MULTIPLIER"`
	ItemTimeoutMs  int64   `yaml:"itemTimeoutMs" env:"COURTSYNC_RUN_ITEM_TIMEOUT_MS"`
	CopyWaitMs     int64   `yaml:"copyWaitMs" env:"COURTSYNC_RUN_COPY_WAIT_MS"`
}

type SyncConfig struct {
	Prefix string `yaml:"prefix" env:"COURTSYNC_SYNC_PREFIX"`
	Force  bool   `yaml:"force" env:"COURTSYNC_SYNC_FORCE"`
}

type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discordWebhookUrl" env:"COURTSYNC_DISCORD_WEBHOOK_URL"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"COURTSYNC_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"COURTSYNC_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"COURTSYNC_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:   "https://stats.ncaa.org",
			TimeoutMs: 30000,
			UserAgent: "courtsync/1.0",
		},
		Storage: StorageConfig{
			DataDir:      "data",
			DiscoveryDir: "data/discovery",
		},
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
		},
		Run: RunConfig{
			MaxAttempts:    3,
			InitialDelayMs: 500,
			MaxDelayMs:     10000,
			Multiplier:     2.0,
			ItemTimeoutMs:  60000,
			CopyWaitMs:     300000, // 5 minutes
		},
		Sync: SyncConfig{
			Prefix: "stats",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}
