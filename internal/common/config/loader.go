package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top, expands ${VAR}
// placeholders and fills API keys from the environment when the files leave them empty.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional overlay

	return finish(v)
}

// LoadFromFile reads a single YAML file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	setIfEmpty := func(dst *string, envKey string) {
		if *dst != "" {
			return
		}
		if val := os.Getenv(envKey); val != "" {
			*dst = val
		}
	}

	setIfEmpty(&cfg.APIs.Apollo.APIKey, "APOLLO_API_KEY")
	setIfEmpty(&cfg.APIs.Hunter.APIKey, "HUNTER_API_KEY")
	setIfEmpty(&cfg.APIs.GooglePlaces.APIKey, "GOOGLE_PLACES_API_KEY")
	setIfEmpty(&cfg.APIs.XAI.APIKey, "XAI_API_KEY")
	setIfEmpty(&cfg.Fetch.Proxy.ScraperAPIKey, "SCRAPER_API_KEY")

	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func applyDefaults(cfg *Config) {
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.ProcessID == "" {
		cfg.Camunda.ProcessID = "prospect-enrichment"
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "require"
	}
	if cfg.Database.Elasticsearch.ProspectIndex == "" {
		cfg.Database.Elasticsearch.ProspectIndex = "prospects"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 3
		}
		if worker.Timeout == 0 {
			worker.Timeout = 120000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.Enrichment.EmailPolicy == "" {
		cfg.Enrichment.EmailPolicy = "decision_maker_only"
	}
	if cfg.Enrichment.MaxSubpages == 0 {
		cfg.Enrichment.MaxSubpages = 5
	}
	if cfg.Enrichment.CrawlTimeout == 0 {
		cfg.Enrichment.CrawlTimeout = 10000
	}
	if cfg.Enrichment.ExtractCacheTTL == 0 {
		cfg.Enrichment.ExtractCacheTTL = 86400
	}
	if cfg.Enrichment.BatchSize == 0 {
		cfg.Enrichment.BatchSize = 2
	}
	if cfg.Enrichment.BatchDelay == 0 {
		cfg.Enrichment.BatchDelay = 2000
	}

	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 2
	}
	if cfg.Fetch.RetryDelay == 0 {
		cfg.Fetch.RetryDelay = 1000
	}
	if cfg.Fetch.MaxBytes == 0 {
		cfg.Fetch.MaxBytes = 2 * 1024 * 1024
	}
	if cfg.Fetch.Proxy.Mode == "" {
		cfg.Fetch.Proxy.Mode = "none"
	}
	if cfg.Fetch.Proxy.ScraperAPIURL == "" {
		cfg.Fetch.Proxy.ScraperAPIURL = "https://api.scraperapi.com/"
	}

	if cfg.Circuit.FailureThreshold == 0 {
		cfg.Circuit.FailureThreshold = 5
	}
	if cfg.Circuit.SuccessThreshold == 0 {
		cfg.Circuit.SuccessThreshold = 3
	}
	if cfg.Circuit.OpenDuration == 0 {
		cfg.Circuit.OpenDuration = 60000
	}
	if cfg.Circuit.RateLimitBase == 0 {
		cfg.Circuit.RateLimitBase = 30000
	}
	if cfg.Circuit.RateLimitMaxMultiplier == 0 {
		cfg.Circuit.RateLimitMaxMultiplier = 32
	}

	if cfg.APIs.Search.BaseURL == "" {
		cfg.APIs.Search.BaseURL = "https://html.duckduckgo.com/html/"
	}
	if cfg.APIs.Search.Timeout == 0 {
		cfg.APIs.Search.Timeout = 8000
	}
	if cfg.APIs.RDAP.BaseURL == "" {
		cfg.APIs.RDAP.BaseURL = "https://rdap.verisign.com/com/v1"
	}
	if cfg.APIs.RDAP.Timeout == 0 {
		cfg.APIs.RDAP.Timeout = 5000
	}
	if cfg.APIs.Apollo.BaseURL == "" {
		cfg.APIs.Apollo.BaseURL = "https://api.apollo.io/v1"
	}
	if cfg.APIs.Apollo.Timeout == 0 {
		cfg.APIs.Apollo.Timeout = 15000
	}
	if cfg.APIs.Hunter.BaseURL == "" {
		cfg.APIs.Hunter.BaseURL = "https://api.hunter.io/v2"
	}
	if cfg.APIs.Hunter.Timeout == 0 {
		cfg.APIs.Hunter.Timeout = 10000
	}
	if cfg.APIs.GooglePlaces.BaseURL == "" {
		cfg.APIs.GooglePlaces.BaseURL = "https://maps.googleapis.com/maps/api/place"
	}
	if cfg.APIs.GooglePlaces.Timeout == 0 {
		cfg.APIs.GooglePlaces.Timeout = 10000
	}
	if cfg.APIs.XAI.BaseURL == "" {
		cfg.APIs.XAI.BaseURL = "https://api.x.ai/v1"
	}
	if cfg.APIs.XAI.Model == "" {
		cfg.APIs.XAI.Model = "grok-3-mini"
	}
	if cfg.APIs.XAI.Timeout == 0 {
		cfg.APIs.XAI.Timeout = 30000
	}
	if cfg.APIs.XAI.MaxTokens == 0 {
		cfg.APIs.XAI.MaxTokens = 600
	}
	if cfg.APIs.XAI.Temperature == 0 {
		cfg.APIs.XAI.Temperature = 0.7
	}

	if cfg.Outreach.SES.Region == "" {
		cfg.Outreach.SES.Region = "eu-west-1"
	}

	if cfg.Notifications.SNS.Region == "" {
		cfg.Notifications.SNS.Region = cfg.Outreach.SES.Region
	}

	if cfg.Observability.MetricsAddress == "" {
		cfg.Observability.MetricsAddress = ":8080"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "worker-manager"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Enrichment.EmailPolicy {
	case "decision_maker_only", "allow_generic_fallback":
	default:
		return fmt.Errorf("enrichment.email_policy must be decision_maker_only or allow_generic_fallback, got %q", cfg.Enrichment.EmailPolicy)
	}

	switch cfg.Fetch.Proxy.Mode {
	case "none":
	case "scraperapi":
		if cfg.Fetch.Proxy.ScraperAPIKey == "" {
			return fmt.Errorf("fetch.proxy.scraper_api_key is required for proxy mode scraperapi")
		}
	case "custom":
		if len(cfg.Fetch.Proxy.CustomProxies) == 0 {
			return fmt.Errorf("fetch.proxy.custom_proxies is required for proxy mode custom")
		}
	default:
		return fmt.Errorf("fetch.proxy.mode must be none, scraperapi or custom, got %q", cfg.Fetch.Proxy.Mode)
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Outreach.SES.Enabled && cfg.Outreach.SenderEmail == "" {
		return fmt.Errorf("outreach.sender_email is required when ses is enabled")
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 3,
		Timeout:       120000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
