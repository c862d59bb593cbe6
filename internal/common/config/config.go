package config

import "fmt"

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Enrichment    EnrichmentConfig        `mapstructure:"enrichment"`
	Fetch         FetchConfig             `mapstructure:"fetch"`
	Circuit       CircuitConfig           `mapstructure:"circuit"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Outreach      OutreachConfig          `mapstructure:"outreach"`
	Notifications NotificationsConfig     `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds

	// ProcessID is the BPMN process the batch tool starts per prospect.
	ProcessID string `mapstructure:"process_id"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses     []string `mapstructure:"addresses"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	ProspectIndex string   `mapstructure:"prospect_index"`
}

// Enabled reports whether an Elasticsearch cluster was configured.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type EnrichmentConfig struct {
	// EmailPolicy is "decision_maker_only" or "allow_generic_fallback".
	EmailPolicy     string  `mapstructure:"email_policy"`
	MaxSubpages     int     `mapstructure:"max_subpages"`
	CrawlTimeout    int     `mapstructure:"crawl_timeout"`     // milliseconds
	ExtractCacheTTL int     `mapstructure:"extract_cache_ttl"` // seconds
	BatchSize       int     `mapstructure:"batch_size"`
	BatchDelay      int     `mapstructure:"batch_delay"` // milliseconds
	RateLimitRPS    float64 `mapstructure:"rate_limit_rps"`
}

type FetchConfig struct {
	UserAgent  string      `mapstructure:"user_agent"`
	MaxRetries int         `mapstructure:"max_retries"`
	RetryDelay int         `mapstructure:"retry_delay"` // milliseconds
	MaxBytes   int64       `mapstructure:"max_bytes"`
	Proxy      ProxyConfig `mapstructure:"proxy"`
}

type ProxyConfig struct {
	// Mode is "none", "scraperapi" or "custom".
	Mode          string   `mapstructure:"mode"`
	ScraperAPIKey string   `mapstructure:"scraper_api_key"`
	ScraperAPIURL string   `mapstructure:"scraper_api_url"`
	CustomProxies []string `mapstructure:"custom_proxies"`
}

type CircuitConfig struct {
	FailureThreshold       int `mapstructure:"failure_threshold"`
	SuccessThreshold       int `mapstructure:"success_threshold"`
	OpenDuration           int `mapstructure:"open_duration"`   // milliseconds
	RateLimitBase          int `mapstructure:"rate_limit_base"` // milliseconds
	RateLimitMaxMultiplier int `mapstructure:"rate_limit_max_multiplier"`
}

type APIsConfig struct {
	Search struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"search"`

	RDAP struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"`
	} `mapstructure:"rdap"`

	Apollo struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"`
	} `mapstructure:"apollo"`

	Hunter struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"`
	} `mapstructure:"hunter"`

	GooglePlaces struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"`
	} `mapstructure:"google_places"`

	XAI struct {
		BaseURL     string  `mapstructure:"base_url"`
		APIKey      string  `mapstructure:"api_key"`
		Model       string  `mapstructure:"model"`
		Timeout     int     `mapstructure:"timeout"`
		MaxTokens   int     `mapstructure:"max_tokens"`
		Temperature float64 `mapstructure:"temperature"`
	} `mapstructure:"xai"`
}

type OutreachConfig struct {
	SenderName  string `mapstructure:"sender_name"`
	SenderEmail string `mapstructure:"sender_email"`
	Product     string `mapstructure:"product"`
	SES         struct {
		Enabled bool   `mapstructure:"enabled"`
		Region  string `mapstructure:"region"`
	} `mapstructure:"ses"`
}

// NotificationsConfig controls the hot-lead topic.
type NotificationsConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	MetricsAddress string `mapstructure:"metrics_address"`
	ServiceName    string `mapstructure:"service_name"`
	// TracingEnabled writes one span per job to the log at debug level.
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}
