// Package config loads the page monitor configuration from YAML, .env files
// and environment variables.
package config

import (
	"fmt"
	"time"
)

const maxPort = 65535

// Default service configuration values.
const (
	defaultServiceName    = "pagemonitor"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8095
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
)

// Default database configuration values.
const (
	defaultDBHost          = "localhost"
	defaultDBPort          = 5432
	defaultDBUser          = "postgres"
	defaultDBName          = "pagemonitor"
	defaultDBSSLMode       = "disable"
	defaultDBMaxConns      = 25
	defaultDBMaxIdleConns  = 5
	defaultDBConnLifetime  = time.Hour
	defaultRedisAddress    = "localhost:6379"
	defaultRedisHistoryTTL = 7 * 24 * time.Hour
	defaultNotifyChannel   = "pagemonitor:changes"
)

// Default crawl configuration values.
const (
	defaultUserAgent        = "TaxPageMonitor/1.0"
	defaultFetchTimeout     = 30 * time.Second
	defaultMaxBodyBytes     = 10 * 1024 * 1024
	defaultTitleSuffix      = `\s*[|—]\s*Washington Department of Revenue.*$`
	defaultWorkers          = 4
	defaultRequestDelay     = 300 * time.Millisecond
	defaultScope            = "default"
	defaultJobRetention     = 50
	defaultMaxCosmeticLines = 2
	defaultIngestTimeout    = 60 * time.Second
	defaultIngestAttempts   = 3
	defaultBreakerFailures  = 5
	defaultBreakerCooldown  = time.Minute
	defaultESIndex          = "tax_law_documents"
	defaultPollSpec         = "@every 1m"
	defaultScheduleHour     = 6
)

// Ingest drivers.
const (
	IngestDriverNone          = "none"
	IngestDriverHTTP          = "http"
	IngestDriverElasticsearch = "elasticsearch"
)

// Config holds the application configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Auth       AuthConfig       `yaml:"auth"`
	Fetcher    FetcherConfig    `yaml:"fetcher"`
	Crawl      CrawlConfig      `yaml:"crawl"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
}

// ServiceConfig holds service identity and runtime settings.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"PAGEMONITOR_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"        yaml:"debug"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                  string        `env:"POSTGRES_PAGEMONITOR_HOST"     yaml:"host"`
	Port                  int           `env:"POSTGRES_PAGEMONITOR_PORT"     yaml:"port"`
	User                  string        `env:"POSTGRES_PAGEMONITOR_USER"     yaml:"user"`
	Password              string        `env:"POSTGRES_PAGEMONITOR_PASSWORD" yaml:"password"`
	Database              string        `env:"POSTGRES_PAGEMONITOR_DB"       yaml:"database"`
	SSLMode               string        `yaml:"sslmode"`
	MaxConnections        int           `yaml:"max_connections"`
	MaxIdleConns          int           `yaml:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// RedisConfig holds the optional Redis settings used for job history and
// change notifications.
type RedisConfig struct {
	Enabled       bool          `env:"REDIS_ENABLED"  yaml:"enabled"`
	Address       string        `env:"REDIS_ADDRESS"  yaml:"address"`
	Password      string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB            int           `env:"REDIS_DB"       yaml:"db"`
	HistoryTTL    time.Duration `yaml:"history_ttl"`
	NotifyChannel string        `yaml:"notify_channel"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// AuthConfig holds API authentication settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// FetcherConfig controls page retrieval and normalization.
type FetcherConfig struct {
	UserAgent           string        `env:"FETCHER_USER_AGENT" yaml:"user_agent"`
	Timeout             time.Duration `env:"FETCHER_TIMEOUT"    yaml:"timeout"`
	MaxBodyBytes        int64         `yaml:"max_body_bytes"`
	TitleSuffixPattern  string        `yaml:"title_suffix_pattern"`
	BoilerplatePatterns []string      `yaml:"boilerplate_patterns"`
}

// CrawlConfig controls the crawl worker pool and job retention.
type CrawlConfig struct {
	Workers      int           `env:"CRAWL_WORKERS"       yaml:"workers"`
	RequestDelay time.Duration `env:"CRAWL_REQUEST_DELAY" yaml:"request_delay"`
	DefaultScope string        `env:"CRAWL_DEFAULT_SCOPE" yaml:"default_scope"`
	JobRetention int           `yaml:"job_retention"`
}

// ClassifierConfig tunes the cosmetic-change policy.
type ClassifierConfig struct {
	MaxCosmeticLines     int      `yaml:"max_cosmetic_lines"`
	CosmeticPatterns     []string `yaml:"cosmetic_patterns"`
	RequireCosmeticMatch *bool    `yaml:"require_cosmetic_match"`
}

// IngestConfig selects and configures the ingestion bridge.
type IngestConfig struct {
	Driver        string              `env:"INGEST_DRIVER" yaml:"driver"`
	Timeout       time.Duration       `yaml:"timeout"`
	HTTP          HTTPIngestConfig    `yaml:"http"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
}

// HTTPIngestConfig configures the HTTP ingestion bridge.
type HTTPIngestConfig struct {
	URL              string        `env:"INGEST_HTTP_URL"   yaml:"url"`
	APIKey           string        `env:"INGEST_HTTP_TOKEN" yaml:"api_key"`
	MaxAttempts      int           `yaml:"max_attempts"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// ElasticsearchConfig configures the Elasticsearch ingestion bridge.
type ElasticsearchConfig struct {
	URL      string `env:"ELASTICSEARCH_URL"      yaml:"url"`
	Index    string `env:"ELASTICSEARCH_INDEX"    yaml:"index"`
	APIKey   string `env:"ELASTICSEARCH_API_KEY"  yaml:"api_key"`
	Username string `env:"ELASTICSEARCH_USERNAME" yaml:"username"`
	Password string `env:"ELASTICSEARCH_PASSWORD" yaml:"password"`
}

// ScheduleConfig controls the background schedule poller and the defaults
// written for new scope rows.
type ScheduleConfig struct {
	Enabled           bool     `env:"SCHEDULE_ENABLED" yaml:"enabled"`
	PollSpec          string   `yaml:"poll_spec"`
	Scopes            []string `env:"SCHEDULE_SCOPES"  yaml:"scopes"`
	DefaultHourUTC    int      `yaml:"default_hour_utc"`
	DefaultMinuteUTC  int      `yaml:"default_minute_utc"`
	DefaultRunsPerDay int      `yaml:"default_runs_per_day"`
}

// DiscoveryConfig lists the listing pages and feeds scanned after each sweep.
type DiscoveryConfig struct {
	Enabled bool                    `env:"DISCOVERY_ENABLED" yaml:"enabled"`
	Sources []DiscoverySourceConfig `yaml:"sources"`
}

// DiscoverySourceConfig is one discovery source.
type DiscoverySourceConfig struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	URL   string `yaml:"url"`
	Match string `yaml:"match"`
}

// Load loads configuration from path, applies defaults then env overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	cfg, loadErr := loadFile(path, true, setDefaults)
	if loadErr != nil {
		return nil, fmt.Errorf("load config: %w", loadErr)
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validatePort("service.port", c.Service.Port); err != nil {
		return err
	}

	if c.Database.Host == "" {
		return &ValidationError{Field: "database.host", Message: "is required"}
	}

	if c.Database.Database == "" {
		return &ValidationError{Field: "database.database", Message: "is required"}
	}

	if err := validateLogLevel(c.Logging.Level); err != nil {
		return err
	}

	if c.Crawl.Workers < 1 {
		return &ValidationError{Field: "crawl.workers", Message: "must be at least 1"}
	}

	if err := validatePatterns("fetcher.boilerplate_patterns", c.Fetcher.BoilerplatePatterns); err != nil {
		return err
	}

	if err := validatePatterns("classifier.cosmetic_patterns", c.Classifier.CosmeticPatterns); err != nil {
		return err
	}

	if err := c.validateIngest(); err != nil {
		return err
	}

	if c.Schedule.DefaultRunsPerDay != 1 && c.Schedule.DefaultRunsPerDay != 2 {
		return &ValidationError{Field: "schedule.default_runs_per_day", Message: "must be 1 or 2"}
	}

	for i, src := range c.Discovery.Sources {
		field := fmt.Sprintf("discovery.sources[%d].url", i)
		if err := validateHTTPURL(field, src.URL); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateIngest() error {
	switch c.Ingest.Driver {
	case IngestDriverNone:
		return nil
	case IngestDriverHTTP:
		return validateHTTPURL("ingest.http.url", c.Ingest.HTTP.URL)
	case IngestDriverElasticsearch:
		if c.Ingest.Elasticsearch.URL == "" {
			return &ValidationError{Field: "ingest.elasticsearch.url", Message: "is required"}
		}
		return nil
	default:
		return &ValidationError{Field: "ingest.driver", Message: "must be one of: none, http, elasticsearch"}
	}
}

// RequireCosmetic reports whether cosmetic changes must match a cosmetic
// pattern in addition to being small. Defaults to true.
func (c ClassifierConfig) RequireCosmetic() bool {
	if c.RequireCosmeticMatch == nil {
		return true
	}
	return *c.RequireCosmeticMatch
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setLoggingDefaults(&cfg.Logging)
	setFetcherDefaults(&cfg.Fetcher)
	setCrawlDefaults(&cfg.Crawl)
	setIngestDefaults(&cfg.Ingest)
	setScheduleDefaults(&cfg.Schedule, cfg.Crawl.DefaultScope)
	setDiscoveryDefaults(&cfg.Discovery)

	if cfg.Classifier.MaxCosmeticLines == 0 {
		cfg.Classifier.MaxCosmeticLines = defaultMaxCosmeticLines
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnectionMaxLifetime == 0 {
		d.ConnectionMaxLifetime = defaultDBConnLifetime
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
	if r.HistoryTTL == 0 {
		r.HistoryTTL = defaultRedisHistoryTTL
	}
	if r.NotifyChannel == "" {
		r.NotifyChannel = defaultNotifyChannel
	}
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}

func setFetcherDefaults(f *FetcherConfig) {
	if f.UserAgent == "" {
		f.UserAgent = defaultUserAgent
	}
	if f.Timeout == 0 {
		f.Timeout = defaultFetchTimeout
	}
	if f.MaxBodyBytes == 0 {
		f.MaxBodyBytes = defaultMaxBodyBytes
	}
	if f.TitleSuffixPattern == "" {
		f.TitleSuffixPattern = defaultTitleSuffix
	}
}

func setCrawlDefaults(c *CrawlConfig) {
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.RequestDelay == 0 {
		c.RequestDelay = defaultRequestDelay
	}
	if c.DefaultScope == "" {
		c.DefaultScope = defaultScope
	}
	if c.JobRetention == 0 {
		c.JobRetention = defaultJobRetention
	}
}

func setIngestDefaults(i *IngestConfig) {
	if i.Driver == "" {
		i.Driver = IngestDriverNone
	}
	if i.Timeout == 0 {
		i.Timeout = defaultIngestTimeout
	}
	if i.HTTP.MaxAttempts == 0 {
		i.HTTP.MaxAttempts = defaultIngestAttempts
	}
	if i.HTTP.FailureThreshold == 0 {
		i.HTTP.FailureThreshold = defaultBreakerFailures
	}
	if i.HTTP.Cooldown == 0 {
		i.HTTP.Cooldown = defaultBreakerCooldown
	}
	if i.Elasticsearch.Index == "" {
		i.Elasticsearch.Index = defaultESIndex
	}
}

func setScheduleDefaults(s *ScheduleConfig, scope string) {
	if s.PollSpec == "" {
		s.PollSpec = defaultPollSpec
	}
	if len(s.Scopes) == 0 {
		s.Scopes = []string{scope}
	}
	if s.DefaultHourUTC == 0 && s.DefaultMinuteUTC == 0 {
		s.DefaultHourUTC = defaultScheduleHour
	}
	if s.DefaultRunsPerDay == 0 {
		s.DefaultRunsPerDay = 1
	}
}

func setDiscoveryDefaults(d *DiscoveryConfig) {
	if len(d.Sources) > 0 {
		return
	}

	d.Sources = []DiscoverySourceConfig{
		{Name: "news-releases", Kind: "listing", URL: "https://dor.wa.gov/about/news-releases", Match: "/about/news-releases/"},
		{Name: "special-notices", Kind: "table", URL: "https://dor.wa.gov/forms-publications/publications-subject/special-notices"},
		{Name: "tax-decisions", Kind: "pdf_links", URL: "https://dor.wa.gov/washington-tax-decisions", Match: "wtd"},
	}
}
