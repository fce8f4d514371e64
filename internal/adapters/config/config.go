package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"marketscanner/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Coordinator   CoordinatorConfig
	Supervisor    SupervisorConfig
	Scanner       ScannerConfig
	Agent         AgentConfig
	MarketData    MarketDataConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"marketscanner"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// RedisConfig is optional: an empty host switches hub and budget to in-memory stores
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig is optional: without brokers events are dropped and no consumer runs
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"marketscanner"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type CoordinatorConfig struct {
	TopologyPath   string        `envconfig:"TOPOLOGY_PATH" default:"config/topology.yaml"`
	DefaultTimeout time.Duration `envconfig:"COORDINATOR_AGENT_TIMEOUT" default:"5s"`
	SkipUnhealthy  bool          `envconfig:"COORDINATOR_SKIP_UNHEALTHY" default:"false"`
	EnforceBudget  bool          `envconfig:"COORDINATOR_ENFORCE_BUDGET" default:"false"`
	HubTTL         time.Duration `envconfig:"COORDINATOR_HUB_TTL" default:"15m"`
}

type SupervisorConfig struct {
	Enabled      bool          `envconfig:"SUPERVISOR_ENABLED" default:"true"`
	PollInterval time.Duration `envconfig:"SUPERVISOR_POLL_INTERVAL" default:"15s"`
	ProbeTimeout time.Duration `envconfig:"SUPERVISOR_PROBE_TIMEOUT" default:"2s"`
	BudgetWindow time.Duration `envconfig:"SUPERVISOR_BUDGET_WINDOW" default:"1h"`
}

// ScannerConfig drives the periodic market scan over a watchlist
type ScannerConfig struct {
	Enabled   bool          `envconfig:"SCANNER_ENABLED" default:"false"`
	Interval  time.Duration `envconfig:"SCANNER_INTERVAL" default:"2m"`
	Workflows []string      `envconfig:"SCANNER_WORKFLOWS" default:"market_pipeline"`
	Watchlist []string      `envconfig:"SCANNER_WATCHLIST" default:"BTC,ETH"`
	// Fields are extra request fields sent with every scan, e.g. "exchange:binance,network:ethereum"
	Fields         map[string]string `envconfig:"SCANNER_FIELDS"`
	MaxConcurrency int               `envconfig:"SCANNER_MAX_CONCURRENCY" default:"4"`
}

// AgentConfig configures a single worker agent process (cmd/agent)
type AgentConfig struct {
	Kind        string        `envconfig:"AGENT_KIND" default:"crypto"`
	TaskTimeout time.Duration `envconfig:"AGENT_TASK_TIMEOUT" default:"10s"`
}

// MarketDataConfig holds upstream feed endpoints used by worker agents
type MarketDataConfig struct {
	CandlesURL      string        `envconfig:"MARKETDATA_CANDLES_URL" default:"http://localhost:9100/candles"`
	StockCandlesURL string        `envconfig:"MARKETDATA_STOCK_CANDLES_URL" default:"http://localhost:9100/stocks/candles"`
	WhaleURL        string        `envconfig:"MARKETDATA_WHALE_URL" default:"http://localhost:9100/whales"`
	NewsURL         string        `envconfig:"MARKETDATA_NEWS_URL" default:"http://localhost:9100/news"`
	FearGreedURL    string        `envconfig:"MARKETDATA_FEARGREED_URL" default:"https://api.alternative.me/fng/?limit=1"`
	NetworkURL      string        `envconfig:"MARKETDATA_NETWORK_URL" default:"http://localhost:9100/network"`
	MacroURL        string        `envconfig:"MARKETDATA_MACRO_URL" default:"http://localhost:9100/macro"`
	PricesURL       string        `envconfig:"MARKETDATA_PRICES_URL" default:"http://localhost:9100/prices"`
	RequestsPerMin  int           `envconfig:"MARKETDATA_REQUESTS_PER_MINUTE" default:"120"`
	RequestTimeout  time.Duration `envconfig:"MARKETDATA_REQUEST_TIMEOUT" default:"8s"`
	UserAgent       string        `envconfig:"MARKETDATA_USER_AGENT" default:"marketscanner/1.0"`
}

// Load reads configuration from environment variables,
// loading a .env file first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
