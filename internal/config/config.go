package config

import (
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const ConfigTagName = "env"

var config *Config

// Config holds every configuration value of the voucher wallet binaries.
// Only this struct must be used to read configuration, no direct access to
// env or any other config source should be made elsewhere.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=voucher_wallet"`
	AppDebug bool   `env:"APP_DEBUG"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT,default=2500ms"`
	HttpWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT,default=2500ms"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=5s"`
	HttpMaxBodyBytes   int           `env:"HTTP_MAX_BODY_BYTES,default=1048576"`
	MetricsAddr    string `env:"METRICS_LISTEN_ADDR,default=:9100"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	PostgresSSLMode      string        `env:"POSTGRES_SSLMODE,default=disable"`
	PostgresLockTimeout  time.Duration `env:"POSTGRES_LOCK_TIMEOUT,default=5s"`
	PostgresMaxOpenConns int           `env:"POSTGRES_MAX_OPEN_CONNS,default=25"`
	PostgresMaxIdleConns int           `env:"POSTGRES_MAX_IDLE_CONNS,default=5"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=vw:"`

	PromNamespace        string `env:"PROM_NAMESPACE,default=voucher_wallet"`
	OtelExporterEndpoint string `env:"OTEL_EXPORTER_ENDPOINT"`

	LogLevel      string `env:"LOG_LEVEL,default=info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB,default=100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS,default=5"`

	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`

	WalletOpeningBalance string        `env:"WALLET_OPENING_BALANCE,default=1000.00"`
	VoucherExpiryDays    int           `env:"VOUCHER_EXPIRY_DAYS,default=365"`
	PricingDefaultCost   string        `env:"PRICING_DEFAULT_COST,default=10"`
	PricingCacheTTL      time.Duration `env:"PRICING_CACHE_TTL,default=1m"`
	ExpirySweepInterval  time.Duration `env:"EXPIRY_SWEEP_INTERVAL,default=10m"`

	EventBackend string   `env:"EVENT_BACKEND,default=redis"`
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC,default=voucher-events"`

	QueueName              string        `env:"QUEUE_NAME,default=voucher:events"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=notifier"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueConsumers         int           `env:"QUEUE_CONSUMERS,default=2"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=500ms"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=50"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`

	NotifierURL     string        `env:"NOTIFIER_URL"`
	NotifierTimeout time.Duration `env:"NOTIFIER_TIMEOUT,default=5s"`
	WorkerCount     int           `env:"WORKER_COUNT,default=20"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	if err = c.validate(); err != nil {
		return err
	}

	config = c
	return nil
}

func (c *Config) validate() error {
	if _, err := decimal.NewFromString(c.WalletOpeningBalance); err != nil {
		return errors.Wrap(err, "WALLET_OPENING_BALANCE")
	}
	if _, err := decimal.NewFromString(c.PricingDefaultCost); err != nil {
		return errors.Wrap(err, "PRICING_DEFAULT_COST")
	}
	switch strings.ToLower(c.EventBackend) {
	case "redis", "kafka", "none":
	default:
		return errors.Errorf("EVENT_BACKEND %q is not one of redis, kafka, none", c.EventBackend)
	}
	if strings.EqualFold(c.EventBackend, "kafka") && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when EVENT_BACKEND=kafka")
	}
	return nil
}

// OpeningBalance is the amount credited to every new wallet.
func (c *Config) OpeningBalance() decimal.Decimal {
	return decimal.RequireFromString(c.WalletOpeningBalance).Round(2)
}

func (c *Config) DefaultCost() decimal.Decimal {
	return decimal.RequireFromString(c.PricingDefaultCost).Round(2)
}

func (c *Config) VoucherValidity() time.Duration {
	return time.Duration(c.VoucherExpiryDays) * 24 * time.Hour
}

// PostgresRead and PostgresWrite build the connection configs shared by
// every binary.
func (c *Config) PostgresRead() pg.Config {
	return c.postgres(c.PostgresReadHost, c.PostgresReadPort, c.PostgresReadUser, c.PostgresReadPassword, c.PostgresReadDatabase)
}

func (c *Config) PostgresWrite() pg.Config {
	return c.postgres(c.PostgresWriteHost, c.PostgresWritePort, c.PostgresWriteUser, c.PostgresWritePassword, c.PostgresWriteDatabase)
}

func (c *Config) postgres(host, port, user, password, database string) pg.Config {
	return pg.Config{
		Host:         host,
		Port:         port,
		User:         user,
		Password:     password,
		Database:     database,
		SSLMode:      c.PostgresSSLMode,
		LockTimeout:  c.PostgresLockTimeout,
		MaxOpenConns: c.PostgresMaxOpenConns,
		MaxIdleConns: c.PostgresMaxIdleConns,
	}
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the loaded configuration, tests use it to avoid env files.
func Set(c *Config) {
	config = c
}
