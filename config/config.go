package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	CRM       CRMConfig       `mapstructure:"crm"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

type CRMConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type EngineConfig struct {
	// EmailDispatch is "deferred" or "immediate". Deferred queues
	// send_email like every other action type.
	EmailDispatch string        `mapstructure:"email_dispatch"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// WorkerConfig also reads from the environment with the WORKER_ prefix so
// the executor can be tuned per deployment without a config file change.
type WorkerConfig struct {
	BatchSize       int           `mapstructure:"batch_size" envconfig:"BATCH_SIZE"`
	PollInterval    time.Duration `mapstructure:"poll_interval" envconfig:"POLL_INTERVAL"`
	ClaimLease      time.Duration `mapstructure:"claim_lease" envconfig:"CLAIM_LEASE"`
	ReclaimInterval time.Duration `mapstructure:"reclaim_interval" envconfig:"RECLAIM_INTERVAL"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("worker", &config.Worker); err != nil {
		return nil, fmt.Errorf("failed to read worker env overrides: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.name", "retention")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)

	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.send_timeout", 10*time.Second)

	viper.SetDefault("crm.timeout", 10*time.Second)

	viper.SetDefault("jwt.expiry_hours", 24)

	viper.SetDefault("engine.email_dispatch", "deferred")
	viper.SetDefault("engine.sweep_interval", time.Hour)

	viper.SetDefault("worker.batch_size", 50)
	viper.SetDefault("worker.poll_interval", 30*time.Second)
	viper.SetDefault("worker.claim_lease", 10*time.Minute)
	viper.SetDefault("worker.reclaim_interval", time.Minute)

	viper.SetDefault("rate_limit.rps", 100)
	viper.SetDefault("rate_limit.burst", 200)
}
