package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

var (
	ErrEmptyDBPassword = errors.New("database password is required")
	ErrEmptyAdminToken = errors.New("admin API token is required")
)

type Config struct {
	App      AppConfig      `yaml:"app" env-prefix:"APP_"`
	Database DatabaseConfig `yaml:"database" env-prefix:"DB_"`
	Redis    RedisConfig    `yaml:"redis" env-prefix:"REDIS_"`
	NATS     NATSConfig     `yaml:"nats" env-prefix:"NATS_"`
	Telegram TelegramConfig `yaml:"telegram" env-prefix:"TELEGRAM_"`
	HTTP     HTTPConfig     `yaml:"http" env-prefix:"HTTP_"`
	Sweeper  SweeperConfig  `yaml:"sweeper" env-prefix:"SWEEPER_"`
}

type AppConfig struct {
	Name        string `yaml:"name" env:"NAME" env-default:"bonus-drops"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"production"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PORT" env-default:"5432"`
	User           string `yaml:"user" env:"USER" env-default:"bonusdrops"`
	Password       string `yaml:"password" env:"PASSWORD"`
	Name           string `yaml:"name" env:"NAME" env-default:"bonusdrops"`
	MaxConnections int    `yaml:"max_connections" env:"MAX_CONNECTIONS" env-default:"25"`
	MinConnections int    `yaml:"min_connections" env:"MIN_CONNECTIONS" env-default:"5"`
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// RedisConfig enables the delivery guard when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB" env-default:"0"`
	GuardTTL time.Duration `yaml:"guard_ttl" env:"GUARD_TTL" env-default:"24h"`
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// NATSConfig enables queued ingestion when URL is set.
type NATSConfig struct {
	URL        string `yaml:"url" env:"URL"`
	StreamName string `yaml:"stream_name" env:"STREAM_NAME" env-default:"BONUS"`
}

func (n NATSConfig) Enabled() bool {
	return n.URL != ""
}

type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token" env:"BOT_TOKEN"`
	WebhookSecret  string  `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
	AdminChatID    int64   `yaml:"admin_chat_id" env:"ADMIN_CHAT_ID"`
	AllowedChatIDs []int64 `yaml:"allowed_chat_ids" env:"ALLOWED_CHAT_IDS" env-separator:","`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids" env:"ALLOWED_USER_IDS" env-separator:","`
	AllowlistPath  string  `yaml:"allowlist_path" env:"ALLOWLIST_PATH"`
}

type HTTPConfig struct {
	Port       int     `yaml:"port" env:"PORT" env-default:"8080"`
	AdminToken string  `yaml:"admin_token" env:"ADMIN_TOKEN"`
	RateRPS    float64 `yaml:"rate_rps" env:"RATE_RPS" env-default:"5"`
	RateBurst  int     `yaml:"rate_burst" env:"RATE_BURST" env-default:"10"`
}

type SweeperConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED" env-default:"true"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL" env-default:"15m"`
}

// Load reads the configuration and validates it for the server.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read loads CONFIG_PATH (default configs/config.yaml) and applies env
// overrides without validating. A missing file is not an error; env and
// defaults still apply.
func Read() (*Config, error) {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg Config

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from %s: %w", configPath, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from env: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return ErrEmptyDBPassword
	}

	if c.HTTP.AdminToken == "" {
		return ErrEmptyAdminToken
	}

	return nil
}
