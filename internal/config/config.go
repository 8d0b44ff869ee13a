package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"seatreserve/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Seats      SeatsConfig      `yaml:"seats"`
	Booking    BookingConfig    `yaml:"booking"`
	Blackout   BlackoutConfig   `yaml:"blackout"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

// Location resolves Timezone; empty or "Local" means the process zone.
func (a AppConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
}

type SeatsConfig struct {
	Count int `yaml:"count"`
}

type BookingConfig struct {
	RateLimitAttempts int `yaml:"rate_limit_attempts"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

type BlackoutConfig struct {
	Enabled          *bool `yaml:"enabled"`
	HorizonDays      int   `yaml:"horizon_days"`
	WeekdayOpenHour  int   `yaml:"weekday_open_hour"`
	WeekdayCloseHour int   `yaml:"weekday_close_hour"`
	WeekendOpenHour  int   `yaml:"weekend_open_hour"`
	WeekendCloseHour int   `yaml:"weekend_close_hour"`
	// RetryAttempts retries a failed tick before midnight; 0 waits for the next day.
	RetryAttempts int `yaml:"retry_attempts"`
}

// IsEnabled defaults to true when the key is absent.
func (b BlackoutConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Port       int    `yaml:"port"`
	HeaderUser string `yaml:"header_user"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Seats.Count <= 0 {
		return fmt.Errorf("seats.count must be positive, got %d", c.Seats.Count)
	}
	if _, err := c.App.Location(); err != nil {
		return fmt.Errorf("invalid app.timezone %q: %w", c.App.Timezone, err)
	}
	if c.Blackout.HorizonDays < 0 {
		return fmt.Errorf("blackout.horizon_days must not be negative, got %d", c.Blackout.HorizonDays)
	}
	if c.Blackout.RetryAttempts < 0 {
		return fmt.Errorf("blackout.retry_attempts must not be negative, got %d", c.Blackout.RetryAttempts)
	}

	return ValidateHours(c.Blackout)
}

// ValidateHours checks that both opening windows are non-empty and inside a day.
func ValidateHours(b BlackoutConfig) error {
	pairs := []struct {
		name        string
		open, close int
	}{
		{"weekday", b.WeekdayOpenHour, b.WeekdayCloseHour},
		{"weekend", b.WeekendOpenHour, b.WeekendCloseHour},
	}
	for _, p := range pairs {
		if p.open < 0 || p.close > 24 || p.open >= p.close {
			return fmt.Errorf("invalid %s opening hours %d-%d", p.name, p.open, p.close)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "seatreserve"
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = models.DefaultBusyTimeoutMS
	}
	if c.Seats.Count == 0 {
		c.Seats.Count = models.DefaultSeatCount
	}
	if c.Booking.RateLimitAttempts == 0 {
		c.Booking.RateLimitAttempts = models.RateLimitAttempts
	}
	if c.Booking.RateLimitWindow == 0 {
		c.Booking.RateLimitWindow = models.RateLimitWindow
	}

	if c.Blackout.HorizonDays == 0 {
		c.Blackout.HorizonDays = models.DefaultBlackoutHorizonDays
	}
	// нулевые часы означают "не задано"; закрытие в 0 часов не имеет смысла
	if c.Blackout.WeekdayCloseHour == 0 {
		c.Blackout.WeekdayOpenHour = models.DefaultWeekdayOpenHour
		c.Blackout.WeekdayCloseHour = models.DefaultWeekdayCloseHour
	}
	if c.Blackout.WeekendCloseHour == 0 {
		c.Blackout.WeekendOpenHour = models.DefaultWeekendOpenHour
		c.Blackout.WeekendCloseHour = models.DefaultWeekendCloseHour
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.HTTP.HeaderUser == "" {
		c.API.HTTP.HeaderUser = "x-user"
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "24h"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "./exports"
	}
}
