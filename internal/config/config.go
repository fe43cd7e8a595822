package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Media    MediaConfig    `yaml:"media"`
	JWT      JWTConfig      `yaml:"jwt"`
	Push     PushConfig     `yaml:"push"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Region           string `yaml:"region"`
	AttendanceBucket string `yaml:"attendance_bucket"`
	AvatarsBucket    string `yaml:"avatars_bucket"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	Endpoint         string `yaml:"endpoint"` // custom S3-compatible endpoint, optional
}

// MediaConfig holds signed URL and image loading configuration
type MediaConfig struct {
	SignedURLTTLSeconds    int `yaml:"signed_url_ttl_seconds"`
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`
	RetryMaxAttempts       int `yaml:"retry_max_attempts"`
	RetryBaseDelayMs       int `yaml:"retry_base_delay_ms"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// PushConfig holds push delivery configuration
type PushConfig struct {
	ExpoEndpoint    string `yaml:"expo_endpoint"`
	ExpoAccessToken string `yaml:"expo_access_token"`
	APNsKeyFile     string `yaml:"apns_key_file"`
	APNsKeyID       string `yaml:"apns_key_id"`
	APNsTeamID      string `yaml:"apns_team_id"`
	APNsTopic       string `yaml:"apns_topic"`
	APNsProduction  bool   `yaml:"apns_production"`
}

// RedisConfig holds the optional Redis queue configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	QueueKey string `yaml:"queue_key"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Media.applyDefaults()

	return &cfg, nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// SignedURLTTL returns the validity window granted to signed URLs.
func (c *MediaConfig) SignedURLTTL() time.Duration {
	return time.Duration(c.SignedURLTTLSeconds) * time.Second
}

// RefreshInterval returns the proactive re-signing interval. It must stay
// strictly shorter than the signed URL TTL so viewers never observe an
// expired URL.
func (c *MediaConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// RetryBaseDelay returns the base backoff delay for image load retries.
func (c *MediaConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

func (c *MediaConfig) applyDefaults() {
	if c.SignedURLTTLSeconds <= 0 {
		c.SignedURLTTLSeconds = 3600
	}
	if c.RefreshIntervalSeconds <= 0 {
		c.RefreshIntervalSeconds = 3000
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryBaseDelayMs <= 0 {
		c.RetryBaseDelayMs = 2000
	}
}
