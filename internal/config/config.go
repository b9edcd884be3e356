package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	DB     DBConfig
	S3     S3Config
	Server ServerConfig
}

// DBConfig holds PostgreSQL database configuration
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASS" required:"true"`
	Database string `envconfig:"DB_NAME" default:"vistela"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
}

// S3Config holds object storage configuration
type S3Config struct {
	AccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID" required:"true"`
	SecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY" required:"true"`
	Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	Bucket          string `envconfig:"S3_BUCKET_NAME" required:"true"`
	UploadFolder    string `envconfig:"S3_UPLOAD_FOLDER" default:"uploads"`
	MaxAttempts     int    `envconfig:"S3_MAX_ATTEMPTS" default:"3"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int     `envconfig:"SERVER_PORT" default:"8080"`
	UploadRateLimit float64 `envconfig:"UPLOAD_RATE_LIMIT" default:"5"`
}

// DSN returns the PostgreSQL data source name
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.Host, c.User, c.Password, c.Database, c.Port)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.S3); err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DB.Password == "" {
		return fmt.Errorf("DB_PASS is required")
	}
	if c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
		return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required")
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET_NAME is required")
	}
	if c.S3.MaxAttempts <= 0 {
		return fmt.Errorf("S3_MAX_ATTEMPTS must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Server.UploadRateLimit <= 0 {
		return fmt.Errorf("UPLOAD_RATE_LIMIT must be positive")
	}
	return nil
}
