package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Payment   PaymentConfig   `yaml:"payment"`
	Rental    RentalConfig    `yaml:"rental"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// KafkaConfig contains queue connection settings. Topic names are part of
// the wire contract and live as constants in internal/queue.
type KafkaConfig struct {
	Brokers string `yaml:"brokers"` // comma separated
	GroupID string `yaml:"group_id"`
}

// PaymentConfig contains payment gateway settings
type PaymentConfig struct {
	Type           string `yaml:"type"` // "mock" or "http"
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RentalConfig contains the deposit settlement fee policy
type RentalConfig struct {
	OvertimeIntervalMinutes int   `yaml:"overtime_interval_minutes"`
	OvertimeFeeCents        int64 `yaml:"overtime_fee_cents"`
	CleaningFeeCents        int64 `yaml:"cleaning_fee_cents"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	SweepCancelledOrders  string `yaml:"sweep_cancelled_orders"`
	SweepReturnedBookings string `yaml:"sweep_returned_bookings"`
	SweepOverdueBookings  string `yaml:"sweep_overdue_bookings"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = val
	}
	if val := os.Getenv("KAFKA_GROUP_ID"); val != "" {
		c.Kafka.GroupID = val
	}

	if val := os.Getenv("PAYMENT_BASE_URL"); val != "" {
		c.Payment.BaseURL = val
	}
	if val := os.Getenv("PAYMENT_API_KEY"); val != "" {
		c.Payment.APIKey = val
	}

	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Kafka.Brokers == "" {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "kioskops-side-effects"
	}

	if c.Payment.Type == "" {
		c.Payment.Type = "mock"
	}
	if c.Payment.Type == "http" && c.Payment.BaseURL == "" {
		return fmt.Errorf("payment base_url is required for http gateway")
	}
	if c.Payment.TimeoutSeconds <= 0 {
		c.Payment.TimeoutSeconds = 10
	}

	// Rental fee policy defaults
	if c.Rental.OvertimeIntervalMinutes <= 0 {
		c.Rental.OvertimeIntervalMinutes = 60
	}
	if c.Rental.OvertimeFeeCents < 0 {
		return fmt.Errorf("overtime fee must not be negative")
	}
	if c.Rental.CleaningFeeCents < 0 {
		return fmt.Errorf("cleaning fee must not be negative")
	}

	// Scheduler defaults
	if c.Scheduler.SweepCancelledOrders == "" {
		c.Scheduler.SweepCancelledOrders = "0 */5 * * * *" // every 5 minutes
	}
	if c.Scheduler.SweepReturnedBookings == "" {
		c.Scheduler.SweepReturnedBookings = "30 */5 * * * *" // every 5 minutes, offset
	}
	if c.Scheduler.SweepOverdueBookings == "" {
		c.Scheduler.SweepOverdueBookings = "0 */15 * * * *" // every 15 minutes
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// KafkaBrokerList splits the comma-separated broker string
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// PaymentTimeout returns the bounded per-call gateway timeout
func (c *Config) PaymentTimeout() time.Duration {
	return time.Duration(c.Payment.TimeoutSeconds) * time.Second
}

// OvertimeInterval returns the rental overtime billing interval
func (c *Config) OvertimeInterval() time.Duration {
	return time.Duration(c.Rental.OvertimeIntervalMinutes) * time.Minute
}
