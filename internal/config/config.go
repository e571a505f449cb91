package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Accounts    []AccountConfig
	Portal      PortalConfig
	Poll        PollConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Cost        CostConfig
	Validation  ValidationConfig
	Anomaly     AnomalyConfig
}

// AccountConfig holds the portal credentials for one account
type AccountConfig struct {
	Email    string
	Password string
}

// PortalConfig holds portal connection settings
type PortalConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	SettleDelay    time.Duration
}

// PollConfig holds the update-cycle cadence settings
type PollConfig struct {
	Interval          time.Duration
	WeekendInterval   time.Duration
	ReconnectInterval time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection, exchange and queue settings
type RabbitMQConfig struct {
	URL                string
	EventsExchange     string
	ReadingsRoutingKey string
	StatusRoutingKey   string
	CommandExchange    string
	CommandQueue       string
	CommandRoutingKey  string
	CommandDLQQueue    string
	PrefetchCount      int
}

// CostConfig holds the default per-meter tariff parameters
type CostConfig struct {
	LowRateThreshold float64
	LowRateCost      float64
	HighRateCost     float64
	SewageCost       float64
}

// ValidationConfig holds reading validation settings
type ValidationConfig struct {
	MaxDailyConsumption float64
}

// AnomalyConfig holds consumption spike detection settings
type AnomalyConfig struct {
	SpikeThreshold            float64
	MinDataPointsForDetection int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "water-metering-collector"),
		Portal: PortalConfig{
			BaseURL:        getEnv("CITYMIND_BASE_URL", "https://api.city-mind.com"),
			RequestTimeout: getEnvAsDuration("CITYMIND_REQUEST_TIMEOUT_SECONDS", 30*time.Second),
			SettleDelay:    getEnvAsDuration("CITYMIND_SETTLE_DELAY_SECONDS", time.Second),
		},
		Poll: PollConfig{
			Interval:          getEnvAsDuration("POLL_INTERVAL_SECONDS", 30*time.Minute),
			WeekendInterval:   getEnvAsDuration("POLL_WEEKEND_INTERVAL_SECONDS", time.Hour),
			ReconnectInterval: getEnvAsDuration("RECONNECT_INTERVAL_SECONDS", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                getEnv("RABBITMQ_URL", ""),
			EventsExchange:     getEnv("RABBITMQ_EVENTS_EXCHANGE", "water-metering.events.exchange"),
			ReadingsRoutingKey: getEnv("RABBITMQ_READINGS_ROUTING_KEY", "meter.reading.normalized"),
			StatusRoutingKey:   getEnv("RABBITMQ_STATUS_ROUTING_KEY", "collector.status.changed"),
			CommandExchange:    getEnv("RABBITMQ_COMMAND_EXCHANGE", "water-metering.commands.exchange"),
			CommandQueue:       getEnv("RABBITMQ_COMMAND_QUEUE", "water-metering.commands.queue"),
			CommandRoutingKey:  getEnv("RABBITMQ_COMMAND_ROUTING_KEY", "collector.alert-settings.set"),
			CommandDLQQueue:    getEnv("RABBITMQ_COMMAND_DLQ_QUEUE", "water-metering.commands.dlq"),
			PrefetchCount:      getEnvAsInt("RABBITMQ_PREFETCH", 10),
		},
		Cost: CostConfig{
			LowRateThreshold: getEnvAsFloat("COST_LOW_RATE_THRESHOLD", 7.0),
			LowRateCost:      getEnvAsFloat("COST_LOW_RATE", 0.0),
			HighRateCost:     getEnvAsFloat("COST_HIGH_RATE", 0.0),
			SewageCost:       getEnvAsFloat("COST_SEWAGE", 0.0),
		},
		Validation: ValidationConfig{
			MaxDailyConsumption: getEnvAsFloat("VALIDATION_MAX_DAILY_CONSUMPTION", 100.0),
		},
		Anomaly: AnomalyConfig{
			SpikeThreshold:            getEnvAsFloat("ANOMALY_SPIKE_THRESHOLD", 3.0),
			MinDataPointsForDetection: getEnvAsInt("ANOMALY_MIN_DATA_POINTS", 3),
		},
	}

	accounts, err := loadAccounts()
	if err != nil {
		return nil, err
	}
	cfg.Accounts = accounts

	// Validate required fields
	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no portal accounts configured, set CITYMIND_EMAIL/CITYMIND_PASSWORD or CITYMIND_ACCOUNTS")
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

// loadAccounts reads CITYMIND_ACCOUNTS ("email:password;email:password"),
// falling back to the single-account CITYMIND_EMAIL/CITYMIND_PASSWORD pair.
func loadAccounts() ([]AccountConfig, error) {
	var accounts []AccountConfig

	raw := os.Getenv("CITYMIND_ACCOUNTS")
	if raw != "" {
		for _, pair := range strings.Split(raw, ";") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}

			email, password, ok := strings.Cut(pair, ":")
			if !ok || email == "" || password == "" {
				return nil, fmt.Errorf("CITYMIND_ACCOUNTS entry %q is not in email:password form", pair)
			}

			accounts = append(accounts, AccountConfig{Email: email, Password: password})
		}

		return accounts, nil
	}

	email := os.Getenv("CITYMIND_EMAIL")
	password := os.Getenv("CITYMIND_PASSWORD")

	if email != "" && password != "" {
		accounts = append(accounts, AccountConfig{Email: email, Password: password})
	}

	return accounts, nil
}

// CostFor resolves the tariff parameters for a meter. All meters currently
// share the configured defaults.
func (c *Config) CostFor(_ string) CostConfig {
	return c.Cost
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
