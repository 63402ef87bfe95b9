package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Terminal  TerminalConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers        []string
	BarTopic       string
	IndicatorTopic string
	GroupID        string
	Enabled        bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Enabled  bool
}

// TerminalConfig holds trading terminal gateway configuration
type TerminalConfig struct {
	BaseURL    string
	APIKey     string
	FetchLimit int
}

// SchedulerConfig holds the refresh schedule configuration
type SchedulerConfig struct {
	RefreshCron string
	RunOnStart  bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "indicators"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "db/migrations"),
		},
		Kafka: KafkaConfig{
			Brokers:        strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			BarTopic:       getEnv("KAFKA_BAR_TOPIC", "price-bars"),
			IndicatorTopic: getEnv("KAFKA_INDICATOR_TOPIC", "indicator-events"),
			GroupID:        getEnv("KAFKA_GROUP_ID", "indicator-pipeline"),
			Enabled:        getEnvBool("KAFKA_ENABLED", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_TTL", 15*time.Minute),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		Terminal: TerminalConfig{
			BaseURL:    getEnv("TERMINAL_BASE_URL", "http://localhost:9000"),
			APIKey:     getEnv("TERMINAL_API_KEY", ""),
			FetchLimit: getEnvInt("TERMINAL_FETCH_LIMIT", 500),
		},
		Scheduler: SchedulerConfig{
			RefreshCron: getEnv("REFRESH_CRON", "0 30 21 * * 1-5"),
			RunOnStart:  getEnvBool("REFRESH_ON_START", false),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
