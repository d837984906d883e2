// Package config provides configuration management for the token curation service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Voting    VotingConfig
	Admin     AdminConfig
	Oracle    OracleConfig
	Ledger    LedgerConfig
	ROI       ROIConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL shared by the pgx pool and golang-migrate
func (c PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// URL returns the connection URL used by golang-migrate
func (c ClickHouseConfig) URL() string {
	return fmt.Sprintf("clickhouse://%s:%s?username=%s&password=%s&database=%s&x-multi-statement=true",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// VotingConfig holds the auto-approval thresholds
type VotingConfig struct {
	VoteThreshold    int     // minimum votes before a vetting project is eligible for auto-approval
	FastTrackPercent float64 // bullish percentage (0-100) required for auto-approval
	MaxConflictRetry int     // attempts for a vote write that loses an optimistic-concurrency race
}

// AdminConfig lists the platform user ids with admin rights
type AdminConfig struct {
	UserIDs []string
}

// IsAdmin reports whether userID is configured as an admin
func (c AdminConfig) IsAdmin(userID string) bool {
	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OracleConfig holds price oracle client configuration
type OracleConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec int
	DefaultLogoURL string
}

// LedgerConfig holds ledger client configuration
type LedgerConfig struct {
	RPCURL  string
	Timeout time.Duration
}

// ROIConfig holds ROI refresh configuration
type ROIConfig struct {
	RefreshInterval time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	UserRPS   int
	UserBurst int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "token_curator"),
				User:           getEnv("POSTGRES_USER", "curator"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "token_curator"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Voting: VotingConfig{
			VoteThreshold:    getEnvAsInt("VOTE_THRESHOLD", 10),
			FastTrackPercent: getEnvAsFloat("FAST_TRACK_PERCENT", 70),
			MaxConflictRetry: getEnvAsInt("VOTE_CONFLICT_RETRIES", 5),
		},
		Admin: AdminConfig{
			UserIDs: getEnvAsList("ADMIN_USER_IDS"),
		},
		Oracle: OracleConfig{
			BaseURL:        getEnv("ORACLE_BASE_URL", "https://firstledger.net/api/v1"),
			APIKey:         getEnv("ORACLE_API_KEY", ""),
			Timeout:        getEnvAsDuration("ORACLE_TIMEOUT", 10*time.Second),
			RequestsPerSec: getEnvAsInt("ORACLE_RPS", 5),
			DefaultLogoURL: getEnv("DEFAULT_LOGO_URL", ""),
		},
		Ledger: LedgerConfig{
			RPCURL:  getEnv("LEDGER_RPC_URL", ""),
			Timeout: getEnvAsDuration("LEDGER_TIMEOUT", 10*time.Second),
		},
		ROI: ROIConfig{
			RefreshInterval: getEnvAsDuration("ROI_REFRESH_INTERVAL", 15*time.Minute),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			UserRPS:   getEnvAsInt("RATE_LIMIT_USER_RPS", 5),
			UserBurst: getEnvAsInt("RATE_LIMIT_USER_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks value ranges that the voting engine depends on
func (c *Config) Validate() error {
	if c.Voting.VoteThreshold < 1 {
		return fmt.Errorf("VOTE_THRESHOLD must be at least 1, got %d", c.Voting.VoteThreshold)
	}
	if c.Voting.FastTrackPercent < 0 || c.Voting.FastTrackPercent > 100 {
		return fmt.Errorf("FAST_TRACK_PERCENT must be between 0 and 100, got %v", c.Voting.FastTrackPercent)
	}
	if c.Voting.MaxConflictRetry < 1 {
		return fmt.Errorf("VOTE_CONFLICT_RETRIES must be at least 1, got %d", c.Voting.MaxConflictRetry)
	}
	if c.ROI.RefreshInterval <= 0 {
		return fmt.Errorf("ROI_REFRESH_INTERVAL must be positive")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty entries
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
