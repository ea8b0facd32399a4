// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"case-disposition-engine/internal/models"
)

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion string
	S3Bucket  string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OrgCacheTTL   time.Duration

	// SES
	SESSenderEmail string

	// Import
	AutoPublishPackages bool

	// Matching
	WeightRegion      float64
	WeightPerformance float64
	WeightCapacity    float64
	WeightSpecialty   float64
	WeightCost        float64
	MinMatchScore     int
	MaxCasesPerOrg    int
	MaxLoadRate       float64
	StrictWeights     bool
	ScoringWorkers    int

	// Application
	Stage    string
	LogLevel string
	Port     string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	weights := models.DefaultWeights()
	constraints := models.DefaultConstraints()

	cfg := &Config{
		// AWS
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:  getEnv("S3_BUCKET", "case-disposition-csv-dev"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "case_disposition"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		OrgCacheTTL:   getEnvDuration("ORG_CACHE_TTL", 5*time.Minute),

		// SES
		SESSenderEmail: getEnv("SES_SENDER_EMAIL", ""),

		// Import
		AutoPublishPackages: getEnvBool("IMPORT_AUTO_PUBLISH", true),

		// Matching
		WeightRegion:      getEnvFloat("MATCH_WEIGHT_REGION", weights.Region),
		WeightPerformance: getEnvFloat("MATCH_WEIGHT_PERFORMANCE", weights.Performance),
		WeightCapacity:    getEnvFloat("MATCH_WEIGHT_CAPACITY", weights.Capacity),
		WeightSpecialty:   getEnvFloat("MATCH_WEIGHT_SPECIALTY", weights.Specialty),
		WeightCost:        getEnvFloat("MATCH_WEIGHT_COST", weights.Cost),
		MinMatchScore:     getEnvInt("MATCH_MIN_SCORE", constraints.MinMatchScore),
		MaxCasesPerOrg:    getEnvInt("MATCH_MAX_CASES_PER_ORG", constraints.MaxCasesPerOrg),
		MaxLoadRate:       getEnvFloat("MATCH_MAX_LOAD_RATE", constraints.MaxLoadRate),
		StrictWeights:     getEnvBool("MATCH_STRICT_WEIGHTS", false),
		ScoringWorkers:    getEnvInt("MATCH_SCORING_WORKERS", 1),

		// Application
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", "8080"),
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// Weights returns the configured weight vector.
func (c *Config) Weights() models.WeightVector {
	return models.WeightVector{
		Region:      c.WeightRegion,
		Performance: c.WeightPerformance,
		Capacity:    c.WeightCapacity,
		Specialty:   c.WeightSpecialty,
		Cost:        c.WeightCost,
	}
}

// Constraints returns the configured planner constraints.
func (c *Config) Constraints() models.ConstraintSet {
	return models.ConstraintSet{
		MinMatchScore:  c.MinMatchScore,
		MaxCasesPerOrg: c.MaxCasesPerOrg,
		MaxLoadRate:    c.MaxLoadRate,
	}
}

// CacheEnabled reports whether a Redis address is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as float64 or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as bool or returns a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a duration or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
