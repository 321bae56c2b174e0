package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Payment gateway configuration
	Gateway GatewayConfig

	// Booking policy configuration
	Booking BookingConfig

	// Notification delivery configuration
	Notify NotifyConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// GatewayConfig holds external payment processor configuration. HashSecret is
// the shared HMAC key and must never be exposed to clients.
type GatewayConfig struct {
	BaseURL      string
	MerchantCode string
	HashSecret   string
	ReturnURL    string
	QueryURL     string
	Version      string
	Currency     string
	RedirectTTL  time.Duration
}

// BookingConfig holds booking policy parameters
type BookingConfig struct {
	// PendingPaymentTTL is how long an unpaid reservation may sit before an
	// external sweeper requests its cancellation. The core itself runs no
	// timers; the value is exposed for the sweeper.
	PendingPaymentTTL time.Duration
	MaxSeatsPerOrder  int
}

// NotifyConfig holds outbound notification delivery configuration
type NotifyConfig struct {
	Mode    string // "dev" logs instead of sending, "production" delivers
	APIURL  string
	APIKey  string
	Sender  string
	Timeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Gateway: GatewayConfig{
			BaseURL:      getEnv("GATEWAY_BASE_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			MerchantCode: getEnv("GATEWAY_MERCHANT_CODE", ""),
			HashSecret:   getEnv("GATEWAY_HASH_SECRET", ""),
			ReturnURL:    getEnv("GATEWAY_RETURN_URL", ""),
			QueryURL:     getEnv("GATEWAY_QUERY_URL", ""),
			Version:      getEnv("GATEWAY_VERSION", "2.1.0"),
			Currency:     getEnv("GATEWAY_CURRENCY", "VND"),
			RedirectTTL:  time.Duration(getEnvAsInt("GATEWAY_REDIRECT_TTL", 900)) * time.Second,
		},
		Booking: BookingConfig{
			PendingPaymentTTL: time.Duration(getEnvAsInt("BOOKING_PENDING_PAYMENT_TTL", 1800)) * time.Second,
			MaxSeatsPerOrder:  getEnvAsInt("BOOKING_MAX_SEATS_PER_ORDER", 10),
		},
		Notify: NotifyConfig{
			Mode:    getEnv("NOTIFY_MODE", "dev"),
			APIURL:  getEnv("NOTIFY_API_URL", ""),
			APIKey:  getEnv("NOTIFY_API_KEY", ""),
			Sender:  getEnv("NOTIFY_SENDER", "BusTicketing"),
			Timeout: time.Duration(getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10)) * time.Second,
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	// Gateway credentials are required in production so redirects and
	// callback verification never run unsigned
	if c.Server.Environment == "production" {
		if c.Gateway.MerchantCode == "" {
			return fmt.Errorf("GATEWAY_MERCHANT_CODE is required in production")
		}
		if c.Gateway.HashSecret == "" {
			return fmt.Errorf("GATEWAY_HASH_SECRET is required in production")
		}
		if c.Gateway.ReturnURL == "" {
			return fmt.Errorf("GATEWAY_RETURN_URL is required in production")
		}
	}

	if c.Notify.Mode == "production" && c.Notify.APIURL == "" {
		return fmt.Errorf("NOTIFY_API_URL is required in production notify mode")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
