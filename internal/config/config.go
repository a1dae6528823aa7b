package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	AppPort    string
	AppEnv     string
	AppBaseURL string
	CORSOrigin string
	JWTSecret  string

	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string
	TaxRateBP           int64

	ResendAPIKey string
	EmailFrom    string
	AdminEmail   string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSS3Bucket        string

	// OrderCancelMode is "soft" (status transition) or "hard" (row delete).
	OrderCancelMode string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		AppPort:    getEnv("APP_PORT", "8080"),
		AppEnv:     getEnv("APP_ENV", "development"),
		AppBaseURL: strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PaymentCurrency:     strings.ToLower(getEnv("PAYMENT_CURRENCY", "eur")),
		TaxRateBP:           getEnvInt64("TAX_RATE_BP", 1000),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnv("EMAIL_FROM", "pedidos@baklava.example"),
		AdminEmail:   os.Getenv("ADMIN_EMAIL"),

		AWSRegion:          getEnv("AWS_REGION", "eu-west-1"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSS3Bucket:        os.Getenv("AWS_S3_BUCKET"),

		OrderCancelMode: strings.ToLower(strings.TrimSpace(getEnv("ORDER_CANCEL_MODE", "soft"))),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	return cfg
}

// Validate rejects settings that would otherwise fall back silently.
func (c *Config) Validate() error {
	switch c.OrderCancelMode {
	case "soft", "hard":
	default:
		return fmt.Errorf("ORDER_CANCEL_MODE must be soft or hard, got %q", c.OrderCancelMode)
	}
	if c.TaxRateBP < 0 || c.TaxRateBP > 10000 {
		return fmt.Errorf("TAX_RATE_BP must be between 0 and 10000, got %d", c.TaxRateBP)
	}
	return nil
}

// IsProduction reports whether secure cookies and JSON logs should be used.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
