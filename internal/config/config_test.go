package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Success loading from env", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("DB_USER", "testuser")
		t.Setenv("DB_PASSWORD", "testpass")
		t.Setenv("DB_NAME", "testdb")
		t.Setenv("DB_PORT", "5432")
		t.Setenv("APP_PORT", "9090")
		t.Setenv("APP_ENV", "production")
		t.Setenv("APP_BASE_URL", "https://shop.example/")
		t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
		t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
		t.Setenv("PAYMENT_CURRENCY", "EUR")
		t.Setenv("TAX_RATE_BP", "2100")
		t.Setenv("ORDER_CANCEL_MODE", "hard")

		cfg := LoadConfig()

		assert.Equal(t, "localhost", cfg.DBHost)
		assert.Equal(t, "testuser", cfg.DBUser)
		assert.Equal(t, "testpass", cfg.DBPassword)
		assert.Equal(t, "testdb", cfg.DBName)
		assert.Equal(t, "5432", cfg.DBPort)
		assert.Equal(t, "9090", cfg.AppPort)
		assert.Equal(t, "https://shop.example", cfg.AppBaseURL)
		assert.Equal(t, "sk_test_123", cfg.StripeSecretKey)
		assert.Equal(t, "whsec_123", cfg.StripeWebhookSecret)
		assert.Equal(t, "eur", cfg.PaymentCurrency)
		assert.Equal(t, int64(2100), cfg.TaxRateBP)
		assert.Equal(t, "hard", cfg.OrderCancelMode)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("APP_PORT", "")
		t.Setenv("APP_ENV", "")
		t.Setenv("TAX_RATE_BP", "not-a-number")
		t.Setenv("ORDER_CANCEL_MODE", "")
		t.Setenv("DB_SSLMODE", "")

		cfg := LoadConfig()

		assert.Equal(t, "8080", cfg.AppPort)
		assert.Equal(t, "development", cfg.AppEnv)
		assert.Equal(t, int64(1000), cfg.TaxRateBP)
		assert.Equal(t, "soft", cfg.OrderCancelMode)
		assert.Equal(t, "disable", cfg.DBSSLMode)
		assert.False(t, cfg.IsProduction())
	})
	t.Run("CancelModeCaseInsensitive", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("ORDER_CANCEL_MODE", " HARD ")

		cfg := LoadConfig()

		assert.Equal(t, "hard", cfg.OrderCancelMode)
	})
}

func TestValidate(t *testing.T) {
	valid := Config{OrderCancelMode: "soft", TaxRateBP: 1000}
	assert.NoError(t, valid.Validate())

	typo := valid
	typo.OrderCancelMode = "hrad"
	err := typo.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ORDER_CANCEL_MODE")

	badRate := valid
	badRate.TaxRateBP = 12000
	assert.Error(t, badRate.Validate())
}
