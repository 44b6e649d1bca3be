package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	// TaraMoney credentials. TestMode selects which pair is active.
	TaraAPIKey         string
	TaraBusinessID     string
	TaraTestAPIKey     string
	TaraTestBusinessID string
	TestMode           bool

	WebhookSecret     string
	EnableOrderLinks  bool
	EnableMobileMoney bool

	// ReturnURL is where the customer lands after completing payment
	// externally; WebhookBaseURL is the public base the provider calls back on.
	ReturnURL      string
	WebhookBaseURL string
}

// Credentials holds the resolved (test vs live) credential pair. The payment
// core only ever sees this, never the raw test/live split.
type Credentials struct {
	APIKey     string
	BusinessID string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    os.Getenv("APP_PORT"),
		AppEnv:     os.Getenv("APP_ENV"),

		TaraAPIKey:         os.Getenv("TARAMONEY_API_KEY"),
		TaraBusinessID:     os.Getenv("TARAMONEY_BUSINESS_ID"),
		TaraTestAPIKey:     os.Getenv("TARAMONEY_TEST_API_KEY"),
		TaraTestBusinessID: os.Getenv("TARAMONEY_TEST_BUSINESS_ID"),
		TestMode:           boolEnv("TARAMONEY_TEST_MODE", false),

		WebhookSecret:     os.Getenv("TARAMONEY_WEBHOOK_SECRET"),
		EnableOrderLinks:  boolEnv("TARAMONEY_ENABLE_ORDER_LINKS", true),
		EnableMobileMoney: boolEnv("TARAMONEY_ENABLE_MOBILE_MONEY", true),

		ReturnURL:      os.Getenv("CHECKOUT_RETURN_URL"),
		WebhookBaseURL: os.Getenv("WEBHOOK_BASE_URL"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// TaraCredentials resolves the active credential pair based on test mode.
func (c *Config) TaraCredentials() Credentials {
	if c.TestMode {
		return Credentials{
			APIKey:     c.TaraTestAPIKey,
			BusinessID: c.TaraTestBusinessID,
		}
	}
	return Credentials{
		APIKey:     c.TaraAPIKey,
		BusinessID: c.TaraBusinessID,
	}
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "yes" || v == "1"
}
