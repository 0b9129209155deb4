/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the billing-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	CheckoutEventQueue   string `mapstructure:"CHECKOUT_EVENT_QUEUE"`
	PaymentsAPIBaseURL   string `mapstructure:"PAYMENTS_API_BASE_URL"`
	PaymentsAPIKey       string `mapstructure:"PAYMENTS_API_KEY"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	PlatformFeeBps       int64  `mapstructure:"PLATFORM_FEE_BPS"`
	Currency             string `mapstructure:"CURRENCY"`
	CheckoutSuccessURL   string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL    string `mapstructure:"CHECKOUT_CANCEL_URL"`
	ExpirerIntervalSec   int    `mapstructure:"EXPIRER_INTERVAL_SECONDS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CHECKOUT_EVENT_QUEUE", "billing_service.checkout_events")
	viper.SetDefault("PLATFORM_FEE_BPS", 300)
	viper.SetDefault("CURRENCY", "PHP")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "televip:rate_limit")
	viper.SetDefault("EXPIRER_INTERVAL_SECONDS", 300)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BILLING_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CHECKOUT_EVENT_QUEUE")
	_ = viper.BindEnv("PAYMENTS_API_BASE_URL")
	_ = viper.BindEnv("PAYMENTS_API_KEY")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("PLATFORM_FEE_BPS")
	_ = viper.BindEnv("CURRENCY")
	_ = viper.BindEnv("CHECKOUT_SUCCESS_URL")
	_ = viper.BindEnv("CHECKOUT_CANCEL_URL")
	_ = viper.BindEnv("EXPIRER_INTERVAL_SECONDS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "televip:rate_limit"
	}

	if config.PlatformFeeBps < 0 {
		log.Printf("level=warn component=config msg=\"negative platform fee configured; coercing to default\" fee_bps=%d", config.PlatformFeeBps)
		config.PlatformFeeBps = 300
	}
	if config.PlatformFeeBps > 10000 {
		log.Printf("level=warn component=config msg=\"platform fee above 100%%; capping\" fee_bps=%d", config.PlatformFeeBps)
		config.PlatformFeeBps = 10000
	}
	if config.ExpirerIntervalSec <= 0 {
		config.ExpirerIntervalSec = 300
	}

	return
}

// Validate checks that the settings the service cannot run without are
// present. Called once at startup so misconfiguration fails fast instead of
// surfacing as runtime errors.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.DatabaseURL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.PaymentsAPIBaseURL) == "" {
		missing = append(missing, "PAYMENTS_API_BASE_URL")
	}
	if strings.TrimSpace(c.PaymentsAPIKey) == "" {
		missing = append(missing, "PAYMENTS_API_KEY")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}
