// Package config содержит логику чтения конфигурации сервиса оформления заказов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса оформления заказов.
type Config struct {
	RunAddress            string `env:"RUN_ADDRESS"`
	DatabaseURI           string `env:"DATABASE_URI"`
	RedisAddress          string `env:"REDIS_ADDRESS"`
	SessionSecret         string `env:"SESSION_SECRET"`
	StripePublicKey       string `env:"STRIPE_PUBLIC_KEY"`
	StripeSecretKey       string `env:"STRIPE_SECRET_KEY"`
	StripeAPIURL          string `env:"STRIPE_API_URL"`
	StripeCurrency        string `env:"STRIPE_CURRENCY"`
	FreeDeliveryThreshold string `env:"FREE_DELIVERY_THRESHOLD"`
	StandardDeliveryFee   string `env:"STANDARD_DELIVERY_FEE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddress := cfg.RedisAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "r", "localhost:6379", "redis address for session storage")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.StripeAPIURL == "" {
		cfg.StripeAPIURL = "https://api.stripe.com"
	}
	if cfg.StripeCurrency == "" {
		cfg.StripeCurrency = "usd"
	}
	if cfg.FreeDeliveryThreshold == "" {
		cfg.FreeDeliveryThreshold = "50.00"
	}
	if cfg.StandardDeliveryFee == "" {
		cfg.StandardDeliveryFee = "4.99"
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "bookstore-secret"
	}

	return cfg, nil
}
