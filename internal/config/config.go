// Package config содержит логику чтения конфигурации сервиса лояльности.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ModeProduction включает реальный клиент фискального сервиса.
// В любом другом режиме используется детерминированный мок.
const ModeProduction = "production"

// Config содержит параметры конфигурации сервиса лояльности.
type Config struct {
	RunAddress        string `env:"RUN_ADDRESS"`
	DatabaseURI       string `env:"DATABASE_URI"`
	FiscalBaseAddress string `env:"FISCAL_BASE_ADDRESS"`
	PushAddress       string `env:"PUSH_ADDRESS"`
	Mode              string `env:"APP_MODE"`
	AuthSecret        string `env:"AUTH_SECRET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env подхватывается только если файл существует
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envFiscalAddress := cfg.FiscalBaseAddress
	envPushAddress := cfg.PushAddress
	envMode := cfg.Mode
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.FiscalBaseAddress, "f", "https://suf.purs.gov.rs", "fiscal verification service base address")
	flag.StringVar(&cfg.PushAddress, "p", "", "push notification service address")
	flag.StringVar(&cfg.Mode, "m", "development", "application mode (production enables the real fiscal client)")
	flag.StringVar(&cfg.AuthSecret, "s", "loyalty-secret", "secret key for auth cookies")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envFiscalAddress != "" {
		cfg.FiscalBaseAddress = envFiscalAddress
	}
	if envPushAddress != "" {
		cfg.PushAddress = envPushAddress
	}
	if envMode != "" {
		cfg.Mode = envMode
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
