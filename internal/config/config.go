package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort          string
	Environment      string
	EthWSURL         string
	RegistryContract string
	TelegramBotToken string
	SMTPHost         string
	SMTPPort         string
	SMTPFrom         string
	SMTPUsername     string
	SMTPPassword     string
	JWTSecret        string
	Blackout         time.Duration
	DeliveryTimeout  time.Duration
}

func Load() Config {
	return Config{
		AppPort:          getEnv("APP_PORT", "5000"),
		Environment:      getEnv("APP_ENV", "development"),
		EthWSURL:         getEnv("ETH_WS_URL", "ws://localhost:7545"),
		RegistryContract: getEnv("REGISTRY_CONTRACT_ADDR", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPFrom:         getEnv("SMTP_FROM", "notifications@fin4.local"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		Blackout:         getEnvDurationSeconds("BLACKOUT_SECONDS", 5),
		DeliveryTimeout:  getEnvDurationSeconds("DELIVERY_TIMEOUT_SECONDS", 10),
	}
}

func getEnv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvDurationSeconds(key string, def int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return time.Duration(def) * time.Second
	}
	return time.Duration(n) * time.Second
}
