package config

import (
	"fmt"
	"os"
	"time"
)

const (
	ModeSync  = "SYNC"
	ModeAsync = "ASYNC"
)

// Config is read once at boot. Mode is kept as given; an unknown value is
// reported by the checkout endpoint on every call rather than here.
type Config struct {
	ServiceName       string
	ServerPort        string
	Mode              string
	PaymentServiceURL string
	RabbitMQHost      string
	RabbitMQURL       string
	LogLevel          string

	SyncTimeout    time.Duration
	ReconnectDelay time.Duration
	PaymentLatency time.Duration
}

func Load(serviceName string) *Config {
	host := getEnv("RABBITMQ_HOST", "rabbitmq")
	return &Config{
		ServiceName:       serviceName,
		ServerPort:        getEnv("PORT", "8000"),
		Mode:              getEnv("MODE", ModeSync),
		PaymentServiceURL: getEnv("PAYMENT_SERVICE_URL", "http://payment-service:8000/pay"),
		RabbitMQHost:      host,
		RabbitMQURL:       getEnv("RABBITMQ_URL", fmt.Sprintf("amqp://guest:guest@%s:5672/", host)),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		SyncTimeout:       10 * time.Second,
		ReconnectDelay:    5 * time.Second,
		PaymentLatency:    3 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
