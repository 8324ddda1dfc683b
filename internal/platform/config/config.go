package config

import (
	"os"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string
	FraudAPIURL  string

	// StrictTransitions makes lifecycle handlers fail on events that arrive
	// outside their source status instead of absorbing them.
	StrictTransitions bool

	EnablePaymentConsumer      bool
	EnableSubscriptionConsumer bool

	CorrelationTTL     time.Duration
	EvictionInterval   time.Duration
	OutboxPollInterval time.Duration
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "meridian"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	fraudURL := strings.TrimSpace(os.Getenv("FRAUD_API_URL"))
	if fraudURL == "" {
		fraudURL = "http://localhost:8090"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,
		FraudAPIURL:  fraudURL,

		StrictTransitions: envBool("STRICT_TRANSITIONS", false),

		EnablePaymentConsumer:      envBool("ENABLE_PAYMENT_CONSUMER", true),
		EnableSubscriptionConsumer: envBool("ENABLE_SUBSCRIPTION_CONSUMER", true),

		CorrelationTTL:     envDuration("CORRELATION_TTL", 30*time.Minute),
		EvictionInterval:   envDuration("CORRELATION_EVICTION_INTERVAL", 5*time.Minute),
		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
