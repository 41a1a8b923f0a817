package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Session  SessionConfig
	Dispatch DispatchConfig
	Tickets  TicketConfig
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	DispatchCreated   string
	DispatchFinished  string
	TicketSold        string
	TicketCancelled   string
	TransferCreated   string
	TransferDelivered string
}

type SessionConfig struct {
	// IdleTimeout ends a session that has seen no activity for this long.
	IdleTimeout time.Duration
}

type DispatchConfig struct {
	// LongHaulDistanceKm is the route distance above which a second driver
	// is mandatory.
	LongHaulDistanceKm int
	// TransferCommissionPercent is charged on money transfers carried by a
	// dispatched bus.
	TransferCommissionPercent int
}

type TicketConfig struct {
	// ManifestLockTTL bounds how long a sale can hold the per-manifest lock.
	ManifestLockTTL time.Duration
	QRSecret        string
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "dispatch_user"),
			Password:     getEnv("DB_PASSWORD", "dispatch_pass"),
			Database:     getEnv("DB_NAME", "dispatch"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				DispatchCreated:   getEnv("KAFKA_TOPIC_DISPATCH_CREATED", "dispatch.created"),
				DispatchFinished:  getEnv("KAFKA_TOPIC_DISPATCH_FINISHED", "dispatch.finished"),
				TicketSold:        getEnv("KAFKA_TOPIC_TICKET_SOLD", "ticket.sold"),
				TicketCancelled:   getEnv("KAFKA_TOPIC_TICKET_CANCELLED", "ticket.cancelled"),
				TransferCreated:   getEnv("KAFKA_TOPIC_TRANSFER_CREATED", "transfer.created"),
				TransferDelivered: getEnv("KAFKA_TOPIC_TRANSFER_DELIVERED", "transfer.delivered"),
			},
		},
		Session: SessionConfig{
			IdleTimeout: time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_MINUTES", 480)) * time.Minute,
		},
		Dispatch: DispatchConfig{
			LongHaulDistanceKm:        getEnvInt("LONG_HAUL_DISTANCE_KM", 500),
			TransferCommissionPercent: getEnvInt("TRANSFER_COMMISSION_PERCENT", 5),
		},
		Tickets: TicketConfig{
			ManifestLockTTL: time.Duration(getEnvInt("MANIFEST_LOCK_TTL_SECONDS", 30)) * time.Second,
			QRSecret:        getEnv("QR_SECRET_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
