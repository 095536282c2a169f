package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration
	PostgresDSN   string
	SeedPassword  string
	IssuerName    string
	Redis         RedisConfig
	Kafka         KafkaConfig
}

// RedisConfig configures the optional Redis connection used for the token
// revocation list.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit event stream.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CERTFLOW_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("CERTFLOW_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	tokenTTL := 12 * time.Hour
	if raw := os.Getenv("CERTFLOW_TOKEN_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			tokenTTL = d
		}
	}

	seedPassword := os.Getenv("CERTFLOW_SEED_PASSWORD")
	if seedPassword == "" {
		seedPassword = "password"
	}

	issuer := os.Getenv("CERTFLOW_ISSUER_NAME")
	if issuer == "" {
		issuer = "Product Certification Bureau"
	}

	var brokers []string
	if raw := os.Getenv("CERTFLOW_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	auditTopic := os.Getenv("CERTFLOW_AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "certflow.audit"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		TokenTTL:      tokenTTL,
		PostgresDSN:   os.Getenv("CERTFLOW_POSTGRES_DSN"),
		SeedPassword:  seedPassword,
		IssuerName:    issuer,
		Redis: RedisConfig{
			URL:          os.Getenv("CERTFLOW_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    brokers,
			AuditTopic: auditTopic,
		},
	}
}
