package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Stripe   StripeConfig
	Site     SiteConfig
	Email    EmailConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	LogDir   string
	LogLevel string
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type SiteConfig struct {
	Origin      string
	DefaultLang string
	Langs       []string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
}

// Configured reports whether confirmation emails can be sent at all.
func (e EmailConfig) Configured() bool {
	return e.SMTPHost != "" && e.From != ""
}

type RedisConfig struct {
	Addr           string
	ReconcileLock  time.Duration
	EventDedupeTTL time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topics  TopicConfig
}

type TopicConfig struct {
	OrderReconciled string
	EmailFailed     string
}

type AuthConfig struct {
	AdminJWTSecret string
	OIDCIssuer     string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8084"),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("POSTGRES_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			AutoMigrate:  getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getEnv("CHECKOUT_CURRENCY", "eur")),
		},
		Site: SiteConfig{
			Origin:      strings.TrimRight(getEnv("SITE_ORIGIN", "http://localhost:3000"), "/"),
			DefaultLang: getEnv("DEFAULT_LANG", "fr"),
			Langs:       getEnvList("SITE_LANGS", []string{"fr", "en"}),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("SMTP_FROM", ""),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			ReconcileLock:  time.Duration(getEnvInt("RECONCILE_LOCK_TTL_SECONDS", 30)) * time.Second,
			EventDedupeTTL: time.Duration(getEnvInt("WEBHOOK_DEDUPE_TTL_HOURS", 24)) * time.Hour,
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topics: TopicConfig{
				OrderReconciled: getEnv("KAFKA_TOPIC_ORDER_RECONCILED", "checkout.order.reconciled"),
				EmailFailed:     getEnv("KAFKA_TOPIC_EMAIL_FAILED", "checkout.email.failed"),
			},
		},
		Auth: AuthConfig{
			AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
			OIDCIssuer:     getEnv("OIDC_ISSUER", ""),
		},
		LogDir:   getEnv("LOG_DIR", "logs"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}
}

// LangOrDefault returns lang when it is one of the site languages.
func (s SiteConfig) LangOrDefault(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, l := range s.Langs {
		if l == lang {
			return lang
		}
	}
	return s.DefaultLang
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
