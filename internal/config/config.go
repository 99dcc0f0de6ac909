// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// HealthGRPCAddr is the address of the gRPC health endpoint; empty disables it.
	HealthGRPCAddr string `mapstructure:"HEALTH_GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AppBaseURL is the public URL of the web app; used to build links in verification and reset emails.
	AppBaseURL string `mapstructure:"APP_BASE_URL"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31) for passwords and security answers; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// BootstrapAdminEmail may grant admin before any admin exists. Compared case-insensitively.
	BootstrapAdminEmail string `mapstructure:"BOOTSTRAP_ADMIN_EMAIL"`

	// StepUpChallengeTTL is how long a pending step-up challenge stays valid (e.g. "10m").
	StepUpChallengeTTL string `mapstructure:"STEPUP_CHALLENGE_TTL"`
	// StepUpMaxAttempts is the number of wrong codes or answers after which the challenge is destroyed.
	StepUpMaxAttempts int `mapstructure:"STEPUP_MAX_ATTEMPTS"`
	// StepUpLockoutThreshold is the number of wrong codes or answers, across all of an
	// account's challenges, that locks the account for StepUpLockoutWindow.
	StepUpLockoutThreshold int    `mapstructure:"STEPUP_LOCKOUT_THRESHOLD"`
	StepUpLockoutWindow    string `mapstructure:"STEPUP_LOCKOUT_WINDOW"`
	// StepUpPolicyFile optionally points at a Rego module that tightens step-up requirements.
	StepUpPolicyFile string `mapstructure:"STEPUP_POLICY_FILE"`
	// DeviceTrustTTLDays bounds how long a verified device stays verified; 0 means until revoked.
	DeviceTrustTTLDays int `mapstructure:"DEVICE_TRUST_TTL_DAYS"`

	// SMSLocalAPIKey is the API key for SMS Local (phone factor OTP).
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender  string `mapstructure:"SMS_LOCAL_SENDER"`
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	// OTPReturnToClient when true enables dev OTP mode: no SMS, OTP stored for GET /dev/otp. Must not be true in production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// SMTPAddr is host:port of the outgoing mail relay; empty logs mail instead of sending it.
	SMTPAddr     string `mapstructure:"SMTP_ADDR"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	// OTLPEndpoint is the OpenTelemetry collector gRPC endpoint; empty disables OTel export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for auth events (default memodams-auth-events).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HEALTH_GRPC_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "memodams-auth")
	v.SetDefault("JWT_AUDIENCE", "memodams-app")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("BOOTSTRAP_ADMIN_EMAIL", "")
	v.SetDefault("STEPUP_CHALLENGE_TTL", "10m")
	v.SetDefault("STEPUP_MAX_ATTEMPTS", 5)
	v.SetDefault("STEPUP_LOCKOUT_THRESHOLD", 10)
	v.SetDefault("STEPUP_LOCKOUT_WINDOW", "15m")
	v.SetDefault("STEPUP_POLICY_FILE", "")
	v.SetDefault("DEVICE_TRUST_TTL_DAYS", 0)
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://app.smslocal.in/api/smsapi")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("SMTP_ADDR", "")
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@memodams.local")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "memodams-auth-events")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "memodams-telemetry-worker")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.StepUpMaxAttempts < 1 {
		return nil, errors.New("config: STEPUP_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.StepUpLockoutThreshold < cfg.StepUpMaxAttempts {
		return nil, errors.New("config: STEPUP_LOCKOUT_THRESHOLD must not be below STEPUP_MAX_ATTEMPTS")
	}
	if cfg.DeviceTrustTTLDays < 0 {
		return nil, errors.New("config: DEVICE_TRUST_TTL_DAYS must not be negative")
	}
	cfg.BootstrapAdminEmail = strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDurationOr(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDurationOr(c.JWTRefreshTTL, 168*time.Hour)
}

// ChallengeTTL parses StepUpChallengeTTL. Returns 10m if unset or invalid.
func (c *Config) ChallengeTTL() time.Duration {
	return parseDurationOr(c.StepUpChallengeTTL, 10*time.Minute)
}

// LockoutWindow parses StepUpLockoutWindow. Returns 15m if unset or invalid.
func (c *Config) LockoutWindow() time.Duration {
	return parseDurationOr(c.StepUpLockoutWindow, 15*time.Minute)
}

// DeviceTrustTTL returns the device trust lifetime, or 0 when verified devices never expire.
func (c *Config) DeviceTrustTTL() time.Duration {
	return time.Duration(c.DeviceTrustTTLDays) * 24 * time.Hour
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event streaming is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
