package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.HealthGRPCAddr != ":8081" {
		t.Errorf("HealthGRPCAddr = %q, want %q", cfg.HealthGRPCAddr, ":8081")
	}
	if cfg.JWTIssuer != "memodams-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "memodams-auth")
	}
	if cfg.JWTAudience != "memodams-app" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "memodams-app")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.StepUpMaxAttempts != 5 {
		t.Errorf("StepUpMaxAttempts = %d, want 5", cfg.StepUpMaxAttempts)
	}
	if cfg.ChallengeTTL() != 10*time.Minute {
		t.Errorf("ChallengeTTL = %v, want 10m", cfg.ChallengeTTL())
	}
	if cfg.DeviceTrustTTL() != 0 {
		t.Errorf("DeviceTrustTTL = %v, want 0 (never expires)", cfg.DeviceTrustTTL())
	}
	if cfg.BootstrapAdminEmail != "" {
		t.Errorf("BootstrapAdminEmail = %q, want empty", cfg.BootstrapAdminEmail)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.TelemetryKafkaTopic != "memodams-auth-events" {
		t.Errorf("TelemetryKafkaTopic = %q", cfg.TelemetryKafkaTopic)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "10")
	os.Setenv("STEPUP_MAX_ATTEMPTS", "3")
	os.Setenv("DEVICE_TRUST_TTL_DAYS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.StepUpMaxAttempts != 3 {
		t.Errorf("StepUpMaxAttempts = %d, want 3", cfg.StepUpMaxAttempts)
	}
	if cfg.StepUpLockoutThreshold != 10 || cfg.LockoutWindow() != 15*time.Minute {
		t.Errorf("lockout = %d / %v, want 10 / 15m", cfg.StepUpLockoutThreshold, cfg.LockoutWindow())
	}
	if cfg.DeviceTrustTTL() != 30*24*time.Hour {
		t.Errorf("DeviceTrustTTL = %v, want 720h", cfg.DeviceTrustTTL())
	}
}

func TestLoad_BootstrapEmailNormalized(t *testing.T) {
	os.Clearenv()
	os.Setenv("BOOTSTRAP_ADMIN_EMAIL", "  Owner@Example.COM ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BootstrapAdminEmail != "owner@example.com" {
		t.Errorf("BootstrapAdminEmail = %q, want %q", cfg.BootstrapAdminEmail, "owner@example.com")
	}
}

func TestLoad_Validation(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
		err  bool
	}{
		{"bcrypt min", map[string]string{"BCRYPT_COST": "4"}, false},
		{"bcrypt max", map[string]string{"BCRYPT_COST": "31"}, false},
		{"bcrypt too low", map[string]string{"BCRYPT_COST": "3"}, true},
		{"bcrypt too high", map[string]string{"BCRYPT_COST": "32"}, true},
		{"zero attempts", map[string]string{"STEPUP_MAX_ATTEMPTS": "0"}, true},
		{"lockout below attempts", map[string]string{"STEPUP_MAX_ATTEMPTS": "5", "STEPUP_LOCKOUT_THRESHOLD": "4"}, true},
		{"lockout equal attempts", map[string]string{"STEPUP_MAX_ATTEMPTS": "5", "STEPUP_LOCKOUT_THRESHOLD": "5"}, false},
		{"negative trust ttl", map[string]string{"DEVICE_TRUST_TTL_DAYS": "-1"}, true},
		{"dev otp in production", map[string]string{"OTP_RETURN_TO_CLIENT": "true", "APP_ENV": "production"}, true},
		{"dev otp in development", map[string]string{"OTP_RETURN_TO_CLIENT": "true", "APP_ENV": "development"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				if cfg != nil {
					t.Error("Load should return nil config on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestDurations_FallBackOnInvalid(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "invalid", JWTRefreshTTL: "-1h", StepUpChallengeTTL: "0"}
	if got := cfg.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", got)
	}
	if got := cfg.RefreshTTL(); got != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", got)
	}
	if got := cfg.ChallengeTTL(); got != 10*time.Minute {
		t.Errorf("ChallengeTTL = %v, want 10m", got)
	}

	cfg = &Config{JWTAccessTTL: "30m", StepUpChallengeTTL: "5m"}
	if got := cfg.AccessTTL(); got != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", got)
	}
	if got := cfg.ChallengeTTL(); got != 5*time.Minute {
		t.Errorf("ChallengeTTL = %v, want 5m", got)
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	cfg := &Config{TelemetryKafkaBrokers: " a:9092, ,b:9092 "}
	got := cfg.TelemetryKafkaBrokersList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("TelemetryKafkaBrokersList = %v", got)
	}
	var nilCfg *Config
	if nilCfg.TelemetryKafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}
