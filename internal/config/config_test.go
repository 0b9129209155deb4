package config

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "PLATFORM_FEE_BPS")
	unsetEnvWithCleanup(t, "CURRENCY")
	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PlatformFeeBps != 300 {
		t.Fatalf("expected default fee of 300 bps, got %d", cfg.PlatformFeeBps)
	}
	if cfg.Currency != "PHP" {
		t.Fatalf("expected default currency PHP, got %q", cfg.Currency)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.ExpirerIntervalSec != 300 {
		t.Fatalf("expected default expirer interval 300s, got %d", cfg.ExpirerIntervalSec)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9999")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9999" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_FeeBpsBounds(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int64
	}{
		{name: "negative coerces to default", value: "-5", want: 300},
		{name: "above full coerces to cap", value: "20000", want: 10000},
		{name: "valid value kept", value: "250", want: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)

			setEnvWithCleanup(t, "PLATFORM_FEE_BPS", tt.value)

			cfg, err := LoadConfig(t.TempDir())
			if err != nil {
				t.Fatalf("LoadConfig returned error: %v", err)
			}
			if cfg.PlatformFeeBps != tt.want {
				t.Fatalf("expected fee %d bps, got %d", tt.want, cfg.PlatformFeeBps)
			}
		})
	}
}

func TestValidate_ReportsMissingRequiredValues(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for empty config")
	}
	for _, key := range []string{"DATABASE_URL", "PAYMENTS_API_BASE_URL", "PAYMENTS_API_KEY", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in validation error, got %q", key, err.Error())
		}
	}

	cfg = Config{
		DatabaseURL:        "postgres://localhost/billing",
		PaymentsAPIBaseURL: "https://payments.example.com",
		PaymentsAPIKey:     "sk_test",
		JWTSecret:          "secret",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
