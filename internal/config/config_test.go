//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
database:
  url: postgres://localhost/billing
redis:
  url: localhost:6379
auth:
  jwt_secret: secret
gateway:
  webhook_secret: whsec
  sandbox: true
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Payment.Defaults.MaxInstallments != 12 || cfg.Payment.Defaults.PixExpirationMinutes != 30 {
		t.Errorf("unexpected payment defaults %+v", cfg.Payment.Defaults)
	}
	if cfg.Gateway.SignatureTolerance != 5*time.Minute {
		t.Errorf("unexpected signature tolerance %v", cfg.Gateway.SignatureTolerance)
	}
	if cfg.Redis.TTL != time.Hour {
		t.Errorf("unexpected redis ttl %v", cfg.Redis.TTL)
	}
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"missing database":      strings.Replace(minimalYAML, "url: postgres://localhost/billing", "url: \"\"", 1),
		"missing jwt secret":    strings.Replace(minimalYAML, "jwt_secret: secret", "jwt_secret: \"\"", 1),
		"real gateway no key":   strings.Replace(minimalYAML, "sandbox: true", "sandbox: false", 1),
		"discount out of range": minimalYAML + "payment:\n  defaults:\n    pix_discount_percent: 100\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("BILLING_TEST_SECRET", "from-env")
	doc := strings.Replace(minimalYAML, "jwt_secret: secret", "jwt_secret: ${BILLING_TEST_SECRET}", 1)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("expected secret from env, got %q", cfg.Auth.JWTSecret)
	}
	if !cfg.Runtime.Dev {
		t.Error("expected dev runtime flag")
	}
}
