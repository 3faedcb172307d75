package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.AccessTTL != 30*time.Minute {
		t.Fatalf("expected 30m access ttl, got %s", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("expected 7d refresh ttl, got %s", cfg.Auth.RefreshTTL)
	}
	if cfg.Auth.ResetTTL != time.Hour {
		t.Fatalf("expected 1h reset ttl, got %s", cfg.Auth.ResetTTL)
	}
	if len(cfg.Webhook.AllowedSources) != 7 {
		t.Fatalf("expected 7 default webhook sources, got %d", len(cfg.Webhook.AllowedSources))
	}
	if cfg.HTTP.Addr() != "0.0.0.0:8431" {
		t.Fatalf("unexpected addr %q", cfg.HTTP.Addr())
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("DATABASE_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestLoadSnowflakeNode(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("SNOWFLAKE_NODE", "17")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SnowflakeNode != 17 {
		t.Fatalf("expected node 17, got %d", cfg.SnowflakeNode)
	}

	t.Setenv("SNOWFLAKE_NODE", "1024")
	if _, err := Load(); err == nil {
		t.Fatalf("expected out of range node to be rejected")
	}
}
