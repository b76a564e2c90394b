package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDriver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.DatabaseDriver)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.HRID.HoldingsPrefix != "ho" || cfg.HRID.InstancesPrefix != "in" || cfg.HRID.ItemsPrefix != "it" {
		t.Fatalf("unexpected hrid prefixes %+v", cfg.HRID)
	}
	if cfg.HRID.StartNumber != 1 {
		t.Fatalf("unexpected hrid start number %d", cfg.HRID.StartNumber)
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	if _, err := Load(NewViper()); err == nil {
		t.Fatalf("expected error for missing signing secret")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("database.driver", "oracle")

	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("INVENTORY_AUTH_SIGNING_SECRET", "from-env")
	t.Setenv("INVENTORY_HRID_HOLDINGS_PREFIX", "hold")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SigningSecret != "from-env" {
		t.Fatalf("expected signing secret from env, got %q", cfg.SigningSecret)
	}
	if cfg.HRID.HoldingsPrefix != "hold" {
		t.Fatalf("expected holdings prefix from env, got %q", cfg.HRID.HoldingsPrefix)
	}
}
