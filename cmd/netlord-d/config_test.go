package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NETLORD_DB_PATH", "NETLORD_RULES_PATH", "NETLORD_ADDR", "NETLORD_PORT",
		"NETLORD_RETAIN", "NETLORD_VALIDATE_TIMEOUT", "NETLORD_LEASE_TTL",
		"NETLORD_REDIS_ADDR", "NETLORD_API_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != defaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, defaultAddr)
	}
	if cfg.Retain != defaultRetain {
		t.Errorf("Retain = %d, want %d", cfg.Retain, defaultRetain)
	}
	if cfg.ValidateTimeout != defaultValidateTimeout {
		t.Errorf("ValidateTimeout = %v, want %v", cfg.ValidateTimeout, defaultValidateTimeout)
	}
	if cfg.LeaseTTL != defaultLeaseTTL {
		t.Errorf("LeaseTTL = %v, want %v", cfg.LeaseTTL, defaultLeaseTTL)
	}
	if filepath.Base(cfg.DBPath) != "netlord.db" {
		t.Errorf("DBPath = %q, want netlord.db default", cfg.DBPath)
	}
	if cfg.RedisAddr != "" || cfg.AuthToken != "" {
		t.Errorf("expected empty redis/auth defaults, got %q %q", cfg.RedisAddr, cfg.AuthToken)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETLORD_DB_PATH", "/tmp/test.db")
	t.Setenv("NETLORD_PORT", "9999")
	t.Setenv("NETLORD_RETAIN", "8")
	t.Setenv("NETLORD_VALIDATE_TIMEOUT", "2s")
	t.Setenv("NETLORD_LEASE_TTL", "30s")
	t.Setenv("NETLORD_REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("NETLORD_API_TOKEN", "secret")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("Addr = %q, want 127.0.0.1:9999", cfg.Addr)
	}
	if cfg.Retain != 8 {
		t.Errorf("Retain = %d, want 8", cfg.Retain)
	}
	if cfg.ValidateTimeout != 2*time.Second {
		t.Errorf("ValidateTimeout = %v", cfg.ValidateTimeout)
	}
	if cfg.LeaseTTL != 30*time.Second {
		t.Errorf("LeaseTTL = %v", cfg.LeaseTTL)
	}
	if cfg.RedisAddr != "127.0.0.1:6379" || cfg.AuthToken != "secret" {
		t.Errorf("redis/auth = %q %q", cfg.RedisAddr, cfg.AuthToken)
	}
}

func TestLoadConfigAddrEnvPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETLORD_ADDR", "0.0.0.0:8080")
	t.Setenv("NETLORD_PORT", "9999")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8080" {
		t.Errorf("Addr = %q, NETLORD_ADDR should win over NETLORD_PORT", cfg.Addr)
	}
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETLORD_DB_PATH", "/tmp/env.db")
	t.Setenv("NETLORD_RETAIN", "8")

	cfg, err := LoadConfig([]string{
		"-db", "/tmp/flag.db",
		"-retain", "16",
		"-addr", "127.0.0.1:7070",
		"-lease-ttl", "45s",
	})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/tmp/flag.db" {
		t.Errorf("DBPath = %q, flag should win", cfg.DBPath)
	}
	if cfg.Retain != 16 {
		t.Errorf("Retain = %d, want 16", cfg.Retain)
	}
	if cfg.Addr != "127.0.0.1:7070" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.LeaseTTL != 45*time.Second {
		t.Errorf("LeaseTTL = %v", cfg.LeaseTTL)
	}
}

func TestLoadConfigRelativePathsResolved(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig([]string{"-db", "data/netlord.db"})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !filepath.IsAbs(cfg.DBPath) {
		t.Errorf("DBPath = %q, want absolute", cfg.DBPath)
	}
	if !strings.HasSuffix(cfg.DBPath, filepath.Join("data", "netlord.db")) {
		t.Errorf("DBPath = %q, want data/netlord.db suffix", cfg.DBPath)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"bad retain env", map[string]string{"NETLORD_RETAIN": "zero"}, nil},
		{"negative retain env", map[string]string{"NETLORD_RETAIN": "-1"}, nil},
		{"negative retain flag", nil, []string{"-retain", "-1"}},
		{"bad timeout env", map[string]string{"NETLORD_VALIDATE_TIMEOUT": "soon"}, nil},
		{"zero timeout flag", nil, []string{"-validate-timeout", "0s"}},
		{"bad lease ttl env", map[string]string{"NETLORD_LEASE_TTL": "forever"}, nil},
		{"zero lease ttl flag", nil, []string{"-lease-ttl", "0s"}},
		{"empty addr flag", nil, []string{"-addr", "  "}},
		{"unknown flag", nil, []string{"-bogus"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			if _, err := LoadConfig(tc.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
