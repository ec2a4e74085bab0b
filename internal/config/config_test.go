package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("unexpected default driver: %q", cfg.Database.Driver)
	}
	if cfg.API.EventsBuffer != 1000 {
		t.Fatalf("unexpected events buffer: %d", cfg.API.EventsBuffer)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr: %s", got)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FG_SERVER_PORT", "9090")
	t.Setenv("FG_DB_DSN", "postgres://localhost/familygrove")
	t.Setenv("FG_RATE_LIMIT_RPS", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port override ignored: %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "postgres://localhost/familygrove" {
		t.Fatalf("dsn override ignored: %q", cfg.Database.DSN)
	}
	if cfg.API.RateLimitPerSecond != 25 {
		t.Fatalf("rate limit override ignored: %d", cfg.API.RateLimitPerSecond)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("FG_SERVER_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Fatalf("expected port validation error")
	}
}
