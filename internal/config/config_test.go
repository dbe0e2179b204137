package config

import (
	"testing"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("IDEMPOTENCY_TTL", "")
	t.Setenv("AVATAR_API_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Backend != models.BackendSQLite {
		t.Errorf("Expected sqlite backend, got %q", cfg.Database.Backend)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Errorf("Expected 24h idempotency TTL, got %v", cfg.Idempotency.TTL)
	}
	if cfg.Avatar.Name != "avatar" || cfg.Avatar.BaseURL != "https://api.heygen.com" {
		t.Errorf("Unexpected avatar provider config: %+v", cfg.Avatar)
	}
	if cfg.Speech.Name != "speech" || cfg.Speech.MaxChars != 5000 {
		t.Errorf("Unexpected speech provider config: %+v", cfg.Speech)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("WORKFLOW_API_URL", "https://gpu.example.com/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("AUTH_REQUIRED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Backend != models.BackendPostgres {
		t.Errorf("Expected postgres backend, got %q", cfg.Database.Backend)
	}
	if cfg.Workflow.BaseURL != "https://gpu.example.com" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.Workflow.BaseURL)
	}
	if len(cfg.Server.CORSAllowedOrigins) != 2 {
		t.Errorf("Expected 2 origins, got %v", cfg.Server.CORSAllowedOrigins)
	}
	if cfg.Workflow.Timeout != 5*time.Second || cfg.Speech.Timeout != 5*time.Second {
		t.Errorf("Provider timeout not applied: %v %v", cfg.Workflow.Timeout, cfg.Speech.Timeout)
	}
	if !cfg.Auth.Required {
		t.Error("Expected auth to be required")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"duration", "SERVER_READ_TIMEOUT", "soon"},
		{"backend", "STORE_BACKEND", "mongo"},
		{"rate limit", "PROVIDER_RATE_LIMIT", "fast"},
		{"integer", "DB_MAX_OPEN_CONNS", "many"},
		{"negative breaker", "PROVIDER_BREAKER_FAILURES", "-1"},
		{"zero retries", "SUPABASE_MAX_RETRIES", "0"},
		{"zero batch", "JOBS_SWEEP_BATCH_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("Expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestLoadBreakerFailures(t *testing.T) {
	t.Setenv("PROVIDER_BREAKER_FAILURES", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Avatar.BreakerFailures != 3 || cfg.Workflow.BreakerFailures != 3 {
		t.Errorf("Expected 3 breaker failures, got %d %d", cfg.Avatar.BreakerFailures, cfg.Workflow.BreakerFailures)
	}
}

func TestGetEnvListFallsBackWhenBlank(t *testing.T) {
	t.Setenv("TEST_LIST", " , ")
	got := getEnvList("TEST_LIST", []string{"*"})
	if len(got) != 1 || got[0] != "*" {
		t.Errorf("Expected default list, got %v", got)
	}
}
