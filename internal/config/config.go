/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
)

func Load() (*models.Config, error) {
	var (
		readTimeout, writeTimeout, shutdownTimeout, rateLimitWindow time.Duration
		connMaxLifetime, connMaxIdleTime, pingTimeout               time.Duration
		supabaseTimeout, providerTimeout, breakerTimeout            time.Duration
		idempotencyTTL, reservationTTL                              time.Duration
	)
	for key, entry := range map[string]struct {
		target *time.Duration
		def    time.Duration
	}{
		"SERVER_READ_TIMEOUT":      {&readTimeout, 15 * time.Second},
		"SERVER_WRITE_TIMEOUT":     {&writeTimeout, 120 * time.Second},
		"SERVER_SHUTDOWN_TIMEOUT":  {&shutdownTimeout, 30 * time.Second},
		"RATE_LIMIT_WINDOW":        {&rateLimitWindow, time.Minute},
		"DB_CONN_MAX_LIFETIME":     {&connMaxLifetime, 5 * time.Minute},
		"DB_CONN_MAX_IDLE_TIME":    {&connMaxIdleTime, 30 * time.Second},
		"DB_PING_TIMEOUT":          {&pingTimeout, 5 * time.Second},
		"SUPABASE_TIMEOUT":         {&supabaseTimeout, 10 * time.Second},
		"PROVIDER_TIMEOUT":         {&providerTimeout, 60 * time.Second},
		"PROVIDER_BREAKER_TIMEOUT": {&breakerTimeout, 30 * time.Second},
		"IDEMPOTENCY_TTL":          {&idempotencyTTL, 24 * time.Hour},
		"CREDITS_RESERVATION_TTL":  {&reservationTTL, 15 * time.Minute},
	} {
		d, err := getEnvDuration(key, entry.def)
		if err != nil {
			return nil, err
		}
		*entry.target = d
	}

	rateLimit, err := getEnvFloat("PROVIDER_RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(getEnvString("STORE_BACKEND", models.BackendSQLite))
	switch backend {
	case models.BackendSQLite, models.BackendPostgres, models.BackendSupabase:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q", backend)
	}

	var (
		rateLimitRequests, maxOpenConns, maxIdleConns, supabaseRetries int
		speechMaxChars, sweepBatchSize, breakerFailures                int
	)
	for key, entry := range map[string]struct {
		target   *int
		def, min int
	}{
		"RATE_LIMIT_REQUESTS":       {&rateLimitRequests, 120, 1},
		"DB_MAX_OPEN_CONNS":         {&maxOpenConns, 25, 0},
		"DB_MAX_IDLE_CONNS":         {&maxIdleConns, 5, 0},
		"SUPABASE_MAX_RETRIES":      {&supabaseRetries, 5, 1},
		"SPEECH_MAX_CHARS":          {&speechMaxChars, 5000, 1},
		"JOBS_SWEEP_BATCH_SIZE":     {&sweepBatchSize, 100, 1},
		"PROVIDER_BREAKER_FAILURES": {&breakerFailures, 5, 0},
	} {
		n, err := getEnvInt(key, entry.def)
		if err != nil {
			return nil, err
		}
		if n < entry.min {
			return nil, fmt.Errorf("%s must be at least %d, got %d", key, entry.min, n)
		}
		*entry.target = n
	}

	provider := func(name, urlKey, defaultURL, keyKey string) models.ProviderConfig {
		return models.ProviderConfig{
			Name:            name,
			BaseURL:         strings.TrimRight(getEnvString(urlKey, defaultURL), "/"),
			APIKey:          os.Getenv(keyKey),
			Timeout:         providerTimeout,
			RateLimit:       rateLimit,
			BreakerFailures: uint32(breakerFailures),
			BreakerTimeout:  breakerTimeout,
		}
	}

	return &models.Config{
		Server: models.ServerConfig{
			Addr:               getEnvString("SERVER_ADDR", ":8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			ShutdownTimeout:    shutdownTimeout,
			CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRequests:  rateLimitRequests,
			RateLimitWindow:    rateLimitWindow,
		},
		Database: models.DatabaseConfig{
			Backend:         backend,
			Path:            getEnvString("DATABASE_PATH", "studio.db"),
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    maxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Supabase: models.SupabaseConfig{
			URL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
			Timeout:    supabaseTimeout,
			MaxRetries: supabaseRetries,
		},
		Auth: models.AuthConfig{
			JWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),
			Required:  getEnvBool("AUTH_REQUIRED", false),
		},
		Avatar: provider("avatar", "AVATAR_API_URL", "https://api.heygen.com", "AVATAR_API_KEY"),
		Speech: models.SpeechConfig{
			ProviderConfig: provider("speech", "SPEECH_API_URL", "https://api.elevenlabs.io", "SPEECH_API_KEY"),
			Model:          getEnvString("SPEECH_MODEL", "eleven_multilingual_v2"),
			MaxChars:       speechMaxChars,
		},
		Workflow: provider("workflow", "WORKFLOW_API_URL", "https://api.comfydeploy.com", "WORKFLOW_API_KEY"),
		Payments: models.PaymentsConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SiteURL:       strings.TrimRight(getEnvString("SITE_URL", "http://localhost:3000"), "/"),
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "studio-credits"),
		},
		Credits: models.CreditsConfig{
			ReservationTTL: reservationTTL,
			SweepSchedule:  getEnvString("JOBS_SWEEP_SCHEDULE", "@every 1m"),
			SweepBatchSize: sweepBatchSize,
		},
		Idempotency: models.IdempotencyConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			TTL:      idempotencyTTL,
		},
		CatalogFile: getEnvString("CATALOG_FILE", "catalog.yaml"),
		LogLevel:    getEnvString("LOG_LEVEL", "info"),
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return f, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return n, nil
	}
	return defaultValue, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
