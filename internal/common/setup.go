package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/auth"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/avatar"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/contests"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/credits"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/database"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/formance"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/idempotency"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/metrics"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/payments"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/speech"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/supabase"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/workflow"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Catalog     *models.Catalog
	Store       store.Store
	Metrics     *metrics.Metrics
	Avatar      *avatar.Service
	Speech      *speech.Service
	Workflow    *workflow.Service
	Payments    *payments.Service
	Credits     *credits.Service
	Contests    *contests.Service
	Webhooks    *payments.Dispatcher
	Idempotency idempotency.Store
	Auth        *auth.Verifier

	redis *idempotency.RedisStore
}

func InitializeLogger(level string) (*zap.Logger, func()) {
	zapCfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			log.Printf("Invalid LOG_LEVEL %q, using info: %v\n", level, err)
		} else {
			zapCfg.Level = lvl
		}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeStore opens the backend selected by STORE_BACKEND.
// Useful on its own for operator commands that never call a provider.
func InitializeStore(ctx context.Context, cfg *models.Config) (store.Store, error) {
	switch cfg.Database.Backend {
	case models.BackendSupabase:
		zap.L().Info("Using Supabase store", zap.String("url", cfg.Supabase.URL))
		svc, err := supabase.NewService(cfg.Supabase)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case models.BackendSQLite, models.BackendPostgres, "":
		zap.L().Info("Using SQL store", zap.String("backend", cfg.Database.Backend))
		svc, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Database.Backend)
	}
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	catalog, err := LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Catalog loaded",
		zap.Int64("video_cost", catalog.Costs.Video),
		zap.Int64("workflow_cost", catalog.Costs.Workflow),
		zap.Int64("speech_cost", catalog.Costs.Speech),
		zap.Int("credit_packs", len(catalog.CreditPacks)))

	st, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svcs := &Services{Catalog: catalog, Store: st, Metrics: metrics.New()}
	observe := provider.WithObserver(svcs.Metrics.ObserveProvider)

	avatarClient, err := provider.New(cfg.Avatar, observe, provider.WithAuth(provider.HeaderAuth("X-Api-Key")))
	if err != nil {
		svcs.Close()
		return nil, err
	}
	speechClient, err := provider.New(cfg.Speech.ProviderConfig, observe, provider.WithAuth(provider.HeaderAuth("xi-api-key")))
	if err != nil {
		svcs.Close()
		return nil, err
	}
	workflowClient, err := provider.New(cfg.Workflow, observe)
	if err != nil {
		svcs.Close()
		return nil, err
	}
	svcs.Avatar = avatar.NewService(avatarClient, catalog)
	svcs.Speech = speech.NewService(speechClient, cfg.Speech, catalog)
	svcs.Workflow = workflow.NewService(workflowClient)
	for _, p := range []interface {
		Name() string
		Configured() bool
	}{svcs.Avatar, svcs.Speech, svcs.Workflow} {
		if !p.Configured() {
			zap.L().Warn("Provider credential missing, its routes will return 500", zap.String("provider", p.Name()))
		}
	}

	creditOpts := []credits.Option{credits.WithObserver(svcs.Metrics.ObserveCredit)}
	if cfg.Formance.Enabled() {
		journal, err := formance.NewJournal(ctx, cfg.Formance)
		if err != nil {
			// the journal is a mirror; the store stays authoritative
			zap.L().Error("Credit journal unavailable, continuing without it", zap.Error(err))
		} else {
			creditOpts = append(creditOpts, credits.WithJournal(journal))
		}
	}
	svcs.Credits = credits.NewService(st, creditOpts...)

	svcs.Payments = payments.NewService(cfg.Payments)
	if !svcs.Payments.Configured() {
		zap.L().Warn("STRIPE_SECRET_KEY missing, payment routes will return 500")
	}
	svcs.Contests = contests.NewService(st, svcs.Payments)
	svcs.Webhooks = payments.NewDispatcher(svcs.Contests, svcs.Credits)

	if cfg.Idempotency.RedisURL != "" {
		rs, err := idempotency.NewRedisStore(ctx, cfg.Idempotency.RedisURL)
		if err != nil {
			svcs.Close()
			return nil, err
		}
		svcs.redis = rs
		svcs.Idempotency = rs
		zap.L().Info("Idempotency keys stored in Redis")
	} else {
		svcs.Idempotency = idempotency.NewMemoryStore()
		zap.L().Info("Idempotency keys stored in memory")
	}

	svcs.Auth = auth.NewVerifier(cfg.Auth)
	if !svcs.Auth.Enabled() {
		zap.L().Warn("SUPABASE_JWT_SECRET missing, bearer tokens are not verified")
	}

	return svcs, nil
}

func (cs *Services) Close() {
	if cs.redis != nil {
		if err := cs.redis.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
