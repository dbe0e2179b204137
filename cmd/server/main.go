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

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/api"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/common"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/config"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/jobs"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger, _ := common.InitializeLogger("")
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting studio API", zap.String("addr", cfg.Server.Addr))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	server := api.NewServer(api.Deps{
		Server:         cfg.Server,
		Catalog:        services.Catalog,
		Store:          services.Store,
		Credits:        services.Credits,
		Contests:       services.Contests,
		Avatar:         services.Avatar,
		Speech:         services.Speech,
		Workflow:       services.Workflow,
		Payments:       services.Payments,
		Webhooks:       services.Webhooks,
		Idempotency:    services.Idempotency,
		IdempotencyTTL: cfg.Idempotency.TTL,
		Auth:           services.Auth,
		Metrics:        services.Metrics,
	})

	scheduler := jobs.NewScheduler(services.Metrics.ObserveJob)
	sweeper := jobs.NewReservationSweeper(services.Credits, cfg.Credits.ReservationTTL, cfg.Credits.SweepBatchSize)
	if err := scheduler.Add(cfg.Credits.SweepSchedule, sweeper); err != nil {
		zap.L().Fatal("Failed to schedule reservation sweeper", zap.Error(err))
	}
	scheduler.Start()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	zap.L().Info("Studio API running", zap.String("addr", cfg.Server.Addr))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, draining requests...")
	case err := <-serveErr:
		if err != nil {
			zap.L().Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	}
	cancel()
	scheduler.Stop(shutdownCtx)

	zap.L().Info("Studio API stopped")
}
