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
	"flag"
	"fmt"
	"os"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/common"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/config"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/credits"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/formance"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"go.uber.org/zap"
)

func formatReference(ref string) string {
	if ref == "" {
		return "none"
	}
	if len(ref) > 8 {
		return ref[:8] + "..."
	}
	return ref
}

func formatEntry(entry models.CreditHistoryEntry) string {
	return fmt.Sprintf("%-10s: %8d -> %8d (%s, %s)",
		entry.Type,
		entry.Amount,
		entry.BalanceAfter,
		entry.Description,
		entry.CreatedAt.Format("2006-01-02 15:04:05"))
}

func grant(ctx context.Context, svc *credits.Service, userId string, amount int64, reason string) (*models.CreditTransaction, error) {
	tx, err := svc.Grant(ctx, store.GrantParams{
		UserId:          userId,
		Amount:          amount,
		TransactionType: models.CreditTxGrant,
		Description:     reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to grant credits: %w", err)
	}
	return tx, nil
}

// reconcile compares the store balance with the journal mirror.
func reconcile(ctx context.Context, journal *formance.Journal, balance *models.CreditBalance) string {
	mirrored, err := journal.Balance(ctx, balance.UserId)
	if err != nil {
		zap.L().Warn("Failed to read journal balance", zap.String("user_id", balance.UserId), zap.Error(err))
		return "Journal: unavailable"
	}
	if drift := balance.Credits - mirrored; drift != 0 {
		return fmt.Sprintf("Journal: %d (drift %+d)", mirrored, drift)
	}
	return fmt.Sprintf("Journal: %d (in sync)", mirrored)
}

func main() {
	ctx := context.Background()

	userFlag := flag.String("user", "", "Profile id to inspect (required)")
	grantFlag := flag.Int64("grant", 0, "Credits to add before printing (optional)")
	reasonFlag := flag.String("reason", "manual grant", "Description recorded with -grant")
	limitFlag := flag.Int("limit", 20, "Number of history entries to print")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := common.InitializeLogger("")
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	if *userFlag == "" {
		logger.Fatal("The --user flag is required")
	}
	if *grantFlag < 0 {
		logger.Fatal("The --grant flag cannot be negative", zap.Int64("grant", *grantFlag))
	}

	// Store only, no provider or payment credentials needed
	st, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	var opts []credits.Option
	var journal *formance.Journal
	if cfg.Formance.Enabled() {
		journal, err = formance.NewJournal(ctx, cfg.Formance)
		if err != nil {
			logger.Warn("Credit journal unavailable, skipping reconciliation", zap.Error(err))
		} else {
			opts = append(opts, credits.WithJournal(journal))
		}
	}
	svc := credits.NewService(st, opts...)

	if *grantFlag > 0 {
		tx, err := grant(ctx, svc, *userFlag, *grantFlag, *reasonFlag)
		if err != nil {
			logger.Fatal("Grant failed", zap.String("user_id", *userFlag), zap.Error(err))
		}
		logger.Info("Credits granted",
			zap.String("user_id", *userFlag),
			zap.Int64("amount", tx.Amount),
			zap.Int64("balance_after", tx.BalanceAfter),
			zap.String("transaction_id", formatReference(tx.Id)))
	}

	balance, err := svc.Balance(ctx, *userFlag)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Fatal("Profile not found", zap.String("user_id", *userFlag))
		}
		logger.Fatal("Failed to read balance", zap.Error(err))
	}

	history, err := svc.History(ctx, *userFlag, *limitFlag, 0)
	if err != nil {
		logger.Fatal("Failed to read history", zap.Error(err))
	}

	details := []string{
		fmt.Sprintf("Credits: %d", balance.Credits),
		fmt.Sprintf("Entries: %d", len(history)),
	}
	if journal != nil {
		details = append(details, reconcile(ctx, journal, balance))
	}

	items := make([]string, 0, len(history))
	for _, entry := range history {
		items = append(items, formatEntry(entry))
	}

	report := common.NewReport(os.Stdout)
	report.Header("CREDIT REPORT")
	report.Group("Profile: "+balance.UserId, details, items)
	report.Footer(fmt.Sprintf("SUMMARY: %d credits, %d recent transactions", balance.Credits, len(history)))
}
