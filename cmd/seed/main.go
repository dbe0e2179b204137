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
	"strings"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/common"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/config"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func validateContest(title string, first, additional, votes int64) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("contest title cannot be empty")
	}
	if first < 0 || additional < 0 {
		return fmt.Errorf("submission prices cannot be negative")
	}
	if votes < 0 {
		return fmt.Errorf("votes per token cannot be negative")
	}
	return nil
}

// ensureProfile creates the profile, treating an existing one as success.
func ensureProfile(ctx context.Context, st store.Store, userId string, credits int64) (*models.Profile, bool, error) {
	profile, err := st.CreateProfile(ctx, userId, credits)
	if errors.Is(err, store.ErrDuplicateTransaction) {
		existing, getErr := st.GetProfile(ctx, userId)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

func main() {
	ctx := context.Background()

	userFlag := flag.String("user", "", "Profile id to create (default: random uuid)")
	creditsFlag := flag.Int64("credits", 100, "Starting credits for the profile")
	titleFlag := flag.String("contest", "Demo Action Contest", "Title of the contest to open (empty to skip)")
	firstFlag := flag.Int64("first-price", 1000, "First submission price in minor units")
	additionalFlag := flag.Int64("additional-price", 500, "Additional submission price in minor units")
	votesFlag := flag.Int64("votes", 3, "Votes granted per submission token")
	currencyFlag := flag.String("currency", "usd", "Contest currency")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger, _ := common.InitializeLogger("")
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	if *creditsFlag < 0 {
		zap.L().Fatal("Starting credits cannot be negative", zap.Int64("credits", *creditsFlag))
	}
	if *titleFlag != "" {
		if err := validateContest(*titleFlag, *firstFlag, *additionalFlag, *votesFlag); err != nil {
			zap.L().Fatal("Invalid contest", zap.Error(err))
		}
	}

	st, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	userId := *userFlag
	if userId == "" {
		userId = uuid.New().String()
	}

	profile, created, err := ensureProfile(ctx, st, userId, *creditsFlag)
	if err != nil {
		zap.L().Fatal("Failed to create profile", zap.String("user_id", userId), zap.Error(err))
	}

	report := common.NewReport(os.Stdout)
	report.Header("PROFILE")
	report.Field("ID", profile.Id)
	report.Field("Credits", profile.Credits)
	if !created {
		report.Field("Status", "already existed, credits unchanged")
	}
	report.Rule()

	if *titleFlag == "" {
		return
	}

	contest, err := st.CreateContest(ctx, models.Contest{
		Title:                     *titleFlag,
		Status:                    models.ContestStatusActive,
		FirstSubmissionPrice:      *firstFlag,
		AdditionalSubmissionPrice: *additionalFlag,
		VotesPerToken:             *votesFlag,
		Currency:                  strings.ToLower(*currencyFlag),
	})
	if err != nil {
		zap.L().Fatal("Failed to create contest", zap.Error(err))
	}

	report.Header("CONTEST")
	report.Field("ID", contest.Id)
	report.Field("Title", contest.Title)
	report.Field("First submission", models.FormatMinorUnits(contest.FirstSubmissionPrice, contest.Currency))
	report.Field("Additional", models.FormatMinorUnits(contest.AdditionalSubmissionPrice, contest.Currency))
	report.Field("Votes per token", contest.VotesPerToken)
	report.Rule()

	zap.L().Info("Seed completed", zap.String("user_id", profile.Id), zap.String("contest_id", contest.Id))
}
