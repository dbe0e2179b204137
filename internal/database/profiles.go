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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"go.uber.org/zap"
)

func (s *Service) GetProfile(ctx context.Context, userId string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, s.q(queryGetProfile), userId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get profile: %w", err)
	}
	return &profile, nil
}

func (s *Service) CreateProfile(ctx context.Context, userId string, credits int64) (*models.Profile, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if credits < 0 {
		return nil, fmt.Errorf("initial credits cannot be negative, got %d", credits)
	}

	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, s.q(queryInsertProfile), userId, credits, false, time.Now().UTC())
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("profile %s already exists: %w", userId, store.ErrDuplicateTransaction)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to create profile: %w", err)
	}

	zap.L().Info("Profile created", zap.String("user_id", userId), zap.Int64("credits", credits))
	return &profile, nil
}

func (s *Service) SetDataSharing(ctx context.Context, userId string, optIn bool) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, s.q(queryUpdateDataSharing), optIn, time.Now().UTC(), userId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to update data sharing: %w", err)
	}
	return &profile, nil
}
