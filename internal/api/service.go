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

package api

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/auth"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/avatar"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/contests"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/credits"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/idempotency"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/metrics"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/payments"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/speech"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/workflow"

	"github.com/go-playground/validator/v10"
)

// Deps are the explicitly constructed collaborators the handlers share.
type Deps struct {
	Server         models.ServerConfig
	Catalog        *models.Catalog
	Store          store.Store
	Credits        *credits.Service
	Contests       *contests.Service
	Avatar         *avatar.Service
	Speech         *speech.Service
	Workflow       *workflow.Service
	Payments       *payments.Service
	Webhooks       *payments.Dispatcher
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	Auth           *auth.Verifier
	Metrics        *metrics.Metrics
}

// Server hosts the studio HTTP handlers.
type Server struct {
	Deps
	validate *validator.Validate
}

func NewServer(deps Deps) *Server {
	if deps.Catalog == nil {
		deps.Catalog = &models.Catalog{}
	}
	if deps.Idempotency == nil {
		deps.Idempotency = idempotency.NewMemoryStore()
	}
	if deps.IdempotencyTTL <= 0 {
		deps.IdempotencyTTL = 24 * time.Hour
	}
	if deps.Auth == nil {
		deps.Auth = auth.NewVerifier(models.AuthConfig{})
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// report JSON field names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Server{Deps: deps, validate: v}
}

func (s *Server) HealthCheck(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}
