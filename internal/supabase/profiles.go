package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"go.uber.org/zap"
)

const tableProfiles = "profiles"

func (s *Service) GetProfile(ctx context.Context, userId string) (*models.Profile, error) {
	var rows []models.Profile
	err := s.selectRows(ctx, tableProfiles, url.Values{
		"select": {"id,credits,data_sharing_opt_in,updated_at"},
		"id":     {eq(userId)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("unable to get profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile %s: %w", userId, store.ErrNotFound)
	}
	return &rows[0], nil
}

func (s *Service) CreateProfile(ctx context.Context, userId string, credits int64) (*models.Profile, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if credits < 0 {
		return nil, fmt.Errorf("initial credits cannot be negative, got %d", credits)
	}

	var rows []models.Profile
	err := s.mutate(ctx, http.MethodPost, tableProfiles, nil, models.Profile{
		Id:        userId,
		Credits:   credits,
		UpdatedAt: time.Now().UTC(),
	}, &rows)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("profile %s already exists: %w", userId, store.ErrDuplicateTransaction)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to create profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("unable to create profile: empty response")
	}
	zap.L().Info("Profile created", zap.String("user_id", userId), zap.Int64("credits", credits))
	return &rows[0], nil
}

func (s *Service) SetDataSharing(ctx context.Context, userId string, optIn bool) (*models.Profile, error) {
	var rows []models.Profile
	err := s.mutate(ctx, http.MethodPatch, tableProfiles, url.Values{"id": {eq(userId)}}, map[string]any{
		"data_sharing_opt_in": optIn,
		"updated_at":          timestamp(time.Now()),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("unable to update data sharing: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile %s: %w", userId, store.ErrNotFound)
	}
	return &rows[0], nil
}

// swapCredits applies delta to the balance if it still equals observed.
// It returns ok=false when another writer changed the row first.
func (s *Service) swapCredits(ctx context.Context, userId string, observed, delta int64) (int64, bool, error) {
	var rows []models.Profile
	err := s.mutate(ctx, http.MethodPatch, tableProfiles, url.Values{
		"id":      {eq(userId)},
		"credits": {eq(strconv.FormatInt(observed, 10))},
	}, map[string]any{
		"credits":    observed + delta,
		"updated_at": timestamp(time.Now()),
	}, &rows)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Credits, true, nil
}

// adjustCredits retries swapCredits until it lands. A debit that would go negative
// returns store.ErrInsufficientCredits without writing.
func (s *Service) adjustCredits(ctx context.Context, userId string, delta int64) (int64, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		profile, err := s.GetProfile(ctx, userId)
		if err != nil {
			return 0, err
		}
		if profile.Credits+delta < 0 {
			return 0, store.ErrInsufficientCredits
		}

		balance, ok, err := s.swapCredits(ctx, userId, profile.Credits, delta)
		if err != nil {
			return 0, fmt.Errorf("unable to update credits: %w", err)
		}
		if ok {
			return balance, nil
		}

		zap.L().Debug("Credit swap lost race, retrying",
			zap.String("user_id", userId),
			zap.Int64("observed", profile.Credits),
			zap.Int("attempt", attempt))

		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("credit update for %s: %w", userId, store.ErrConcurrentModification)
}
