package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) ListActiveContests(ctx context.Context) ([]models.Contest, error) {
	contests := []models.Contest{}
	if err := s.db.SelectContext(ctx, &contests, s.q(queryListActiveContests)); err != nil {
		return nil, fmt.Errorf("unable to list contests: %w", err)
	}
	return contests, nil
}

func (s *Service) GetContest(ctx context.Context, contestId string) (*models.Contest, error) {
	var contest models.Contest
	err := s.db.GetContext(ctx, &contest, s.q(queryGetContest), contestId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contest %s: %w", contestId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get contest: %w", err)
	}
	return &contest, nil
}

func (s *Service) CreateContest(ctx context.Context, contest models.Contest) (*models.Contest, error) {
	if contest.Title == "" {
		return nil, fmt.Errorf("contest title cannot be empty")
	}
	if contest.FirstSubmissionPrice < 0 || contest.AdditionalSubmissionPrice < 0 {
		return nil, fmt.Errorf("contest prices cannot be negative")
	}
	if contest.Id == "" {
		contest.Id = uuid.New().String()
	}
	if contest.Status == "" {
		contest.Status = models.ContestStatusActive
	}
	if contest.Currency == "" {
		contest.Currency = "usd"
	}
	if contest.CreatedAt.IsZero() {
		contest.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.q(queryInsertContest),
		contest.Id, contest.Title, contest.Status, contest.FirstSubmissionPrice,
		contest.AdditionalSubmissionPrice, contest.VotesPerToken, contest.Currency, contest.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("unable to create contest: %w", err)
	}

	zap.L().Info("Contest created",
		zap.String("contest_id", contest.Id),
		zap.String("title", contest.Title),
		zap.Int64("first_submission_price", contest.FirstSubmissionPrice),
		zap.Int64("additional_submission_price", contest.AdditionalSubmissionPrice))

	return &contest, nil
}

func (s *Service) CountSubmissionTokens(ctx context.Context, contestId, userId string) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, s.q(queryCountSubmissionTokens), contestId, userId); err != nil {
		return 0, fmt.Errorf("unable to count submission tokens: %w", err)
	}
	return count, nil
}

func (s *Service) ListSubmissionTokens(ctx context.Context, contestId, userId string) ([]models.SubmissionToken, error) {
	tokens := []models.SubmissionToken{}
	if err := s.db.SelectContext(ctx, &tokens, s.q(queryListSubmissionTokens), contestId, userId); err != nil {
		return nil, fmt.Errorf("unable to list submission tokens: %w", err)
	}
	return tokens, nil
}

func (s *Service) CreateSubmissionToken(ctx context.Context, params store.CreateTokenParams) (*models.SubmissionToken, error) {
	if params.PaymentIntentId == "" {
		return nil, fmt.Errorf("payment intent id cannot be empty")
	}

	token := &models.SubmissionToken{
		Id:              uuid.New().String(),
		ContestId:       params.ContestId,
		UserId:          params.UserId,
		PaymentIntentId: params.PaymentIntentId,
		VotesRemaining:  params.Votes,
		CreatedAt:       time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, s.q(queryInsertSubmissionToken),
		token.Id, token.ContestId, token.UserId, token.PaymentIntentId, token.VotesRemaining, token.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: payment intent %s already fulfilled", store.ErrDuplicateTransaction, params.PaymentIntentId)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to create submission token: %w", err)
	}

	zap.L().Info("Submission token created",
		zap.String("token_id", token.Id),
		zap.String("contest_id", token.ContestId),
		zap.String("user_id", token.UserId),
		zap.String("payment_intent_id", token.PaymentIntentId))

	return token, nil
}
