package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	tableContests = "contests"
	tableTokens   = "submission_tokens"

	contestColumns = "id,title,status,first_submission_price,additional_submission_price,votes_per_token,currency,created_at"
	tokenColumns   = "id,contest_id,user_id,payment_intent_id,votes_remaining,created_at"
)

// contestRow decodes price columns that PostgREST may render as numeric
// ("1000.00") or as plain integers.
type contestRow struct {
	Id                        string          `json:"id"`
	Title                     string          `json:"title"`
	Status                    string          `json:"status"`
	FirstSubmissionPrice      decimal.Decimal `json:"first_submission_price"`
	AdditionalSubmissionPrice decimal.Decimal `json:"additional_submission_price"`
	VotesPerToken             int64           `json:"votes_per_token"`
	Currency                  string          `json:"currency"`
	CreatedAt                 time.Time       `json:"created_at"`
}

func (r contestRow) toModel() models.Contest {
	return models.Contest{
		Id:                        r.Id,
		Title:                     r.Title,
		Status:                    r.Status,
		FirstSubmissionPrice:      r.FirstSubmissionPrice.Round(0).IntPart(),
		AdditionalSubmissionPrice: r.AdditionalSubmissionPrice.Round(0).IntPart(),
		VotesPerToken:             r.VotesPerToken,
		Currency:                  r.Currency,
		CreatedAt:                 r.CreatedAt,
	}
}

func (s *Service) ListActiveContests(ctx context.Context) ([]models.Contest, error) {
	var rows []contestRow
	err := s.selectRows(ctx, tableContests, url.Values{
		"select": {contestColumns},
		"status": {eq(models.ContestStatusActive)},
		"order":  {"created_at.desc"},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("unable to list contests: %w", err)
	}
	contests := make([]models.Contest, 0, len(rows))
	for _, r := range rows {
		contests = append(contests, r.toModel())
	}
	return contests, nil
}

func (s *Service) GetContest(ctx context.Context, contestId string) (*models.Contest, error) {
	var rows []contestRow
	err := s.selectRows(ctx, tableContests, url.Values{
		"select": {contestColumns},
		"id":     {eq(contestId)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("unable to get contest: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("contest %s: %w", contestId, store.ErrNotFound)
	}
	contest := rows[0].toModel()
	return &contest, nil
}

func (s *Service) CreateContest(ctx context.Context, contest models.Contest) (*models.Contest, error) {
	if contest.Title == "" {
		return nil, fmt.Errorf("contest title cannot be empty")
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

	if err := s.mutate(ctx, http.MethodPost, tableContests, nil, contest, nil); err != nil {
		return nil, fmt.Errorf("unable to create contest: %w", err)
	}
	zap.L().Info("Contest created", zap.String("contest_id", contest.Id), zap.String("title", contest.Title))
	return &contest, nil
}

func (s *Service) CountSubmissionTokens(ctx context.Context, contestId, userId string) (int64, error) {
	n, err := s.count(ctx, tableTokens, url.Values{
		"contest_id": {eq(contestId)},
		"user_id":    {eq(userId)},
	})
	if err != nil {
		return 0, fmt.Errorf("unable to count submission tokens: %w", err)
	}
	return n, nil
}

func (s *Service) ListSubmissionTokens(ctx context.Context, contestId, userId string) ([]models.SubmissionToken, error) {
	tokens := []models.SubmissionToken{}
	err := s.selectRows(ctx, tableTokens, url.Values{
		"select":     {tokenColumns},
		"contest_id": {eq(contestId)},
		"user_id":    {eq(userId)},
		"order":      {"created_at.asc"},
	}, &tokens)
	if err != nil {
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
	err := s.mutate(ctx, http.MethodPost, tableTokens, nil, token, nil)
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
