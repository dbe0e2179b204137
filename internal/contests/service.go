package contests

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/payments"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"go.uber.org/zap"
)

// Store is the slice of store.Store that contests need.
type Store interface {
	ListActiveContests(ctx context.Context) ([]models.Contest, error)
	GetContest(ctx context.Context, contestId string) (*models.Contest, error)
	CountSubmissionTokens(ctx context.Context, contestId, userId string) (int64, error)
	ListSubmissionTokens(ctx context.Context, contestId, userId string) ([]models.SubmissionToken, error)
	CreateSubmissionToken(ctx context.Context, params store.CreateTokenParams) (*models.SubmissionToken, error)
}

// PaymentIntents creates the intent a browser confirms to pay for a token.
type PaymentIntents interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntent, error)
}

type Service struct {
	store    Store
	payments PaymentIntents
}

func NewService(st Store, pi PaymentIntents) *Service {
	return &Service{store: st, payments: pi}
}

func (s *Service) ListActive(ctx context.Context) ([]models.Contest, error) {
	return s.store.ListActiveContests(ctx)
}

// Get returns an active contest. Closed contests are reported as not found.
func (s *Service) Get(ctx context.Context, contestId string) (*models.Contest, error) {
	contest, err := s.store.GetContest(ctx, contestId)
	if err != nil {
		return nil, err
	}
	if contest.Status != models.ContestStatusActive {
		return nil, fmt.Errorf("contest %s is %s: %w", contestId, contest.Status, store.ErrNotFound)
	}
	return contest, nil
}

// Price returns what the user's next submission costs and whether it is their first.
func Price(contest *models.Contest, existingTokens int64) (int64, bool) {
	if existingTokens == 0 {
		return contest.FirstSubmissionPrice, true
	}
	return contest.AdditionalSubmissionPrice, false
}

// PurchaseToken prices the user's next submission and opens a payment intent for it.
func (s *Service) PurchaseToken(ctx context.Context, contestId, userId string) (*models.TokenPurchase, error) {
	contest, err := s.Get(ctx, contestId)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountSubmissionTokens(ctx, contestId, userId)
	if err != nil {
		return nil, err
	}
	amount, first := Price(contest, count)

	intent, err := s.payments.CreatePaymentIntent(ctx, amount, contest.Currency, map[string]string{
		payments.MetaPurpose:           payments.PurposeContestToken,
		payments.MetaContestId:         contestId,
		payments.MetaUserId:            userId,
		payments.MetaIsFirstSubmission: strconv.FormatBool(first),
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Contest token purchase started",
		zap.String("contest_id", contestId),
		zap.String("user_id", userId),
		zap.Int64("amount", amount),
		zap.Bool("is_first_submission", first),
		zap.String("payment_intent_id", intent.Id))

	return &models.TokenPurchase{
		ClientSecret:      intent.ClientSecret,
		PaymentIntentId:   intent.Id,
		Amount:            amount,
		AmountDisplay:     models.FormatMinorUnits(amount, contest.Currency),
		Currency:          contest.Currency,
		IsFirstSubmission: first,
	}, nil
}

func (s *Service) TokenSummary(ctx context.Context, contestId, userId string) (*models.TokenSummary, error) {
	if _, err := s.store.GetContest(ctx, contestId); err != nil {
		return nil, err
	}

	tokens, err := s.store.ListSubmissionTokens(ctx, contestId, userId)
	if err != nil {
		return nil, err
	}

	summary := &models.TokenSummary{ContestId: contestId, UserId: userId, Tokens: int64(len(tokens))}
	for _, t := range tokens {
		summary.Votes += t.VotesRemaining
	}
	return summary, nil
}

// FulfillTokenPurchase creates the token paid for by paymentId.
// A second call for the same payment returns the existing token.
func (s *Service) FulfillTokenPurchase(ctx context.Context, contestId, userId, paymentId string) (*models.SubmissionToken, error) {
	contest, err := s.store.GetContest(ctx, contestId)
	if err != nil {
		return nil, err
	}

	token, err := s.store.CreateSubmissionToken(ctx, store.CreateTokenParams{
		ContestId:       contestId,
		UserId:          userId,
		PaymentIntentId: paymentId,
		Votes:           contest.VotesPerToken,
	})
	if errors.Is(err, store.ErrDuplicateTransaction) {
		return s.existingToken(ctx, contestId, userId, paymentId)
	}
	return token, err
}

func (s *Service) existingToken(ctx context.Context, contestId, userId, paymentId string) (*models.SubmissionToken, error) {
	tokens, err := s.store.ListSubmissionTokens(ctx, contestId, userId)
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		if tokens[i].PaymentIntentId == paymentId {
			return &tokens[i], nil
		}
	}
	return nil, fmt.Errorf("payment %s fulfilled for another contest or user: %w", paymentId, store.ErrDuplicateTransaction)
}
