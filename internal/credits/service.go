package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/formance"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"go.uber.org/zap"
)

// captureAttempts bounds how often a capture is retried after the paid call succeeded.
const captureAttempts = 3

var captureBackoff = 50 * time.Millisecond

// Journal mirrors settled credit movements to an external ledger.
type Journal interface {
	RecordDebit(ctx context.Context, e formance.Entry) error
	RecordGrant(ctx context.Context, e formance.Entry) error
}

// Observer is told the outcome of every credit operation.
type Observer func(op, outcome string)

// Charge is the price of one paid provider call.
type Charge struct {
	UserId      string
	Amount      int64
	Reason      string
	Description string
}

type Service struct {
	store    store.Store
	journal  Journal
	observer Observer
}

type Option func(*Service)

// WithJournal enables best-effort mirroring of debits and grants.
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reserves the charge, calls fn, then captures on success or releases on failure.
// fn is never called when the reservation fails. A zero charge runs fn directly.
func (s *Service) Run(ctx context.Context, charge Charge, fn func(ctx context.Context) error) (tx *models.CreditTransaction, err error) {
	if charge.Amount <= 0 {
		return nil, fn(ctx)
	}

	reservation, err := s.store.ReserveCredits(ctx, store.ReserveParams{
		UserId: charge.UserId,
		Amount: charge.Amount,
		Reason: charge.Reason,
	})
	if err != nil {
		s.observe("reserve", err)
		return nil, err
	}
	s.observe("reserve", nil)

	// settlement must survive the caller hanging up
	settleCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			s.release(settleCtx, reservation)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		s.release(settleCtx, reservation)
		return nil, err
	}

	description := charge.Description
	if description == "" {
		description = charge.Reason
	}
	tx, err = s.captureWithRetry(settleCtx, reservation, description)
	if err == nil {
		return tx, nil
	}

	// The paid call went through, so the reservation must end up captured, never refunded.
	zap.L().Error("Unable to capture credit reservation, deferring to sweeper",
		zap.String("reservation_id", reservation.Id),
		zap.String("user_id", charge.UserId),
		zap.Error(err))
	if err := s.store.MarkReservationFulfilled(settleCtx, reservation.Id); err != nil {
		s.observe("fulfil", err)
		zap.L().Error("Unable to mark credit reservation fulfilled",
			zap.String("reservation_id", reservation.Id),
			zap.String("user_id", charge.UserId),
			zap.Error(err))
	} else {
		s.observe("fulfil", nil)
	}
	return nil, nil
}

func (s *Service) captureWithRetry(ctx context.Context, reservation *models.CreditReservation, description string) (*models.CreditTransaction, error) {
	var err error
	for attempt := 1; attempt <= captureAttempts; attempt++ {
		var tx *models.CreditTransaction
		tx, err = s.capture(ctx, reservation, description)
		if err == nil {
			return tx, nil
		}
		if errors.Is(err, store.ErrReservationSettled) || errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if attempt < captureAttempts {
			time.Sleep(time.Duration(attempt) * captureBackoff)
		}
	}
	return nil, err
}

// capture settles the reservation and mirrors the debit.
func (s *Service) capture(ctx context.Context, reservation *models.CreditReservation, description string) (*models.CreditTransaction, error) {
	tx, err := s.store.CaptureReservation(ctx, reservation.Id, description)
	s.observe("capture", err)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = reservation.Reason
	}
	s.mirror(ctx, "debit", formance.Entry{
		UserId:      reservation.UserId,
		Amount:      reservation.Amount,
		Reference:   reservation.Id,
		Kind:        reservation.Reason,
		Description: description,
	})
	return tx, nil
}

func (s *Service) release(ctx context.Context, reservation *models.CreditReservation) {
	err := s.store.ReleaseReservation(ctx, reservation.Id)
	s.observe("release", err)
	if err != nil {
		zap.L().Error("Unable to release credit reservation",
			zap.String("reservation_id", reservation.Id),
			zap.String("user_id", reservation.UserId),
			zap.Error(err))
		return
	}
	zap.L().Info("Credit reservation released",
		zap.String("reservation_id", reservation.Id),
		zap.String("user_id", reservation.UserId),
		zap.Int64("amount", reservation.Amount))
}

// Grant adds credits and mirrors the grant to the journal.
func (s *Service) Grant(ctx context.Context, params store.GrantParams) (*models.CreditTransaction, error) {
	tx, err := s.store.GrantCredits(ctx, params)
	s.observe("grant", err)
	if err != nil {
		return nil, err
	}

	reference := params.Reference
	if reference == "" {
		reference = tx.Id
	}
	s.mirror(ctx, "grant", formance.Entry{
		UserId:      params.UserId,
		Amount:      params.Amount,
		Reference:   reference,
		Kind:        tx.TransactionType,
		Description: params.Description,
	})
	return tx, nil
}

func (s *Service) Balance(ctx context.Context, userId string) (*models.CreditBalance, error) {
	profile, err := s.store.GetProfile(ctx, userId)
	if err != nil {
		return nil, err
	}
	return &models.CreditBalance{UserId: profile.Id, Credits: profile.Credits}, nil
}

func (s *Service) History(ctx context.Context, userId string, limit, offset int) ([]models.CreditHistoryEntry, error) {
	if _, err := s.store.GetProfile(ctx, userId); err != nil {
		return nil, err
	}

	rows, err := s.store.GetCreditHistory(ctx, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("unable to load credit history: %w", err)
	}

	history := make([]models.CreditHistoryEntry, 0, len(rows))
	for _, r := range rows {
		history = append(history, models.CreditHistoryEntry{
			Id:           r.Id,
			Type:         r.TransactionType,
			Amount:       r.Amount,
			BalanceAfter: r.BalanceAfter,
			Description:  r.Description,
			CreatedAt:    r.CreatedAt,
		})
	}
	return history, nil
}

func (s *Service) mirror(ctx context.Context, kind string, e formance.Entry) {
	if s.journal == nil {
		return
	}

	var err error
	if kind == "debit" {
		err = s.journal.RecordDebit(ctx, e)
	} else {
		err = s.journal.RecordGrant(ctx, e)
	}
	if err != nil {
		zap.L().Warn("Unable to mirror credit movement to journal",
			zap.String("kind", kind),
			zap.String("user_id", e.UserId),
			zap.String("reference", e.Reference),
			zap.Error(err))
	}
}

func (s *Service) observe(op string, err error) {
	if s.observer == nil {
		return
	}
	s.observer(op, outcomeOf(err))
}
