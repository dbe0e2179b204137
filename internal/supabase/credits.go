package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tableReservations = "credit_reservations"
	tableTransactions = "credit_transactions"

	reservationColumns = "id,user_id,amount,reason,status,created_at,settled_at"
	transactionColumns = "id,user_id,amount,balance_after,transaction_type,description,reference,created_at"

	// pending or fulfilled: the reservation still holds credits
	statusUnsettled = "in.(pending,fulfilled)"
)

func (s *Service) ReserveCredits(ctx context.Context, params store.ReserveParams) (*models.CreditReservation, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("reservation amount must be positive, got %d", params.Amount)
	}

	if _, err := s.adjustCredits(ctx, params.UserId, -params.Amount); err != nil {
		if errors.Is(err, store.ErrInsufficientCredits) {
			zap.L().Info("Reservation denied",
				zap.String("user_id", params.UserId),
				zap.Int64("amount", params.Amount),
				zap.String("reason", params.Reason))
		}
		return nil, err
	}

	reservation := &models.CreditReservation{
		Id:        uuid.New().String(),
		UserId:    params.UserId,
		Amount:    params.Amount,
		Reason:    params.Reason,
		Status:    models.ReservationPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.mutate(ctx, http.MethodPost, tableReservations, nil, reservation, nil); err != nil {
		// The debit already landed; give it back before reporting.
		if _, refundErr := s.adjustCredits(context.WithoutCancel(ctx), params.UserId, params.Amount); refundErr != nil {
			zap.L().Error("Failed to refund credits after reservation insert failure",
				zap.String("user_id", params.UserId),
				zap.Int64("amount", params.Amount),
				zap.Error(refundErr))
		}
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}

	zap.L().Info("Credits reserved",
		zap.String("reservation_id", reservation.Id),
		zap.String("user_id", params.UserId),
		zap.Int64("amount", params.Amount),
		zap.String("reason", params.Reason))

	return reservation, nil
}

// CaptureReservation settles a pending or fulfilled reservation and writes its audit
// row. If the audit row cannot be written the reservation goes back to fulfilled so
// the sweeper retries the capture.
func (s *Service) CaptureReservation(ctx context.Context, reservationId, description string) (*models.CreditTransaction, error) {
	now := time.Now().UTC()
	settled, err := s.settleReservation(ctx, reservationId, statusUnsettled, models.ReservationCaptured, now)
	if err != nil {
		return nil, err
	}

	profile, err := s.GetProfile(ctx, settled.UserId)
	if err != nil {
		s.reopenReservation(context.WithoutCancel(ctx), reservationId, models.ReservationCaptured, models.ReservationFulfilled)
		return nil, err
	}

	if description == "" {
		description = settled.Reason
	}
	transaction := &models.CreditTransaction{
		Id:              uuid.New().String(),
		UserId:          settled.UserId,
		Amount:          -settled.Amount,
		BalanceAfter:    profile.Credits,
		TransactionType: models.CreditTxGeneration,
		Description:     description,
		Reference:       reservationId,
		CreatedAt:       now,
	}
	if err := s.insertTransaction(ctx, transaction); err != nil {
		// a duplicate means the audit row for this reservation already exists
		if !errors.Is(err, store.ErrDuplicateTransaction) {
			s.reopenReservation(context.WithoutCancel(ctx), reservationId, models.ReservationCaptured, models.ReservationFulfilled)
		}
		return nil, err
	}

	zap.L().Info("Reservation captured",
		zap.String("reservation_id", reservationId),
		zap.String("user_id", settled.UserId),
		zap.Int64("amount", settled.Amount),
		zap.Int64("balance_after", profile.Credits))

	return transaction, nil
}

// MarkReservationFulfilled records that the paid call succeeded. Marking twice is a no-op.
func (s *Service) MarkReservationFulfilled(ctx context.Context, reservationId string) error {
	var rows []models.CreditReservation
	err := s.mutate(ctx, http.MethodPatch, tableReservations, url.Values{
		"id":     {eq(reservationId)},
		"status": {statusUnsettled},
		"select": {reservationColumns},
	}, map[string]any{"status": models.ReservationFulfilled}, &rows)
	if err != nil {
		return fmt.Errorf("failed to mark reservation fulfilled: %w", err)
	}
	if len(rows) > 0 {
		zap.L().Info("Reservation marked fulfilled", zap.String("reservation_id", reservationId))
		return nil
	}
	return s.unsettleableError(ctx, reservationId)
}

// ReleaseReservation refunds a pending reservation. If the refund fails the
// reservation goes back to pending so the sweeper can retry it.
func (s *Service) ReleaseReservation(ctx context.Context, reservationId string) error {
	settled, err := s.settleReservation(ctx, reservationId, eq(models.ReservationPending), models.ReservationReleased, time.Now().UTC())
	if err != nil {
		return err
	}

	balance, err := s.adjustCredits(ctx, settled.UserId, settled.Amount)
	if err != nil {
		s.reopenReservation(context.WithoutCancel(ctx), reservationId, models.ReservationReleased, models.ReservationPending)
		return fmt.Errorf("failed to refund credits: %w", err)
	}

	zap.L().Info("Reservation released",
		zap.String("reservation_id", reservationId),
		zap.String("user_id", settled.UserId),
		zap.Int64("amount", settled.Amount),
		zap.Int64("balance_after", balance))
	return nil
}

func (s *Service) ListStaleReservations(ctx context.Context, olderThan time.Time, limit int) ([]models.CreditReservation, error) {
	if limit <= 0 {
		limit = 100
	}
	reservations := []models.CreditReservation{}
	err := s.selectRows(ctx, tableReservations, url.Values{
		"select":     {reservationColumns},
		"status":     {statusUnsettled},
		"created_at": {"lt." + timestamp(olderThan)},
		"order":      {"created_at.asc"},
		"limit":      {strconv.Itoa(limit)},
	}, &reservations)
	if err != nil {
		return nil, fmt.Errorf("unable to list stale reservations: %w", err)
	}
	return reservations, nil
}

// GrantCredits claims the reference by inserting the audit row first, so a replayed
// grant is rejected before the balance moves. The row's balance_after is filled in
// once the credit lands.
func (s *Service) GrantCredits(ctx context.Context, params store.GrantParams) (*models.CreditTransaction, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", params.Amount)
	}
	if params.TransactionType == "" {
		params.TransactionType = models.CreditTxGrant
	}

	transaction := &models.CreditTransaction{
		Id:              uuid.New().String(),
		UserId:          params.UserId,
		Amount:          params.Amount,
		TransactionType: params.TransactionType,
		Description:     params.Description,
		Reference:       params.Reference,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.insertTransaction(ctx, transaction); err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			zap.L().Warn("Duplicate credit grant detected, skipping", zap.String("reference", params.Reference))
		}
		return nil, err
	}

	balance, err := s.adjustCredits(ctx, params.UserId, params.Amount)
	if err != nil {
		s.deleteTransaction(context.WithoutCancel(ctx), transaction.Id)
		return nil, err
	}
	transaction.BalanceAfter = balance

	err = s.mutate(ctx, http.MethodPatch, tableTransactions, url.Values{"id": {eq(transaction.Id)}},
		map[string]any{"balance_after": balance}, nil)
	if err != nil {
		zap.L().Warn("Failed to record balance_after on grant",
			zap.String("transaction_id", transaction.Id),
			zap.Error(err))
	}

	zap.L().Info("Credits granted",
		zap.String("user_id", params.UserId),
		zap.Int64("amount", params.Amount),
		zap.String("type", params.TransactionType),
		zap.String("reference", params.Reference),
		zap.Int64("balance_after", balance))

	return transaction, nil
}

func (s *Service) GetCreditHistory(ctx context.Context, userId string, limit, offset int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	transactions := []models.CreditTransaction{}
	err := s.selectRows(ctx, tableTransactions, url.Values{
		"select":  {transactionColumns},
		"user_id": {eq(userId)},
		"order":   {"created_at.desc"},
		"limit":   {strconv.Itoa(limit)},
		"offset":  {strconv.Itoa(offset)},
	}, &transactions)
	if err != nil {
		return nil, fmt.Errorf("unable to get credit history: %w", err)
	}
	return transactions, nil
}

// settleReservation moves a reservation whose status matches the from filter to status.
func (s *Service) settleReservation(ctx context.Context, reservationId, from, status string, now time.Time) (*models.CreditReservation, error) {
	var rows []models.CreditReservation
	err := s.mutate(ctx, http.MethodPatch, tableReservations, url.Values{
		"id":     {eq(reservationId)},
		"status": {from},
		"select": {reservationColumns},
	}, map[string]any{
		"status":     status,
		"settled_at": timestamp(now),
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to settle reservation: %w", err)
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}
	return nil, s.unsettleableError(ctx, reservationId)
}

// unsettleableError tells an unknown reservation apart from one in the wrong state.
func (s *Service) unsettleableError(ctx context.Context, reservationId string) error {
	n, err := s.count(ctx, tableReservations, url.Values{"id": {eq(reservationId)}})
	if err != nil {
		return fmt.Errorf("failed to check reservation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reservation %s: %w", reservationId, store.ErrNotFound)
	}
	return fmt.Errorf("reservation %s: %w", reservationId, store.ErrReservationSettled)
}

// reopenReservation undoes a settle whose money movement failed.
func (s *Service) reopenReservation(ctx context.Context, reservationId, from, to string) {
	var rows []models.CreditReservation
	err := s.mutate(ctx, http.MethodPatch, tableReservations, url.Values{
		"id":     {eq(reservationId)},
		"status": {eq(from)},
		"select": {reservationColumns},
	}, map[string]any{"status": to, "settled_at": nil}, &rows)
	if err != nil || len(rows) == 0 {
		zap.L().Error("Failed to reopen credit reservation, manual settlement required",
			zap.String("reservation_id", reservationId),
			zap.String("status", from),
			zap.Error(err))
		return
	}
	zap.L().Warn("Credit reservation reopened for retry",
		zap.String("reservation_id", reservationId),
		zap.String("status", to))
}

func (s *Service) insertTransaction(ctx context.Context, t *models.CreditTransaction) error {
	err := s.mutate(ctx, http.MethodPost, tableTransactions, nil, t, nil)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: reference %s already exists", store.ErrDuplicateTransaction, t.Reference)
	}
	if err != nil {
		return fmt.Errorf("failed to insert credit transaction: %w", err)
	}
	return nil
}

func (s *Service) deleteTransaction(ctx context.Context, id string) {
	_, _, err := s.request(ctx, http.MethodDelete, tableTransactions, url.Values{"id": {eq(id)}}, nil, preferMinimal)
	if err != nil {
		zap.L().Error("Failed to remove unclaimed credit transaction", zap.String("transaction_id", id), zap.Error(err))
	}
}
