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

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ReserveCredits debits the profile with a single conditional UPDATE and records a
// pending reservation in the same transaction.
func (s *Service) ReserveCredits(ctx context.Context, params store.ReserveParams) (*models.CreditReservation, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("reservation amount must be positive, got %d", params.Amount)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, tx.Rebind(queryDebitCredits), params.Amount, now, params.UserId, params.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var count int64
		if err := tx.GetContext(ctx, &count, tx.Rebind(queryProfileExists), params.UserId); err != nil {
			return nil, fmt.Errorf("failed to check profile: %w", err)
		}
		if count == 0 {
			return nil, fmt.Errorf("profile %s: %w", params.UserId, store.ErrNotFound)
		}
		zap.L().Info("Reservation denied",
			zap.String("user_id", params.UserId),
			zap.Int64("amount", params.Amount),
			zap.String("reason", params.Reason))
		return nil, store.ErrInsufficientCredits
	}

	reservation := &models.CreditReservation{
		Id:        uuid.New().String(),
		UserId:    params.UserId,
		Amount:    params.Amount,
		Reason:    params.Reason,
		Status:    models.ReservationPending,
		CreatedAt: now,
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(queryInsertReservation),
		reservation.Id, reservation.UserId, reservation.Amount, reservation.Reason, reservation.Status, reservation.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Credits reserved",
		zap.String("reservation_id", reservation.Id),
		zap.String("user_id", params.UserId),
		zap.Int64("amount", params.Amount),
		zap.String("reason", params.Reason))

	return reservation, nil
}

// CaptureReservation finalizes a pending or fulfilled reservation and appends its audit row.
func (s *Service) CaptureReservation(ctx context.Context, reservationId, description string) (*models.CreditTransaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now().UTC()
	settled, err := settleReservation(ctx, tx, queryCaptureReservation, reservationId, now)
	if err != nil {
		return nil, err
	}

	var balance int64
	if err := tx.GetContext(ctx, &balance, tx.Rebind(queryGetCredits), settled.UserId); err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	if description == "" {
		description = settled.Reason
	}
	transaction := &models.CreditTransaction{
		Id:              uuid.New().String(),
		UserId:          settled.UserId,
		Amount:          -settled.Amount,
		BalanceAfter:    balance,
		TransactionType: models.CreditTxGeneration,
		Description:     description,
		Reference:       reservationId,
		CreatedAt:       now,
	}
	if err := insertCreditTransaction(ctx, tx, transaction); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Reservation captured",
		zap.String("reservation_id", reservationId),
		zap.String("user_id", settled.UserId),
		zap.Int64("amount", settled.Amount),
		zap.Int64("balance_after", balance))

	return transaction, nil
}

// MarkReservationFulfilled records that the paid call succeeded, so the sweeper
// captures the reservation instead of refunding it. Marking twice is a no-op.
func (s *Service) MarkReservationFulfilled(ctx context.Context, reservationId string) error {
	result, err := s.db.ExecContext(ctx, s.q(queryMarkReservationFulfilled), reservationId)
	if err != nil {
		return fmt.Errorf("failed to mark reservation fulfilled: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		zap.L().Info("Reservation marked fulfilled", zap.String("reservation_id", reservationId))
		return nil
	}

	var count int64
	if err := s.db.GetContext(ctx, &count, s.q(queryReservationExists), reservationId); err != nil {
		return fmt.Errorf("failed to check reservation: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("reservation %s: %w", reservationId, store.ErrNotFound)
	}
	return fmt.Errorf("reservation %s: %w", reservationId, store.ErrReservationSettled)
}

// ReleaseReservation returns the held credits of a pending reservation to the
// profile. No audit row is written.
func (s *Service) ReleaseReservation(ctx context.Context, reservationId string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now().UTC()
	settled, err := settleReservation(ctx, tx, queryReleaseReservation, reservationId, now)
	if err != nil {
		return err
	}

	var balance int64
	err = tx.GetContext(ctx, &balance, tx.Rebind(queryAddCredits), settled.Amount, now, settled.UserId)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("profile %s: %w", settled.UserId, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to refund credits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
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
	var reservations []models.CreditReservation
	if err := s.db.SelectContext(ctx, &reservations, s.q(queryListStaleReservations), olderThan.UTC(), limit); err != nil {
		return nil, fmt.Errorf("unable to list stale reservations: %w", err)
	}
	return reservations, nil
}

// GrantCredits adds credits and records the grant. A repeated non-empty reference
// returns store.ErrDuplicateTransaction without changing the balance.
func (s *Service) GrantCredits(ctx context.Context, params store.GrantParams) (*models.CreditTransaction, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", params.Amount)
	}
	if params.TransactionType == "" {
		params.TransactionType = models.CreditTxGrant
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if params.Reference != "" {
		var existingId string
		err := tx.GetContext(ctx, &existingId, tx.Rebind(queryCheckDuplicateReference), params.Reference)
		if err == nil {
			zap.L().Warn("Duplicate credit grant detected, skipping",
				zap.String("reference", params.Reference),
				zap.String("existing_transaction_id", existingId))
			return nil, fmt.Errorf("%w: reference %s already exists", store.ErrDuplicateTransaction, params.Reference)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check for duplicate transaction: %w", err)
		}
	}

	now := time.Now().UTC()
	var balance int64
	err = tx.GetContext(ctx, &balance, tx.Rebind(queryAddCredits), params.Amount, now, params.UserId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", params.UserId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add credits: %w", err)
	}

	transaction := &models.CreditTransaction{
		Id:              uuid.New().String(),
		UserId:          params.UserId,
		Amount:          params.Amount,
		BalanceAfter:    balance,
		TransactionType: params.TransactionType,
		Description:     params.Description,
		Reference:       params.Reference,
		CreatedAt:       now,
	}
	if err := insertCreditTransaction(ctx, tx, transaction); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
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
	if err := s.db.SelectContext(ctx, &transactions, s.q(queryGetCreditHistory), userId, limit, offset); err != nil {
		return nil, fmt.Errorf("unable to get credit history: %w", err)
	}
	return transactions, nil
}

type settledReservation struct {
	UserId string `db:"user_id"`
	Amount int64  `db:"amount"`
	Reason string `db:"reason"`
}

// settleReservation runs a capture or release update. It distinguishes an
// unknown id from one that is no longer in a settleable state.
func settleReservation(ctx context.Context, tx *sqlx.Tx, query, reservationId string, now time.Time) (*settledReservation, error) {
	var settled settledReservation
	err := tx.GetContext(ctx, &settled, tx.Rebind(query), now, reservationId)
	if err == nil {
		return &settled, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to settle reservation: %w", err)
	}

	var count int64
	if err := tx.GetContext(ctx, &count, tx.Rebind(queryReservationExists), reservationId); err != nil {
		return nil, fmt.Errorf("failed to check reservation: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("reservation %s: %w", reservationId, store.ErrNotFound)
	}
	return nil, fmt.Errorf("reservation %s: %w", reservationId, store.ErrReservationSettled)
}

func insertCreditTransaction(ctx context.Context, tx *sqlx.Tx, t *models.CreditTransaction) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(queryInsertCreditTransaction),
		t.Id, t.UserId, t.Amount, t.BalanceAfter, t.TransactionType, t.Description, t.Reference, t.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: reference %s already exists", store.ErrDuplicateTransaction, t.Reference)
	}
	if err != nil {
		return fmt.Errorf("failed to insert credit transaction: %w", err)
	}
	return nil
}

func rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		zap.L().Warn("Failed to roll back transaction", zap.Error(err))
	}
}
