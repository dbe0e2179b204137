package database

import (
	"context"
	"errors"
	"testing"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "postgres")), mock
}

func TestReserveCredits_PostgresPlaceholders(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE profiles\s+SET credits = credits - \$1, updated_at = \$2\s+WHERE id = \$3 AND credits >= \$4`).
		WithArgs(int64(10), sqlmock.AnyArg(), "user-1", int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM profiles WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := service.ReserveCredits(context.Background(), store.ReserveParams{UserId: "user-1", Amount: 10})
	if !errors.Is(err, store.ErrInsufficientCredits) {
		t.Fatalf("Expected ErrInsufficientCredits, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestReserveCredits_PostgresCommit(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE profiles`).
		WithArgs(int64(4), sqlmock.AnyArg(), "user-1", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO credit_reservations \(id, user_id, amount, reason, status, created_at\)\s+VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)`).
		WithArgs(sqlmock.AnyArg(), "user-1", int64(4), "speech", "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reservation, err := service.ReserveCredits(context.Background(), store.ReserveParams{UserId: "user-1", Amount: 4, Reason: "speech"})
	if err != nil {
		t.Fatalf("ReserveCredits failed: %v", err)
	}
	if reservation.Amount != 4 || reservation.Status != "pending" {
		t.Errorf("Unexpected reservation: %+v", reservation)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestGrantCredits_PostgresUniqueViolation(t *testing.T) {
	service, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM credit_transactions WHERE reference = \$1`).
		WithArgs("pi_9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`UPDATE profiles\s+SET credits = credits \+ \$1`).
		WithArgs(int64(50), sqlmock.AnyArg(), "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(int64(50)))
	mock.ExpectExec(`INSERT INTO credit_transactions`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := service.GrantCredits(context.Background(), store.GrantParams{UserId: "user-1", Amount: 50, Reference: "pi_9"})
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Fatalf("Expected ErrDuplicateTransaction, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
