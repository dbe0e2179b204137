package store

import (
	"context"
	"errors"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrReservationSettled     = errors.New("reservation already settled")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// ReserveParams describes credits to hold against a profile before a paid call.
type ReserveParams struct {
	UserId string
	Amount int64
	Reason string
}

// GrantParams adds credits to a profile and appends an audit row.
// A non-empty Reference makes the grant idempotent.
type GrantParams struct {
	UserId          string
	Amount          int64
	TransactionType string
	Description     string
	Reference       string
}

// CreateTokenParams records a paid contest submission. PaymentIntentId is unique.
type CreateTokenParams struct {
	ContestId       string
	UserId          string
	PaymentIntentId string
	Votes           int64
}

// Store defines the contract that every backend (SQLite, Postgres, Supabase) must satisfy.
type Store interface {
	// --- Profiles ---
	GetProfile(ctx context.Context, userId string) (*models.Profile, error)
	CreateProfile(ctx context.Context, userId string, credits int64) (*models.Profile, error)
	SetDataSharing(ctx context.Context, userId string, optIn bool) (*models.Profile, error)

	// --- Credits ---
	ReserveCredits(ctx context.Context, params ReserveParams) (*models.CreditReservation, error)
	CaptureReservation(ctx context.Context, reservationId, description string) (*models.CreditTransaction, error)
	MarkReservationFulfilled(ctx context.Context, reservationId string) error
	ReleaseReservation(ctx context.Context, reservationId string) error
	ListStaleReservations(ctx context.Context, olderThan time.Time, limit int) ([]models.CreditReservation, error)
	GrantCredits(ctx context.Context, params GrantParams) (*models.CreditTransaction, error)
	GetCreditHistory(ctx context.Context, userId string, limit, offset int) ([]models.CreditTransaction, error)

	// --- Contests ---
	ListActiveContests(ctx context.Context) ([]models.Contest, error)
	GetContest(ctx context.Context, contestId string) (*models.Contest, error)
	CreateContest(ctx context.Context, contest models.Contest) (*models.Contest, error)
	CountSubmissionTokens(ctx context.Context, contestId, userId string) (int64, error)
	ListSubmissionTokens(ctx context.Context, contestId, userId string) ([]models.SubmissionToken, error)
	CreateSubmissionToken(ctx context.Context, params CreateTokenParams) (*models.SubmissionToken, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
