package models

import "time"

// Profile represents a user's credit balance and preferences
type Profile struct {
	Id               string    `db:"id" json:"id"`
	Credits          int64     `db:"credits" json:"credits"`
	DataSharingOptIn bool      `db:"data_sharing_opt_in" json:"data_sharing_opt_in"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Contest status values
const (
	ContestStatusActive = "active"
	ContestStatusClosed = "closed"
)

// Contest represents a film contest with per-submission pricing in minor units
type Contest struct {
	Id                        string    `db:"id" json:"id"`
	Title                     string    `db:"title" json:"title"`
	Status                    string    `db:"status" json:"status"`
	FirstSubmissionPrice      int64     `db:"first_submission_price" json:"first_submission_price"`
	AdditionalSubmissionPrice int64     `db:"additional_submission_price" json:"additional_submission_price"`
	VotesPerToken             int64     `db:"votes_per_token" json:"votes_per_token"`
	Currency                  string    `db:"currency" json:"currency"`
	CreatedAt                 time.Time `db:"created_at" json:"created_at"`
}

// SubmissionToken represents one purchased contest submission plus its votes
type SubmissionToken struct {
	Id              string    `db:"id" json:"id"`
	ContestId       string    `db:"contest_id" json:"contest_id"`
	UserId          string    `db:"user_id" json:"user_id"`
	PaymentIntentId string    `db:"payment_intent_id" json:"payment_intent_id"`
	VotesRemaining  int64     `db:"votes_remaining" json:"votes_remaining"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Credit transaction types
const (
	CreditTxGeneration = "generation"
	CreditTxPurchase   = "purchase"
	CreditTxGrant      = "grant"
)

// CreditTransaction represents immutable credit history (audit log)
type CreditTransaction struct {
	Id              string    `db:"id" json:"id"`
	UserId          string    `db:"user_id" json:"user_id"`
	Amount          int64     `db:"amount" json:"amount"`
	BalanceAfter    int64     `db:"balance_after" json:"balance_after"`
	TransactionType string    `db:"transaction_type" json:"transaction_type"`
	Description     string    `db:"description" json:"description"`
	Reference       string    `db:"reference" json:"reference"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Reservation status values. Fulfilled means the paid call succeeded but the
// debit has not been captured yet; it is captured, never released.
const (
	ReservationPending   = "pending"
	ReservationFulfilled = "fulfilled"
	ReservationCaptured  = "captured"
	ReservationReleased  = "released"
)

// CreditReservation holds credits taken from a profile while a paid call is in flight
type CreditReservation struct {
	Id        string     `db:"id" json:"id"`
	UserId    string     `db:"user_id" json:"user_id"`
	Amount    int64      `db:"amount" json:"amount"`
	Reason    string     `db:"reason" json:"reason"`
	Status    string     `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	SettledAt *time.Time `db:"settled_at" json:"settled_at,omitempty"`
}
