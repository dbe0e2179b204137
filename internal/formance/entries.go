package formance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates
//
// Account layout:
//   @users:{user_id}       one account per profile
//   @platform:consumption  credits spent on generations
//   @world                 source of purchased and granted credits
// ---------------------------------------------------------------------------

const numscriptCreditDebit = `vars {
  asset $asset
  number $amount
  account $user
  string $reason
  string $reservation_id
}

send [$asset $amount] (
  source = $user allowing unbounded overdraft
  destination = @platform:consumption
)

set_tx_meta("event_type", "credit_debit")
set_tx_meta("reason", $reason)
set_tx_meta("reservation_id", $reservation_id)
`

const numscriptCreditGrant = `vars {
  asset $asset
  number $amount
  account $user
  string $grant_type
  string $description
}

send [$asset $amount] (
  source = @world
  destination = $user
)

set_tx_meta("event_type", "credit_grant")
set_tx_meta("grant_type", $grant_type)
set_tx_meta("description", $description)
`

// Entry is one credit movement to mirror. Reference makes the post idempotent.
type Entry struct {
	UserId      string
	Amount      int64
	Reference   string
	Kind        string
	Description string
}

// RecordDebit mirrors a captured reservation.
func (j *Journal) RecordDebit(ctx context.Context, e Entry) error {
	return j.post(ctx, "debit:"+e.Reference, numscriptCreditDebit, debitVars(e), e)
}

// RecordGrant mirrors a purchase or operator grant.
func (j *Journal) RecordGrant(ctx context.Context, e Entry) error {
	return j.post(ctx, "grant:"+e.Reference, numscriptCreditGrant, grantVars(e), e)
}

func (j *Journal) post(ctx context.Context, reference, script string, vars map[string]string, e Entry) error {
	if e.Amount <= 0 {
		return fmt.Errorf("journal amount must be positive, got %d", e.Amount)
	}

	postTx := shared.V2PostTransaction{
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars:  vars,
		},
	}
	if e.Reference != "" {
		postTx.Reference = strPtr(reference)
	}

	_, err := j.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            j.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return fmt.Errorf("error recording %s in Formance: %w", reference, err)
	}

	zap.L().Info("Credit movement recorded in Formance",
		zap.String("reference", reference),
		zap.String("user_id", e.UserId),
		zap.Int64("amount", e.Amount))
	return nil
}

func debitVars(e Entry) map[string]string {
	return map[string]string{
		"asset":          creditAsset,
		"amount":         strconv.FormatInt(e.Amount, 10),
		"user":           userAccount(e.UserId),
		"reason":         e.Description,
		"reservation_id": e.Reference,
	}
}

func grantVars(e Entry) map[string]string {
	kind := e.Kind
	if kind == "" {
		kind = "grant"
	}
	return map[string]string{
		"asset":       creditAsset,
		"amount":      strconv.FormatInt(e.Amount, 10),
		"user":        userAccount(e.UserId),
		"grant_type":  kind,
		"description": e.Description,
	}
}
