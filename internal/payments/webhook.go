package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	ErrWebhookNotConfigured = errors.New("STRIPE_WEBHOOK_SECRET is not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)

// Event is the subset of a verified Stripe event the studio acts on.
type Event struct {
	Id        string
	Type      string
	PaymentId string
	Paid      bool
	Metadata  map[string]string
}

// ParseWebhook verifies the Stripe-Signature header and extracts the payment fields.
func (s *Service) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if s.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return eventFromStripe(ev), nil
}

func eventFromStripe(ev stripe.Event) *Event {
	obj := gjson.ParseBytes(ev.Data.Raw)
	out := &Event{
		Id:       ev.ID,
		Type:     string(ev.Type),
		Metadata: map[string]string{},
	}
	obj.Get("metadata").ForEach(func(k, v gjson.Result) bool {
		out.Metadata[k.String()] = v.String()
		return true
	})

	switch ev.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		out.PaymentId = obj.Get("id").String()
		out.Paid = true
	case stripe.EventTypeCheckoutSessionCompleted:
		// payment_intent is an id string unless expanded
		pi := obj.Get("payment_intent")
		if pi.IsObject() {
			out.PaymentId = pi.Get("id").String()
		} else {
			out.PaymentId = pi.String()
		}
		if out.PaymentId == "" {
			out.PaymentId = obj.Get("id").String()
		}
		out.Paid = obj.Get("payment_status").String() == "paid"
	}
	return out
}

// TokenFulfiller creates the submission token paid for by a contest_token intent.
type TokenFulfiller interface {
	FulfillTokenPurchase(ctx context.Context, contestId, userId, paymentId string) (*models.SubmissionToken, error)
}

// CreditGranter adds purchased credits to a profile.
type CreditGranter interface {
	Grant(ctx context.Context, params store.GrantParams) (*models.CreditTransaction, error)
}

// Dispatcher routes verified payment events to the component that fulfils them.
type Dispatcher struct {
	tokens  TokenFulfiller
	credits CreditGranter
}

func NewDispatcher(tokens TokenFulfiller, credits CreditGranter) *Dispatcher {
	return &Dispatcher{tokens: tokens, credits: credits}
}

// Handle fulfils a paid event. Redelivered events are no-ops.
// Events the studio does not act on return nil so Stripe stops retrying them.
func (d *Dispatcher) Handle(ctx context.Context, ev *Event) error {
	if !ev.Paid || ev.PaymentId == "" {
		zap.L().Debug("Ignoring payment event", zap.String("event_id", ev.Id), zap.String("type", ev.Type))
		return nil
	}

	switch ev.Metadata[MetaPurpose] {
	case PurposeContestToken:
		return d.fulfillToken(ctx, ev)
	case PurposeCreditPack:
		return d.grantPack(ctx, ev)
	default:
		zap.L().Info("Payment event without a known purpose",
			zap.String("event_id", ev.Id),
			zap.String("payment_id", ev.PaymentId))
		return nil
	}
}

func (d *Dispatcher) fulfillToken(ctx context.Context, ev *Event) error {
	contestId, userId := ev.Metadata[MetaContestId], ev.Metadata[MetaUserId]
	if contestId == "" || userId == "" {
		zap.L().Warn("Contest token payment missing metadata", zap.String("payment_id", ev.PaymentId))
		return nil
	}

	token, err := d.tokens.FulfillTokenPurchase(ctx, contestId, userId, ev.PaymentId)
	if err != nil {
		return fmt.Errorf("unable to fulfil token purchase %s: %w", ev.PaymentId, err)
	}

	zap.L().Info("Submission token issued",
		zap.String("payment_id", ev.PaymentId),
		zap.String("contest_id", contestId),
		zap.String("user_id", userId),
		zap.String("token_id", token.Id))
	return nil
}

func (d *Dispatcher) grantPack(ctx context.Context, ev *Event) error {
	userId := ev.Metadata[MetaUserId]
	amount, err := strconv.ParseInt(ev.Metadata[MetaCredits], 10, 64)
	if userId == "" || err != nil || amount <= 0 {
		zap.L().Warn("Credit pack payment missing metadata", zap.String("payment_id", ev.PaymentId))
		return nil
	}

	_, err = d.credits.Grant(ctx, store.GrantParams{
		UserId:          userId,
		Amount:          amount,
		TransactionType: models.CreditTxPurchase,
		Description:     "Credit pack " + ev.Metadata[MetaPackId],
		Reference:       ev.PaymentId,
	})
	if errors.Is(err, store.ErrDuplicateTransaction) {
		zap.L().Info("Credit pack already granted", zap.String("payment_id", ev.PaymentId))
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to grant credit pack %s: %w", ev.PaymentId, err)
	}
	return nil
}
