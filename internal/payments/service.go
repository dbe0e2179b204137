package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

const providerName = "stripe"

// Metadata keys attached to payment intents and checkout sessions.
const (
	MetaPurpose           = "purpose"
	MetaContestId         = "contest_id"
	MetaUserId            = "user_id"
	MetaIsFirstSubmission = "is_first_submission"
	MetaPackId            = "pack_id"
	MetaCredits           = "credits"
)

// Payment purposes recognised by the webhook.
const (
	PurposeContestToken = "contest_token"
	PurposeCreditPack   = "credit_pack"
)

// Service wraps a Stripe API client built from the configured secret key.
type Service struct {
	api           *client.API
	secretKey     string
	webhookSecret string
	siteURL       string
}

func NewService(cfg models.PaymentsConfig) *Service {
	return newService(cfg, nil)
}

func newService(cfg models.PaymentsConfig, backends *stripe.Backends) *Service {
	s := &Service{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		siteURL:       strings.TrimRight(cfg.SiteURL, "/"),
	}
	if cfg.SecretKey != "" {
		s.api = client.New(cfg.SecretKey, backends)
	}
	return s
}

func (s *Service) Configured() bool {
	return s.api != nil
}

// CreatePaymentIntent creates an intent for amount minor units of currency.
func (s *Service) CreatePaymentIntent(
	ctx context.Context,
	amount int64,
	currency string,
	metadata map[string]string,
) (*models.PaymentIntent, error) {
	if !s.Configured() {
		return nil, notConfigured("STRIPE_SECRET_KEY")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	zap.L().Info("Payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount", pi.Amount),
		zap.String("purpose", metadata[MetaPurpose]))

	return &models.PaymentIntent{
		Id:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}

// CreateCheckoutSession starts a hosted checkout for one credit pack.
func (s *Service) CreateCheckoutSession(ctx context.Context, pack models.CreditPack, userId string) (*models.CheckoutSession, error) {
	if !s.Configured() {
		return nil, notConfigured("STRIPE_SECRET_KEY")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.siteURL + "/credits?checkout=success&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.siteURL + "/credits?checkout=cancelled"),
		ClientReferenceID: stripe.String(userId),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(pack.Currency)),
					UnitAmount: stripe.Int64(pack.PriceMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(pack.Name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: packMetadata(pack, userId),
		},
	}
	params.Context = ctx
	for k, v := range packMetadata(pack, userId) {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	zap.L().Info("Checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userId),
		zap.String("pack_id", pack.Id))

	return &models.CheckoutSession{SessionId: sess.ID, URL: sess.URL}, nil
}

func packMetadata(pack models.CreditPack, userId string) map[string]string {
	return map[string]string{
		MetaPurpose: PurposeCreditPack,
		MetaUserId:  userId,
		MetaPackId:  pack.Id,
		MetaCredits: strconv.FormatInt(pack.Credits, 10),
	}
}

func notConfigured(key string) error {
	return &provider.Error{
		Provider: providerName,
		Kind:     provider.KindConfig,
		Message:  fmt.Sprintf("%s is not configured", key),
	}
}

// wrapStripeError keeps the provider message so handlers can surface it.
func wrapStripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = string(se.Code)
		}
		return &provider.Error{
			Provider: providerName,
			Kind:     provider.KindUpstream,
			Status:   se.HTTPStatusCode,
			Message:  provider.Truncate(msg, provider.MaxErrorBody),
			Err:      err,
		}
	}
	return &provider.Error{Provider: providerName, Kind: provider.KindTransport, Message: "request failed", Err: err}
}
