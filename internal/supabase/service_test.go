package supabase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePostgREST serves the handful of PostgREST shapes the store relies on.
type fakePostgREST struct {
	mu           sync.Mutex
	credits      map[string]int64
	raceOnce     bool
	loseSwaps    bool
	failLedger   bool
	patches      int
	reservations map[string]*models.CreditReservation
	transactions []models.CreditTransaction
	tokens       map[string]bool
	tokenCount   int
	lastHeaders  http.Header
}

func newFake() *fakePostgREST {
	return &fakePostgREST{
		credits:      map[string]int64{},
		reservations: map[string]*models.CreditReservation{},
		tokens:       map[string]bool{},
	}
}

// set mutates the fake while no request is in flight.
func (f *fakePostgREST) set(fn func(f *fakePostgREST)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakePostgREST) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reservations[id]; ok {
		return r.Status
	}
	return ""
}

func (f *fakePostgREST) ledger() []models.CreditTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CreditTransaction(nil), f.transactions...)
}

// matchStatus applies an eq. or in.(...) filter.
func matchStatus(filter, status string) bool {
	switch {
	case filter == "":
		return true
	case strings.HasPrefix(filter, "eq."):
		return status == strings.TrimPrefix(filter, "eq.")
	case strings.HasPrefix(filter, "in.("):
		for _, s := range strings.Split(strings.TrimSuffix(strings.TrimPrefix(filter, "in.("), ")"), ",") {
			if s == status {
				return true
			}
		}
	}
	return false
}

func (f *fakePostgREST) matchReservations(q url.Values) []*models.CreditReservation {
	matched := []*models.CreditReservation{}
	id := strings.TrimPrefix(q.Get("id"), "eq.")
	var before time.Time
	if lt := q.Get("created_at"); lt != "" {
		before, _ = time.Parse(time.RFC3339Nano, strings.TrimPrefix(lt, "lt."))
	}
	for _, r := range f.reservations {
		if id != "" && r.Id != id {
			continue
		}
		if !matchStatus(q.Get("status"), r.Status) {
			continue
		}
		if !before.IsZero() && !r.CreatedAt.Before(before) {
			continue
		}
		matched = append(matched, r)
	}
	return matched
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastHeaders = r.Header.Clone()

	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case table == "profiles" && r.Method == http.MethodGet:
		id := strings.TrimPrefix(q.Get("id"), "eq.")
		credits, ok := f.credits[id]
		if !ok {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		writeJSON(w, []models.Profile{{Id: id, Credits: credits}})

	case table == "profiles" && r.Method == http.MethodPatch:
		f.patches++
		id := strings.TrimPrefix(q.Get("id"), "eq.")
		observed, _ := strconv.ParseInt(strings.TrimPrefix(q.Get("credits"), "eq."), 10, 64)
		if f.loseSwaps {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		if f.raceOnce {
			f.raceOnce = false
			f.credits[id] += 1
		}
		if f.credits[id] != observed {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		var body struct {
			Credits int64 `json:"credits"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.credits[id] = body.Credits
		writeJSON(w, []models.Profile{{Id: id, Credits: body.Credits}})

	case table == "credit_reservations" && r.Method == http.MethodPost:
		var res models.CreditReservation
		_ = json.NewDecoder(r.Body).Decode(&res)
		f.reservations[res.Id] = &res
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[]`))

	case table == "credit_reservations" && r.Method == http.MethodPatch:
		var body struct {
			Status    string  `json:"status"`
			SettledAt *string `json:"settled_at"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		updated := []models.CreditReservation{}
		for _, res := range f.matchReservations(q) {
			res.Status = body.Status
			res.SettledAt = nil
			if body.SettledAt != nil {
				at, _ := time.Parse(time.RFC3339Nano, *body.SettledAt)
				res.SettledAt = &at
			}
			updated = append(updated, *res)
		}
		writeJSON(w, updated)

	case table == "credit_reservations" && r.Method == http.MethodGet:
		matched := f.matchReservations(q)
		if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			if len(matched) == 0 {
				w.Header().Set("Content-Range", "*/0")
			} else {
				w.Header().Set("Content-Range", "0-0/"+strconv.Itoa(len(matched)))
			}
			_, _ = w.Write([]byte(`[]`))
			return
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
		rows := make([]models.CreditReservation, 0, len(matched))
		for _, res := range matched {
			rows = append(rows, *res)
		}
		writeJSON(w, rows)

	case table == "credit_transactions" && r.Method == http.MethodPost:
		if f.failLedger {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"ledger unavailable"}`))
			return
		}
		var tx models.CreditTransaction
		_ = json.NewDecoder(r.Body).Decode(&tx)
		for _, existing := range f.transactions {
			if tx.Reference != "" && existing.Reference == tx.Reference {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
				return
			}
		}
		f.transactions = append(f.transactions, tx)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[]`))

	case table == "credit_transactions" && r.Method == http.MethodPatch:
		id := strings.TrimPrefix(q.Get("id"), "eq.")
		var body struct {
			BalanceAfter int64 `json:"balance_after"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for i := range f.transactions {
			if f.transactions[i].Id == id {
				f.transactions[i].BalanceAfter = body.BalanceAfter
			}
		}
		_, _ = w.Write([]byte(`[]`))

	case table == "credit_transactions" && r.Method == http.MethodDelete:
		id := strings.TrimPrefix(q.Get("id"), "eq.")
		kept := f.transactions[:0]
		for _, tx := range f.transactions {
			if tx.Id != id {
				kept = append(kept, tx)
			}
		}
		f.transactions = kept
		w.WriteHeader(http.StatusNoContent)

	case table == "submission_tokens" && r.Method == http.MethodPost:
		var token models.SubmissionToken
		_ = json.NewDecoder(r.Body).Decode(&token)
		if f.tokens[token.PaymentIntentId] {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
			return
		}
		f.tokens[token.PaymentIntentId] = true
		f.tokenCount++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[]`))

	case table == "submission_tokens" && r.Method == http.MethodGet:
		if f.tokenCount == 0 {
			w.Header().Set("Content-Range", "*/0")
		} else {
			w.Header().Set("Content-Range", "0-0/"+strconv.Itoa(f.tokenCount))
		}
		_, _ = w.Write([]byte(`[]`))

	case table == "contests" && r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`[{"id":"c1","title":"Rooftop Chase","status":"active",
			"first_submission_price":"1000.00","additional_submission_price":500,
			"votes_per_token":10,"currency":"usd","created_at":"2025-01-02T03:04:05.123456+00:00"}]`))

	case table == "boom":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, strings.Repeat("x", 2000))

	case table == "boom-utf8":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "x"+strings.Repeat("é", 2000))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	payload, _ := json.Marshal(v)
	_, _ = w.Write(payload)
}

func newTestService(t *testing.T, fake *fakePostgREST) *Service {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	service, err := NewService(models.SupabaseConfig{
		URL:        server.URL,
		ServiceKey: "service-key",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	})
	require.NoError(t, err)
	return service
}

func TestNewService_RequiresCredentials(t *testing.T) {
	_, err := NewService(models.SupabaseConfig{ServiceKey: "k"})
	assert.Error(t, err)

	_, err = NewService(models.SupabaseConfig{URL: "https://example.supabase.co"})
	assert.Error(t, err)
}

func TestReserveCredits_SendsServiceKeyHeaders(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 20
	service := newTestService(t, fake)

	reservation, err := service.ReserveCredits(context.Background(), store.ReserveParams{UserId: "user1", Amount: 10, Reason: "video"})
	require.NoError(t, err)

	assert.Equal(t, models.ReservationPending, reservation.Status)
	assert.Equal(t, int64(10), fake.credits["user1"])
	assert.Equal(t, models.ReservationPending, fake.status(reservation.Id))
	assert.Equal(t, "service-key", fake.lastHeaders.Get("apikey"))
	assert.Equal(t, "Bearer service-key", fake.lastHeaders.Get("Authorization"))
}

func TestReserveCredits_Insufficient(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 5
	service := newTestService(t, fake)

	_, err := service.ReserveCredits(context.Background(), store.ReserveParams{UserId: "user1", Amount: 10})
	assert.ErrorIs(t, err, store.ErrInsufficientCredits)
	assert.Equal(t, int64(5), fake.credits["user1"])
	assert.Zero(t, fake.patches, "no write is attempted when the balance is short")
}

func TestReserveCredits_RetriesLostSwap(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 20
	fake.raceOnce = true
	service := newTestService(t, fake)

	_, err := service.ReserveCredits(context.Background(), store.ReserveParams{UserId: "user1", Amount: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, fake.patches)
	assert.Equal(t, int64(11), fake.credits["user1"])
}

func TestReserveCredits_UnknownProfile(t *testing.T) {
	service := newTestService(t, newFake())

	_, err := service.ReserveCredits(context.Background(), store.ReserveParams{UserId: "ghost", Amount: 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func reserve(t *testing.T, service *Service, userId string, amount int64) *models.CreditReservation {
	t.Helper()
	reservation, err := service.ReserveCredits(context.Background(), store.ReserveParams{UserId: userId, Amount: amount, Reason: "video"})
	require.NoError(t, err)
	return reservation
}

func TestCaptureReservation_WritesOneAuditRow(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 20
	service := newTestService(t, fake)
	ctx := context.Background()

	reservation := reserve(t, service, "user1", 10)
	transaction, err := service.CaptureReservation(ctx, reservation.Id, "")
	require.NoError(t, err)

	assert.Equal(t, int64(-10), transaction.Amount)
	assert.Equal(t, int64(10), transaction.BalanceAfter)
	assert.Equal(t, "video", transaction.Description)
	assert.Equal(t, models.ReservationCaptured, fake.status(reservation.Id))
	assert.Equal(t, int64(10), fake.credits["user1"])

	ledger := fake.ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, int64(-10), ledger[0].Amount)
	assert.Equal(t, reservation.Id, ledger[0].Reference)

	_, err = service.CaptureReservation(ctx, reservation.Id, "")
	assert.ErrorIs(t, err, store.ErrReservationSettled)
	assert.Len(t, fake.ledger(), 1)
}

func TestCaptureReservation_LedgerFailureLeavesReservationFulfilled(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 20
	service := newTestService(t, fake)
	ctx := context.Background()

	reservation := reserve(t, service, "user1", 10)
	fake.set(func(f *fakePostgREST) { f.failLedger = true })

	_, err := service.CaptureReservation(ctx, reservation.Id, "")
	require.Error(t, err)
	assert.Equal(t, models.ReservationFulfilled, fake.status(reservation.Id))

	// the paid call went through, so the hold is never refunded
	err = service.ReleaseReservation(ctx, reservation.Id)
	assert.ErrorIs(t, err, store.ErrReservationSettled)
	assert.Equal(t, int64(10), fake.credits["user1"])

	fake.set(func(f *fakePostgREST) { f.failLedger = false })
	_, err = service.CaptureReservation(ctx, reservation.Id, "")
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCaptured, fake.status(reservation.Id))
	assert.Len(t, fake.ledger(), 1)
}

func TestReleaseReservation_RestoresCredits(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 20
	service := newTestService(t, fake)
	ctx := context.Background()

	reservation := reserve(t, service, "user1", 10)
	require.NoError(t, service.ReleaseReservation(ctx, reservation.Id))

	assert.Equal(t, int64(20), fake.credits["user1"])
	assert.Equal(t, models.ReservationReleased, fake.status(reservation.Id))
	assert.Empty(t, fake.ledger())

	err := service.ReleaseReservation(ctx, reservation.Id)
	assert.ErrorIs(t, err, store.ErrReservationSettled)
	assert.Equal(t, int64(20), fake.credits["user1"])
}

func TestReleaseReservation_Unknown(t *testing.T) {
	service := newTestService(t, newFake())

	err := service.ReleaseReservation(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReleaseReservation_RefundFailureReopens(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 20
	service := newTestService(t, fake)
	ctx := context.Background()

	reservation := reserve(t, service, "user1", 10)
	fake.set(func(f *fakePostgREST) { f.loseSwaps = true })

	err := service.ReleaseReservation(ctx, reservation.Id)
	assert.ErrorIs(t, err, store.ErrConcurrentModification)
	assert.Equal(t, models.ReservationPending, fake.status(reservation.Id))
	assert.Equal(t, int64(10), fake.credits["user1"])

	fake.set(func(f *fakePostgREST) { f.loseSwaps = false })
	require.NoError(t, service.ReleaseReservation(ctx, reservation.Id))
	assert.Equal(t, int64(20), fake.credits["user1"])
	assert.Equal(t, models.ReservationReleased, fake.status(reservation.Id))
}

func TestMarkReservationFulfilled(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 20
	service := newTestService(t, fake)
	ctx := context.Background()

	reservation := reserve(t, service, "user1", 10)
	require.NoError(t, service.MarkReservationFulfilled(ctx, reservation.Id))
	require.NoError(t, service.MarkReservationFulfilled(ctx, reservation.Id))
	assert.Equal(t, models.ReservationFulfilled, fake.status(reservation.Id))

	_, err := service.CaptureReservation(ctx, reservation.Id, "")
	require.NoError(t, err)
	assert.ErrorIs(t, service.MarkReservationFulfilled(ctx, reservation.Id), store.ErrReservationSettled)
	assert.ErrorIs(t, service.MarkReservationFulfilled(ctx, "missing"), store.ErrNotFound)
}

func TestListStaleReservations_SkipsSettled(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 30
	service := newTestService(t, fake)
	ctx := context.Background()

	pending := reserve(t, service, "user1", 10)
	fulfilled := reserve(t, service, "user1", 10)
	captured := reserve(t, service, "user1", 10)
	require.NoError(t, service.MarkReservationFulfilled(ctx, fulfilled.Id))
	_, err := service.CaptureReservation(ctx, captured.Id, "")
	require.NoError(t, err)

	stale, err := service.ListStaleReservations(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	ids := map[string]string{}
	for _, r := range stale {
		ids[r.Id] = r.Status
	}
	assert.Equal(t, map[string]string{
		pending.Id:   models.ReservationPending,
		fulfilled.Id: models.ReservationFulfilled,
	}, ids)

	stale, err = service.ListStaleReservations(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestGrantCredits_IdempotentOnReference(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 5
	service := newTestService(t, fake)
	ctx := context.Background()

	params := store.GrantParams{UserId: "user1", Amount: 50, Reference: "cs_1", Description: "credit pack"}
	transaction, err := service.GrantCredits(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(55), transaction.BalanceAfter)

	_, err = service.GrantCredits(ctx, params)
	assert.ErrorIs(t, err, store.ErrDuplicateTransaction)
	assert.Equal(t, int64(55), fake.credits["user1"])

	ledger := fake.ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, int64(55), ledger[0].BalanceAfter)
	assert.Equal(t, models.CreditTxGrant, ledger[0].TransactionType)
}

func TestGrantCredits_FailedCreditDropsClaim(t *testing.T) {
	fake := newFake()
	fake.credits["user1"] = 5
	fake.loseSwaps = true
	service := newTestService(t, fake)

	_, err := service.GrantCredits(context.Background(), store.GrantParams{UserId: "user1", Amount: 50, Reference: "cs_1"})
	assert.ErrorIs(t, err, store.ErrConcurrentModification)
	assert.Empty(t, fake.ledger(), "the reference is free for a retry")
	assert.Equal(t, int64(5), fake.credits["user1"])
}

func TestCreateSubmissionToken_DuplicatePaymentIntent(t *testing.T) {
	fake := newFake()
	service := newTestService(t, fake)
	ctx := context.Background()

	params := store.CreateTokenParams{ContestId: "c1", UserId: "user1", PaymentIntentId: "pi_1", Votes: 10}
	_, err := service.CreateSubmissionToken(ctx, params)
	require.NoError(t, err)

	_, err = service.CreateSubmissionToken(ctx, params)
	assert.ErrorIs(t, err, store.ErrDuplicateTransaction)

	count, err := service.CountSubmissionTokens(ctx, "c1", "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCountSubmissionTokens_Empty(t *testing.T) {
	service := newTestService(t, newFake())

	count, err := service.CountSubmissionTokens(context.Background(), "c1", "user1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetContest_DecodesNumericPrices(t *testing.T) {
	service := newTestService(t, newFake())

	contest, err := service.GetContest(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), contest.FirstSubmissionPrice)
	assert.Equal(t, int64(500), contest.AdditionalSubmissionPrice)
	assert.Equal(t, 2025, contest.CreatedAt.Year())
}

func TestRequest_TruncatesErrorBody(t *testing.T) {
	service := newTestService(t, newFake())

	_, _, err := service.request(context.Background(), http.MethodGet, "boom", nil, nil, "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.True(t, strings.HasSuffix(apiErr.Body, "...(truncated)"))
	assert.LessOrEqual(t, len(apiErr.Body), maxErrorBodyBytes+len("...(truncated)"))
}

func TestRequest_TruncatesOnRuneBoundary(t *testing.T) {
	service := newTestService(t, newFake())

	_, _, err := service.request(context.Background(), http.MethodGet, "boom-utf8", nil, nil, "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, utf8.ValidString(apiErr.Body))
	assert.True(t, strings.HasSuffix(apiErr.Body, "...(truncated)"))
}
