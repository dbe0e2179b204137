package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"go.uber.org/zap"
)

// SettleStale settles reservations older than ttl, at most limit per call. Fulfilled
// reservations are captured because their paid call succeeded; pending ones are
// refunded. It returns how many were settled.
func (s *Service) SettleStale(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	stale, err := s.store.ListStaleReservations(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("unable to list stale reservations: %w", err)
	}

	settled := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		r := stale[i]

		action := "released"
		if r.Status == models.ReservationFulfilled {
			action = "captured"
			_, err = s.capture(ctx, &r, "")
		} else {
			err = s.store.ReleaseReservation(ctx, r.Id)
		}
		s.observe("sweep", err)
		if err != nil {
			// settled by the request path in the meantime, or retried next run
			zap.L().Warn("Unable to settle stale reservation",
				zap.String("reservation_id", r.Id),
				zap.String("status", r.Status),
				zap.Error(err))
			continue
		}
		settled++
		zap.L().Info("Stale credit reservation settled",
			zap.String("reservation_id", r.Id),
			zap.String("user_id", r.UserId),
			zap.String("action", action),
			zap.Int64("amount", r.Amount),
			zap.Time("created_at", r.CreatedAt))
	}
	return settled, nil
}
