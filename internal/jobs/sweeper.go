package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StaleSettler settles credit reservations older than ttl.
type StaleSettler interface {
	SettleStale(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

// ReservationSweeper settles reservations left open by a crash or a failed capture.
type ReservationSweeper struct {
	settler   StaleSettler
	ttl       time.Duration
	batchSize int
}

func NewReservationSweeper(settler StaleSettler, ttl time.Duration, batchSize int) *ReservationSweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReservationSweeper{settler: settler, ttl: ttl, batchSize: batchSize}
}

func (s *ReservationSweeper) Name() string {
	return "reservation_sweeper"
}

func (s *ReservationSweeper) Run(ctx context.Context) error {
	settled, err := s.settler.SettleStale(ctx, s.ttl, s.batchSize)
	if settled > 0 {
		zap.L().Info("Settled stale credit reservations", zap.Int("count", settled))
	}
	return err
}
