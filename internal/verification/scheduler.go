package verification

import (
	"context"
	"log"
	"time"
)

type expirySweeper interface {
	CheckExpiredBookings(ctx context.Context) (int, error)
}

// Scheduler runs the expiry sweep on a fixed interval until its context
// is cancelled.
type Scheduler struct {
	sweeper  expirySweeper
	interval time.Duration
}

func NewScheduler(sweeper expirySweeper, interval time.Duration) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("expiry scheduler started, interval %s", s.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("expiry scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	count, err := s.sweeper.CheckExpiredBookings(ctx)
	if err != nil {
		log.Printf("expiry sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("expiry sweep processed %d bookings", count)
	}
}
