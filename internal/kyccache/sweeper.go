package kyccache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"kyc-service/internal/util"
)

// Sweeper periodically reclaims expired cache state. It runs as one
// long-lived background goroutine, started at process startup and stopped
// via Stop (or context cancellation) so tests can shut it down
// deterministically. A panic inside one cycle is recovered and logged; the
// loop itself never exits on its own.
type Sweeper struct {
	cache    *Cache
	interval time.Duration

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSweeper(cache *Cache, interval time.Duration) *Sweeper {
	return &Sweeper{
		cache:    cache,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		util.Info("KYC cache sweeper started",
			zap.Duration("interval", s.interval))

		for {
			select {
			case <-ctx.Done():
				util.Info("KYC cache sweeper stopped")
				return
			case <-ticker.C:
				s.runCycle()
			}
		}
	}()
}

// Stop cancels the loop and waits for the current cycle to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
	})
}

func (s *Sweeper) runCycle() {
	defer func() {
		if r := recover(); r != nil {
			util.Error("KYC sweep cycle panicked",
				zap.Any("panic", r))
		}
	}()

	start := time.Now()
	res := s.cache.Sweep(start)

	if res.ExpiredSessions > 0 || res.LiftedUserBans > 0 || res.LiftedFaceBans > 0 || res.PrunedViolations > 0 {
		util.Info("KYC sweep cycle completed",
			zap.Int("expired_sessions", res.ExpiredSessions),
			zap.Int("lifted_user_bans", res.LiftedUserBans),
			zap.Int("lifted_face_bans", res.LiftedFaceBans),
			zap.Int("pruned_violations", res.PrunedViolations),
			zap.Duration("duration", time.Since(start)))
	}
}
