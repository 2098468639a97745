package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ltiernan/tracescope/internal/store"
	"github.com/ltiernan/tracescope/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const defaultSweepInterval = 15 * time.Minute

// SessionSweeper periodically removes expired sessions from the store.
// Expired sessions are already unusable (the store refuses to return them);
// the sweeper just reclaims the rows.
type SessionSweeper struct {
	sessions store.SessionStore
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSessionSweeper creates a sweeper. A zero interval uses the default.
func NewSessionSweeper(sessions store.SessionStore, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop in a goroutine. The loop runs until Stop is
// called or the context is cancelled.
func (w *SessionSweeper) Start(ctx context.Context) {
	go func() {
		defer close(w.doneCh)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		log.Debug().Dur("interval", w.interval).Msg("Session sweeper started")

		for {
			select {
			case <-ticker.C:
				w.sweep(ctx)
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop shuts the loop down and waits for it to exit.
func (w *SessionSweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.doneCh
}

func (w *SessionSweeper) sweep(ctx context.Context) {
	metrics := telemetry.GetMetrics()
	metrics.ActiveSessionSweeps.Add(ctx, 1)

	removed, err := w.sessions.DeleteExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Session sweep failed")
		return
	}

	metrics.SessionsSweptTotal.Add(ctx, int64(removed))

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Swept expired sessions")
	}
}
