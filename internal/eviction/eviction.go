// Package eviction runs the periodic sweep that bounds the gateway's
// resource footprint by retiring idle sessions.
package eviction

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/streamgate/internal/database"
	"github.com/mantonx/streamgate/internal/session"
)

// Loop periodically scans the Session Store and removes sessions whose
// heartbeat has aged past the inactivity threshold.
type Loop struct {
	store      *session.Store
	interval   time.Duration
	inactivity time.Duration
	logger     hclog.Logger
	ledger     *database.Ledger
}

// New constructs an eviction Loop. ledger may be nil.
func New(store *session.Store, interval, inactivity time.Duration, logger hclog.Logger, ledger *database.Ledger) *Loop {
	return &Loop{store: store, interval: interval, inactivity: inactivity, logger: logger, ledger: ledger}
}

// Run blocks until ctx is canceled, ticking every l.interval and
// sweeping once immediately on entry would be surprising for tests
// that inject a fake interval, so Run only ticks — callers wanting an
// immediate sweep call Sweep directly first.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(time.Now())
		}
	}
}

// Sweep removes every session whose last heartbeat is older than the
// inactivity threshold as of now. It snapshots victims before removing
// any of them, so a concurrent start/ping racing the sweep either
// finds the session already gone (and recreates) or still present (and
// this cycle skips it, since the snapshot check runs under the
// session's own lock via IsActive-adjacent heartbeat read).
func (l *Loop) Sweep(now time.Time) {
	var victims []*session.Session
	l.store.ForEach(func(s *session.Session) {
		s.Lock()
		idle := now.Sub(s.LastHeartbeat)
		s.Unlock()
		if idle > l.inactivity {
			victims = append(victims, s)
		}
	})

	for _, s := range victims {
		s.Lock()
		idle := now.Sub(s.LastHeartbeat)
		id := s.ID
		sourceURL := s.SourceURL
		s.Unlock()
		if idle <= l.inactivity {
			// Touched between snapshot and processing; leave it for
			// the next cycle.
			continue
		}

		l.store.Remove(id)
		if l.logger != nil {
			l.logger.Info("evicted idle session", "session", id, "idle", idle)
		}
		if l.ledger != nil {
			l.ledger.Record(id, database.EventEvicted, "", sourceURL, "idle timeout")
		}
	}
}
