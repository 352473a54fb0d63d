package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerGC periodically runs Badger's value log garbage collection.
// Soft-deleted messages are never removed, but flag updates rewrite values,
// and the value log only reclaims that space when asked to.
type BadgerGC struct {
	db       *badger.DB
	log      *slog.Logger
	interval time.Duration
}

func NewBadgerGC(db *badger.DB, log *slog.Logger, interval time.Duration) *BadgerGC {
	return &BadgerGC{db: db, log: log, interval: interval}
}

func (w *BadgerGC) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping value log GC")
			return nil
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing worth reclaiming.
			if err := w.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				w.log.Warn("Value log GC failed", "error", err)
			}
		}
	}
}
