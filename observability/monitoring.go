// Package observability reports runtime health of the relay: memory,
// goroutines and live connection counts, logged at a fixed interval.
package observability

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// ConnectionCounter is the slice of the registry the monitor needs.
type ConnectionCounter interface {
	Stats() (connections, users int)
}

// Stats is one snapshot of the process and the connection registry.
type Stats struct {
	Goroutines  int
	AllocMemMb  uint64
	NumGC       uint32
	Connections int
	Users       int
}

// Monitor is a supervised worker logging a Stats snapshot every interval.
type Monitor struct {
	log      *slog.Logger
	registry ConnectionCounter
	interval time.Duration
}

func NewMonitor(log *slog.Logger, registry ConnectionCounter, interval time.Duration) *Monitor {
	return &Monitor{log: log, registry: registry, interval: interval}
}

func (m *Monitor) Snapshot() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	connections, users := m.registry.Stats()
	return Stats{
		Goroutines:  runtime.NumGoroutine(),
		AllocMemMb:  mem.Alloc / 1024 / 1024,
		NumGC:       mem.NumGC,
		Connections: connections,
		Users:       users,
	}
}

func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := m.Snapshot()
			m.log.Info("relay stats",
				"goroutines", stats.Goroutines,
				"alloc_mem_mb", stats.AllocMemMb,
				"num_gc", stats.NumGC,
				"connections", stats.Connections,
				"users", stats.Users,
			)
		}
	}
}
