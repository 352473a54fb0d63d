package observability

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticCounter struct {
	connections int
	users       int
}

func (s staticCounter) Stats() (int, int) { return s.connections, s.users }

func TestMonitor_Snapshot(t *testing.T) {
	req := require.New(t)
	monitor := NewMonitor(slog.Default(), staticCounter{connections: 3, users: 2}, time.Minute)

	stats := monitor.Snapshot()
	req.Equal(3, stats.Connections)
	req.Equal(2, stats.Users)
	req.Greater(stats.Goroutines, 0)
}

func TestMonitor_StopsOnCancel(t *testing.T) {
	monitor := NewMonitor(slog.Default(), staticCounter{}, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on context cancellation")
	}
}
