package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 2, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHousekeepingRunsOnStartAndStops(t *testing.T) {
	p := &countingPurger{}
	hk := NewHousekeepingService(p, discardLogger(), 10*time.Millisecond)

	hk.Start()
	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	hk.Stop()

	after := p.calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, p.calls.Load())
}

func TestHousekeepingSurvivesErrors(t *testing.T) {
	p := &countingPurger{err: errors.New("db down")}
	hk := NewHousekeepingService(p, discardLogger(), 10*time.Millisecond)

	hk.Start()
	require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	hk.Stop()
}

func TestHousekeepingDefaultInterval(t *testing.T) {
	hk := NewHousekeepingService(&countingPurger{}, discardLogger(), 0)
	require.Equal(t, DefaultHousekeepingInterval, hk.Interval)
}
