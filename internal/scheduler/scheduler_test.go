package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunExecutesImmediatelyAndOnTicks(t *testing.T) {
	var runs atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	sched := New(func(context.Context) error {
		runs.Add(1)
		return nil
	}, 10*time.Millisecond, zap.NewNop())
	go func() { done <- sched.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		time.Second, time.Millisecond, "immediate run plus at least two ticks")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunSurvivesTaskFailures(t *testing.T) {
	var runs atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	sched := New(func(context.Context) error {
		runs.Add(1)
		return errors.New("every source down")
	}, 10*time.Millisecond, zap.NewNop())
	go func() { done <- sched.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 2 },
		time.Second, time.Millisecond, "failures must not stop the loop")

	cancel()
	<-done
}

func TestRunRejectsNonPositiveInterval(t *testing.T) {
	sched := New(func(context.Context) error { return nil }, 0, zap.NewNop())
	assert.Error(t, sched.Run(context.Background()))
}
