package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyEngine struct {
	failures int
	calls    int
}

func (f *flakyEngine) NotifyCompleted(context.Context, string, time.Time) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("engine unavailable")
	}
	return nil
}

func (f *flakyEngine) NotifyCancelled(context.Context, string, time.Time) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("engine unavailable")
	}
	return nil
}

func newTestNotifier(engine ProcessEngineNotifier, maxAttempts int) *RetryingNotifier {
	n := NewRetryingNotifier(engine, logrus.New(), maxAttempts, time.Second)
	n.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return n
}

func TestRetryingNotifier_RecoversAfterRetry(t *testing.T) {
	engine := &flakyEngine{failures: 2}
	n := newTestNotifier(engine, 5)

	err := n.NotifyCompleted(context.Background(), "task-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, engine.calls)
}

func TestRetryingNotifier_Exhausted(t *testing.T) {
	engine := &flakyEngine{failures: 10}
	n := newTestNotifier(engine, 3)

	err := n.NotifyCancelled(context.Background(), "task-1", time.Now())
	require.ErrorIs(t, err, ErrNotifyExhausted)
	assert.Equal(t, 3, engine.calls)
}

func TestRetryingNotifier_Backoff(t *testing.T) {
	n := NewRetryingNotifier(&flakyEngine{}, logrus.New(), 5, 4*time.Second)

	first := n.backoff(1)
	assert.GreaterOrEqual(t, first, time.Second)
	assert.Less(t, first, time.Second+300*time.Millisecond)

	// Capped at maxBackoff plus jitter.
	capped := n.backoff(10)
	assert.GreaterOrEqual(t, capped, 4*time.Second)
	assert.Less(t, capped, 4*time.Second+300*time.Millisecond)
}

func TestRetryingNotifier_ContextCancelled(t *testing.T) {
	engine := &flakyEngine{failures: 10}
	n := newTestNotifier(engine, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.NotifyCompleted(ctx, "task-1", time.Now())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, engine.calls)
}
