package services

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caseflow-hq/caseflow/pkg/serrors"
)

// ErrNotifyExhausted is surfaced once every notification attempt has
// failed. The task transition itself is already committed at that point.
var ErrNotifyExhausted = serrors.NewError("NOTIFY_EXHAUSTED", "process engine notification attempts exhausted", "")

// RetryingNotifier wraps a ProcessEngineNotifier with bounded retries
// and exponential backoff. Notification runs after the owning
// transaction commits, so a permanent failure is logged and reported but
// never rolls the transition back.
type RetryingNotifier struct {
	inner       ProcessEngineNotifier
	log         *logrus.Logger
	maxAttempts int
	maxBackoff  time.Duration
	rng         *rand.Rand
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRetryingNotifier(inner ProcessEngineNotifier, log *logrus.Logger, maxAttempts int, maxBackoff time.Duration) *RetryingNotifier {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &RetryingNotifier{
		inner:       inner,
		log:         log,
		maxAttempts: maxAttempts,
		maxBackoff:  maxBackoff,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (n *RetryingNotifier) NotifyCompleted(ctx context.Context, taskID string, at time.Time) error {
	return n.retry(ctx, taskID, "completed", func(ctx context.Context) error {
		return n.inner.NotifyCompleted(ctx, taskID, at)
	})
}

func (n *RetryingNotifier) NotifyCancelled(ctx context.Context, taskID string, at time.Time) error {
	return n.retry(ctx, taskID, "cancelled", func(ctx context.Context) error {
		return n.inner.NotifyCancelled(ctx, taskID, at)
	})
}

func (n *RetryingNotifier) retry(ctx context.Context, taskID, kind string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		lastErr = fn(ctx)
		recordNotifierAttempt(lastErr == nil)
		if lastErr == nil {
			return nil
		}
		n.log.WithFields(logrus.Fields{
			"task_id": taskID,
			"kind":    kind,
			"attempt": attempt,
		}).WithError(lastErr).Warn("process engine notification failed")
		if attempt == n.maxAttempts {
			break
		}
		if err := n.sleep(ctx, n.backoff(attempt)); err != nil {
			return err
		}
	}
	n.log.WithFields(logrus.Fields{
		"task_id": taskID,
		"kind":    kind,
	}).WithError(lastErr).Error("process engine notification exhausted")
	return ErrNotifyExhausted.WithDetails(lastErr.Error())
}

func (n *RetryingNotifier) backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	// 1s * 2^(attempts-1), capped, plus up to 250ms of jitter
	seconds := math.Pow(2, float64(attempts-1))
	d := time.Duration(seconds * float64(time.Second))
	if d > n.maxBackoff {
		d = n.maxBackoff
	}
	return d + time.Duration(n.rng.Int63n(int64(250*time.Millisecond)+1)) //nolint:gosec
}
