// Package poller repeatedly checks an asynchronous outcome, such as a card
// payment confirmed by webhook, until it settles or a fixed budget runs out.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrStillProcessing means the budget ran out before the state settled. The
// caller should tell the user the payment is still being processed.
var ErrStillProcessing = errors.New("still processing")

const (
	DefaultAttempts = 10
	DefaultInterval = 2 * time.Second
)

type Options struct {
	Attempts int
	Interval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// CheckFunc returns the current state and whether it is final.
type CheckFunc[T any] func(ctx context.Context) (state T, settled bool, err error)

var errNotSettled = errors.New("not settled")

// Await calls check until it reports a settled state, an error, or the
// attempt budget is spent. A check error stops polling immediately.
func Await[T any](ctx context.Context, check CheckFunc[T], opts Options) (T, error) {
	opts = opts.withDefaults()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.Interval), uint64(opts.Attempts-1)),
		ctx,
	)

	state, err := backoff.RetryWithData(func() (T, error) {
		state, settled, err := check(ctx)
		if err != nil {
			return state, backoff.Permanent(err)
		}
		if !settled {
			return state, errNotSettled
		}
		return state, nil
	}, policy)
	if errors.Is(err, errNotSettled) {
		return state, ErrStillProcessing
	}
	return state, err
}
