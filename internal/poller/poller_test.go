package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAwait(t *testing.T) {
	fast := Options{Attempts: 5, Interval: time.Millisecond}

	t.Run("SettlesEarly", func(t *testing.T) {
		calls := 0
		state, err := Await(context.Background(), func(ctx context.Context) (string, bool, error) {
			calls++
			if calls == 3 {
				return "paid", true, nil
			}
			return "unpaid", false, nil
		}, fast)

		assert.NoError(t, err)
		assert.Equal(t, "paid", state)
		assert.Equal(t, 3, calls)
	})

	t.Run("BudgetExhausted", func(t *testing.T) {
		calls := 0
		state, err := Await(context.Background(), func(ctx context.Context) (string, bool, error) {
			calls++
			return "unpaid", false, nil
		}, fast)

		assert.ErrorIs(t, err, ErrStillProcessing)
		assert.Equal(t, "unpaid", state)
		assert.Equal(t, 5, calls)
	})

	t.Run("SingleAttempt", func(t *testing.T) {
		calls := 0
		_, err := Await(context.Background(), func(ctx context.Context) (string, bool, error) {
			calls++
			return "unpaid", false, nil
		}, Options{Attempts: 1, Interval: time.Hour})

		assert.ErrorIs(t, err, ErrStillProcessing)
		assert.Equal(t, 1, calls)
	})

	t.Run("CheckError", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		_, err := Await(context.Background(), func(ctx context.Context) (int, bool, error) {
			calls++
			return 0, false, boom
		}, fast)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := Await(ctx, func(ctx context.Context) (int, bool, error) {
			calls++
			cancel()
			return 0, false, nil
		}, Options{Attempts: 10, Interval: time.Hour})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultAttempts, o.Attempts)
	assert.Equal(t, DefaultInterval, o.Interval)
}
