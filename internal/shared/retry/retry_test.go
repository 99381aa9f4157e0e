package retry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	p := DefaultPolicy()
	p.Delay = time.Millisecond
	p.BusyDelay = 5 * time.Millisecond
	return p
}

func TestDo_SucceedsAfterTransientStatus(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(), "op", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{Op: "op", StatusCode: 503}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentReturnsImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("rejected")
	_, err := Do(context.Background(), fastPolicy(), "op", func(context.Context) (int, error) {
		calls++
		return 0, Permanent(cause)
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrExhausted)
}

func TestDo_NonTransientStatusNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), "op", func(context.Context) (int, error) {
		calls++
		return 0, &StatusError{Op: "op", StatusCode: 404}
	})
	assert.Equal(t, 1, calls)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.StatusCode)
}

func TestDo_ApplicationErrorNotRetried(t *testing.T) {
	calls := 0
	err := Run(context.Background(), fastPolicy(), "op", func(context.Context) error {
		calls++
		return errors.New("code 500 in body")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedWrapsLastError(t *testing.T) {
	calls := 0
	err := Run(context.Background(), fastPolicy(), "login", func(context.Context) error {
		calls++
		return io.ErrUnexpectedEOF
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDo_BusyStatusUsesLongerDelay(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 2
	p.Delay = 0
	p.BusyDelay = 30 * time.Millisecond

	start := time.Now()
	_ = Run(context.Background(), p, "op", func(context.Context) error {
		return &StatusError{Op: "op", StatusCode: 524}
	})
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDo_ObserverSeesEveryFailure(t *testing.T) {
	var seen []int
	p := fastPolicy()
	p.Observer = func(op string, attempt int, err error) {
		assert.Equal(t, "op", op)
		seen = append(seen, attempt)
	}
	_ = Run(context.Background(), p, "op", func(context.Context) error {
		return Transient(errors.New("flaky"))
	})
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	p := fastPolicy()
	p.Delay = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Run(ctx, p, "op", func(context.Context) error {
		return &StatusError{Op: "op", StatusCode: 502}
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
