package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

type taggedErr struct {
	retryable bool
	msg       string
}

func (e *taggedErr) Error() string   { return e.msg }
func (e *taggedErr) Retryable() bool { return e.retryable }

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), testPolicy, func() (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), testPolicy, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &taggedErr{retryable: true, msg: "connection reset"}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestDo_TerminalErrorShortCircuits(t *testing.T) {
	terminal := &taggedErr{retryable: false, msg: "access denied"}
	calls := 0
	_, err := Do(context.Background(), testPolicy, func() (struct{}, error) {
		calls++
		return struct{}{}, terminal
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.Attempts)
	assert.ErrorIs(t, err, terminal)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	transient := &taggedErr{retryable: true, msg: "timeout"}
	calls := 0
	_, err := Do(context.Background(), testPolicy, func() (struct{}, error) {
		calls++
		return struct{}{}, transient
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 3, re.Attempts)
	assert.ErrorIs(t, err, transient)
}

func TestDo_UntypedErrorRetriesOnce(t *testing.T) {
	plain := errors.New("something odd")
	calls := 0
	_, err := Do(context.Background(), testPolicy, func() (struct{}, error) {
		calls++
		return struct{}{}, plain
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, plain)
}

func TestDo_DeadlineExceededIsRetryable(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), testPolicy, func() (string, error) {
		calls++
		if calls == 1 {
			return "", context.DeadlineExceeded
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&taggedErr{retryable: true}))
	assert.False(t, IsRetryable(&taggedErr{retryable: false}))
	assert.True(t, IsRetryable(errors.New("plain")))
}

func TestLinear_FixedGrowthCapped(t *testing.T) {
	bo := Linear(100*time.Millisecond, 250*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, bo.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, bo.NextBackOff())
	assert.Equal(t, 250*time.Millisecond, bo.NextBackOff())
	assert.Equal(t, 250*time.Millisecond, bo.NextBackOff())

	bo.Reset()
	assert.Equal(t, 100*time.Millisecond, bo.NextBackOff())
}
