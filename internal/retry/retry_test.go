package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Policy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestDo_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func() error {
		calls++
		if calls < 3 {
			return &RetryableError{StatusCode: 503, Message: "busy"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	boom := errors.New("bad request")
	err := Do(context.Background(), fast, func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func() error {
		calls++
		return &RetryableError{StatusCode: 429, Message: "slow down"}
	})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, fast.MaxRetries+1, calls)
}

func TestRetryableError_Message(t *testing.T) {
	assert.Equal(t, "retryable error (status 500): oops", (&RetryableError{StatusCode: 500, Message: "oops"}).Error())
	assert.Equal(t, "retryable error: dial tcp", (&RetryableError{Message: "dial tcp"}).Error())
}
