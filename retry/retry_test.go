package retry

import (
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"retico-go/metrics"

	"github.com/stretchr/testify/assert"
)

func TestRetryableError(t *testing.T) {
	err := errors.New("test error")
	retryableErr := NewRetryableError(err, true)

	assert.NotNil(t, retryableErr)
	assert.Equal(t, "test error", retryableErr.Error())
	assert.True(t, retryableErr.IsRetryable())

	nonRetryableErr := NewRetryableError(err, false)
	assert.False(t, nonRetryableErr.IsRetryable())
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, config.InitialDelay)
	assert.Equal(t, 10*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.BackoffFactor)
	assert.Equal(t, 0.1, config.RandomizationFactor)
	assert.Equal(t, 30*time.Second, config.Timeout)
}

func TestNew(t *testing.T) {
	config := DefaultConfig()
	metrics := metrics.NewPipelineMetrics()
	retryer := New(config, metrics)

	assert.NotNil(t, retryer)
	assert.Equal(t, config, retryer.config)
	assert.Equal(t, metrics, retryer.metrics)
}

func TestRetryer_Do_Success(t *testing.T) {
	config := Config{MaxRetries: 1, InitialDelay: 1 * time.Millisecond}
	retryer := New(config, nil)

	callCount := 0
	err := retryer.Do("test", func() error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryer_Do_FailureThenSuccess(t *testing.T) {
	config := Config{MaxRetries: 2, InitialDelay: 1 * time.Millisecond}
	retryer := New(config, nil)

	callCount := 0
	err := retryer.Do("test", func() error {
		callCount++
		if callCount == 1 {
			return errors.New("temporary failure")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, callCount)
}

func TestRetryer_Do_ExhaustRetries(t *testing.T) {
	config := Config{MaxRetries: 2, InitialDelay: 1 * time.Millisecond}
	retryer := New(config, nil)

	callCount := 0
	err := retryer.Do("test", func() error {
		callCount++
		return errors.New("persistent failure")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, callCount) // initial + 2 retries
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestRetryer_Do_NonRetryableStopsImmediately(t *testing.T) {
	config := Config{MaxRetries: 5, InitialDelay: 1 * time.Millisecond}
	retryer := New(config, nil)

	callCount := 0
	err := retryer.Do("test", func() error {
		callCount++
		return NewRetryableError(errors.New("permanent failure"), false)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryer_DoWithContext_Cancellation(t *testing.T) {
	config := Config{MaxRetries: 5, InitialDelay: 10 * time.Millisecond}
	retryer := New(config, nil)

	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	err := retryer.DoWithContext(ctx, "test", func(ctx context.Context) error {
		callCount++
		if callCount == 2 {
			cancel()
		}
		return errors.New("failure")
	})

	assert.Error(t, err)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 2, callCount)
}

func TestRetryer_DoWithContext_Timeout(t *testing.T) {
	config := Config{
		MaxRetries:   5,
		InitialDelay: 10 * time.Millisecond,
		Timeout:      50 * time.Millisecond,
	}
	retryer := New(config, nil)

	callCount := 0
	start := time.Now()
	err := retryer.DoWithContext(context.Background(), "test", func(ctx context.Context) error {
		callCount++
		time.Sleep(20 * time.Millisecond)
		return errors.New("failure")
	})
	duration := time.Since(start)

	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "timeout"))
	assert.True(t, duration < 200*time.Millisecond) // Should timeout quickly
}

func TestRetryer_CalculateDelay(t *testing.T) {
	config := Config{
		InitialDelay:        100 * time.Millisecond,
		MaxDelay:            1 * time.Second,
		BackoffFactor:       2.0,
		RandomizationFactor: 0.1,
	}
	retryer := New(config, nil)

	// Test first attempt
	delay1 := retryer.calculateDelay(config.InitialDelay, 0)
	assert.True(t, delay1 >= 90*time.Millisecond && delay1 <= 110*time.Millisecond)

	// Test second attempt with backoff
	delay2 := retryer.calculateDelay(config.InitialDelay, 1)
	assert.True(t, delay2 >= 180*time.Millisecond && delay2 <= 220*time.Millisecond)

	// Test max delay cap
	delay3 := retryer.calculateDelay(config.InitialDelay, 10) // Should be capped
	// Allow variance due to randomization factor (10% = 100ms for 1s max delay)
	assert.InDelta(t, float64(config.MaxDelay), float64(delay3), float64(config.MaxDelay)*config.RandomizationFactor)
}

func TestRetryer_CalculateDelay_NoRandomization(t *testing.T) {
	config := Config{
		InitialDelay:        100 * time.Millisecond,
		MaxDelay:            1 * time.Second,
		BackoffFactor:       2.0,
		RandomizationFactor: 0.0, // No randomization
	}
	retryer := New(config, nil)

	delay := retryer.calculateDelay(config.InitialDelay, 0)
	assert.Equal(t, 100*time.Millisecond, delay)
}

func TestIsRetryableNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"interrupted syscall", syscall.EINTR, true},
		{"resource temporarily unavailable", syscall.EAGAIN, true},
		{"device busy", syscall.EBUSY, true},
		{"text file busy", syscall.ETXTBSY, true},
		{"wrapped interrupted syscall", &os.PathError{Op: "open", Path: "x.rtc", Err: syscall.EINTR}, true},
		{"deadline exceeded", os.ErrDeadlineExceeded, true},
		{"file not found", os.ErrNotExist, false},
		{"permission denied", os.ErrPermission, false},
		{"malformed gob payload", errors.New("gob: unknown type id"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryableNetworkError(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestWrapNetworkError(t *testing.T) {
	retryableErr := WrapNetworkError(syscall.EBUSY)
	rw, ok := retryableErr.(*RetryableError)
	assert.True(t, ok)
	assert.True(t, rw.IsRetryable())

	assert.Nil(t, WrapNetworkError(nil))

	nonRetryable := WrapNetworkError(os.ErrNotExist)
	rn, ok := nonRetryable.(*RetryableError)
	assert.True(t, ok)
	assert.False(t, rn.IsRetryable())
}
