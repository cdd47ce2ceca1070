// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package retry

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var reader *sdkmetric.ManualReader

func TestMain(m *testing.M) {
	reader = sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	os.Exit(m.Run())
}

var errTransient = errors.New("transient")

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Retryable:       func(err error) bool { return errors.Is(err, errTransient) },
	}
}

// flaky fails with errTransient n times, then returns value.
func flaky(n int, value string) (func(context.Context) (string, error), *int) {
	calls := 0
	return func(context.Context) (string, error) {
		calls++
		if calls <= n {
			return "", errTransient
		}
		return value, nil
	}, &calls
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	fn, calls := flaky(0, "ok")
	got, err := Do(context.Background(), fastPolicy(6), "first", fn)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, *calls)
}

func TestDo_TransientThenSuccess(t *testing.T) {
	for n := 1; n <= 5; n++ {
		fn, calls := flaky(n, "ok")
		got, err := Do(context.Background(), fastPolicy(6), "flaky", fn)
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, n+1, *calls)
	}
}

func TestDo_Exhausted(t *testing.T) {
	fn, calls := flaky(10, "never")
	_, err := Do(context.Background(), fastPolicy(6), "exhausted", fn)
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 6, exhausted.Attempts)
	assert.Equal(t, 6, *calls)
	assert.ErrorIs(t, err, errTransient)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	permanent := errors.New("invalid input")
	calls := 0
	_, err := Do(context.Background(), fastPolicy(6), "permanent", func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestDo_NilPredicateRetriesNothing(t *testing.T) {
	fn, calls := flaky(1, "ok")
	p := fastPolicy(6)
	p.Retryable = nil
	_, err := Do(context.Background(), p, "nil-predicate", fn)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, *calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := fastPolicy(6)
	p.InitialInterval = time.Hour
	p.MaxInterval = time.Hour

	calls := 0
	_, err := Do(ctx, p, "canceled", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_RecordsMetrics(t *testing.T) {
	fn, _ := flaky(2, "ok")
	_, err := Do(context.Background(), fastPolicy(6), "metrics", fn)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var attempts int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "cloudcontrol.retry.attempts" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("call"); ok && v.AsString() == "metrics" {
					attempts += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(3), attempts)
}
