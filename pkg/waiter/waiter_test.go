// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package waiter

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

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
)

var reader *sdkmetric.ManualReader

func TestMain(m *testing.M) {
	reader = sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	os.Exit(m.Run())
}

// outcomes counts recorded waits per outcome attribute.
func outcomes(t *testing.T) map[string]uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]uint64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "cloudcontrol.wait.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				if v, ok := dp.Attributes.Value("outcome"); ok {
					counts[v.AsString()] += dp.Count
				}
			}
		}
	}
	return counts
}

func states(seq ...domain.State) (func(context.Context) (domain.State, error), *int) {
	calls := 0
	return func(context.Context) (domain.State, error) {
		s := seq[min(calls, len(seq)-1)]
		calls++
		return s, nil
	}, &calls
}

func TestWait_ReachesState(t *testing.T) {
	get, calls := states(domain.StatePendingAdd, domain.StatePendingAdd, domain.StateNormal)

	err := Wait(context.Background(), "vlan", time.Millisecond, time.Second,
		ForState("vlan", domain.StateNormal, get))
	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
}

func TestWait_ImmediateSuccess(t *testing.T) {
	get, calls := states(domain.StateNormal)

	err := Wait(context.Background(), "vlan", time.Hour, time.Hour, ForState("vlan", domain.StateNormal, get))
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
}

func TestWait_FailedState(t *testing.T) {
	get, calls := states(domain.StatePendingAdd, domain.StateFailedAdd, domain.StateNormal)

	err := Wait(context.Background(), "server", time.Millisecond, time.Second,
		ForState("server", domain.StateNormal, get))
	require.Error(t, err)

	var stateErr *StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, domain.StateFailedAdd, stateErr.State)
	assert.Equal(t, 2, *calls)
}

func TestWait_Timeout(t *testing.T) {
	get, _ := states(domain.StatePendingChange)

	err := Wait(context.Background(), "network domain", time.Millisecond, 20*time.Millisecond,
		ForState("network domain", domain.StateNormal, get))
	require.Error(t, err)

	var timeout *TimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, 20*time.Millisecond, timeout.Timeout)
	assert.Contains(t, err.Error(), "network domain")
}

func TestWait_ConditionErrorStopsPolling(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Wait(context.Background(), "nat rule", time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return false, boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestWait_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Wait(ctx, "vlan", time.Hour, 2*time.Hour, func(context.Context) (bool, error) {
		cancel()
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWait_CancellationRecordedAsCanceled(t *testing.T) {
	before := outcomes(t)

	ctx, cancel := context.WithCancel(context.Background())
	err := Wait(ctx, "server", time.Millisecond, time.Hour, func(context.Context) (bool, error) {
		cancel()
		return false, nil
	})
	require.ErrorIs(t, err, context.Canceled)

	after := outcomes(t)
	assert.Equal(t, before["canceled"]+1, after["canceled"])
	assert.Equal(t, before["error"], after["error"])
}
