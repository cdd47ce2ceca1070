// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package waiter polls CloudControl resources until an asynchronous
// operation settles.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/domain"
)

const meterName = "github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/waiter"

var waitDuration metric.Float64Histogram

func init() {
	waitDuration, _ = otel.Meter(meterName).Float64Histogram("cloudcontrol.wait.duration",
		metric.WithDescription("Time spent polling for a resource to settle"),
		metric.WithUnit("s"))
}

var errNotReady = errors.New("not ready")

// Condition reports whether the awaited state has been reached. Returning an
// error stops polling.
type Condition func(ctx context.Context) (bool, error)

// TimeoutError is returned when the condition is not met in time.
type TimeoutError struct {
	What    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.What)
}

// StateError is returned when a resource lands in a FAILED_* or
// REQUIRES_SUPPORT state.
type StateError struct {
	What  string
	State domain.State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s is in state %s", e.What, e.State)
}

// Wait evaluates cond every interval until it returns true, returns an
// error, or timeout elapses. The first evaluation happens immediately.
func Wait(ctx context.Context, what string, interval, timeout time.Duration, cond Condition) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("waitingFor", what)
	start := time.Now()
	polls := 0

	op := func() (struct{}, error) {
		polls++
		done, err := cond(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !done {
			return struct{}{}, errNotReady
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)

	outcome := "done"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		outcome = "canceled"
		err = ctx.Err()
	case errors.Is(err, errNotReady):
		outcome = "timeout"
		err = &TimeoutError{What: what, Timeout: timeout}
	default:
		outcome = "error"
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
	}

	elapsed := time.Since(start)
	waitDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	log.V(1).Info("wait finished", "outcome", outcome, "polls", polls, "elapsed", elapsed)
	return err
}

// ForState is a Condition over a resource state. It is done when the state
// equals want and fails with a StateError on a failed state.
func ForState(what string, want domain.State, get func(ctx context.Context) (domain.State, error)) Condition {
	return func(ctx context.Context) (bool, error) {
		state, err := get(ctx)
		if err != nil {
			return false, err
		}
		if state == want {
			return true, nil
		}
		if state.IsFailed() {
			return false, &StateError{What: what, State: state}
		}
		return false, nil
	}
}
