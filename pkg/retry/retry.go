// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package retry resubmits mutating CloudControl calls that fail with a
// transient vendor error.
package retry

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
)

const meterName = "github.com/platform-engineering-labs/formae-plugin-cloudcontrol/pkg/retry"

var (
	attemptCounter   metric.Int64Counter
	exhaustedCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter(meterName)
	attemptCounter, _ = meter.Int64Counter("cloudcontrol.retry.attempts",
		metric.WithDescription("Physical attempts of retried calls"))
	exhaustedCounter, _ = meter.Int64Counter("cloudcontrol.retry.exhausted",
		metric.WithDescription("Calls that gave up after the attempt ceiling"))
}

// Policy controls how often and how fast a call is resubmitted.
type Policy struct {
	// MaxAttempts is the total number of attempts, the first call included.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Retryable reports whether an error is transient. Nil retries nothing.
	Retryable func(error) bool
}

// DefaultPolicy is one call plus five retries with exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     6,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// ExhaustedError is returned when every attempt failed with a transient
// error. Last is the error of the final attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do calls fn until it succeeds, fails with a non-transient error, or the
// policy runs out of attempts. name labels log lines and metrics.
func Do[T any](ctx context.Context, p Policy, name string, fn func(context.Context) (T, error)) (T, error) {
	log := logr.FromContextOrDiscard(ctx).WithValues("call", name)
	attrs := metric.WithAttributes(attribute.String("call", name))

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	attempts := 0
	transient := false
	op := func() (T, error) {
		attempts++
		attemptCounter.Add(ctx, 1, attrs)

		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		transient = p.Retryable != nil && p.Retryable(err)
		if !transient {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Info("transient error, retrying", "attempt", attempts, "maxAttempts", maxAttempts, "next", next, "error", err.Error())
		}),
	)
	if err == nil {
		return res, nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if ctxErr := ctx.Err(); ctxErr != nil && (transient || errors.Is(err, ctxErr)) {
		return res, ctxErr
	}
	if transient {
		exhaustedCounter.Add(ctx, 1, attrs)
		log.Info("retries exhausted", "attempts", attempts, "error", err.Error())
		return res, &ExhaustedError{Attempts: attempts, Last: err}
	}
	return res, err
}
