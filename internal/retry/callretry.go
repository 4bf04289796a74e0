// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package retry implements the External-Call Retry component: a
// thunk returning Ok | Err(Transient | Permanent) is retried on
// Transient with capped exponential backoff until it succeeds, fails
// permanently, or the context/deadline fires.
package retry

import (
	"context"

	"github.com/nexuscp/sagactl/internal/backoff"
	"github.com/nexuscp/sagactl/internal/logger"
	"github.com/nexuscp/sagactl/internal/sagaerr"
)

// Thunk is a remote call wrapped for classification. It must return a
// *sagaerr.Error (or an error KindOf resolves to Internal, treated as
// permanent) so the retry loop can tell transient from permanent.
type Thunk func(ctx context.Context) error

// Do runs fn, retrying while it returns a Transient-classified error.
// It emits a warning log per attempt and returns as soon as fn
// succeeds or returns a non-Transient error. If ctx is done while
// waiting between attempts, it returns a ServiceUnavailable error
// wrapping the last transient error; if the policy's retries run out,
// it returns that transient error itself.
func Do(ctx context.Context, log logger.Logger, op string, fn Thunk) error {
	return DoWithPolicy(ctx, log, op, backoff.NewExponentialBackoffPolicy(), fn)
}

// DoWithPolicy is Do with an explicit retry policy, used by tests that
// need fast/deterministic backoff.
func DoWithPolicy(ctx context.Context, log logger.Logger, op string, policy backoff.RetryPolicy, fn Thunk) error {
	retrier := backoff.NewRetrier(policy)

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !sagaerr.IsTransient(err) {
			return err
		}

		if log != nil {
			log.Warnf("%s: transient error on attempt %d, retrying: %v", op, retrier.Attempts()+1, err)
		}

		if waitErr := retrier.Next(ctx); waitErr != nil {
			// Context canceled or retries exhausted: surface the
			// original transient error, not the wait-loop plumbing,
			// unless the context itself is what stopped us.
			if ctx.Err() != nil {
				return sagaerr.ServiceUnavailablef(op, "saga deadline exceeded while retrying: %w", err)
			}
			return err
		}
	}
}
