// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscp/sagactl/internal/backoff"
	"github.com/nexuscp/sagactl/internal/sagaerr"
)

func fastPolicy() backoff.RetryPolicy {
	return &backoff.ExponentialBackoffPolicy{
		InitialInterval: time.Millisecond,
		BackoffFactor:   1,
		MaxInterval:     time.Millisecond,
	}
}

func TestDo_SucceedsImmediately(t *testing.T) {
	calls := 0
	err := DoWithPolicy(context.Background(), nil, "op", fastPolicy(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := DoWithPolicy(context.Background(), nil, "op", fastPolicy(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return sagaerr.Transientf("op", "connect refused")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_PermanentFailsImmediately(t *testing.T) {
	calls := 0
	err := DoWithPolicy(context.Background(), nil, "op", fastPolicy(), func(ctx context.Context) error {
		calls++
		return sagaerr.Invalidf("op", "bad request")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, sagaerr.Invalid, sagaerr.KindOf(err))
}

func TestDo_DeadlineExceededSurfacesServiceUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	slow := &backoff.ExponentialBackoffPolicy{InitialInterval: time.Hour, BackoffFactor: 1, MaxInterval: time.Hour}
	err := DoWithPolicy(ctx, nil, "op", slow, func(ctx context.Context) error {
		return sagaerr.Transientf("op", "still down")
	})
	require.Error(t, err)
	require.Equal(t, sagaerr.ServiceUnavailable, sagaerr.KindOf(err))
}
