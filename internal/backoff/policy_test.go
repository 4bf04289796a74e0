// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffPolicy_Caps(t *testing.T) {
	p := &ExponentialBackoffPolicy{
		InitialInterval: 100 * time.Millisecond,
		BackoffFactor:   2.0,
		MaxInterval:     1 * time.Second,
		MaxRetries:      0,
	}

	for i := 0; i < 10; i++ {
		interval, err := p.ComputeNextInterval(i, 0)
		require.NoError(t, err)
		require.LessOrEqual(t, interval, p.MaxInterval)
	}
}

func TestExponentialBackoffPolicy_Jitter(t *testing.T) {
	p := &ExponentialBackoffPolicy{
		InitialInterval: 1 * time.Second,
		BackoffFactor:   2.0,
		MaxInterval:     30 * time.Second,
		JitterFraction:  0.25,
	}

	interval, err := p.ComputeNextInterval(0, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, interval, 750*time.Millisecond)
	require.LessOrEqual(t, interval, 1250*time.Millisecond)
}

func TestExponentialBackoffPolicy_MaxRetriesExhausted(t *testing.T) {
	p := &ExponentialBackoffPolicy{
		InitialInterval: 10 * time.Millisecond,
		BackoffFactor:   2.0,
		MaxInterval:     time.Second,
		MaxRetries:      2,
	}

	_, err := p.ComputeNextInterval(2, 0)
	require.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestRetrier_NextWaitsAndCounts(t *testing.T) {
	p := &ExponentialBackoffPolicy{InitialInterval: time.Millisecond, BackoffFactor: 1, MaxInterval: time.Millisecond}
	r := NewRetrier(p)

	require.NoError(t, r.Next(context.Background()))
	require.NoError(t, r.Next(context.Background()))
	require.Equal(t, 2, r.Attempts())

	r.Reset()
	require.Equal(t, 0, r.Attempts())
}

func TestRetrier_ContextCancel(t *testing.T) {
	p := &ExponentialBackoffPolicy{InitialInterval: time.Hour, BackoffFactor: 1, MaxInterval: time.Hour}
	r := NewRetrier(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Next(ctx)
	require.ErrorIs(t, err, ErrOperationCanceled)
}
