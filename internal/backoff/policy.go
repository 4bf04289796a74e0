// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package backoff implements the capped exponential backoff used to
// retry transient external-call failures: initial interval 100ms, cap
// 30s, ±25% jitter, unlimited retries by default.
package backoff

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Inspired by the code from Temporal's retry policy implementation (License: MIT License).
// https://github.com/temporalio/temporal/blob/2a1044994085bffbeeee789cad52ecf2650c501c/common/backoff/retrypolicy.go

var (
	// ErrRetriesExhausted is returned when the maximum number of retries has been reached.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrOperationCanceled is returned when the retry operation is canceled via context.
	ErrOperationCanceled = errors.New("operation canceled")
)

// RetryPolicy computes the next wait interval for a retry attempt.
type RetryPolicy interface {
	ComputeNextInterval(retryCount int, elapsedTime time.Duration) (time.Duration, error)
}

// Retrier manages the state of retry operations across attempts.
type Retrier interface {
	// Next blocks for the next retry interval, or returns an error if
	// retries are exhausted or the context is canceled.
	Next(ctx context.Context) error
	// Reset returns the retrier to its initial state.
	Reset()
	// Attempts returns the number of Next calls so far.
	Attempts() int
}

const (
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 30 * time.Second
	defaultBackoffFactor   = 2.0
	noMaximumAttempts      = 0
)

// ExponentialBackoffPolicy computes wait intervals from an initial
// interval, doubling factor, capped interval, and optional jitter.
type ExponentialBackoffPolicy struct {
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration
	MaxRetries      int
	// JitterFraction randomizes the computed interval by ±JitterFraction
	// (e.g. 0.25 for ±25%). Zero disables jitter.
	JitterFraction float64
}

// NewExponentialBackoffPolicy returns the default external-call retry
// policy: 100ms initial, cap 30s, ±25% jitter, unlimited retries.
func NewExponentialBackoffPolicy() *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{
		InitialInterval: DefaultInitialInterval,
		BackoffFactor:   defaultBackoffFactor,
		MaxInterval:     DefaultMaxInterval,
		MaxRetries:      noMaximumAttempts,
		JitterFraction:  0.25,
	}
}

func (p *ExponentialBackoffPolicy) ComputeNextInterval(retryCount int, _ time.Duration) (time.Duration, error) {
	if p.MaxRetries > 0 && retryCount >= p.MaxRetries {
		return 0, ErrRetriesExhausted
	}

	interval := float64(p.InitialInterval) * math.Pow(p.BackoffFactor, float64(retryCount))
	if interval > float64(p.MaxInterval) {
		interval = float64(p.MaxInterval)
	}

	if p.JitterFraction > 0 {
		delta := interval * p.JitterFraction
		interval = interval - delta + rand.Float64()*2*delta //nolint:gosec // timing jitter, not security sensitive
	}

	return time.Duration(interval), nil
}

// NewRetrier creates a new Retrier instance with the specified retry policy.
func NewRetrier(retryPolicy RetryPolicy) Retrier {
	return &retrierImpl{retryPolicy: retryPolicy}
}

type retrierImpl struct {
	retryPolicy RetryPolicy
	retryCount  int
	startTime   time.Time
	mu          sync.Mutex
}

func (r *retrierImpl) Next(ctx context.Context) error {
	r.mu.Lock()
	if r.startTime.IsZero() {
		r.startTime = time.Now()
	}
	elapsed := time.Since(r.startTime)
	interval, err := r.retryPolicy.ComputeNextInterval(r.retryCount, elapsed)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.retryCount++
	r.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrOperationCanceled
	}
}

func (r *retrierImpl) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryCount = 0
	r.startTime = time.Time{}
}

func (r *retrierImpl) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryCount
}
