package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.MaxElapsedTime = 0

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Retrying retries transient failures of the wrapped provider. Anything else,
// not found included, is returned after the first attempt.
type Retrying struct {
	next   Provider
	policy RetryPolicy
	logger *slog.Logger
}

func NewRetrying(next Provider, policy RetryPolicy, logger *slog.Logger) *Retrying {
	return &Retrying{next: next, policy: policy, logger: logger}
}

func (r *Retrying) GetTrack(ctx context.Context, id string) (Track, error) {
	return backoff.RetryNotifyWithData(func() (Track, error) {
		return classify(r.next.GetTrack(ctx, id))
	}, r.policy.backOff(ctx), r.notify(ctx, "GetTrack", id))
}

func (r *Retrying) GetRelatedTrack(ctx context.Context, seedID string) (*Track, error) {
	return backoff.RetryNotifyWithData(func() (*Track, error) {
		return classify(r.next.GetRelatedTrack(ctx, seedID))
	}, r.policy.backOff(ctx), r.notify(ctx, "GetRelatedTrack", seedID))
}

func (r *Retrying) notify(ctx context.Context, op, id string) backoff.Notify {
	return func(err error, wait time.Duration) {
		r.logger.DebugContext(ctx, "retrying provider call", "op", op, "track_id", id, "wait", wait, "error", err)
	}
}

func classify[T any](v T, err error) (T, error) {
	if err != nil && !IsTransient(err) {
		return v, backoff.Permanent(err)
	}

	return v, err
}
