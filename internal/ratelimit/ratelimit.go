// Package ratelimit provides a pair of token buckets that cap download and
// upload byte rates for callers that wait on them.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps separate token buckets for downloaded and uploaded bytes.
// A zero bytesPerSec disables limiting for that direction.
type Limiter struct {
	down *rate.Limiter
	up   *rate.Limiter
}

// New builds a Limiter. Burst is set to one second's worth of the
// configured rate so short bursts (e.g. a single large Piece message)
// aren't fragmented across waits.
func New(downBytesPerSec, upBytesPerSec int) *Limiter {
	return &Limiter{
		down: newBucket(downBytesPerSec),
		up:   newBucket(upBytesPerSec),
	}
}

func newBucket(bytesPerSec int) *rate.Limiter {
	if bytesPerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
}

// WaitDownload blocks until n bytes may be received under the download cap.
func (l *Limiter) WaitDownload(ctx context.Context, n int) error {
	return l.down.WaitN(ctx, n)
}

// WaitUpload blocks until n bytes may be sent under the upload cap.
func (l *Limiter) WaitUpload(ctx context.Context, n int) error {
	return l.up.WaitN(ctx, n)
}

// SetDownloadLimit adjusts the download cap at runtime (e.g. from a config
// reload or RPC command).
func (l *Limiter) SetDownloadLimit(bytesPerSec int) {
	l.down.SetLimit(limitOf(bytesPerSec))
	l.down.SetBurst(burstOf(bytesPerSec))
}

// SetUploadLimit adjusts the upload cap at runtime.
func (l *Limiter) SetUploadLimit(bytesPerSec int) {
	l.up.SetLimit(limitOf(bytesPerSec))
	l.up.SetBurst(burstOf(bytesPerSec))
}

func limitOf(bytesPerSec int) rate.Limit {
	if bytesPerSec <= 0 {
		return rate.Inf
	}
	return rate.Limit(bytesPerSec)
}

func burstOf(bytesPerSec int) int {
	if bytesPerSec <= 0 {
		return 0
	}
	return bytesPerSec
}
