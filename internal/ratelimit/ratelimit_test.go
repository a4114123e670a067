package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnlimitedNeverBlocks(t *testing.T) {
	l := New(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.WaitDownload(ctx, 10<<20))
}

func TestLimitedEventuallyAllowsBurst(t *testing.T) {
	l := New(1000, 1000)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.WaitDownload(ctx, 1000))
}

func TestSetDownloadLimitAppliesImmediately(t *testing.T) {
	l := New(1000, 1000)
	l.SetDownloadLimit(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.NoError(t, l.WaitDownload(ctx, 1<<20))
}
