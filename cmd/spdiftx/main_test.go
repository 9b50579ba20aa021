package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHoldDuration(t *testing.T) {
	start := time.Now()
	assert.False(t, hold(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestHoldUnknownDurationWaitsForCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.True(t, hold(ctx, 0))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestHoldInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, hold(ctx, time.Hour))
}
