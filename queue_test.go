package camconfig

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropQueue(t *testing.T) {
	q := newDropQueue()
	defer q.Close()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- q.Push(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		second <- q.Push(ctx, func(context.Context) error { return errors.New("replaced job ran") })
	}()
	waitFor(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.pending != nil
	})

	var ran atomic.Bool
	third := make(chan error, 1)
	go func() {
		third <- q.Push(ctx, func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()

	assert.ErrorIs(t, <-second, ErrJobDropped)
	close(release)
	assert.NoError(t, <-first)
	assert.NoError(t, <-third)
	assert.True(t, ran.Load())

	// Idle again: the next job starts right away.
	require.NoError(t, q.Push(ctx, func(context.Context) error { return nil }))
}

func TestDropQueueClose(t *testing.T) {
	q := newDropQueue()
	ctx := context.Background()

	started := make(chan struct{})
	running := make(chan error, 1)
	go func() {
		running <- q.Push(ctx, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	<-started

	q.Close()
	assert.ErrorIs(t, <-running, context.Canceled)
	assert.ErrorIs(t, q.Push(ctx, func(context.Context) error { return nil }), ErrClosed)
}

func TestDropQueueWaitCanceled(t *testing.T) {
	q := newDropQueue()
	defer q.Close()

	release := make(chan struct{})
	defer close(release)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Push(ctx, func(context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
