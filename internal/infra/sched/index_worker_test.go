//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/usecase"
)

type countingIndexer struct {
	calls atomic.Int32
	errs  []error
}

func (c *countingIndexer) Run(context.Context) (*usecase.IndexReport, error) {
	n := int(c.calls.Add(1)) - 1
	if n < len(c.errs) && c.errs[n] != nil {
		return nil, c.errs[n]
	}
	return &usecase.IndexReport{RunID: "r", Saved: 1}, nil
}

func TestIndexWorker_RunsImmediatelyAndOnTicks(t *testing.T) {
	idx := &countingIndexer{errs: []error{domain.ErrIndexInProgress, errors.New("boom")}}
	l := zerolog.Nop()
	w := NewIndexWorker(5*time.Millisecond, idx, &l)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return idx.calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewIndexWorker_DefaultInterval(t *testing.T) {
	l := zerolog.Nop()
	w := NewIndexWorker(0, &countingIndexer{}, &l)
	assert.Equal(t, time.Hour, w.interval)
}
