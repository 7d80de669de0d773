package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"taskflow/api/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastEffects(workers, queue int, metrics *Metrics) *Effects {
	e := NewEffects(workers, queue, logger.NewNoopLogger(), metrics)
	e.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
	}
	return e
}

func TestEffectsRunAndDrainOnClose(t *testing.T) {
	e := fastEffects(2, 16, nil)
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, e.Dispatch("count", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	e.Close()
	assert.Equal(t, int32(10), ran.Load())
}

func TestEffectsRetryThenGiveUp(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	e := fastEffects(1, 4, metrics)

	var calls atomic.Int32
	e.Dispatch("flaky", func(context.Context) error {
		if calls.Add(1) < 2 {
			return errors.New("temporarily down")
		}
		return nil
	})
	e.Dispatch("broken", func(context.Context) error {
		return errors.New("always down")
	})
	e.Close()

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.effectsFailed.WithLabelValues("broken")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.effectsFailed.WithLabelValues("flaky")))
}

func TestEffectsPanicDoesNotKillWorker(t *testing.T) {
	e := fastEffects(1, 4, nil)
	var ran atomic.Bool
	e.Dispatch("panics", func(context.Context) error { panic("boom") })
	e.Dispatch("after", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	e.Close()
	assert.True(t, ran.Load())
}

func TestEffectsDropWhenFull(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	e := fastEffects(1, 1, metrics)

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	require.True(t, e.Dispatch("block", func(context.Context) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}))
	<-started
	require.True(t, e.Dispatch("queued", func(context.Context) error { return nil }))

	done := make(chan bool)
	go func() { done <- e.Dispatch("dropped", func(context.Context) error { return nil }) }()
	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.effectsDropped.WithLabelValues("dropped")))

	close(release)
	e.Close()
	assert.False(t, e.Dispatch("late", func(context.Context) error { return nil }))
}
