package stats

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/finance-chat-gateway/internal/api"
)

func newTestRecorder(t *testing.T) (*Recorder, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRecorder(rdb), mr
}

func TestRecorder_AggregatesRuns(t *testing.T) {
	r, _ := newTestRecorder(t)
	ctx := context.Background()

	r.Record(ctx, "m", Run{
		Outcome:    OutcomeCompleted,
		Latency:    1000 * time.Millisecond,
		Iterations: 2,
		ToolCalls:  3,
		ToolErrors: 1,
		Usage:      api.Usage{PromptTokens: 100, CompletionTokens: 20},
	})
	r.Record(ctx, "m", Run{Outcome: OutcomeCompleted, Latency: 2000 * time.Millisecond})
	r.Record(ctx, "m", Run{Outcome: OutcomeTransportFailure})
	r.Record(ctx, "m", Run{Outcome: OutcomeIterationLimit, ToolCalls: 5})

	s, err := r.Get(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, "m", s.Model)
	assert.EqualValues(t, 4, s.TotalRuns)
	assert.EqualValues(t, 2, s.Completed)
	assert.EqualValues(t, 1, s.TransportFailures)
	assert.EqualValues(t, 1, s.IterationLimitFailures)
	assert.EqualValues(t, 8, s.ToolCalls)
	assert.EqualValues(t, 1, s.ToolErrors)
	assert.EqualValues(t, 100, s.PromptTokens)
	assert.EqualValues(t, 20, s.CompletionTokens)
	// First sample seeds the average, the second moves it by alpha.
	assert.EqualValues(t, 1100, s.AvgLatencyMS)
	assert.InDelta(t, 0.5, s.FailureRate, 1e-9)
	assert.False(t, s.LastRunAt.IsZero())
}

func TestRecorder_CacheHitsAreSeparateFromRuns(t *testing.T) {
	r, _ := newTestRecorder(t)
	ctx := context.Background()

	r.Record(ctx, "m", Run{Outcome: OutcomeCompleted, Latency: 500 * time.Millisecond})
	r.RecordCacheHit(ctx, "m")
	r.RecordCacheHit(ctx, "m")

	s, err := r.Get(ctx, "m")
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.CacheHits)
	assert.EqualValues(t, 1, s.TotalRuns)
	assert.EqualValues(t, 500, s.AvgLatencyMS)
}

func TestRecorder_UnknownModel(t *testing.T) {
	r, _ := newTestRecorder(t)
	s, err := r.Get(context.Background(), "never-used")
	require.NoError(t, err)
	assert.Zero(t, s.TotalRuns)
	assert.Zero(t, s.FailureRate)
}

func TestRecorder_RedisDown(t *testing.T) {
	r, mr := newTestRecorder(t)
	mr.Close()

	assert.NotPanics(t, func() {
		r.Record(context.Background(), "m", Run{Outcome: OutcomeCompleted})
	})
	_, err := r.Get(context.Background(), "m")
	assert.Error(t, err)
}

func TestRecorder_NilIsDisabled(t *testing.T) {
	var r *Recorder
	r.Record(context.Background(), "m", Run{})
	r.RecordCacheHit(context.Background(), "m")
	s, err := r.Get(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, "m", s.Model)
}
