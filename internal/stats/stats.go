// In file: internal/stats/stats.go

// Package stats keeps per-model run statistics in a Redis hash.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/finance-chat-gateway/internal/api"
)

// Outcome is how a conversation run ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeTransportFailure
	OutcomeIterationLimit
	OutcomeInternalFailure
)

// latencyAlpha weights the newest sample in the latency moving average.
const latencyAlpha = 0.1

// Hash fields.
const (
	fieldTotalRuns         = "total_runs"
	fieldCompleted         = "completed"
	fieldTransportFailures = "transport_failures"
	fieldIterationLimits   = "iteration_limit_failures"
	fieldInternalFailures  = "internal_failures"
	fieldToolCalls         = "tool_calls"
	fieldToolErrors        = "tool_errors"
	fieldPromptTokens      = "prompt_tokens"
	fieldCompletionTokens  = "completion_tokens"
	fieldAvgLatency        = "avg_latency_ms"
	fieldLastRunAt         = "last_run_at"
	fieldCacheHits         = "cache_hits"
)

// Run is what one finished conversation run contributes to the statistics.
type Run struct {
	Outcome    Outcome
	Latency    time.Duration
	Iterations int
	ToolCalls  int
	ToolErrors int
	Usage      api.Usage
}

// ModelStats is the aggregated view returned by GET /api/v1/stats. Runs and
// latency cover conversations that reached the model; answers served from the
// response cache are counted in CacheHits only.
type ModelStats struct {
	Model                  string    `json:"model"`
	TotalRuns              int64     `json:"total_runs"`
	Completed              int64     `json:"completed"`
	TransportFailures      int64     `json:"transport_failures"`
	IterationLimitFailures int64     `json:"iteration_limit_failures"`
	InternalFailures       int64     `json:"internal_failures"`
	ToolCalls              int64     `json:"tool_calls"`
	ToolErrors             int64     `json:"tool_errors"`
	PromptTokens           int64     `json:"prompt_tokens"`
	CompletionTokens       int64     `json:"completion_tokens"`
	AvgLatencyMS           int64     `json:"avg_latency_ms"`
	FailureRate            float64   `json:"failure_rate"`
	LastRunAt              time.Time `json:"last_run_at"`
	CacheHits              int64     `json:"cache_hits"`
}

// Recorder writes run statistics. Recording is best effort and never fails a request.
type Recorder struct {
	rdb *redis.Client
}

func NewRecorder(rdb *redis.Client) *Recorder {
	return &Recorder{rdb: rdb}
}

func statsKey(model string) string {
	return fmt.Sprintf("stats:%s", model)
}

// Record folds one run into the model's statistics.
func (r *Recorder) Record(ctx context.Context, model string, run Run) {
	if r == nil || r.rdb == nil {
		return
	}
	key := statsKey(model)

	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, fieldTotalRuns, 1)
	pipe.HIncrBy(ctx, key, outcomeField(run.Outcome), 1)
	pipe.HIncrBy(ctx, key, fieldToolCalls, int64(run.ToolCalls))
	pipe.HIncrBy(ctx, key, fieldToolErrors, int64(run.ToolErrors))
	pipe.HIncrBy(ctx, key, fieldPromptTokens, int64(run.Usage.PromptTokens))
	pipe.HIncrBy(ctx, key, fieldCompletionTokens, int64(run.Usage.CompletionTokens))
	pipe.HSet(ctx, key, fieldLastRunAt, time.Now().UTC().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("WARNING: failed to record run stats for %s: %v", model, err)
		return
	}

	if run.Outcome == OutcomeCompleted {
		r.updateLatency(ctx, key, run.Latency)
	}
}

// RecordCacheHit counts an answer served from the response cache.
func (r *Recorder) RecordCacheHit(ctx context.Context, model string) {
	if r == nil || r.rdb == nil {
		return
	}
	if err := r.rdb.HIncrBy(ctx, statsKey(model), fieldCacheHits, 1).Err(); err != nil {
		log.Printf("WARNING: failed to record cache hit for %s: %v", model, err)
	}
}

// updateLatency maintains an exponential moving average under WATCH so
// concurrent runs do not overwrite each other's samples.
func (r *Recorder) updateLatency(ctx context.Context, key string, latency time.Duration) {
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldAvgLatency).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next := latency.Milliseconds()
		if current > 0 {
			next = int64(latencyAlpha*float64(latency.Milliseconds()) + (1.0-latencyAlpha)*float64(current))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldAvgLatency, next)
			return nil
		})
		return err
	}, key)
	if err != nil {
		log.Printf("WARNING: failed to update latency for %s: %v", key, err)
	}
}

// Get returns the model's statistics; an unknown model yields zero counters.
func (r *Recorder) Get(ctx context.Context, model string) (*ModelStats, error) {
	s := &ModelStats{Model: model}
	if r == nil || r.rdb == nil {
		return s, nil
	}
	data, err := r.rdb.HGetAll(ctx, statsKey(model)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read stats for %s: %w", model, err)
	}

	s.TotalRuns = parseInt(data[fieldTotalRuns])
	s.Completed = parseInt(data[fieldCompleted])
	s.TransportFailures = parseInt(data[fieldTransportFailures])
	s.IterationLimitFailures = parseInt(data[fieldIterationLimits])
	s.InternalFailures = parseInt(data[fieldInternalFailures])
	s.ToolCalls = parseInt(data[fieldToolCalls])
	s.ToolErrors = parseInt(data[fieldToolErrors])
	s.PromptTokens = parseInt(data[fieldPromptTokens])
	s.CompletionTokens = parseInt(data[fieldCompletionTokens])
	s.AvgLatencyMS = parseInt(data[fieldAvgLatency])
	s.CacheHits = parseInt(data[fieldCacheHits])
	s.LastRunAt, _ = time.Parse(time.RFC3339Nano, data[fieldLastRunAt])
	if s.TotalRuns > 0 {
		s.FailureRate = float64(s.TotalRuns-s.Completed) / float64(s.TotalRuns)
	}
	return s, nil
}

func outcomeField(o Outcome) string {
	switch o {
	case OutcomeCompleted:
		return fieldCompleted
	case OutcomeTransportFailure:
		return fieldTransportFailures
	case OutcomeIterationLimit:
		return fieldIterationLimits
	default:
		return fieldInternalFailures
	}
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
