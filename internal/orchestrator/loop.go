// In file: internal/orchestrator/loop.go

// Package orchestrator drives one bounded conversation run between a model
// endpoint and a capability server.
//
// The run is an explicit state machine:
//
//	AwaitingModel --(no tool calls)--> Terminated
//	AwaitingModel --(tool calls, rounds < limit)--> Dispatching --> AwaitingModel
//	AwaitingModel --(tool calls, rounds == limit)--> Failed (IterationLimitError)
//	AwaitingModel --(model error)--> Failed (TransportError)
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dileep-u-k/finance-chat-gateway/internal/api"
	"github.com/dileep-u-k/finance-chat-gateway/internal/llm"
	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

const (
	DefaultMaxIterations = 5
	DefaultMaxTokens     = 4096
	DefaultModelTimeout  = 120 * time.Second
)

// State is a position in the run's state machine.
type State int

const (
	StateAwaitingModel State = iota
	StateDispatching
	StateTerminated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateDispatching:
		return "dispatching"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Catalog is the read-only view of the discovered tools the loop needs.
type Catalog interface {
	Descriptors() []tools.Descriptor
}

// ToolInvoker executes one tool call. Failures come back inside the result.
type ToolInvoker interface {
	Invoke(ctx context.Context, userID string, call tools.ToolCall) tools.ToolResult
}

// Config tunes a Loop. Zero values fall back to the defaults.
type Config struct {
	Model         string
	MaxTokens     int
	MaxIterations int
	ModelTimeout  time.Duration
	// ParallelToolCalls dispatches the calls of one reply concurrently.
	// Result messages are still appended in the order the model emitted them.
	ParallelToolCalls bool
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = DefaultModelTimeout
	}
	return c
}

// RunRequest starts one conversation run.
type RunRequest struct {
	// UserID is passed to every tool call of the run.
	UserID   string
	Messages []llm.Message
}

// RunResult describes a finished run. On failure it is still returned with
// the transcript up to the point of failure.
type RunResult struct {
	RunID      string
	State      State
	Answer     string
	Transcript []llm.Message
	// Iterations is the number of dispatch rounds that ran.
	Iterations int
	ToolCalls  int
	ToolErrors int
	Usage      api.Usage
}

// Loop is safe for concurrent runs; all per-run state lives in Run.
type Loop struct {
	model   llm.ModelClient
	catalog Catalog
	invoker ToolInvoker
	cfg     Config
}

// New builds a loop. A nil catalog behaves as an empty one.
func New(model llm.ModelClient, catalog Catalog, invoker ToolInvoker, cfg Config) *Loop {
	return &Loop{
		model:   model,
		catalog: catalog,
		invoker: invoker,
		cfg:     cfg.withDefaults(),
	}
}

// MaxIterations returns the effective round limit.
func (l *Loop) MaxIterations() int {
	return l.cfg.MaxIterations
}

// Run drives the conversation until the model answers without requesting
// tools, the model endpoint fails, or the round limit is hit.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	run := &RunResult{
		RunID:      uuid.NewString(),
		State:      StateAwaitingModel,
		Transcript: append(make([]llm.Message, 0, len(req.Messages)+4), req.Messages...),
	}
	var descs []tools.Descriptor
	if l.catalog != nil {
		descs = l.catalog.Descriptors()
	}

	for {
		reply, err := l.awaitModel(ctx, run, descs)
		if err != nil {
			run.State = StateFailed
			return run, err
		}
		run.Transcript = append(run.Transcript, llm.AssistantMessage(reply.Content))

		if !reply.HasToolCalls() {
			run.State = StateTerminated
			run.Answer = reply.Content
			return run, nil
		}

		if run.Iterations >= l.cfg.MaxIterations {
			run.State = StateFailed
			log.Printf("WARNING: run %s hit the limit of %d tool rounds", run.RunID, l.cfg.MaxIterations)
			return run, &IterationLimitError{Limit: l.cfg.MaxIterations, Pending: len(reply.ToolCalls)}
		}

		run.State = StateDispatching
		log.Printf("🔧 Model requested %d tool call(s) (round %d/%d)", len(reply.ToolCalls), run.Iterations+1, l.cfg.MaxIterations)
		for _, res := range l.dispatch(ctx, req.UserID, reply.ToolCalls) {
			run.ToolCalls++
			if res.IsError() {
				run.ToolErrors++
			}
			run.Transcript = append(run.Transcript, llm.UserMessage(res.Message()))
		}
		run.Iterations++
		run.State = StateAwaitingModel
	}
}

func (l *Loop) awaitModel(ctx context.Context, run *RunResult, descs []tools.Descriptor) (*llm.Reply, error) {
	// A cancelled caller ends the run before another model call is made.
	if err := ctx.Err(); err != nil {
		return nil, &llm.TransportError{Op: "request", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, l.cfg.ModelTimeout)
	defer cancel()

	reply, err := l.model.Complete(callCtx, &llm.CompletionRequest{
		Model:     l.cfg.Model,
		Messages:  run.Transcript,
		Tools:     descs,
		MaxTokens: l.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	run.Usage.Add(reply.Usage)
	return reply, nil
}

// dispatch runs every call of one reply and returns the results in call order.
func (l *Loop) dispatch(ctx context.Context, userID string, calls []tools.ToolCall) []tools.ToolResult {
	results := make([]tools.ToolResult, len(calls))

	if !l.cfg.ParallelToolCalls || len(calls) == 1 {
		for i, call := range calls {
			log.Printf("📞 Calling tool: %s", call.Function.Name)
			results[i] = l.invoker.Invoke(ctx, userID, call)
		}
		return results
	}

	// Invoke never returns an error, so the group is only used to join.
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			log.Printf("📞 Calling tool: %s", call.Function.Name)
			results[i] = l.invoker.Invoke(ctx, userID, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
