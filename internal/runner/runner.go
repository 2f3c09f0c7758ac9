// Package runner drives the conversation loop: it sends history to the
// active provider adapter, consumes canonical events, routes proposed
// tool calls through the permission gate and registry, appends results,
// and decides continuation or termination. Exactly one causal thread per
// conversation: turns never overlap and dispatch is strictly sequential.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"loom/internal/permission"
	"loom/internal/provider"
	"loom/internal/tools"
	"loom/pkg/logger"
)

// DefaultMaxIterations caps provider turns per run.
const DefaultMaxIterations = 20

// DenialMessage is the fixed prefix of tool results synthesized for
// refused invocations.
const DenialMessage = "Permission denied"

// Config tunes one runner instance.
type Config struct {
	// Model requested from the provider. Empty uses the provider default.
	Model string

	// SystemPrompt seeds the history.
	SystemPrompt string

	// MaxIterations caps provider turns. Non-positive uses the default.
	MaxIterations int

	// MaxToolResultBytes bounds tool output entering history.
	// Non-positive uses DefaultMaxToolResultBytes.
	MaxToolResultBytes int

	Temperature float64
	MaxTokens   int
}

// Result summarizes a finished run.
type Result struct {
	// State is the terminal state reached.
	State State

	// Iterations is the number of provider turns consumed.
	Iterations int

	// Content is the assistant text of the final turn.
	Content string

	// Usage accumulates token counts across turns.
	Usage provider.Usage
}

// Runner owns one conversation.
type Runner struct {
	provider provider.Provider
	registry *tools.Registry
	gate     *permission.Gate
	config   Config
	history  *History
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	state   State
}

// New creates a runner. The gate may be nil, in which case every gated
// tool is refused (fail closed, same as a gate without an approver).
func New(prov provider.Provider, registry *tools.Registry, gate *permission.Gate, cfg Config) *Runner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxToolResultBytes <= 0 {
		cfg.MaxToolResultBytes = DefaultMaxToolResultBytes
	}
	return &Runner{
		provider: prov,
		registry: registry,
		gate:     gate,
		config:   cfg,
		history:  NewHistory(cfg.SystemPrompt),
		log:      logger.Component("runner"),
		state:    StateIdle,
	}
}

// History exposes the conversation history.
func (r *Runner) History() *History { return r.history }

// State returns the current loop state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run appends the user input and drives turns until a terminal state.
// Events stream to emit as they happen; the returned Result reports the
// terminal state. Terminal failures (provider error, iteration cap,
// cancellation) also return a sentinel error and emit exactly one error
// event.
func (r *Runner) Run(ctx context.Context, input string, emit Callback) (*Result, error) {
	if r.provider == nil {
		return nil, ErrNoProvider
	}
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	if emit == nil {
		emit = func(Event) {}
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.history.Append(provider.Message{Role: provider.RoleUser, Content: input})

	res := &Result{}
	for {
		// Suspension point: no new provider request after cancellation.
		if ctx.Err() != nil {
			return r.finish(res, StateCancelled, ErrCancelled, emit)
		}
		if res.Iterations >= r.config.MaxIterations {
			return r.finish(res, StateFailed, ErrMaxIterations, emit)
		}
		res.Iterations++

		r.setState(StateAwaitingProvider)
		turn, err := r.requestTurn(ctx, res.Iterations, emit)
		if err != nil {
			return r.finish(res, StateFailed, err, emit)
		}

		r.history.Append(provider.Message{
			Role:      provider.RoleAssistant,
			Content:   turn.content,
			ToolCalls: turn.calls,
		})
		res.Content = turn.content
		res.Usage.PromptTokens += turn.usage.PromptTokens
		res.Usage.CompletionTokens += turn.usage.CompletionTokens
		res.Usage.TotalTokens += turn.usage.TotalTokens

		if len(turn.calls) == 0 {
			r.setState(StateDone)
			res.State = StateDone
			emit(Event{Type: EventDone, Usage: &res.Usage, Iteration: res.Iterations})
			return res, nil
		}

		r.setState(StateDispatchingTools)
		cancelled := r.dispatchAll(ctx, turn.calls, res.Iterations, emit)
		if cancelled {
			return r.finish(res, StateCancelled, ErrCancelled, emit)
		}
	}
}

// finish records a terminal failure state and reports it exactly once.
func (r *Runner) finish(res *Result, state State, err error, emit Callback) (*Result, error) {
	r.setState(state)
	res.State = state
	emit(Event{Type: EventError, Err: err, Iteration: res.Iterations})
	r.log.Warn().Str("state", state.String()).Err(err).Int("iterations", res.Iterations).Msg("run ended")
	return res, err
}

// turnOutcome is what one provider turn produced.
type turnOutcome struct {
	content string
	calls   []provider.ToolCall
	usage   provider.Usage
}

// requestTurn streams one provider turn, forwarding text live and
// accumulating proposed calls. Dispatch relies only on the buffered
// tool_call events, never on deltas.
func (r *Runner) requestTurn(ctx context.Context, iteration int, emit Callback) (*turnOutcome, error) {
	providerTools, err := r.registry.ToProviderTools()
	if err != nil {
		return nil, fmt.Errorf("build tool catalogue: %w", err)
	}

	stream, err := r.provider.Chat(ctx, provider.ChatRequest{
		Model:       r.config.Model,
		Messages:    r.history.Snapshot(),
		Tools:       providerTools,
		Temperature: r.config.Temperature,
		MaxTokens:   r.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	outcome := &turnOutcome{}
	var content strings.Builder
	for ev := range stream {
		switch ev.Type {
		case provider.EventTypeContent:
			content.WriteString(ev.Delta)
			emit(Event{Type: EventContent, Content: ev.Delta, Iteration: iteration})

		case provider.EventTypeToolCallDelta:
			emit(Event{Type: EventToolCallDelta, ToolCallDelta: ev.ToolCallDelta, Iteration: iteration})

		case provider.EventTypeToolCall:
			if ev.ToolCall == nil {
				continue
			}
			outcome.calls = append(outcome.calls, *ev.ToolCall)
			emit(Event{Type: EventToolCall, ToolCall: ev.ToolCall, Iteration: iteration})

		case provider.EventTypeDone:
			if ev.Usage != nil {
				outcome.usage = *ev.Usage
			}

		case provider.EventTypeError:
			if ev.Error != nil {
				return nil, ev.Error
			}
			return nil, fmt.Errorf("provider reported an unspecified error")
		}
	}

	outcome.content = content.String()
	return outcome, nil
}

// dispatchAll executes proposed calls strictly in proposal order. It
// reports whether cancellation was raised. A call already started when
// cancellation arrives finishes and its result is recorded, but the live
// callback is suppressed and no further call begins.
func (r *Runner) dispatchAll(ctx context.Context, calls []provider.ToolCall, iteration int, emit Callback) bool {
	for _, call := range calls {
		// Suspension point: no new dispatch after cancellation.
		if ctx.Err() != nil {
			return true
		}

		start := time.Now()
		// The execution itself is shielded so an in-flight side effect is
		// not cut off halfway. Tools keep their own timeouts.
		result := r.dispatch(context.WithoutCancel(ctx), ctx, call)
		result.Content = TruncateToolResult(result.Content, r.config.MaxToolResultBytes)

		r.history.Append(provider.Message{
			Role:       provider.RoleTool,
			Content:    result.Content,
			ToolCallID: call.ID,
		})

		if ctx.Err() != nil {
			return true
		}
		emit(Event{
			Type: EventToolResult,
			ToolResult: &ToolResultEvent{
				CallID:   call.ID,
				Name:     call.Name,
				Content:  result.Content,
				IsError:  result.IsError,
				Duration: time.Since(start),
			},
			Iteration: iteration,
		})
	}
	return false
}

// dispatch resolves, gates and executes one call. No failure here is
// fatal: unknown names, refusals, bad arguments and execution errors all
// come back as error results the model can react to.
func (r *Runner) dispatch(execCtx, gateCtx context.Context, call provider.ToolCall) tools.Result {
	tool, ok := r.registry.Get(call.Name)
	if !ok {
		return tools.Fail(fmt.Sprintf("tool not found: %s", call.Name))
	}

	args, err := call.ArgumentsMap()
	if err != nil {
		return tools.Fail(fmt.Sprintf("invalid arguments for %s: %v", call.Name, err))
	}

	if gated, ok := tool.(tools.Gated); ok {
		for _, req := range gated.Permissions(args) {
			if r.gate == nil {
				return tools.Fail(fmt.Sprintf("%s: no permission gate configured", DenialMessage))
			}
			decision, err := r.gate.Check(gateCtx, req)
			if err != nil {
				return tools.Fail(fmt.Sprintf("%s: %v", DenialMessage, err))
			}
			if !decision.Allowed {
				return tools.Fail(fmt.Sprintf("%s: %s %s (%s)", DenialMessage, req.Kind, req.Target, decision.Reason))
			}
		}
	}

	result, err := tool.Execute(execCtx, args)
	if err != nil {
		return tools.Fail(fmt.Sprintf("tool %s failed: %v", call.Name, err))
	}
	return result
}
