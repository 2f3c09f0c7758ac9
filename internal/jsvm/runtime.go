// Package jsvm executes JavaScript snippets in an embedded interpreter.
// It backs user-defined script tools: pure computation over the injected
// globals, no host access. Each execution gets a fresh interpreter so
// scripts cannot leak state into each other.
package jsvm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"loom/pkg/logger"
)

// DefaultTimeout bounds a single script execution.
const DefaultTimeout = 30 * time.Second

// ErrInterrupted is returned when a script is stopped by timeout or
// cancellation.
var ErrInterrupted = errors.New("script interrupted")

// Runtime executes scripts.
type Runtime struct {
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a runtime. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration) *Runtime {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runtime{
		timeout: timeout,
		log:     logger.Component("jsvm"),
	}
}

// Result holds the outcome of one execution.
type Result struct {
	// Value is the script's completion value, exported to Go types.
	Value any

	// Logs are console.log lines captured during execution.
	Logs []string
}

// Execute runs a script with the given globals bound. The script is
// interrupted when ctx is cancelled or the runtime timeout elapses.
func (r *Runtime) Execute(ctx context.Context, name, script string, globals map[string]any) (*Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vm := goja.New()

	res := &Result{}
	if err := r.setupConsole(vm, name, res); err != nil {
		return nil, err
	}
	for k, v := range globals {
		if err := vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("bind global %s: %w", k, err)
		}
	}

	// Watchdog: interrupt the interpreter when the context ends. goja only
	// checks the interrupt flag between operations, so tight loops still
	// stop promptly.
	watchdogDone := make(chan struct{})
	go func() {
		select {
		case <-execCtx.Done():
			vm.Interrupt(execCtx.Err())
		case <-watchdogDone:
		}
	}()
	defer close(watchdogDone)

	val, err := vm.RunString(script)
	if err != nil {
		return nil, r.wrapError(err, name, execCtx)
	}

	res.Value = exportValue(val)
	return res, nil
}

// setupConsole binds a console object that captures log output.
func (r *Runtime) setupConsole(vm *goja.Runtime, name string, res *Result) error {
	console := vm.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		line := ""
		for i, arg := range call.Arguments {
			if i > 0 {
				line += " "
			}
			line += arg.String()
		}
		res.Logs = append(res.Logs, line)
		r.log.Debug().Str("script", name).Str("line", line).Msg("console.log")
		return goja.Undefined()
	}
	for _, method := range []string{"log", "info", "warn", "error"} {
		if err := console.Set(method, logFn); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// wrapError maps interpreter failures onto package errors.
func (r *Runtime) wrapError(err error, name string, ctx context.Context) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		cause := ctx.Err()
		if cause == nil {
			cause = fmt.Errorf("%v", interrupted.Value())
		}
		return fmt.Errorf("%w: script %s: %v", ErrInterrupted, name, cause)
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return fmt.Errorf("script %s threw: %s", name, exception.String())
	}

	return fmt.Errorf("script %s: %w", name, err)
}

// exportValue converts an interpreter value to a Go value.
func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
