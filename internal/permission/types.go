// Package permission implements the side-effect gate. Every capability
// dispatch is classified into a kind (read, write, execute, fetch) with a
// normalized key, checked against per-kind allow lists and the session
// approval mode, and escalated to an interactive approver when policy does
// not decide. Denied is the failure mode: anything that cannot be
// classified is refused.
package permission

import (
	"context"
	"fmt"
	"time"
)

// Kind classifies the side effect a capability wants to perform.
type Kind string

const (
	KindRead    Kind = "read"    // read filesystem state
	KindWrite   Kind = "write"   // create, modify or delete files
	KindExecute Kind = "execute" // run a subprocess
	KindFetch   Kind = "fetch"   // outbound network access
)

// Mode is the session approval mode. It decides which kinds are granted
// without asking.
type Mode string

const (
	// ModeSuggest grants reads under allowed paths; everything else asks.
	ModeSuggest Mode = "suggest"

	// ModeAutoEdit additionally grants writes under allowed paths.
	// Subprocesses and network access still ask.
	ModeAutoEdit Mode = "auto-edit"

	// ModeFullAuto grants everything that can be classified.
	ModeFullAuto Mode = "full-auto"
)

// ParseMode parses a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSuggest, ModeAutoEdit, ModeFullAuto:
		return Mode(s), nil
	case "":
		return ModeSuggest, nil
	default:
		return "", fmt.Errorf("unknown approval mode: %q", s)
	}
}

// Request is one gate check: a capability wants to perform a side effect
// on a target.
type Request struct {
	// Kind of side effect.
	Kind Kind `json:"kind"`

	// Target is the raw object of the operation: a path for read/write, the
	// full command line for execute, the URL for fetch. The gate derives
	// the normalized key from it.
	Target string `json:"target"`

	// Tool is the capability name, for prompts and audit records.
	Tool string `json:"tool"`

	// Detail is optional human-readable context shown to the approver.
	Detail string `json:"detail,omitempty"`
}

// Decision is the gate's answer for one request.
type Decision struct {
	Allowed bool `json:"allowed"`

	// Reason explains the decision: "allow-list", "mode", "read-only
	// command", "approved", "denied", "unclassifiable target", ...
	Reason string `json:"reason"`

	// Key is the normalized key the decision was made against.
	Key string `json:"key,omitempty"`

	// Remembered reports that the approver asked for the key to be added
	// to the allow list.
	Remembered bool `json:"remembered"`

	DecidedAt time.Time `json:"decided_at"`
}

// Verdict is an approver's answer to an escalated request.
type Verdict struct {
	Allow bool `json:"allow"`

	// Remember asks the gate to memoize the normalized key so equivalent
	// requests stop prompting. Only honored on approval; denials are
	// never memoized.
	Remember bool `json:"remember"`

	// Message is an optional note recorded with the decision.
	Message string `json:"message,omitempty"`
}

// Approver decides escalated requests. Implementations block until the
// collaborator answers or ctx is cancelled.
type Approver interface {
	Approve(ctx context.Context, req Request) (Verdict, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, req Request) (Verdict, error)

// Approve implements Approver.
func (f ApproverFunc) Approve(ctx context.Context, req Request) (Verdict, error) {
	return f(ctx, req)
}

// Store persists remembered allow-list entries across sessions.
type Store interface {
	// LoadEntries returns all persisted entries.
	LoadEntries() ([]Entry, error)

	// SaveEntry persists one entry. Saving an existing entry is a no-op.
	SaveEntry(e Entry) error
}

// Entry is one allow-list element.
type Entry struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}
