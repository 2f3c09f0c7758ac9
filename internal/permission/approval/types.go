// Package approval brokers escalated permission requests between the gate
// and whoever answers them: a terminal prompt, the HTTP gateway, or a
// websocket client. Requests wait on a channel until decided or timed out.
package approval

import (
	"time"

	"loom/internal/permission"
)

// Decision classifies how a request was resolved.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
	DecisionTimeout  Decision = "timeout"
)

// Request is one pending escalation.
type Request struct {
	// ID identifies the request for responses and audit records.
	ID string `json:"id"`

	// Permission is the gate request awaiting a decision.
	Permission permission.Request `json:"permission"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Result is the outcome of one escalation.
type Result struct {
	Allow    bool     `json:"allow"`
	Remember bool     `json:"remember"`
	Message  string   `json:"message,omitempty"`
	Decision Decision `json:"decision"`

	// DecidedBy identifies the answering surface ("terminal", "gateway").
	DecidedBy string    `json:"decided_by,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Notifier announces request lifecycle events to connected surfaces.
type Notifier interface {
	// NotifyRequest broadcasts a new pending request.
	NotifyRequest(req *Request) error

	// NotifyResolved broadcasts the resolution of a request.
	NotifyResolved(req *Request, result *Result) error
}

// Logger records escalations for audit.
type Logger interface {
	LogRequest(req *Request) error
	LogDecision(req *Request, result *Result) error
}
