package approval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"loom/internal/permission"
	"loom/pkg/logger"
)

// Error definitions.
var (
	ErrRequestNotFound    = errors.New("approval request not found")
	ErrMaxPendingExceeded = errors.New("too many pending approval requests")
)

// pendingRequest holds the state for one in-flight escalation.
type pendingRequest struct {
	request *Request
	done    chan *Result
	timer   *time.Timer
}

// Manager implements permission.Approver by parking escalated requests
// until a surface answers via HandleResponse. A timeout resolves the
// request as denied; denial is always the safe default.
type Manager struct {
	mu sync.RWMutex

	pending    map[string]*pendingRequest
	notifier   Notifier
	auditLog   Logger
	timeout    time.Duration
	maxPending int
	log        zerolog.Logger
}

// Compile-time interface check.
var _ permission.Approver = (*Manager)(nil)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Notifier   Notifier
	Logger     Logger
	Timeout    time.Duration
	MaxPending int
}

// NewManager creates a Manager.
func NewManager(cfg *ManagerConfig) *Manager {
	timeout := 5 * time.Minute
	maxPending := 100

	m := &Manager{
		pending:    make(map[string]*pendingRequest),
		timeout:    timeout,
		maxPending: maxPending,
		log:        logger.Component("approval"),
	}

	if cfg != nil {
		if cfg.Timeout > 0 {
			m.timeout = cfg.Timeout
		}
		if cfg.MaxPending > 0 {
			m.maxPending = cfg.MaxPending
		}
		m.notifier = cfg.Notifier
		m.auditLog = cfg.Logger
	}

	return m
}

// SetNotifier sets the notifier.
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = n
}

// Approve implements permission.Approver. It blocks until the request is
// answered, times out, or ctx is cancelled.
func (m *Manager) Approve(ctx context.Context, preq permission.Request) (permission.Verdict, error) {
	m.mu.RLock()
	if len(m.pending) >= m.maxPending {
		m.mu.RUnlock()
		return permission.Verdict{}, ErrMaxPendingExceeded
	}
	m.mu.RUnlock()

	now := time.Now()
	req := &Request{
		ID:         uuid.NewString(),
		Permission: preq,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.timeout),
	}
	pr := &pendingRequest{
		request: req,
		done:    make(chan *Result, 1),
	}
	pr.timer = time.AfterFunc(m.timeout, func() {
		m.handleTimeout(req.ID)
	})

	m.mu.Lock()
	m.pending[req.ID] = pr
	m.mu.Unlock()

	m.log.Info().Str("request_id", req.ID).
		Str("kind", string(preq.Kind)).
		Str("tool", preq.Tool).
		Str("target", preq.Target).
		Msg("Approval request created")

	if m.auditLog != nil {
		if err := m.auditLog.LogRequest(req); err != nil {
			m.log.Warn().Err(err).Str("request_id", req.ID).Msg("Failed to audit request")
		}
	}
	if m.notifier != nil {
		if err := m.notifier.NotifyRequest(req); err != nil {
			m.log.Warn().Err(err).Str("request_id", req.ID).Msg("Failed to notify request")
		}
	}

	select {
	case result := <-pr.done:
		return permission.Verdict{
			Allow:    result.Allow,
			Remember: result.Remember,
			Message:  result.Message,
		}, nil

	case <-ctx.Done():
		m.cleanup(req.ID)
		return permission.Verdict{}, ctx.Err()
	}
}

// HandleResponse resolves a pending request. remember is only meaningful
// on approvals; the gate ignores it on denials anyway.
func (m *Manager) HandleResponse(requestID string, allow, remember bool, message string) error {
	return m.resolve(requestID, &Result{
		Allow:     allow,
		Remember:  allow && remember,
		Message:   message,
		Decision:  decisionFor(allow),
		DecidedBy: "user",
		DecidedAt: time.Now(),
	})
}

func decisionFor(allow bool) Decision {
	if allow {
		return DecisionApproved
	}
	return DecisionDenied
}

// resolve removes the pending request and delivers the result.
func (m *Manager) resolve(requestID string, result *Result) error {
	m.mu.Lock()
	pr, ok := m.pending[requestID]
	if !ok {
		m.mu.Unlock()
		return ErrRequestNotFound
	}
	if pr.timer != nil {
		pr.timer.Stop()
	}
	delete(m.pending, requestID)
	m.mu.Unlock()

	m.log.Info().Str("request_id", requestID).
		Str("decision", string(result.Decision)).
		Bool("remember", result.Remember).
		Msg("Approval resolved")

	if m.auditLog != nil {
		if err := m.auditLog.LogDecision(pr.request, result); err != nil {
			m.log.Warn().Err(err).Str("request_id", requestID).Msg("Failed to audit decision")
		}
	}
	if m.notifier != nil {
		if err := m.notifier.NotifyResolved(pr.request, result); err != nil {
			m.log.Warn().Err(err).Str("request_id", requestID).Msg("Failed to notify resolution")
		}
	}

	select {
	case pr.done <- result:
	default:
		// Already resolved.
	}
	return nil
}

// handleTimeout resolves an expired request as denied.
func (m *Manager) handleTimeout(requestID string) {
	err := m.resolve(requestID, &Result{
		Allow:     false,
		Message:   "approval request timed out",
		Decision:  DecisionTimeout,
		DecidedAt: time.Now(),
	})
	if err == nil {
		m.log.Warn().Str("request_id", requestID).Msg("Approval request timed out")
	}
}

// cleanup removes a pending request without delivering a result.
func (m *Manager) cleanup(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pr, ok := m.pending[requestID]; ok {
		if pr.timer != nil {
			pr.timer.Stop()
		}
		delete(m.pending, requestID)
	}
}

// GetPending returns a pending request by ID.
func (m *Manager) GetPending(requestID string) (*Request, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if pr, ok := m.pending[requestID]; ok {
		return pr.request, true
	}
	return nil, false
}

// ListPending returns all pending requests.
func (m *Manager) ListPending() []*Request {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Request, 0, len(m.pending))
	for _, pr := range m.pending {
		out = append(out, pr.request)
	}
	return out
}

// PendingCount returns the number of pending requests.
func (m *Manager) PendingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}

// Close denies all pending requests and releases their waiters.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, pr := range m.pending {
		if pr.timer != nil {
			pr.timer.Stop()
		}
		select {
		case pr.done <- &Result{
			Allow:     false,
			Message:   "approval manager closed",
			Decision:  DecisionDenied,
			DecidedAt: time.Now(),
		}:
		default:
		}
		delete(m.pending, id)
	}
}
