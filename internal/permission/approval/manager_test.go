package approval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/permission"
)

func testRequest() permission.Request {
	return permission.Request{
		Kind:   permission.KindExecute,
		Target: "git push origin main",
		Tool:   "shell",
	}
}

// answerFirstPending waits for a request to appear and resolves it.
func answerFirstPending(t *testing.T, m *Manager, allow, remember bool) {
	t.Helper()
	go func() {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case <-deadline:
				return
			default:
			}
			if pending := m.ListPending(); len(pending) > 0 {
				_ = m.HandleResponse(pending[0].ID, allow, remember, "")
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func TestApproveResolvedByResponse(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	answerFirstPending(t, m, true, true)

	v, err := m.Approve(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, v.Allow)
	assert.True(t, v.Remember)
	assert.Zero(t, m.PendingCount())
}

func TestDenyResolvedByResponse(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	// remember on a denial is discarded before it ever reaches the gate.
	answerFirstPending(t, m, false, true)

	v, err := m.Approve(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, v.Allow)
	assert.False(t, v.Remember)
}

func TestApproveTimeout(t *testing.T) {
	m := NewManager(&ManagerConfig{Timeout: 30 * time.Millisecond})
	defer m.Close()

	v, err := m.Approve(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, v.Allow, "timeouts resolve as denied")
	assert.Zero(t, m.PendingCount())
}

func TestApproveContextCancelled(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := m.Approve(ctx, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, m.PendingCount())
}

func TestHandleResponseUnknownID(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	err := m.HandleResponse("no-such-id", true, false, "")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestMaxPending(t *testing.T) {
	m := NewManager(&ManagerConfig{MaxPending: 1, Timeout: time.Minute})
	defer m.Close()

	go m.Approve(context.Background(), testRequest()) //nolint:errcheck

	require.Eventually(t, func() bool { return m.PendingCount() == 1 },
		time.Second, 5*time.Millisecond)

	_, err := m.Approve(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrMaxPendingExceeded)
}

func TestAuditTrail(t *testing.T) {
	audit := NewMemoryLogger(0)
	m := NewManager(&ManagerConfig{Logger: audit})
	defer m.Close()

	answerFirstPending(t, m, true, false)

	_, err := m.Approve(context.Background(), testRequest())
	require.NoError(t, err)

	entries := audit.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "request", entries[0].EventType)
	assert.Equal(t, "shell", entries[0].Tool)
	assert.Equal(t, "decision", entries[1].EventType)
	assert.Equal(t, string(DecisionApproved), entries[1].Decision)
}

func TestFileLoggerWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "approvals.jsonl")
	fl, err := NewFileLogger(path)
	require.NoError(t, err)
	defer fl.Close()

	req := &Request{ID: "r1", Permission: testRequest(), CreatedAt: time.Now()}
	require.NoError(t, fl.LogRequest(req))
	require.NoError(t, fl.LogDecision(req, &Result{
		Allow: true, Decision: DecisionApproved, DecidedBy: "user", DecidedAt: time.Now(),
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "decision", entry.EventType)
	assert.Equal(t, "r1", entry.RequestID)
}
