package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/permission"
	"loom/internal/permission/approval"
	"loom/internal/tools"
)

func TestSendJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	SendJSON(rec, http.StatusCreated, map[string]string{"a": "b"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"a":"b"}`, rec.Body.String())
}

func TestSendError(t *testing.T) {
	rec := httptest.NewRecorder()
	SendError(rec, http.StatusNotFound, ErrCodeNotFound, "missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "missing", resp.Error.Message)
}

func TestHealthHandler(t *testing.T) {
	InitStartTime()

	rec := httptest.NewRecorder()
	HealthHandler("1.2.3", nil)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandlerStats(t *testing.T) {
	InitStartTime()

	stats := func() HealthStats {
		return HealthStats{Tools: 8, PendingApprovals: 2}
	}

	rec := httptest.NewRecorder()
	HealthHandler("1.2.3", stats)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 8, resp.Stats.Tools)
	assert.Equal(t, 2, resp.Stats.PendingApprovals)
}

func approvalRouter(manager *approval.Manager) *mux.Router {
	r := mux.NewRouter()
	NewApprovalHandlers(manager).RegisterRoutes(r)
	return r
}

func TestApprovalListAndDecide(t *testing.T) {
	manager := approval.NewManager(&approval.ManagerConfig{Timeout: 5 * time.Second})
	defer manager.Close()
	router := approvalRouter(manager)

	// Park one escalation.
	verdictCh := make(chan permission.Verdict, 1)
	go func() {
		v, _ := manager.Approve(context.Background(), permission.Request{
			Kind:   permission.KindExecute,
			Target: "make test",
			Tool:   "shell",
		})
		verdictCh <- v
	}()

	require.Eventually(t, func() bool { return manager.PendingCount() == 1 }, time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/approvals", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Requests []approval.Request `json:"requests"`
		Count    int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Equal(t, 1, listResp.Count)
	id := listResp.Requests[0].ID
	assert.Equal(t, "make test", listResp.Requests[0].Permission.Target)

	// Fetch it individually.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/approvals/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Decide it.
	body := strings.NewReader(`{"allow":true,"remember":false}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/approvals/"+id+"/decision", body))
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case v := <-verdictCh:
		assert.True(t, v.Allow)
	case <-time.After(time.Second):
		t.Fatal("approve call did not resolve")
	}
}

func TestApprovalDecideUnknownID(t *testing.T) {
	manager := approval.NewManager(nil)
	defer manager.Close()
	router := approvalRouter(manager)

	body := strings.NewReader(`{"allow":true}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/approvals/nope/decision", body))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApprovalDecideBadBody(t *testing.T) {
	manager := approval.NewManager(nil)
	defer manager.Close()
	router := approvalRouter(manager)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/approvals/x/decision", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fixtureTool struct{}

func (fixtureTool) Name() string        { return "fixture" }
func (fixtureTool) Description() string { return "a fixture" }
func (fixtureTool) Parameters() map[string]any {
	return map[string]any{"type": "object"}
}
func (fixtureTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	return tools.Ok("done"), nil
}

func TestToolList(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(fixtureTool{}))

	r := mux.NewRouter()
	NewToolHandlers(registry).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tools []toolInfo `json:"tools"`
		Count int        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "fixture", resp.Tools[0].Name)
}
