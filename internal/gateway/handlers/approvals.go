package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"loom/internal/permission/approval"
)

// ApprovalHandlers serves the pending-approval API.
type ApprovalHandlers struct {
	manager *approval.Manager
}

// NewApprovalHandlers creates approval handlers backed by a manager.
func NewApprovalHandlers(manager *approval.Manager) *ApprovalHandlers {
	return &ApprovalHandlers{manager: manager}
}

// RegisterRoutes mounts the approval endpoints on a router.
func (h *ApprovalHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/approvals", h.List).Methods(http.MethodGet)
	r.HandleFunc("/approvals/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/approvals/{id}/decision", h.Decide).Methods(http.MethodPost)
}

// List returns all pending approval requests.
func (h *ApprovalHandlers) List(w http.ResponseWriter, r *http.Request) {
	pending := h.manager.ListPending()
	SendJSON(w, http.StatusOK, map[string]any{
		"requests": pending,
		"count":    len(pending),
	})
}

// Get returns one pending request by ID.
func (h *ApprovalHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	req, ok := h.manager.GetPending(id)
	if !ok {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, "approval request not found")
		return
	}
	SendJSON(w, http.StatusOK, req)
}

// decisionRequest is the decision POST body.
type decisionRequest struct {
	Allow    bool   `json:"allow"`
	Remember bool   `json:"remember,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Decide resolves a pending request.
func (h *ApprovalHandlers) Decide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid decision body")
		return
	}

	if err := h.manager.HandleResponse(id, body.Allow, body.Remember, body.Message); err != nil {
		SendError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"id":    id,
		"allow": body.Allow,
	})
}
