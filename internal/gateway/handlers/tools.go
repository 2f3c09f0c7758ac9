package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"loom/internal/tools"
)

// ToolHandlers serves the tool catalogue API.
type ToolHandlers struct {
	registry *tools.Registry
}

// NewToolHandlers creates tool handlers backed by a registry.
func NewToolHandlers(registry *tools.Registry) *ToolHandlers {
	return &ToolHandlers{registry: registry}
}

// RegisterRoutes mounts the tool endpoints on a router.
func (h *ToolHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tools", h.List).Methods(http.MethodGet)
}

// toolInfo is one catalogue entry.
type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// List returns the registered tools.
func (h *ToolHandlers) List(w http.ResponseWriter, r *http.Request) {
	var infos []toolInfo
	for _, tool := range h.registry.List() {
		infos = append(infos, toolInfo{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"tools": infos,
		"count": len(infos),
	})
}
