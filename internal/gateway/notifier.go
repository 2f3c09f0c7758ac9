package gateway

import (
	"loom/internal/gateway/websocket"
	"loom/internal/permission/approval"
)

// HubNotifier broadcasts approval lifecycle events to connected clients.
type HubNotifier struct {
	hub *websocket.Hub
}

// Compile-time interface check.
var _ approval.Notifier = (*HubNotifier)(nil)

// NewHubNotifier creates a notifier backed by a hub.
func NewHubNotifier(hub *websocket.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// NotifyRequest broadcasts a new pending approval request.
func (n *HubNotifier) NotifyRequest(req *approval.Request) error {
	return n.hub.BroadcastTyped(websocket.TypeApprovalRequest, req)
}

// NotifyResolved broadcasts the resolution of a request.
func (n *HubNotifier) NotifyResolved(req *approval.Request, result *approval.Result) error {
	return n.hub.BroadcastTyped(websocket.TypeApprovalResolved, map[string]any{
		"request": req,
		"result":  result,
	})
}
