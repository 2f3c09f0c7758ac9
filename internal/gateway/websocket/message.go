// Package websocket provides the hub and client connections through which
// external surfaces observe runs and answer approval requests.
package websocket

import "encoding/json"

// WSMessage is the wire format for both directions.
type WSMessage struct {
	Type    string          `json:"type"`
	Session string          `json:"session,omitempty"`
	Delta   string          `json:"delta,omitempty"`
	Tool    string          `json:"tool,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`

	// Approval fields.
	RequestID string `json:"request_id,omitempty"`
	Approved  bool   `json:"approved,omitempty"`
	Remember  bool   `json:"remember,omitempty"`
}

// BroadcastMessage wraps a payload with its target session. An empty
// session targets every client.
type BroadcastMessage struct {
	Session string
	Data    []byte
}

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeChat        = "chat"
	TypeStream      = "stream"
	TypeToolCall    = "tool_call"
	TypeToolResult  = "tool_result"
	TypeDone        = "done"
	TypeError       = "error"

	TypeApprovalRequest  = "approval_request"
	TypeApprovalResponse = "approval_response"
	TypeApprovalResolved = "approval_resolved"
)
