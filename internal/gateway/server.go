// Package gateway exposes the agent over HTTP: a JSON API for pending
// approvals and the tool catalogue, an SSE chat endpoint, and a WebSocket
// hub through which external surfaces observe runs and answer approval
// requests.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"loom/internal/config"
	"loom/internal/gateway/handlers"
	"loom/internal/gateway/middleware"
	"loom/internal/gateway/websocket"
	"loom/internal/permission/approval"
	"loom/internal/runner"
	"loom/internal/tools"
	"loom/pkg/logger"
)

// Server is the HTTP gateway.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *websocket.Hub
	config      config.GatewayConfig
	version     string
	rateLimiter *middleware.RateLimiter

	approvals *approval.Manager
	registry  *tools.Registry
	runner    *runner.Runner
}

// Options carries the server dependencies.
type Options struct {
	Config    config.GatewayConfig
	Version   string
	Approvals *approval.Manager
	Registry  *tools.Registry
	Runner    *runner.Runner
}

// NewServer creates a gateway server and wires its routes.
func NewServer(opts Options) *Server {
	router := mux.NewRouter()

	rlConfig := middleware.RateLimiterConfig{
		RequestsPerMinute: opts.Config.RateLimit.RequestsPerMinute,
		Burst:             opts.Config.RateLimit.Burst,
		Enabled:           opts.Config.RateLimit.Enabled,
		CleanupInterval:   opts.Config.RateLimit.CleanupInterval,
		// Health probes, approval decisions and the hub handshake are
		// never throttled.
		ExemptPaths: []string{"/api/v1/health", "/api/v1/approvals", "/ws"},
	}
	if rlConfig.RequestsPerMinute == 0 {
		rlConfig.RequestsPerMinute = 60
	}
	if rlConfig.Burst == 0 {
		rlConfig.Burst = 10
	}
	if rlConfig.CleanupInterval == 0 {
		rlConfig.CleanupInterval = 5 * time.Minute
	}
	rateLimiter := middleware.NewRateLimiter(rlConfig)

	// Recovery -> Logging -> CORS -> RateLimit -> Version.
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				rateLimiter.RateLimit(
					middleware.Version(middleware.DefaultVersionConfig())(router),
				),
			),
		),
	)

	hub := websocket.NewHub()

	s := &Server{
		httpServer: &http.Server{
			Handler:     handler,
			ReadTimeout: 60 * time.Second,
			// Write timeout stays off: SSE streams are bounded by the
			// request context instead.
			WriteTimeout: 0,
			IdleTimeout:  120 * time.Second,
		},
		router:      router,
		hub:         hub,
		config:      opts.Config,
		version:     opts.Version,
		rateLimiter: rateLimiter,
		approvals:   opts.Approvals,
		registry:    opts.Registry,
		runner:      opts.Runner,
	}

	s.setupRoutes()
	return s
}

// setupRoutes mounts the API surface.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", handlers.HealthHandler(s.version, s.healthStats)).Methods(http.MethodGet)

	if s.approvals != nil {
		handlers.NewApprovalHandlers(s.approvals).RegisterRoutes(api)
		s.hub.SetApprovalHandler(func(requestID string, approved, remember bool, message string) error {
			return s.approvals.HandleResponse(requestID, approved, remember, message)
		})
	}

	if s.registry != nil {
		handlers.NewToolHandlers(s.registry).RegisterRoutes(api)
	}

	if s.runner != nil {
		api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
		s.hub.SetChatHandler(s.handleWebSocketChat)
	}

	s.router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.hub, w, r)
	})
}

// healthStats snapshots the agent for the health endpoint.
func (s *Server) healthStats() handlers.HealthStats {
	stats := handlers.HealthStats{}
	if s.registry != nil {
		stats.Tools = s.registry.Len()
	}
	if s.approvals != nil {
		stats.PendingApprovals = s.approvals.PendingCount()
	}
	return stats
}

// chatRequest is the chat POST body.
type chatRequest struct {
	Message string `json:"message"`
}

// handleChat runs one turn of the conversation and streams its events as
// server-sent events.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		handlers.SendError(w, http.StatusBadRequest, handlers.ErrCodeInvalidRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(ev runner.Event) {
		payload := ev
		if ev.Err != nil {
			payload.Content = ev.Err.Error()
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		flusher.Flush()
	}

	if _, err := s.runner.Run(r.Context(), body.Message, emit); err != nil {
		logger.Warn().Err(err).Msg("Chat run ended with error")
	}
}

// handleWebSocketChat bridges a chat message from a WebSocket client into
// a run, converting loop events into wire messages.
func (s *Server) handleWebSocketChat(sessionID, message string) (<-chan []byte, error) {
	outChan := make(chan []byte, 100)

	emit := func(ev runner.Event) {
		var wsMsg websocket.WSMessage

		switch ev.Type {
		case runner.EventContent:
			wsMsg = websocket.WSMessage{
				Type:    websocket.TypeStream,
				Delta:   ev.Content,
				Session: sessionID,
			}
		case runner.EventToolCall:
			if ev.ToolCall == nil {
				return
			}
			wsMsg = websocket.WSMessage{
				Type:    websocket.TypeToolCall,
				Tool:    ev.ToolCall.Name,
				Params:  json.RawMessage(ev.ToolCall.Arguments),
				Session: sessionID,
			}
		case runner.EventToolResult:
			if ev.ToolResult == nil {
				return
			}
			params, _ := json.Marshal(ev.ToolResult)
			wsMsg = websocket.WSMessage{
				Type:    websocket.TypeToolResult,
				Params:  params,
				Session: sessionID,
			}
		case runner.EventDone:
			wsMsg = websocket.WSMessage{
				Type:    websocket.TypeDone,
				Session: sessionID,
			}
		case runner.EventError:
			msg := "run failed"
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			wsMsg = websocket.WSMessage{
				Type:    websocket.TypeError,
				Message: msg,
				Session: sessionID,
			}
		default:
			return
		}

		data, err := json.Marshal(wsMsg)
		if err != nil {
			return
		}
		select {
		case outChan <- data:
		default:
			// Buffer full, skip event.
		}
	}

	go func() {
		defer close(outChan)
		if _, err := s.runner.Run(context.Background(), message, emit); err != nil {
			logger.Warn().Err(err).Str("session", sessionID).Msg("WebSocket chat run ended with error")
		}
	}()

	return outChan, nil
}

// Start runs the HTTP server until shutdown.
func (s *Server) Start() error {
	handlers.InitStartTime()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer.Addr = addr

	go s.hub.Run()

	logger.Info().Str("addr", addr).Msg("Starting gateway server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// Router returns the underlying router. Used in tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}
