// Package server exposes sessions over a WebSocket chat endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/core"
	"github.com/becomeliminal/sidekick/session"
	"github.com/becomeliminal/sidekick/transcript"
	"github.com/becomeliminal/sidekick/turn"
)

// DefaultTurnTimeout bounds a turn started from a socket frame.
const DefaultTurnTimeout = 2 * time.Minute

// Sessions is the part of session.Manager the server uses.
type Sessions interface {
	Create() string
	Turn(ctx context.Context, id, input, choice string) (turn.Display, error)
	Info(id string) (session.Info, error)
	Len() int
}

// Config configures the server.
type Config struct {
	Sessions Sessions
	// Transcript is optional. When set, every displayed line is recorded.
	Transcript  *transcript.Store
	TurnTimeout time.Duration
	Logger      *zap.Logger
}

// Server serves the chat front end.
type Server struct {
	sessions    Sessions
	transcript  *transcript.Store
	turnTimeout time.Duration
	upgrader    websocket.Upgrader
	mux         *http.ServeMux
	logger      *zap.Logger
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("server: sessions are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = DefaultTurnTimeout
	}

	s := &Server{
		sessions:    cfg.Sessions,
		transcript:  cfg.Transcript,
		turnTimeout: timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux:    http.NewServeMux(),
		logger: logger.Named("server"),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /sessions/{id}/transcript", s.handleTranscript)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.transcript == nil {
		http.Error(w, "transcripts are not enabled", http.StatusNotFound)
		return
	}
	entries, err := s.transcript.List(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("list transcript", zap.Error(err))
		http.Error(w, "failed to read transcript", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id != "" {
		if _, err := s.sessions.Info(id); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if id == "" {
		id = s.sessions.Create()
	}
	logger := s.logger.With(zap.String("session_id", id))
	logger.Info("client connected")

	if err := conn.WriteJSON(ServerFrame{
		Type:       TypeSession,
		SessionID:  id,
		Archetypes: Archetypes(),
	}); err != nil {
		logger.Warn("write session frame", zap.Error(err))
		return
	}

	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("read frame", zap.Error(err))
			}
			logger.Info("client disconnected")
			return
		}

		out := s.handleFrame(r.Context(), id, frame)
		if err := conn.WriteJSON(out); err != nil {
			logger.Warn("write frame", zap.Error(err))
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, id string, frame ClientFrame) ServerFrame {
	if frame.Type != TypeMessage {
		return ServerFrame{Type: TypeError, Error: fmt.Sprintf("unsupported frame type %q", frame.Type)}
	}
	content := strings.TrimSpace(frame.Content)
	if content == "" {
		return ServerFrame{Type: TypeError, Error: "message content is empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	display, err := s.sessions.Turn(ctx, id, content, choice(frame.Archetype))
	if err != nil {
		s.logger.Warn("turn failed", zap.String("session_id", id), zap.Error(err))
		return ServerFrame{Type: TypeError, Error: err.Error()}
	}

	s.record(ctx, id, content, display)
	return ServerFrame{
		Type:     TypeReply,
		Speaker:  display.Speaker,
		Avatar:   display.Avatar,
		Content:  display.Text,
		Fallback: display.Fallback,
	}
}

func (s *Server) record(ctx context.Context, id, input string, display turn.Display) {
	if s.transcript == nil {
		return
	}
	err := s.transcript.Append(ctx, id,
		transcript.Entry{Speaker: core.SpeakerUser.Label(), Content: input},
		transcript.Entry{Speaker: display.Speaker, Content: display.Text},
	)
	if err != nil {
		s.logger.Warn("record transcript", zap.String("session_id", id), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
