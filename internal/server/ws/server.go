// Package ws exposes the HTTP surface of the server: the WebSocket
// real-time channel, the key-directory endpoints and the metrics endpoint.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/logging"
	"github.com/avelkaya/whisperline/internal/server/directory"
	"github.com/avelkaya/whisperline/internal/server/instrument"
	"github.com/avelkaya/whisperline/internal/server/presence"
	"github.com/avelkaya/whisperline/internal/server/relay"
	"github.com/avelkaya/whisperline/internal/server/session"
	"github.com/avelkaya/whisperline/internal/wire"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	address    string
	logger     logging.Logger
	registry   *presence.Registry
	controller *session.Controller
	engine     *relay.Engine
	directory  *directory.Service
	metrics    *instrument.Metrics
	upgrader   websocket.Upgrader
}

func NewServer(address string, l logging.Logger, registry *presence.Registry, controller *session.Controller,
	engine *relay.Engine, dir *directory.Service, metrics *instrument.Metrics) *Server {
	return &Server{
		address:    address,
		logger:     l.With("module", "http_server"),
		registry:   registry,
		controller: controller,
		engine:     engine,
		directory:  dir,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			// clients connect from arbitrary origins; identity comes from
			// the handshake, not the Origin header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", s.handleWebSocket)
	r.Post("/register_key", s.handleRegisterKey)
	r.Get("/public_key/{username}", s.handlePublicKey)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

// Run serves until ctx is cancelled, then drains with a graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocket runs the full lifecycle of one connection: admission,
// history replay, the per-connection read loop, and teardown. Events from
// one connection are handled strictly in order by this single goroutine.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimed := r.URL.Query().Get("username")

	// cheap pre-upgrade checks so obviously doomed handshakes get a proper
	// HTTP status; the authoritative duplicate check is the atomic Register
	if claimed == "" {
		http.Error(w, "username required", http.StatusBadRequest)
		return
	}
	if _, online := s.registry.Lookup(claimed); online {
		http.Error(w, common.ErrDuplicateSession.Error(), http.StatusConflict)
		return
	}

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(ctx, "upgrade failed", "error", err.Error())
		return
	}

	conn := newConn(sock, s.logger)
	go conn.writePump()

	username, err := s.controller.Connect(ctx, claimed, conn)
	if err != nil {
		s.refuse(ctx, sock, err)
		conn.Close()
		return
	}

	defer func() {
		s.controller.Disconnect(ctx, username, conn)
		conn.Close()
	}()

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			// transport loss is a normal lifecycle transition
			return
		}

		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Debug(ctx, "unparseable frame dropped", "username", username)
			continue
		}

		switch frame.Event {
		case wire.EventSendPacket:
			var pkt wire.Packet
			if err := json.Unmarshal(frame.Data, &pkt); err != nil {
				s.logger.Debug(ctx, "unparseable packet dropped", "username", username)
				continue
			}
			if err := s.engine.Submit(ctx, username, pkt); err != nil {
				s.logger.Error(ctx, "submit failed", "username", username, "error", err.Error())
			}
		default:
			s.logger.Debug(ctx, "unknown event ignored", "event", frame.Event)
		}
	}
}

// refuse closes a just-upgraded socket whose handshake was rejected, with a
// close code the client can distinguish.
func (s *Server) refuse(ctx context.Context, sock *websocket.Conn, cause error) {
	code := websocket.ClosePolicyViolation
	msg := wsCloseMessage(cause)
	deadline := time.Now().Add(writeWait)
	_ = sock.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, msg), deadline)
	_ = sock.Close()
	s.logger.Info(ctx, "handshake refused", "reason", msg)
}

func wsCloseMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrDuplicateSession):
		return "already connected elsewhere"
	case errors.Is(err, common.ErrEmptyUsername), errors.Is(err, common.ErrUsernameTooLong):
		return "invalid username"
	default:
		return "connection refused"
	}
}

func (s *Server) handleRegisterKey(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req struct {
		Username     string `json:"username"`
		PublicKeyPEM string `json:"public_key_pem"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fp, err := s.directory.RegisterKey(r.Context(), req.Username, req.PublicKeyPEM)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrEmptyUsername),
			errors.Is(err, common.ErrUsernameTooLong),
			errors.Is(err, common.ErrInvalidPublicKey):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			s.logger.Error(r.Context(), "register key failed", "error", err.Error())
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "fingerprint": fp})
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	key, fp, err := s.directory.PublicKey(r.Context(), username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			http.Error(w, "key not found", http.StatusNotFound)
			return
		}
		s.logger.Error(r.Context(), "public key lookup failed", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username":       key.Username,
		"public_key_pem": key.PEM,
		"fingerprint":    fp,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
