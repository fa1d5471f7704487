package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"prediction-arena/internal/arena"
	"prediction-arena/internal/match"
)

// envelope frames every outbound hub message.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub fans game state snapshots out to connected presentation clients and
// routes their two permitted commands (vote, chat) into the controller. No
// other mutation path crosses this boundary.
type Hub struct {
	controller *match.Controller
	logger     zerolog.Logger
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	last    *envelope
}

// NewHub constructs the snapshot hub.
func NewHub(controller *match.Controller, logger zerolog.Logger) *Hub {
	return &Hub{
		controller: controller,
		logger:     logger.With().Str("component", "ws_hub").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish broadcasts a snapshot to every connected client. Slow clients
// have the frame dropped rather than stalling the tick path.
func (h *Hub) Publish(snap arena.Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal snapshot")
		return
	}
	env := &envelope{Event: "snapshot", Data: raw}

	h.mu.Lock()
	h.last = env
	for c := range h.clients {
		select {
		case c.send <- env:
		default:
			h.logger.Warn().Msg("dropping frame for slow client")
		}
	}
	h.mu.Unlock()
}

// Handler exposes the websocket endpoint.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	return mux
}

// ListenAndServe runs the HTTP server until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	h.logger.Info().Str("addr", addr).Msg("snapshot hub listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(h, conn)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	last := h.last
	h.mu.Unlock()

	// New observers get the latest published state immediately.
	if last != nil {
		select {
		case c.send <- last:
		default:
		}
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// handleCommand dispatches one inbound client command.
func (h *Hub) handleCommand(raw []byte) {
	var cmd struct {
		Op     string `json:"op"`
		Choice string `json:"choice"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		h.logger.Debug().Err(err).Msg("ignoring malformed command")
		return
	}

	switch cmd.Op {
	case "vote":
		h.controller.CastVote(arena.Vote(cmd.Choice))
	case "chat":
		h.controller.SubmitChat(cmd.Text)
	default:
		h.logger.Debug().Str("op", cmd.Op).Msg("ignoring unknown command")
	}
}
