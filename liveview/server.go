// Package liveview exposes a running self-play batch to spectators over a
// websocket, broadcasting the same search events an mcts.Observer would
// otherwise only report in-process.
package liveview

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/as3richa/alpha3/connectk"
	"github.com/gorilla/websocket"
)

// Event is one search-progress notification, JSON-encoded and sent to every
// connected spectator.
type Event struct {
	Kind         string  `json:"kind"`
	Board        string  `json:"board,omitempty"`
	Value        float64 `json:"value,omitempty"`
	NumChildren  int     `json:"num_children,omitempty"`
	Move         int     `json:"move,omitempty"`
	ChildVisits  int     `json:"child_visits,omitempty"`
	ParentVisits int     `json:"parent_visits,omitempty"`
}

// Hub fans search events out to every connected websocket client. It
// implements mcts.Observer[connectk.State, int] directly, so it can be
// attached to a BatchDriver with SetObserver.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	log *slog.Logger
}

// NewHub constructs an empty Hub. log may be nil, in which case
// slog.Default() is used. A client whose write fails during broadcast is
// dropped without logging.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		log:     log,
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection as a spectator until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("liveview: upgrade failed", "err", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// Drain and discard anything the client sends; we only care about the
	// connection closing.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) broadcast(e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			go h.remove(conn)
		}
	}
}

func (h *Hub) OnLeafSelected(state connectk.State) {
	h.broadcast(Event{Kind: "leaf_selected", Board: state.String()})
}

func (h *Hub) OnTerminalRevisited(state connectk.State, value float64) {
	h.broadcast(Event{Kind: "terminal_revisited", Board: state.String(), Value: value})
}

func (h *Hub) OnLeafExpanded(state connectk.State, value float64, numChildren int) {
	h.broadcast(Event{Kind: "leaf_expanded", Board: state.String(), Value: value, NumChildren: numChildren})
}

func (h *Hub) OnMoveCommitted(move int, childVisits, parentVisits int) {
	h.broadcast(Event{Kind: "move_committed", Move: move, ChildVisits: childVisits, ParentVisits: parentVisits})
}
