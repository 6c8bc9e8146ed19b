package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"sitesmith/internal/logging"
	"sitesmith/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// watchClient is a single websocket subscriber for one draft's progress.
type watchClient struct {
	hub     *Hub
	conn    *websocket.Conn
	draftID string
	send    chan []byte
}

// Hub fans progress events out to websocket watchers keyed by draft id.
type Hub struct {
	clients    map[string]map[*watchClient]bool
	register   chan *watchClient
	unregister chan *watchClient
	broadcast  chan hubMessage
}

type hubMessage struct {
	draftID string
	payload []byte
}

// NewHub creates a hub. Call Run in a goroutine before serving.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*watchClient]bool),
		register:   make(chan *watchClient),
		unregister: make(chan *watchClient),
		broadcast:  make(chan hubMessage, 64),
	}
}

// Run processes registration and broadcast traffic until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if h.clients[client.draftID] == nil {
				h.clients[client.draftID] = make(map[*watchClient]bool)
			}
			h.clients[client.draftID][client] = true
			logging.S().Debugw("watcher connected", "draft", client.draftID)

		case client := <-h.unregister:
			if set, ok := h.clients[client.draftID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
					if len(set) == 0 {
						delete(h.clients, client.draftID)
					}
				}
			}

		case msg := <-h.broadcast:
			for client := range h.clients[msg.draftID] {
				select {
				case client.send <- msg.payload:
				default:
					// Slow watcher, drop it rather than block the hub.
					delete(h.clients[msg.draftID], client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast delivers a progress event to every watcher of the draft.
func (h *Hub) Broadcast(draftID string, ev *pipeline.ProgressEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		logging.S().Errorw("failed to encode watch event", "error", err)
		return
	}
	select {
	case h.broadcast <- hubMessage{draftID: draftID, payload: data}:
	default:
		logging.S().Warnw("watch broadcast queue full, dropping event", "draft", draftID)
	}
}

// WatchDraft upgrades to a websocket and relays progress events for a draft.
func (h *Handler) WatchDraft(c *gin.Context) {
	draft, ok := h.ownedDraft(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.S().Errorw("websocket upgrade failed", "error", err)
		return
	}

	client := &watchClient{
		hub:     h.hub,
		conn:    conn,
		draftID: draft.PublicID,
		send:    make(chan []byte, 32),
	}
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *watchClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *watchClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.S().Debugw("watcher read error", "error", err)
			}
			return
		}
	}
}
