package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/recording"
	"github.com/foxseedlab/chumon/internal/renderer"
	"github.com/foxseedlab/chumon/internal/transcriber"
	"github.com/gorilla/websocket"
)

const (
	clientBufferSize = 64
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

// Event is one frame on the /v1/events websocket.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.send) })
}

// EventHub is a Renderer that broadcasts every event to connected websocket
// clients. A client that cannot keep up is disconnected.
type EventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
}

var _ renderer.Renderer = (*EventHub)(nil)

func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &hubClient{conn: conn, send: make(chan []byte, clientBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("event client connected", "remote_addr", r.RemoteAddr, "clients", n)

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client frames and returns when the connection drops.
func (h *EventHub) readLoop(c *hubClient) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writeLoop(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventHub) remove(c *hubClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *EventHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *EventHub) broadcast(eventType string, data any) {
	b, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		slog.Error("failed to marshal event", "type", eventType, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			slog.Warn("event client too slow; disconnecting", "type", eventType)
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *EventHub) ConversationChanged(s conversation.Snapshot) {
	h.broadcast("conversation", toConversationResponse(s))
}

func (h *EventHub) RecordingChanged(s recording.Snapshot) {
	h.broadcast("recording", toRecordingResponse(s))
}

func (h *EventHub) TranscriptionPartial(text string) {
	h.broadcast("transcription.partial", inputResponse{Text: text})
}

func (h *EventHub) TranscriptionFinished(r transcriber.Result) {
	h.broadcast("transcription.finished", toTranscriptionResponse(r))
}

func (h *EventHub) InputChanged(text string) {
	h.broadcast("input", inputResponse{Text: text})
}

func (h *EventHub) SendStateChanged(conversationID int64, enabled bool) {
	h.broadcast("send_state", sendStateResponse{ConversationID: conversationID, Enabled: enabled})
}

func (h *EventHub) ErrorRaised(e renderer.ErrorEvent) {
	h.broadcast("error", errorResponse{Error: string(e.Kind), Message: e.Message})
}
