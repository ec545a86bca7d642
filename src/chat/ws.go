package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stake-plus/govagent/src/gov"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 64 * 1024
	publishTimeout = 15 * time.Second
)

// inboundChat is the data of an inbound chat envelope. Sender is ignored.
type inboundChat struct {
	ProposalID uint64 `json:"proposalId"`
	Content    string `json:"content"`
}

// Handler serves the websocket endpoint.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler accepts connections from allowedOrigins; "*" or an empty list
// accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub, log: hub.log.Named("ws")}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = true
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[strings.TrimRight(origin, "/")]
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClient(DefaultQueueSize)
	h.hub.Subscribe(client)
	log := h.log.With(zap.String("client", client.ID()), zap.String("remote", r.RemoteAddr))
	log.Info("connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(conn, client, log)
	}()

	h.readLoop(conn, log)
	h.hub.Unsubscribe(client)
	<-done
	_ = conn.Close()
	log.Info("disconnected")
}

func (h *Handler) readLoop(conn *websocket.Conn, log *zap.Logger) {
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read failed", zap.Error(err))
			}
			return
		}
		h.handleFrame(raw, log)
	}
}

// handleFrame publishes one inbound frame. Bad frames are logged and the
// connection stays open.
func (h *Handler) handleFrame(raw []byte, log *zap.Logger) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn("malformed frame", zap.Error(err))
		return
	}
	if env.Type != envelopeChat {
		log.Warn("unsupported frame type", zap.String("type", env.Type))
		return
	}
	var in inboundChat
	if err := json.Unmarshal(env.Data, &in); err != nil {
		log.Warn("malformed chat data", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := h.hub.Publish(ctx, Draft{ProposalID: in.ProposalID, Sender: gov.SenderUser, Content: in.Content}); err != nil {
		log.Warn("inbound message rejected", zap.Uint64("proposal", in.ProposalID), zap.Error(err))
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, client *Client, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.Queue():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				// unblock the reader
				_ = conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn("write failed", zap.Error(err))
				h.hub.Unsubscribe(client)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.Unsubscribe(client)
				_ = conn.Close()
				return
			}
		}
	}
}
