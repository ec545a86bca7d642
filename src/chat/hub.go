package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/govagent/src/data"
	"github.com/stake-plus/govagent/src/gov"
	"go.uber.org/zap"
)

// MaxContentBytes bounds a single chat message.
const MaxContentBytes = 10000

var (
	ErrInvalidMessage  = errors.New("chat: invalid message")
	ErrUnknownProposal = errors.New("chat: unknown proposal")
)

// Store persists chat messages. It is the only path to the chat log.
type Store interface {
	GetProposal(ctx context.Context, id uint64) (*gov.Proposal, error)
	CreateChatMessage(ctx context.Context, m *gov.ChatMessage) error
}

// Mirror receives every persisted message, e.g. an event stream.
type Mirror interface {
	Mirror(ctx context.Context, msg gov.ChatMessage) error
}

// Draft is an unpersisted chat message.
type Draft struct {
	ProposalID uint64
	Sender     gov.Sender
	Content    string
}

// Envelope is the websocket frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const envelopeChat = "chat"

// Hub owns the set of live connections and the publish path.
type Hub struct {
	store  Store
	mirror Mirror
	log    *zap.Logger
	policy *bluemonday.Policy

	mu      sync.RWMutex
	clients map[*Client]struct{}

	// order spans persist and broadcast so live frames for a proposal
	// follow stored id order.
	order *gov.KeyedMutex

	onUser func(gov.ChatMessage)
}

func NewHub(store Store, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		store:   store,
		log:     log.Named("chat"),
		policy:  bluemonday.StrictPolicy(),
		clients: make(map[*Client]struct{}),
		order:   gov.NewKeyedMutex(),
	}
}

// SetMirror attaches an optional mirror. Call before serving.
func (h *Hub) SetMirror(m Mirror) { h.mirror = m }

// OnUserMessage registers the callback run after a user message is
// broadcast. It must not block.
func (h *Hub) OnUserMessage(fn func(gov.ChatMessage)) { h.onUser = fn }

// Subscribe adds c to the broadcast set.
func (h *Hub) Subscribe(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("client subscribed", zap.String("client", c.ID()), zap.Int("clients", n))
}

// Unsubscribe removes c and closes its queue. Safe to call more than once.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.log.Debug("client unsubscribed", zap.String("client", c.ID()), zap.Int("clients", n))
	}
}

// Len returns the number of live clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close drops every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// Publish validates, persists and broadcasts one message. Nothing is
// broadcast when persistence fails.
func (h *Hub) Publish(ctx context.Context, d Draft) (gov.ChatMessage, error) {
	content, err := h.validate(d)
	if err != nil {
		return gov.ChatMessage{}, err
	}
	if _, err := h.store.GetProposal(ctx, d.ProposalID); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return gov.ChatMessage{}, fmt.Errorf("%w: %d", ErrUnknownProposal, d.ProposalID)
		}
		return gov.ChatMessage{}, fmt.Errorf("chat: load proposal: %w", err)
	}

	msg := gov.ChatMessage{ProposalID: d.ProposalID, Sender: d.Sender, Content: content}
	if err := h.persistAndBroadcast(ctx, &msg); err != nil {
		return gov.ChatMessage{}, err
	}

	if h.mirror != nil {
		if err := h.mirror.Mirror(ctx, msg); err != nil {
			h.log.Warn("mirror failed", zap.Uint64("message", msg.ID), zap.Error(err))
		}
	}
	if msg.Sender == gov.SenderUser && h.onUser != nil {
		h.onUser(msg)
	}
	return msg, nil
}

func (h *Hub) persistAndBroadcast(ctx context.Context, msg *gov.ChatMessage) error {
	unlock, err := h.order.Lock(ctx, msg.ProposalID)
	if err != nil {
		return fmt.Errorf("chat: wait for publish slot: %w", err)
	}
	defer unlock()
	if err := h.store.CreateChatMessage(ctx, msg); err != nil {
		return fmt.Errorf("chat: persist message: %w", err)
	}
	h.broadcast(*msg)
	return nil
}

func (h *Hub) validate(d Draft) (string, error) {
	if d.ProposalID == 0 {
		return "", fmt.Errorf("%w: missing proposal id", ErrInvalidMessage)
	}
	if !d.Sender.Valid() {
		return "", fmt.Errorf("%w: unknown sender %q", ErrInvalidMessage, d.Sender)
	}
	content := strings.TrimSpace(d.Content)
	if d.Sender == gov.SenderUser {
		content = strings.TrimSpace(html.UnescapeString(h.policy.Sanitize(content)))
	}
	if content == "" {
		return "", fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}
	if len(content) > MaxContentBytes {
		return "", fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidMessage, MaxContentBytes)
	}
	return content, nil
}

func (h *Hub) broadcast(msg gov.ChatMessage) {
	payload, err := encodeChat(msg)
	if err != nil {
		h.log.Error("encode message", zap.Uint64("message", msg.ID), zap.Error(err))
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.enqueue(payload) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow client", zap.String("client", c.ID()))
		h.Unsubscribe(c)
	}
}

func encodeChat(msg gov.ChatMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: envelopeChat, Data: data})
}
