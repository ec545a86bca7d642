package chat

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultQueueSize is the per-client outbound buffer.
const DefaultQueueSize = 64

// Client is one subscriber. Frames arrive on Queue in publish order; the
// channel is closed once the hub drops the client.
type Client struct {
	id   string
	send chan []byte
	once sync.Once
}

func NewClient(queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{id: uuid.NewString(), send: make(chan []byte, queueSize)}
}

func (c *Client) ID() string { return c.id }

// Queue returns the outbound frames.
func (c *Client) Queue() <-chan []byte { return c.send }

// enqueue never blocks; false means the queue is full. Called under the
// hub read lock so it cannot race close.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}
