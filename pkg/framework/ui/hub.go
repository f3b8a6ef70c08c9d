package ui

import (
	"sort"

	"github.com/justyntemme/consul/pkg/framework/debug"
)

// ClientID identifies a connected UI session.
type ClientID uint64

// NoClient excludes nobody from a broadcast.
const NoClient ClientID = 0

// DefaultInboxSize is the number of undelivered messages a client may hold.
const DefaultInboxSize = 64

// Client is a connected UI session with a bounded inbox.
type Client struct {
	ID      ClientID
	inbox   chan Message
	dropped uint64
}

// Messages returns the client's inbox. It is closed on disconnect.
func (c *Client) Messages() <-chan Message {
	return c.inbox
}

// Pending returns the number of undelivered messages.
func (c *Client) Pending() int {
	return len(c.inbox)
}

// Dropped returns how many messages were discarded because the inbox was full.
func (c *Client) Dropped() uint64 {
	return c.dropped
}

// Hub tracks connected clients and fans messages out to them.
//
// A Hub belongs to the non-realtime side: all calls must come from the
// same goroutine. Clients read their inbox from anywhere.
type Hub struct {
	clients   map[ClientID]*Client
	nextID    ClientID
	inboxSize int
	log       *debug.Logger
}

// NewHub creates a hub whose clients buffer up to inboxSize messages.
func NewHub(inboxSize int) *Hub {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Hub{
		clients:   make(map[ClientID]*Client),
		inboxSize: inboxSize,
		log:       debug.Default().WithPrefix("hub"),
	}
}

// SetLogger replaces the hub's logger.
func (h *Hub) SetLogger(l *debug.Logger) {
	h.log = l
}

// Connect registers a new client.
func (h *Hub) Connect() *Client {
	h.nextID++
	c := &Client{
		ID:    h.nextID,
		inbox: make(chan Message, h.inboxSize),
	}
	h.clients[c.ID] = c
	h.log.Debug("client %d connected (total: %d)", c.ID, len(h.clients))
	return c
}

// Disconnect removes a client and closes its inbox.
func (h *Hub) Disconnect(id ClientID) bool {
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	delete(h.clients, id)
	close(c.inbox)
	h.log.Debug("client %d disconnected (total: %d)", id, len(h.clients))
	return true
}

// Client returns a connected client.
func (h *Hub) Client(id ClientID) (*Client, bool) {
	c, ok := h.clients[id]
	return c, ok
}

// Clients returns the connected client ids in ascending order.
func (h *Hub) Clients() []ClientID {
	ids := make([]ClientID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	return len(h.clients)
}

// Send queues msg for one client. It returns false if the client is
// unknown or its inbox is full.
func (h *Hub) Send(id ClientID, msg Message) bool {
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	return h.deliver(c, msg)
}

// Broadcast queues msg for every client except exclude and returns how
// many clients received it. Each client gets at most one copy.
func (h *Hub) Broadcast(msg Message, exclude ClientID) int {
	delivered := 0
	for id, c := range h.clients {
		if id == exclude {
			continue
		}
		if h.deliver(c, msg) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) deliver(c *Client, msg Message) bool {
	select {
	case c.inbox <- msg:
		return true
	default:
		c.dropped++
		h.log.Warn("client %d inbox full, dropping %s", c.ID, msg)
		return false
	}
}
