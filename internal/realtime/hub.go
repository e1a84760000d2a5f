package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Conn is the subset of the websocket connection the hub writes to.
// *websocket.Conn satisfies it; tests substitute a recording fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents one connected session.
type Client struct {
	ID     string
	UserID string
	Name   string
	Conn   Conn
}

// Frame is the wire envelope delivered to clients.
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type outbound struct {
	taskID  string // empty means all sessions
	exclude string // client ID to skip, for typing relays
	event   string
	payload any
}

// Hub manages connected sessions and fans committed mutations out to them.
// Delivery is fire-and-forget, at-most-once: a session disconnected at
// broadcast time never receives the event, and a failed write to one client
// does not affect the others.
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]*Client
	rooms       map[string]map[string]bool // task ID -> client IDs
	memberships map[string]map[string]bool // client ID -> task IDs

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}

	logger *zap.Logger
}

// NewHub creates a hub instance.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]bool),
		memberships: make(map[string]map[string]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan outbound, 256),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run drives the hub loop until the context is cancelled. Broadcasts drain
// through a single channel, so delivery order matches emission order.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a session to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a session and its group memberships.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastAll queues an event for every connected session.
func (h *Hub) BroadcastAll(event string, payload any) {
	h.broadcast <- outbound{event: event, payload: payload}
}

// BroadcastTask queues an event for sessions that joined the task's group,
// optionally skipping the originating client.
func (h *Hub) BroadcastTask(taskID, event string, payload any, excludeClientID string) {
	h.broadcast <- outbound{taskID: taskID, exclude: excludeClientID, event: event, payload: payload}
}

// JoinTask subscribes a session to a task's notification group.
func (h *Hub) JoinTask(clientID, taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[clientID]; !ok {
		return
	}
	if h.rooms[taskID] == nil {
		h.rooms[taskID] = make(map[string]bool)
	}
	h.rooms[taskID][clientID] = true
	if h.memberships[clientID] == nil {
		h.memberships[clientID] = make(map[string]bool)
	}
	h.memberships[clientID][taskID] = true
}

// LeaveTask unsubscribes a session from a task's notification group.
func (h *Hub) LeaveTask(clientID, taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveTaskLocked(clientID, taskID)
}

// InTask reports whether the session currently belongs to the task's group.
func (h *Hub) InTask(clientID, taskID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[taskID][clientID]
}

// ClientCount returns the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("session registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID))
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for taskID := range h.memberships[client.ID] {
		h.leaveTaskLocked(client.ID, taskID)
	}
	delete(h.memberships, client.ID)
	delete(h.clients, client.ID)
	h.logger.Debug("session unregistered", zap.String("client_id", client.ID))
}

func (h *Hub) handleBroadcast(msg outbound) {
	data, err := json.Marshal(Frame{Event: msg.event, Payload: msg.payload})
	if err != nil {
		h.logger.Error("failed to marshal broadcast frame",
			zap.String("event", msg.event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.taskID == "" {
		for _, client := range h.clients {
			h.sendToClient(client, data)
		}
		return
	}
	for clientID := range h.rooms[msg.taskID] {
		if clientID == msg.exclude {
			continue
		}
		if client, ok := h.clients[clientID]; ok {
			h.sendToClient(client, data)
		}
	}
}

func (h *Hub) sendToClient(client *Client, data []byte) {
	if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("failed to write to session",
			zap.String("client_id", client.ID), zap.Error(err))
	}
}

func (h *Hub) leaveTaskLocked(clientID, taskID string) {
	if h.rooms[taskID] != nil {
		delete(h.rooms[taskID], clientID)
		if len(h.rooms[taskID]) == 0 {
			delete(h.rooms, taskID)
		}
	}
	if h.memberships[clientID] != nil {
		delete(h.memberships[clientID], taskID)
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
	h.memberships = make(map[string]map[string]bool)
}
