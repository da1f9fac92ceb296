package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/config"
)

// outbound is one queued delivery. An empty connectionID means broadcast.
type outbound struct {
	connectionID string
	data         []byte
}

// Hub owns the set of local connections. A single goroutine (Run) applies
// registrations and deliveries, so every client sees messages in the order
// they were queued.
type Hub struct {
	instanceID string

	clients map[*Client]struct{}
	byConn  map[string]*Client

	register   chan *Client
	unregister chan *Client
	outbound   chan outbound
	done       chan struct{}
	closeOnce  sync.Once

	countMu sync.RWMutex
	count   int

	metrics *HubMetrics
	cluster *ClusterHub
}

// NewHub creates a hub. provider may be nil when clustering is disabled.
func NewHub(wsConfig config.WebSocketConfig, provider PubSubProvider) *Hub {
	bufferSize := wsConfig.Buffers.BroadcastBuffer
	if bufferSize <= 0 {
		bufferSize = 256
	}

	h := &Hub{
		clients:    make(map[*Client]struct{}),
		byConn:     make(map[string]*Client),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		outbound:   make(chan outbound, bufferSize),
		done:       make(chan struct{}),
		metrics:    NewHubMetrics(),
	}

	if wsConfig.Cluster.Enabled {
		h.cluster = NewClusterHub(h, wsConfig.Cluster, provider)
		h.instanceID = h.cluster.config.InstanceID
	} else {
		h.instanceID = generateInstanceID()
	}
	return h
}

// Run processes registrations and deliveries until Close is called
func (h *Hub) Run() {
	if h.cluster != nil {
		if err := h.cluster.Start(); err != nil {
			log.Error().Err(err).Msg("[Hub] Failed to start cluster fan-out")
		}
	}

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.outbound:
			if msg.connectionID == "" {
				h.handleBroadcast(msg.data)
			} else {
				h.handleDirect(msg.connectionID, msg.data)
			}
		case <-h.done:
			h.cleanupAllClients()
			return
		}
	}
}

// Close stops the hub and closes every connection
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		if h.cluster != nil {
			h.cluster.Stop()
		}
		close(h.done)
	})
}

// Register queues a client for registration
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister queues a client for removal
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastJSON marshals v and sends it to every client in the cluster
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	h.BroadcastBytes(data)
	return nil
}

// BroadcastBytes delivers locally and publishes to other instances
func (h *Hub) BroadcastBytes(message []byte) {
	h.BroadcastBytesLocal(message)
	if h.cluster != nil {
		if err := h.cluster.BroadcastToCluster(message); err != nil {
			log.Warn().Err(err).Msg("[Hub] Failed to publish broadcast to cluster")
		}
	}
}

// BroadcastBytesLocal delivers to local clients only
func (h *Hub) BroadcastBytesLocal(message []byte) {
	h.enqueue(outbound{data: message})
}

// SendJSONToClient marshals v and sends it to one local connection
func (h *Hub) SendJSONToClient(connectionID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal direct message: %w", err)
	}
	h.enqueue(outbound{connectionID: connectionID, data: data})
	return nil
}

// enqueue blocks while the queue is full; game events are never dropped
// before they reach the per-client buffers.
func (h *Hub) enqueue(msg outbound) {
	select {
	case h.outbound <- msg:
	case <-h.done:
	}
}

// ClientCount returns the number of registered local clients
func (h *Hub) ClientCount() int {
	h.countMu.RLock()
	defer h.countMu.RUnlock()
	return h.count
}

// GetInstanceID returns this hub's cluster instance id
func (h *Hub) GetInstanceID() string {
	return h.instanceID
}

// GetMetrics returns local hub metrics
func (h *Hub) GetMetrics() map[string]interface{} {
	m := h.metrics.GetAllMetrics()
	m["instance_id"] = h.instanceID
	m["client_count"] = h.ClientCount()
	m["cluster_enabled"] = h.cluster != nil
	return m
}

func (h *Hub) setCount() {
	h.countMu.Lock()
	h.count = len(h.clients)
	h.countMu.Unlock()
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = struct{}{}
	h.byConn[client.ConnectionID] = client
	h.setCount()
	h.metrics.IncrementTotalConnections()

	log.Debug().Str("conn_id", client.ConnectionID).Str("role", client.Role).Msg("[Hub] Client registered")

	select {
	case client.registrationComplete <- struct{}{}:
	default:
	}
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	h.removeClient(client)
	log.Debug().Str("conn_id", client.ConnectionID).Msg("[Hub] Client unregistered")
}

func (h *Hub) removeClient(client *Client) {
	delete(h.clients, client)
	if h.byConn[client.ConnectionID] == client {
		delete(h.byConn, client.ConnectionID)
	}
	if client.conn != nil {
		client.conn.Close()
	}
	client.CloseSend()
	h.setCount()
	h.metrics.DecrementActiveConnections()
}

func (h *Hub) handleBroadcast(message []byte) {
	messageType := messageTypeFromBytes(message)
	h.metrics.IncrementMessageTypeCount(messageType)

	sent := 0
	for client := range h.clients {
		if h.deliver(client, message) {
			sent++
		}
	}
	h.metrics.AddMessageSent(int64(sent))

	log.Debug().Str("type", messageType).Int("clients", sent).Msg("[Hub] Broadcast delivered")
}

func (h *Hub) handleDirect(connectionID string, message []byte) {
	client, ok := h.byConn[connectionID]
	if !ok {
		log.Debug().Str("conn_id", connectionID).Msg("[Hub] Direct message for unknown connection dropped")
		return
	}
	if h.deliver(client, message) {
		h.metrics.AddMessageSent(1)
	}
}

// deliver queues a message on the client without blocking the hub. A
// client whose buffer stays full is evicted; it can reconnect and resync.
func (h *Hub) deliver(client *Client, message []byte) bool {
	select {
	case client.send <- message:
		client.resetBufferWarningCount()
		return true
	default:
	}

	h.metrics.AddMessageDropped()
	count := client.incrementBufferWarningCount()
	if count >= maxBufferWarnings {
		log.Warn().Str("conn_id", client.ConnectionID).Int32("warnings", count).Msg("[Hub] Client too slow, evicting")
		h.removeClient(client)
		h.metrics.AddClientEvicted()
		return false
	}

	warning, _ := json.Marshal(Event{
		Type: SERVER_BUFFER_WARNING,
		Data: map[string]interface{}{
			"warning_count": count,
			"max_warnings":  maxBufferWarnings,
		},
	})
	select {
	case client.send <- warning:
	default:
	}
	return false
}

func (h *Hub) cleanupAllClients() {
	for client := range h.clients {
		h.removeClient(client)
	}
	log.Info().Msg("[Hub] All clients closed")
}
