package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Event is the envelope for every WebSocket message
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Manager routes incoming client messages and sends outgoing events
type Manager struct {
	hub            HubInterface
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager creates a WebSocket manager
func NewManager(hub HubInterface) *Manager {
	return &Manager{
		hub:            hub,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// RegisterHandler registers a handler for a client message type.
// Not safe for use after connections are accepted.
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
	log.Debug().Str("type", eventType).Msg("[WebSocketManager] Handler registered")
}

// HandleMessage dispatches one client message. A returned error closes the
// connection.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		log.Warn().Err(err).Str("conn_id", client.ConnectionID).Msg("[WebSocketManager] Invalid message format")
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}

	if err := handler(event.Data, client); err != nil {
		log.Warn().Err(err).Str("type", event.Type).Str("conn_id", client.ConnectionID).Msg("[WebSocketManager] Handler failed")
		return err
	}
	return nil
}

// SendErrorToClient sends a server:error event. It does not close the connection.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	errorEvent := Event{
		Type: SERVER_ERROR,
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	}
	if err := m.hub.SendJSONToClient(client.ConnectionID, errorEvent); err != nil {
		log.Error().Err(err).Str("conn_id", client.ConnectionID).Msg("[WebSocketManager] Failed to send error")
	}
}

// BroadcastEvent sends an event to every client
func (m *Manager) BroadcastEvent(eventType string, data interface{}) error {
	return m.hub.BroadcastJSON(Event{Type: eventType, Data: data})
}

// SendEventToClient sends an event to one connection
func (m *Manager) SendEventToClient(connectionID string, eventType string, data interface{}) error {
	return m.hub.SendJSONToClient(connectionID, Event{Type: eventType, Data: data})
}

// GetMetrics returns hub metrics
func (m *Manager) GetMetrics() map[string]interface{} {
	metrics := m.hub.GetMetrics()
	metrics["client_count"] = m.hub.ClientCount()
	return metrics
}
