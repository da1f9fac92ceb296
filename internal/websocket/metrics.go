package websocket

import (
	"sync"
	"time"
)

// HubMetrics aggregates hub counters
type HubMetrics struct {
	totalConnections  int64
	activeConnections int64
	messagesSent      int64
	messagesReceived  int64
	messagesDropped   int64
	clientsEvicted    int64
	clusterReceived   int64
	startTime         time.Time

	messageTypeCounts map[string]int64

	mu sync.RWMutex
}

// NewHubMetrics creates hub metrics
func NewHubMetrics() *HubMetrics {
	return &HubMetrics{
		startTime:         time.Now(),
		messageTypeCounts: make(map[string]int64),
	}
}

func (m *HubMetrics) IncrementTotalConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalConnections++
	m.activeConnections++
}

func (m *HubMetrics) DecrementActiveConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeConnections > 0 {
		m.activeConnections--
	}
}

func (m *HubMetrics) AddMessageSent(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesSent += count
}

func (m *HubMetrics) AddMessageReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesReceived++
}

func (m *HubMetrics) AddMessageDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesDropped++
}

func (m *HubMetrics) AddClientEvicted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientsEvicted++
}

func (m *HubMetrics) AddClusterReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusterReceived++
}

// IncrementMessageTypeCount counts an outgoing message by event type
func (m *HubMetrics) IncrementMessageTypeCount(messageType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageTypeCounts[messageType]++
}

// GetAllMetrics returns metrics for the JSON endpoint
func (m *HubMetrics) GetAllMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messageStats := make(map[string]int64, len(m.messageTypeCounts))
	for messageType, count := range m.messageTypeCounts {
		messageStats[messageType] = count
	}

	return map[string]interface{}{
		"total_connections":  m.totalConnections,
		"active_connections": m.activeConnections,
		"messages_sent":      m.messagesSent,
		"messages_received":  m.messagesReceived,
		"messages_dropped":   m.messagesDropped,
		"clients_evicted":    m.clientsEvicted,
		"cluster_received":   m.clusterReceived,
		"uptime_seconds":     time.Since(m.startTime).Seconds(),
		"start_time":         m.startTime.Format(time.RFC3339),
		"message_type_stats": messageStats,
	}
}
