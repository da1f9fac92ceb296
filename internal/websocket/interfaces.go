package websocket

// MetricsProvider exposes hub metrics
type MetricsProvider interface {
	GetMetrics() map[string]interface{}
	ClientCount() int
}

// HubInterface is what Manager needs from a hub
type HubInterface interface {
	MetricsProvider

	// BroadcastJSON sends v to every client, including other cluster instances
	BroadcastJSON(v interface{}) error

	// SendJSONToClient sends v to one local connection
	SendJSONToClient(connectionID string, v interface{}) error
}

// ClusterAwareHub is the side of a hub that ClusterHub delivers into
type ClusterAwareHub interface {
	// BroadcastBytesLocal sends to local clients only
	BroadcastBytesLocal(message []byte)

	// GetInstanceID returns this instance's cluster id
	GetInstanceID() string
}
