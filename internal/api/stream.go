package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types emitted while a run progresses.
const (
	EventStarted   = "started"
	EventContext   = "context"
	EventRecord    = "record"
	EventError     = "error"
	EventComplete  = "complete"
	EventCancelled = "cancelled"
)

// AnalysisEvent describes websocket and NDJSON payloads emitted during a run.
type AnalysisEvent struct {
	Type      string              `json:"type"`
	RunID     string              `json:"run_id"`
	Terms     int                 `json:"terms,omitempty"`
	Processed int                 `json:"processed,omitempty"`
	Context   *BusinessContextDTO `json:"context,omitempty"`
	Record    *RecordDTO          `json:"record,omitempty"`
	Message   string              `json:"message,omitempty"`
	Kind      string              `json:"kind,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Final reports whether no further events follow for the run.
func (e AnalysisEvent) Final() bool {
	switch e.Type {
	case EventComplete, EventError, EventCancelled:
		return true
	}
	return false
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// AnalysisNotifier keeps track of websocket clients and broadcasts run events.
type AnalysisNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *AnalysisEvent
}

// NewAnalysisNotifier constructs a notifier instance.
func NewAnalysisNotifier() *AnalysisNotifier {
	return &AnalysisNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the latest run status to it.
func (n *AnalysisNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client and closes the socket.
func (n *AnalysisNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast stamps event and sends it to every registered client. Clients that
// fail a write are dropped.
func (n *AnalysisNotifier) Broadcast(event AnalysisEvent) AnalysisEvent {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	snapshot := event
	// status snapshots never carry the record payload
	snapshot.Record = nil
	n.lastStatus = &snapshot

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	return event
}

// LastStatus returns a copy of the most recent event, if any.
func (n *AnalysisNotifier) LastStatus() *AnalysisEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	status := *n.lastStatus
	return &status
}

// Clients reports the number of connected websocket clients.
func (n *AnalysisNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (c *wsClient) writeJSON(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
