package dashboard

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/kandil-code/kandil/internal/cloudsync"
)

// Handler bridges sync engine hooks to the WebSocket server, formatting
// queue activity as dashboard messages and tracking cumulative statistics.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
}

// NewHandler creates an event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		logger: logger,
		stats: StatsData{
			ByTable: make(map[string]int),
		},
	}
}

// Hooks returns engine hooks wired to this handler. Pass the result to
// the sync engine config so queue activity reaches connected clients.
func (h *Handler) Hooks() cloudsync.Hooks {
	return cloudsync.Hooks{
		OpSynced:     h.OnOpSynced,
		OpFailed:     h.OnOpFailed,
		PassComplete: h.OnPassComplete,
	}
}

// OnOpSynced handles successful dispatch of a queued operation
func (h *Handler) OnOpSynced(op cloudsync.Operation) {
	h.logger.Printf("Op synced: %s %s/%s", op.Kind, op.Table, op.RecordID)

	h.mu.Lock()
	h.stats.TotalSynced++
	h.stats.ByTable[op.Table]++
	h.mu.Unlock()

	h.broadcastOp(MessageTypeOpSynced, op, nil)
}

// OnOpFailed handles a failed dispatch
func (h *Handler) OnOpFailed(op cloudsync.Operation, err error) {
	h.logger.Printf("Op failed: %s %s/%s: %v", op.Kind, op.Table, op.RecordID, err)

	h.mu.Lock()
	h.stats.TotalFailed++
	h.mu.Unlock()

	h.broadcastOp(MessageTypeOpFailed, op, err)
}

// OnPassComplete handles the end of a queue pass
func (h *Handler) OnPassComplete(stats cloudsync.PassStats) {
	h.logger.Printf("Pass complete: synced=%d failed=%d in %v",
		stats.Synced, stats.Failed, stats.Duration)

	h.mu.Lock()
	h.stats.Passes++
	h.mu.Unlock()

	data := PassData{
		Synced:   stats.Synced,
		Failed:   stats.Failed,
		Deferred: stats.Deferred,
		Dropped:  stats.Dropped,
		Duration: stats.Duration,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal pass data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypePassComplete,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})

	h.broadcastStats()
}

// SetPending records the current queue depth for the stats broadcast
func (h *Handler) SetPending(n int) {
	h.mu.Lock()
	h.stats.Pending = n
	h.mu.Unlock()
}

func (h *Handler) broadcastOp(typ MessageType, op cloudsync.Operation, opErr error) {
	data := OpData{
		Kind:     string(op.Kind),
		Table:    op.Table,
		RecordID: op.RecordID,
		Attempts: op.AttemptCount,
	}
	if opErr != nil {
		data.Error = opErr.Error()
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal op data: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

// broadcastStats sends current cumulative statistics to all clients
func (h *Handler) broadcastStats() {
	h.mu.Lock()
	snapshot := h.stats
	snapshot.ByTable = make(map[string]int, len(h.stats.ByTable))
	for k, v := range h.stats.ByTable {
		snapshot.ByTable[k] = v
	}
	h.mu.Unlock()

	dataJSON, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

// GetStats returns a copy of the current statistics
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot := h.stats
	snapshot.ByTable = make(map[string]int, len(h.stats.ByTable))
	for k, v := range h.stats.ByTable {
		snapshot.ByTable[k] = v
	}
	return snapshot
}
