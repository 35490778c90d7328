package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Presence maps each authenticated user to their current live connection.
// At most one entry exists per user: a later connect for the same identity
// overwrites the earlier mapping (last-connection-wins, no multi-device
// fan-out). The registry is best-effort routing state, not a source of
// truth, and is injected into its consumers at startup.
type Presence struct {
	mu      sync.RWMutex
	entries map[string]Sender
	logger  *zap.Logger
}

// NewPresence constructs an empty registry.
func NewPresence(logger *zap.Logger) *Presence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presence{
		entries: make(map[string]Sender),
		logger:  logger,
	}
}

// Register binds the user to the connection, unconditionally replacing
// any previous entry. Never fails.
func (p *Presence) Register(userID string, conn Sender) {
	p.mu.Lock()
	p.entries[userID] = conn
	p.mu.Unlock()
	p.logger.Debug("presence registered",
		zap.String("user_id", userID),
		zap.String("conn_id", conn.ID()))
}

// Lookup returns the user's current connection, if any.
func (p *Presence) Lookup(userID string) (Sender, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.entries[userID]
	return conn, ok
}

// Unregister removes the user's entry, but only while it still points at
// connID — a reconnect that already overwrote the mapping is left intact.
// No-op when absent.
func (p *Presence) Unregister(userID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.entries[userID]
	if !ok || current.ID() != connID {
		return
	}
	delete(p.entries, userID)
}
