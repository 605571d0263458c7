package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/untra/operator-go/internal/pr"
	"github.com/untra/operator-go/internal/state"
)

// ErrTooManyConnections is returned by AddClient when the maximum number of
// concurrent WebSocket connections has been reached.
var ErrTooManyConnections = errors.New("too many WebSocket connections")

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans out orchestrator state to connected WebSocket clients:
// a periodic full snapshot, throttled deltas as agent records change, and
// PR lifecycle events as the PR monitor observes them.
type Broadcaster struct {
	mu             sync.RWMutex
	clients        map[*client]bool
	maxConns       int
	store          *state.Store
	throttle       time.Duration
	log            zerolog.Logger
	snapshotTicker *time.Ticker
	pendingUpdates []state.AgentRecord
	pendingRemoved []string
	flushTimer     *time.Timer
	flushMu        sync.Mutex
	healthHook     func() *HealthPayload
	seq            atomic.Uint64
}

// NewBroadcaster builds a Broadcaster over store, flushing queued deltas no
// more than once per throttle and emitting a full snapshot every
// snapshotInterval. maxConns <= 0 means unbounded.
func NewBroadcaster(store *state.Store, throttle, snapshotInterval time.Duration, maxConns int, log zerolog.Logger) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
		store:    store,
		throttle: throttle,
		log:      log,
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

// SetHealthHook registers a function that returns the most recent health
// cycle summary for inclusion in snapshot broadcasts.
func (b *Broadcaster) SetHealthHook(hook func() *HealthPayload) {
	b.healthHook = hook
}

// Agents returns the current agent records, for handlers that need the
// same view a snapshot message would carry.
func (b *Broadcaster) Agents() []state.AgentRecord {
	return b.store.Snapshot().Agents
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
		conn.Close()
		return nil, ErrTooManyConnections
	}

	c := newClient(conn)
	b.clients[c] = true
	b.mu.Unlock()

	b.SendSnapshot(c)

	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// QueueUpdate stages agent records for the next throttled delta flush.
func (b *Broadcaster) QueueUpdate(updates []state.AgentRecord) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingUpdates = append(b.pendingUpdates, updates...)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// QueueRemoval stages agent IDs for the next throttled delta flush.
func (b *Broadcaster) QueueRemoval(ids []string) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingRemoved = append(b.pendingRemoved, ids...)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// BroadcastPrEvent sends a pr.StatusEvent to every connected client
// immediately, bypassing the delta throttle (PR transitions are rare and
// each one is worth surfacing on its own).
func (b *Broadcaster) BroadcastPrEvent(ev pr.StatusEvent) {
	b.broadcast(WSMessage{
		Type: MsgPrEvent,
		Payload: PrEventPayload{
			Kind:           ev.Kind.String(),
			TicketID:       ev.TicketID,
			PrNumber:       ev.PrNumber,
			MergeCommitSHA: ev.MergeCommitSHA,
		},
	})
}

// BroadcastHealth sends a health cycle summary to every connected client
// immediately.
func (b *Broadcaster) BroadcastHealth(h HealthPayload) {
	b.broadcast(WSMessage{Type: MsgHealth, Payload: h})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	updates := b.pendingUpdates
	removed := b.pendingRemoved
	b.pendingUpdates = nil
	b.pendingRemoved = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if len(updates) == 0 && len(removed) == 0 {
		return
	}

	msg := WSMessage{
		Type: MsgDelta,
		Payload: DeltaPayload{
			Updates: updates,
			Removed: removed,
		},
	}
	b.broadcast(msg)
}

func (b *Broadcaster) snapshotLoop() {
	for range b.snapshotTicker.C {
		b.broadcast(b.snapshotMessage())
	}
}

// snapshotMessage builds a full snapshot WSMessage including agent records
// and the latest health summary (when a health hook is registered).
func (b *Broadcaster) snapshotMessage() WSMessage {
	payload := SnapshotPayload{
		Agents: b.store.Snapshot().Agents,
	}
	if b.healthHook != nil {
		payload.Health = b.healthHook()
	}
	return WSMessage{
		Type:    MsgSnapshot,
		Payload: payload,
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	msg.Seq = b.seq.Add(1)
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error().Err(err).Msg("ws broadcast marshal failed")
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			b.log.Warn().Msg("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

// SendSnapshot sends a sequenced snapshot to a single client.
func (b *Broadcaster) SendSnapshot(c *client) {
	msg := b.snapshotMessage()
	msg.Seq = b.seq.Add(1)
	data, err := json.Marshal(msg)
	if err != nil {
		b.log.Error().Err(err).Msg("ws snapshot marshal failed")
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// BroadcastMessage sends an arbitrary WSMessage to all connected clients.
func (b *Broadcaster) BroadcastMessage(msg WSMessage) {
	b.broadcast(msg)
}

// Stop stops the snapshot ticker, preventing further broadcast ticks.
func (b *Broadcaster) Stop() {
	b.snapshotTicker.Stop()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
