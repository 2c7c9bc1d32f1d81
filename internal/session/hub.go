package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/surroundvibe/relay/internal/config"
	"github.com/surroundvibe/relay/internal/metrics"
)

// inboundEvent is one decoded frame tagged with its originating connection.
type inboundEvent struct {
	sender *Client
	env    Envelope
}

// Hub owns the connection set and the participant Registry, and runs the
// event loop that routes every inbound event. All registry mutations and
// fan-out decisions happen on that single loop, which serializes them; the
// mutex only guards the client map against reads from send paths.
//
// Fan-out rules: playback-control events go to everyone except the sender,
// moderation events are unicast to their target, clock echoes are unicast to
// the requester, and the roster goes to every open connection. Moderation
// privilege is a per-connection capability assigned at connect time from the
// configured policy; the default policy grants it to every connection,
// matching the client-side "host" convention the protocol never verifies.
type Hub struct {
	cfg        *config.Config
	log        *slog.Logger
	metrics    *metrics.Metrics
	registry   *Registry
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	now        func() time.Time
}

// NewHub creates a Hub ready to run its event loop.
func NewHub(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		registry:   NewRegistry(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Registry returns the hub's participant registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect wraps an upgraded WebSocket connection in a Client and hands it to
// the event loop, which launches the read/write pumps. The returned client
// is not yet in the roster; that happens on its register event.
func (h *Hub) Connect(conn *websocket.Conn, addr string) *Client {
	client := newClient(h, conn, addr)
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		if conn != nil {
			_ = conn.Close()
		}
	}
	return client
}

func (h *Hub) moderationAllowed() bool {
	return h.cfg.Moderation() == config.ModerationOpen
}

// Run starts the hub's event loop. It should be called in its own goroutine
// and runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.handleConnect(client)

		case client := <-h.unregister:
			h.handleDisconnect(client)

		case ev := <-h.inbound:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) handleConnect(client *Client) {
	if client == nil {
		h.log.Warn("nil client on register channel, skipping")
		return
	}

	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	count := len(h.clients)
	h.mutex.Unlock()

	h.metrics.SetActiveConnections(count)
	client.log.Info("connection established", "total", count)

	// Tests attach pumpless clients; only real connections get pumps.
	if client.conn != nil {
		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			client.writePump()
		}()
		go func() {
			defer h.wg.Done()
			client.readPump()
		}()
	}
}

// handleDisconnect tears down a connection and, if it was registered,
// removes it from the roster and republishes. Safe to reach twice for the
// same client (a kick followed by the read pump's natural exit).
func (h *Hub) handleDisconnect(client *Client) {
	h.detach(client)

	if h.registry.Remove(client.id) {
		h.publishRoster()
	}
}

// detach removes the client from the connection set and closes its send
// queue. No-op if the client is already gone.
func (h *Hub) detach(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	count := len(h.clients)
	h.mutex.Unlock()

	close(client.send)
	h.metrics.SetActiveConnections(count)
	client.log.Info("connection removed", "total", count)
}

func (h *Hub) dispatch(ev inboundEvent) {
	switch {
	case ev.env.Event == EventRegister:
		h.metrics.RecordEvent(EventRegister)
		h.handleRegister(ev)

	case isRelayEvent(ev.env.Event):
		h.metrics.RecordEvent(ev.env.Event)
		h.relay(ev)

	case ev.env.Event == EventPingTime:
		h.metrics.RecordEvent(EventPingTime)
		h.sendTo(ev.sender, encodeEvent(EventPongTime, h.now().UnixMilli()))

	case ev.env.Event == EventGetServerTime:
		h.metrics.RecordEvent(EventGetServerTime)
		h.sendTo(ev.sender, encodeEvent(EventServerTime, h.now().UnixMilli()))

	case ev.env.Event == EventHostMute:
		h.metrics.RecordEvent(EventHostMute)
		h.handleMute(ev)

	case ev.env.Event == EventHostKick:
		h.metrics.RecordEvent(EventHostKick)
		h.handleKick(ev)

	default:
		h.metrics.RecordEvent("unknown")
		ev.sender.log.Debug("ignoring unknown event", "event", ev.env.Event)
	}
}

// handleRegister upserts the sender's roster entry. A repeated register from
// the same connection is a rename; the entry keeps its original position.
func (h *Hub) handleRegister(ev inboundEvent) {
	var name string
	if err := json.Unmarshal(ev.env.Data, &name); err != nil {
		ev.sender.log.Debug("ignoring register with non-string name", "error", err)
		return
	}

	h.registry.Register(ev.sender.id, name)
	ev.sender.log.Info("participant registered", "name", name)
	h.publishRoster()
}

// relay forwards a playback-control event to every connection except its
// sender, payload untouched.
func (h *Hub) relay(ev inboundEvent) {
	payload, err := json.Marshal(ev.env)
	if err != nil {
		return
	}
	h.broadcast(payload, ev.sender)
}

func (h *Hub) handleMute(ev inboundEvent) {
	if !ev.sender.canModerate {
		ev.sender.log.Warn("moderation refused by policy", "event", EventHostMute)
		return
	}

	targetID, ok := decodeTargetID(ev)
	if !ok {
		return
	}

	h.metrics.RecordModeration("mute")
	// Silent no-op when the target connection is already gone.
	if target := h.lookup(targetID); target != nil {
		h.sendTo(target, encodeEvent(EventMute, nil))
	}
}

// handleKick notifies the target, terminates its connection, and removes it
// from the roster. The notification is best-effort: termination and registry
// cleanup happen regardless of whether it could be delivered.
func (h *Hub) handleKick(ev inboundEvent) {
	if !ev.sender.canModerate {
		ev.sender.log.Warn("moderation refused by policy", "event", EventHostKick)
		return
	}

	targetID, ok := decodeTargetID(ev)
	if !ok {
		return
	}

	h.metrics.RecordModeration("kick")

	if target := h.lookup(targetID); target != nil {
		h.sendTo(target, encodeEvent(EventKick, nil))
		h.terminate(target)
	}

	h.registry.Remove(targetID)
	h.publishRoster()
}

// terminate force-closes a connection by closing its send queue. The write
// pump flushes anything still queued (such as a kick notification), sends a
// close frame, and closes the socket; write deadlines bound how long that
// can take. The read pump's exit then reports the disconnect, which
// handleDisconnect treats as a no-op for an already-detached client.
func (h *Hub) terminate(client *Client) {
	h.detach(client)
}

func decodeTargetID(ev inboundEvent) (string, bool) {
	var id string
	if err := json.Unmarshal(ev.env.Data, &id); err != nil {
		ev.sender.log.Debug("ignoring moderation event with non-string target", "error", err)
		return "", false
	}
	return id, true
}

// publishRoster sends the current roster to every open connection, whether
// registered or not, so even pre-registration observers see the live list.
func (h *Hub) publishRoster() {
	roster := h.registry.Snapshot()
	h.metrics.RosterPublishes.Inc()
	h.metrics.SetRegisteredParticipants(len(roster))
	h.broadcast(encodeEvent(EventUserList, roster), nil)
}

// broadcast delivers payload to every connection except the excluded one.
// Connections whose send queue rejects the payload are torn down.
func (h *Hub) broadcast(payload []byte, exclude *Client) {
	if payload == nil {
		return
	}

	h.mutex.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		if client != exclude {
			targets = append(targets, client)
		}
	}
	h.mutex.RUnlock()

	var stalled []*Client
	for _, client := range targets {
		if !h.trySend(client, payload) {
			h.metrics.SendsDropped.Inc()
			stalled = append(stalled, client)
		}
	}
	for _, client := range stalled {
		client.log.Warn("dropping connection with full send queue")
		h.terminate(client)
	}
}

// sendTo delivers payload to a single connection, fire-and-forget.
func (h *Hub) sendTo(client *Client, payload []byte) {
	if payload == nil || client == nil {
		return
	}
	if !h.trySend(client, payload) {
		h.metrics.SendsDropped.Inc()
	}
}

// trySend enqueues the payload unless the client is gone or its queue is
// full. The read lock spans the whole attempt so the queue cannot be closed
// between the membership check and the send.
func (h *Hub) trySend(client *Client, payload []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	current, exists := h.clients[client.id]
	if !exists || current != client || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// lookup resolves a connection id to its client, or nil when no such
// connection is open.
func (h *Hub) lookup(id string) *Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients[id]
}

func (h *Hub) closeAllConnections() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		// Closing the send queue releases the write pump; closing the
		// socket releases the read pump.
		h.detach(client)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Debug("closing connection during shutdown", "error", err)
			}
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the event loop, closes every client connection, and waits
// for the pump goroutines to finish or the timeout to expire.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("shutting down hub")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timed out, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
