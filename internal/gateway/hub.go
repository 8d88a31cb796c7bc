// Package gateway is the session gateway of spec.md section 4.H: the
// per-client boundary between a WebSocket and the partitioned game
// cluster. Grounded on sonpython-slether/server/main.go and
// connection.go almost directly — upgrader configuration, the IP rate
// limiter, and the per-connection read/write pump split all carry over,
// generalized from the teacher's single compact binary-tag protocol and
// "one shared world" model to the tagged-kind JSON protocol of spec.md
// section 6 and "subscribe to one game's partition channel, filtered by
// game id" of spec.md section 4.H.
package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sonpython/gridmatch/internal/matchmaking"
	"github.com/sonpython/gridmatch/internal/protocol"
	"github.com/sonpython/gridmatch/internal/pubsub"
)

// MaxPlayers caps the number of simultaneously connected sessions this
// gateway instance will accept, per the teacher's MaxPlayers guard.
const MaxPlayers = 10000

// IPCooldown is the minimum interval between accepted connections from
// the same remote IP, per the teacher's rate limiter.
const IPCooldown = 2 * time.Second

// DefaultMMR seeds a player's matchmaking rating when no MMRProvider is
// configured, or the provider has no rating on file yet.
const DefaultMMR = 1000

// MMRProvider resolves a user's current matchmaking rating. Rating
// persistence and decay are delegated to the external collaborator;
// this package only needs a read.
type MMRProvider interface {
	MMR(ctx context.Context, userID uint32) (int, error)
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	ReadBufferSize:    1024,
	WriteBufferSize:   4096,
	EnableCompression: true,
}

// Hub owns every live Client and the dependencies needed to service
// them: the partition pubsub fabric, the matchmaking queue and
// notifier, and an Authenticator for the Token handshake.
type Hub struct {
	Fabric        pubsub.Fabric
	Queue         matchmaking.Queue
	Notifier      matchmaking.Notifier
	Auth          Authenticator
	MMR           MMRProvider
	Partitions    int
	Log           *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Client

	rateLimiter *ipRateLimiter
}

// NewHub wires a Hub. partitions is N, the partition-count modulus used
// to route a game id to its events/commands channel.
func NewHub(fabric pubsub.Fabric, queue matchmaking.Queue, notifier matchmaking.Notifier, auth Authenticator, mmr MMRProvider, partitions int, log *zap.Logger) *Hub {
	return &Hub{
		Fabric: fabric, Queue: queue, Notifier: notifier, Auth: auth, MMR: mmr,
		Partitions: partitions, Log: log,
		sessions:    map[string]*Client{},
		rateLimiter: newIPRateLimiter(),
	}
}

// Router mounts the gateway's HTTP surface: the WebSocket upgrade
// endpoint, a liveness probe, and (if non-nil) the metrics handler the
// caller built from internal/metrics.
func (h *Hub) Router(metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.serveWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	return r
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if h.Count() >= MaxPlayers {
		denyAndClose(ws, "server full")
		return
	}
	if !h.rateLimiter.allow(ip) {
		denyAndClose(ws, "too many connections, please wait")
		return
	}
	ws.EnableWriteCompression(true)

	client := newClient(ws, h.Log)
	h.add(client)
	h.Log.Info("session connected", zap.String("session_id", client.SessionID))

	go client.writePump()
	h.readLoop(r.Context(), client)
}

func denyAndClose(ws *websocket.Conn, reason string) {
	data, _ := json.Marshal(protocol.ServerAccessDenied(reason))
	_ = ws.WriteMessage(websocket.TextMessage, data)
	_ = ws.Close()
}

// readLoop is the per-session blocking read pump; mirrors the teacher's
// Conn.ReadLoop, generalized to the tagged protocol.ClientMessage union
// and the larger session state machine.
func (h *Hub) readLoop(ctx context.Context, c *Client) {
	defer func() {
		h.remove(c)
		c.Close()
		h.Log.Info("session disconnected", zap.String("session_id", c.SessionID))
	}()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Warn("websocket read error", zap.String("session_id", c.SessionID), zap.Error(err))
			}
			return
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.Log.Warn("malformed client frame", zap.String("session_id", c.SessionID), zap.Error(err))
			continue
		}
		h.dispatch(ctx, c, msg)
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[c.SessionID] = c
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, c.SessionID)
}

// Count returns the number of currently connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown broadcasts a Shutdown frame to every connected session, per
// spec.md section 4.H: clients are expected to close and reconnect to
// another server.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sessions {
		c.Send(protocol.ServerShutdown())
	}
}

// ipRateLimiter tracks last connection time per IP, ported from the
// teacher's main.go almost unchanged.
type ipRateLimiter struct {
	mu    sync.Mutex
	times map[string]time.Time
}

func newIPRateLimiter() *ipRateLimiter {
	rl := &ipRateLimiter{times: map[string]time.Time{}}
	go func() {
		for range time.Tick(60 * time.Second) {
			rl.mu.Lock()
			cutoff := time.Now().Add(-IPCooldown * 15)
			for ip, t := range rl.times {
				if t.Before(cutoff) {
					delete(rl.times, ip)
				}
			}
			rl.mu.Unlock()
		}
	}()
	return rl
}

func (rl *ipRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if last, ok := rl.times[ip]; ok && time.Since(last) < IPCooldown {
		return false
	}
	rl.times[ip] = time.Now()
	return true
}
