// Package client is the browser-facing half of the gateway: it owns one
// logical connection per signed-in session and turns pushed frames into typed
// handler invocations.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"community-gateway/internal/events"
	"community-gateway/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Transport is the subset of *websocket.Conn the manager needs. Tests swap in
// fakes.
type Transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc establishes one transport connection.
type DialFunc func(ctx context.Context) (Transport, error)

// AcquireFunc obtains the dial function. Acquisition may itself be an
// asynchronous load, which is what makes the cancellation guard necessary:
// the owner may lose interest while the acquisition is still in flight.
type AcquireFunc func(ctx context.Context) (DialFunc, error)

type Config struct {
	// URL of the gateway websocket endpoint, e.g. ws://host/ws.
	URL string
	// Credential is the opaque bearer token presented at the handshake.
	Credential string
	// Acquire overrides transport acquisition. Defaults to an immediate
	// gorilla dialer for URL.
	Acquire AcquireFunc
	// MaxReconnectWait bounds the exponential backoff between reconnect
	// attempts. Zero means the backoff default.
	MaxReconnectWait time.Duration
	// MaxReconnectElapsed is how long reconnecting is attempted before the
	// manager gives up and reports OnPaused. Zero means retry forever.
	MaxReconnectElapsed time.Duration
}

// Handle is the logical connection owned by one Open call.
type Handle struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	withdrawn bool
	tr        Transport
	rooms     map[string]bool
	handlers  *Handlers

	// wmu serializes writes; Join/Leave race the session loop's rejoins.
	wmu sync.Mutex
}

// Open starts establishing the connection and returns immediately. The
// transport is acquired lazily on a background goroutine; callers register
// handlers and join rooms right away and both take effect once the transport
// is up.
func Open(cfg Config) *Handle {
	if cfg.Acquire == nil {
		cfg.Acquire = defaultAcquire(cfg)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		rooms:    make(map[string]bool),
		handlers: &Handlers{},
	}
	go h.run()
	return h
}

// SetHandlers replaces the handler set. There is exactly one slot: repeated
// registration swaps it, never stacks it, so a delivered event invokes the
// current set once no matter how many times the owner re-registered.
// Handlers run on the delivery loop and must not block.
func (h *Handle) SetHandlers(hs Handlers) {
	h.mu.Lock()
	h.handlers = &hs
	h.mu.Unlock()
}

// Join marks the room as wanted and, if the transport is up, sends the join
// control message. Wanted rooms are re-joined after every reconnect. Joining
// an already-joined room is a no-op.
func (h *Handle) Join(roomID string) {
	h.mu.Lock()
	if h.withdrawn || h.rooms[roomID] {
		h.mu.Unlock()
		return
	}
	h.rooms[roomID] = true
	tr := h.tr
	h.mu.Unlock()

	if tr != nil {
		h.sendControl(tr, events.ControlJoinCommunity, roomID)
	}
}

// LeaveRoom is the inverse of Join; leaving an unjoined room is a no-op.
func (h *Handle) LeaveRoom(roomID string) {
	h.mu.Lock()
	if h.withdrawn || !h.rooms[roomID] {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, roomID)
	tr := h.tr
	h.mu.Unlock()

	if tr != nil {
		h.sendControl(tr, events.ControlLeaveCommunity, roomID)
	}
}

// Close withdraws interest. Called before the transport exists it cancels the
// pending acquisition so no connection is ever created; called after, it
// sends a leave for every joined room and then tears the transport down, so
// the server's registry never outlives the logical connection. Close never
// blocks on network reads and is safe to call more than once.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.withdrawn {
		h.mu.Unlock()
		return
	}
	h.withdrawn = true
	tr := h.tr
	h.tr = nil
	rooms := make([]string, 0, len(h.rooms))
	for roomID := range h.rooms {
		rooms = append(rooms, roomID)
	}
	h.mu.Unlock()

	if tr != nil {
		for _, roomID := range rooms {
			h.sendControl(tr, events.ControlLeaveCommunity, roomID)
		}
		h.wmu.Lock()
		tr.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		h.wmu.Unlock()
		tr.Close()
	}
	h.cancel()
}

// Done closes when the background loop has fully stopped.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) run() {
	defer close(h.done)

	dial, err := h.cfg.Acquire(h.ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("Transport acquisition failed: %v", err)
		}
		return
	}

	// The guard: acquisition resolved asynchronously, and the owner may have
	// withdrawn interest in the meantime. Checked before the transport is
	// constructed, so a cancelled open never creates a connection the server
	// would have to process a join and leave for.
	if h.interestWithdrawn() {
		return
	}

	first := true
	for {
		var tr Transport
		if first {
			tr, err = dial(h.ctx)
			if err != nil {
				if h.interestWithdrawn() {
					return
				}
				logger.Debug("Dial failed: %v", err)
				tr = h.redial(dial)
			}
		} else {
			tr = h.redial(dial)
		}
		if tr == nil {
			return
		}

		if !h.attach(tr) {
			// Close raced the dial; drop the transport before any join is
			// sent.
			tr.Close()
			return
		}

		h.flushJoins(tr)
		hs := h.snapshot()
		if first {
			first = false
			if hs.OnConnect != nil {
				hs.OnConnect()
			}
		} else if hs.OnReconnect != nil {
			// The app must re-fetch authoritative state here: events that
			// fired while disconnected were not replayed.
			hs.OnReconnect()
		}

		readErr := h.readLoop(tr)
		h.detach(tr)

		hs = h.snapshot()
		if hs.OnDisconnect != nil {
			hs.OnDisconnect(readErr)
		}

		if h.interestWithdrawn() {
			return
		}
		if isAuthClose(readErr) {
			// The credential was invalidated; reconnecting with it would
			// only be refused again.
			logger.Info("Connection closed by server: credential invalidated")
			return
		}
	}
}

// redial retries with exponential backoff until a dial succeeds, interest is
// withdrawn, or the backoff gives up (OnPaused: live updates degrade rather
// than erroring).
func (h *Handle) redial(dial DialFunc) Transport {
	bo := backoff.NewExponentialBackOff()
	if h.cfg.MaxReconnectWait > 0 {
		bo.MaxInterval = h.cfg.MaxReconnectWait
	}
	bo.MaxElapsedTime = h.cfg.MaxReconnectElapsed

	var tr Transport
	operation := func() error {
		if h.interestWithdrawn() {
			return backoff.Permanent(context.Canceled)
		}
		var err error
		tr, err = dial(h.ctx)
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, h.ctx)); err != nil {
		if !h.interestWithdrawn() && !errors.Is(err, context.Canceled) {
			logger.Error("Reconnect gave up: %v", err)
			if hs := h.snapshot(); hs.OnPaused != nil {
				hs.OnPaused()
			}
		}
		return nil
	}
	return tr
}

// attach publishes the live transport; fails if Close won the race.
func (h *Handle) attach(tr Transport) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.withdrawn {
		return false
	}
	h.tr = tr
	return true
}

func (h *Handle) detach(tr Transport) {
	h.mu.Lock()
	if h.tr == tr {
		h.tr = nil
	}
	h.mu.Unlock()
	tr.Close()
}

func (h *Handle) flushJoins(tr Transport) {
	h.mu.Lock()
	rooms := make([]string, 0, len(h.rooms))
	for roomID := range h.rooms {
		rooms = append(rooms, roomID)
	}
	h.mu.Unlock()

	for _, roomID := range rooms {
		h.sendControl(tr, events.ControlJoinCommunity, roomID)
	}
}

func (h *Handle) readLoop(tr Transport) error {
	for {
		_, data, err := tr.ReadMessage()
		if err != nil {
			return err
		}
		h.dispatch(data)
	}
}

func (h *Handle) snapshot() Handlers {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.handlers
}

func (h *Handle) interestWithdrawn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.withdrawn
}

func (h *Handle) sendControl(tr Transport, typ events.ControlType, roomID string) {
	frame, err := encodeControl(typ, roomID)
	if err != nil {
		logger.Error("Control encode failed: %v", err)
		return
	}
	h.wmu.Lock()
	defer h.wmu.Unlock()
	if err := tr.WriteMessage(websocket.TextMessage, frame); err != nil {
		logger.Debug("Control write failed: %v", err)
	}
}

func isAuthClose(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) && closeErr.Code == events.CloseAuthInvalidated
}

func defaultAcquire(cfg Config) AcquireFunc {
	return func(ctx context.Context) (DialFunc, error) {
		return func(ctx context.Context) (Transport, error) {
			u, err := url.Parse(cfg.URL)
			if err != nil {
				return nil, fmt.Errorf("invalid gateway URL: %w", err)
			}
			q := u.Query()
			q.Set("token", cfg.Credential)
			u.RawQuery = q.Encode()

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}, nil
	}
}
