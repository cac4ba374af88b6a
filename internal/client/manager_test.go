package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"community-gateway/internal/events"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	readErr error
	writes  [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-f.in:
		return websocket.TextMessage, frame, nil
	case <-f.closed:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.readErr != nil {
			return 0, nil, f.readErr
		}
		return 0, nil, errors.New("transport closed")
	}
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) failWith(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
	f.Close()
}

func (f *fakeTransport) controlsSent(t *testing.T) []events.Control {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var controls []events.Control
	for _, data := range f.writes {
		var ctrl events.Control
		if err := json.Unmarshal(data, &ctrl); err == nil && ctrl.Type != "" {
			controls = append(controls, ctrl)
		}
	}
	return controls
}

func acquireOf(transports ...*fakeTransport) (AcquireFunc, *int32) {
	dials := new(int32)
	idx := new(int32)
	return func(ctx context.Context) (DialFunc, error) {
		return func(ctx context.Context) (Transport, error) {
			atomic.AddInt32(dials, 1)
			i := atomic.AddInt32(idx, 1) - 1
			if int(i) >= len(transports) {
				return nil, errors.New("no transport available")
			}
			return transports[i], nil
		}, nil
	}, dials
}

func TestCloseBeforeAcquireResolvesNeverDials(t *testing.T) {
	gate := make(chan struct{})
	var dials int32
	cfg := Config{
		Acquire: func(ctx context.Context) (DialFunc, error) {
			<-gate // the asynchronous transport-library load, still in flight
			return func(ctx context.Context) (Transport, error) {
				atomic.AddInt32(&dials, 1)
				return newFakeTransport(), nil
			}, nil
		},
	}

	h := Open(cfg)
	h.Join("room-1")
	h.Close()
	close(gate)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}
	// Interest was withdrawn before acquisition resolved: no connection was
	// ever created, so no join could ever reach a server.
	require.Zero(t, atomic.LoadInt32(&dials))
}

func TestHandlerSlotIsReplacedNotStacked(t *testing.T) {
	ft := newFakeTransport()
	acquire, _ := acquireOf(ft)
	h := Open(Config{Acquire: acquire})
	defer h.Close()

	var invocations int32
	for i := 0; i < 5; i++ {
		h.SetHandlers(Handlers{
			OnPostDeleted: func(events.PostDeleted) { atomic.AddInt32(&invocations, 1) },
		})
	}

	frame, err := events.Encode(events.PostDeleted{PostID: "post-1"})
	require.NoError(t, err)
	ft.in <- frame

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&invocations) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Five registrations must never mean five invocations.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&invocations))
}

func TestJoinIsFlushedOnConnect(t *testing.T) {
	ft := newFakeTransport()
	acquire, _ := acquireOf(ft)
	h := Open(Config{Acquire: acquire})
	defer h.Close()

	h.Join("room-1")
	h.Join("room-1") // duplicate join is absorbed

	require.Eventually(t, func() bool {
		return len(ft.controlsSent(t)) > 0
	}, 2*time.Second, 10*time.Millisecond)

	controls := ft.controlsSent(t)
	require.Len(t, controls, 1)
	require.Equal(t, events.ControlJoinCommunity, controls[0].Type)
	require.Equal(t, "room-1", controls[0].RoomID)
}

func TestReconnectRejoinsRoomsAndNotifies(t *testing.T) {
	t1 := newFakeTransport()
	t2 := newFakeTransport()
	acquire, _ := acquireOf(t1, t2)

	var reconnected int32
	h := Open(Config{Acquire: acquire, MaxReconnectWait: 10 * time.Millisecond})
	defer h.Close()
	h.SetHandlers(Handlers{
		OnReconnect: func() { atomic.AddInt32(&reconnected, 1) },
	})
	h.Join("room-1")

	require.Eventually(t, func() bool {
		return len(t1.controlsSent(t)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Transport drops; the manager must redial and re-join.
	t1.failWith(errors.New("connection reset"))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&reconnected) == 1
	}, 5*time.Second, 10*time.Millisecond)

	controls := t2.controlsSent(t)
	require.Len(t, controls, 1)
	require.Equal(t, events.ControlJoinCommunity, controls[0].Type)
	require.Equal(t, "room-1", controls[0].RoomID)
}

func TestAuthCloseStopsReconnecting(t *testing.T) {
	t1 := newFakeTransport()
	acquire, dials := acquireOf(t1)

	h := Open(Config{Acquire: acquire, MaxReconnectWait: 10 * time.Millisecond})
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(dials) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Server revoked the credential: treat as terminal, no redial.
	t1.failWith(&websocket.CloseError{Code: events.CloseAuthInvalidated})

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("manager kept running after auth close")
	}
	require.Equal(t, int32(1), atomic.LoadInt32(dials))
}

func TestCloseSendsLeavesBeforeTeardown(t *testing.T) {
	ft := newFakeTransport()
	acquire, _ := acquireOf(ft)
	h := Open(Config{Acquire: acquire})

	h.Join("room-1")
	h.Join("room-2")
	require.Eventually(t, func() bool {
		return len(ft.controlsSent(t)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	h.Close()
	<-h.Done()

	var leaves []string
	for _, ctrl := range ft.controlsSent(t) {
		if ctrl.Type == events.ControlLeaveCommunity {
			leaves = append(leaves, ctrl.RoomID)
		}
	}
	require.ElementsMatch(t, []string{"room-1", "room-2"}, leaves)
}

func TestCloseIsIdempotent(t *testing.T) {
	ft := newFakeTransport()
	acquire, _ := acquireOf(ft)
	h := Open(Config{Acquire: acquire})

	h.Close()
	h.Close()
	<-h.Done()
}
