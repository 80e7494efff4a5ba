package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}

func TestWriterDeliversEnqueuedFrames(t *testing.T) {
	server, client := newTestConnPair(t)

	w := NewWriter(server, clockwork.NewRealClock(), 16, 30*time.Second, nil)
	t.Cleanup(w.Stop)

	require.True(t, w.TrySend([]byte(`{"type":"system.test"}`)))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"system.test"}`, string(msg))
}

func TestWriterTrySendReportsFullBuffer(t *testing.T) {
	// Construct the writer without its loop so the buffer state is exact.
	w := &Writer{
		sendChannel: make(chan []byte, 1),
		doneChannel: make(chan struct{}),
	}

	assert.True(t, w.TrySend([]byte("first")))
	assert.False(t, w.TrySend([]byte("second")), "a saturated buffer must report false, not block")
}

func TestWriterTrySendAfterStop(t *testing.T) {
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	w := NewWriter(server, clockwork.NewRealClock(), 16, 30*time.Second, nil)
	w.Stop()

	assert.False(t, w.TrySend([]byte("x")))
}

func TestWriterStopIdempotentAndConcurrent(t *testing.T) {
	server, client := newTestConnPair(t)
	t.Cleanup(func() { client.Close() })

	w := NewWriter(server, clockwork.NewRealClock(), 16, 30*time.Second, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent stop calls deadlocked")
	}
}

func TestWriterReportsClosedOnWriteFailure(t *testing.T) {
	server, client := newTestConnPair(t)

	var closedCalls atomic.Int32
	w := NewWriter(server, clockwork.NewRealClock(), 16, 30*time.Second, func() {
		closedCalls.Add(1)
	})
	t.Cleanup(w.Stop)

	// Tear down the transport underneath the writer, then force a write.
	client.Close()
	server.Close()
	w.TrySend([]byte("after close"))

	assert.Eventually(t, func() bool {
		return closedCalls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond, "write failure must surface exactly one close notification")
}

func TestWriterGracefulStopSendsCloseFrame(t *testing.T) {
	server, client := newTestConnPair(t)

	w := NewWriter(server, clockwork.NewRealClock(), 16, 30*time.Second, nil)
	w.StopGraceful("server shutting down")

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()

	if closeErr, ok := err.(*websocket.CloseError); ok {
		assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
		assert.Contains(t, closeErr.Text, "shutting down")
	} else {
		assert.Error(t, err, "connection should be closed")
	}
}

func TestWriterGracefulStopDuringWriteFailure(t *testing.T) {
	server, client := newTestConnPair(t)

	w := NewWriter(server, clockwork.NewRealClock(), 16, 30*time.Second, nil)

	// Tear down the transport and enqueue a frame so the write loop hits
	// its failure path while the graceful stop is waiting on it.
	client.Close()
	server.Close()
	w.TrySend([]byte("in flight"))

	done := make(chan struct{})
	go func() {
		w.StopGraceful("server shutting down")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("graceful stop deadlocked against the write loop's failure path")
	}
}

func TestWriterKeepAlivePing(t *testing.T) {
	server, client := newTestConnPair(t)

	pings := make(chan struct{}, 4)
	client.SetPingHandler(func(string) error {
		pings <- struct{}{}
		return nil
	})
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	w := NewWriter(server, clockwork.NewRealClock(), 16, 50*time.Millisecond, nil)
	t.Cleanup(w.Stop)

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a keep-alive ping")
	}
}
