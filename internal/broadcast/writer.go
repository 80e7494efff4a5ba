package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/signcast/internal/metrics"
)

const (
	writeDeadline = 5 * time.Second
	pongDeadline  = 60 * time.Second
)

// Writer owns the write side of a single push connection. It serializes
// pending events onto the socket as they are enqueued and sends periodic
// keep-alive pings to detect half-open sockets. No lock is held across a
// blocking write.
type Writer struct {
	connection   *websocket.Conn
	clock        clockwork.Clock
	pingInterval time.Duration
	sendChannel  chan []byte
	doneChannel  chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	// onClosed fires once when the write loop exits because of a write or
	// ping failure. Used to unregister the connection.
	onClosed func()
}

// NewWriter starts the write loop for conn. bufferSize bounds the pending
// event queue; onClosed is invoked (once, from the writer goroutine) when
// the loop exits due to a transport error.
func NewWriter(conn *websocket.Conn, clock clockwork.Clock, bufferSize int, pingInterval time.Duration, onClosed func()) *Writer {
	w := &Writer{
		connection:   conn,
		clock:        clock,
		pingInterval: pingInterval,
		sendChannel:  make(chan []byte, bufferSize),
		doneChannel:  make(chan struct{}),
		onClosed:     onClosed,
	}
	w.configurePongHandler()
	w.wg.Add(1)
	go w.run()
	return w
}

// TrySend enqueues data without blocking. Returns false when the buffer is
// full or the writer has stopped; the caller decides whether that evicts
// the connection.
func (w *Writer) TrySend(data []byte) bool {
	select {
	case <-w.doneChannel:
		return false
	default:
	}

	select {
	case w.sendChannel <- data:
		return true
	default:
		return false
	}
}

func (w *Writer) run() {
	ticker := w.clock.NewTicker(w.pingInterval)
	defer ticker.Stop()
	defer w.wg.Done()

	for {
		select {
		case msg := <-w.sendChannel:
			w.updateWriteDeadline()
			if err := w.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				metrics.PushWriteFailures.Inc()
				w.closed()
				return
			}
		case <-ticker.Chan():
			w.updateWriteDeadline()
			if err := w.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Ping failed - client likely disconnected
				metrics.PushPingFailures.Inc()
				w.closed()
				return
			}
		case <-w.doneChannel:
			return
		}
	}
}

func (w *Writer) closed() {
	if w.onClosed != nil {
		w.onClosed()
	}
	w.stopOnce.Do(func() {
		close(w.doneChannel)
		_ = w.connection.Close()
	})
}

// Stop terminates the write loop and closes the connection.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.doneChannel)
		_ = w.connection.Close()
	})
	w.wg.Wait()
}

// StopGraceful sends a close frame with reason before closing. Used during
// server shutdown so clients can tell a restart from a network drop.
func (w *Writer) StopGraceful(reason string) {
	var graceful bool
	w.stopOnce.Do(func() {
		graceful = true
		close(w.doneChannel)
	})

	// Wait outside the once: the write loop's failure path also goes
	// through stopOnce and must be able to finish while we wait.
	w.wg.Wait()

	if !graceful {
		// Another stop path already closed the socket.
		return
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	w.updateWriteDeadline()
	_ = w.connection.WriteMessage(websocket.CloseMessage, closeMsg)
	_ = w.connection.Close()
}

func (w *Writer) configurePongHandler() {
	w.updateReadDeadline()
	w.connection.SetPongHandler(func(string) error {
		w.updateReadDeadline()
		return nil
	})
}

func (w *Writer) updateWriteDeadline() {
	_ = w.connection.SetWriteDeadline(w.clock.Now().Add(writeDeadline))
}

func (w *Writer) updateReadDeadline() {
	_ = w.connection.SetReadDeadline(w.clock.Now().Add(pongDeadline))
}
