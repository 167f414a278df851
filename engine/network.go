package engine

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MaxClientMessageSize caps viewer control messages. Larger messages are
// drained and dropped without closing the connection.
const MaxClientMessageSize = 1024

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 32
)

// ---------------------------------------------------------------------------
// Viewer
// ---------------------------------------------------------------------------

// Viewer is one spectator connection. key and synced belong to the Relay's
// Run goroutine; the pumps only touch conn, sendCh and done.
type Viewer struct {
	id     uuid.UUID
	remote string
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}

	key    uint64
	synced bool

	closeOnce sync.Once
}

func newViewer(conn *websocket.Conn, remote string) *Viewer {
	return &Viewer{
		id:     uuid.New(),
		remote: remote,
		conn:   conn,
		sendCh: make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// close stops the write pump and drops the connection. Safe to call twice.
func (v *Viewer) close() {
	v.closeOnce.Do(func() {
		close(v.done)
		if v.conn != nil {
			v.conn.Close()
		}
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ---------------------------------------------------------------------------
// WebSocket handler
// ---------------------------------------------------------------------------

func HandleWS(relay *Relay, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		relay.logger.Printf("[WS] upgrade error from %s: %v", r.RemoteAddr, err)
		return
	}

	v := newViewer(conn, r.RemoteAddr)
	if !relay.join(v) {
		v.close()
		return
	}

	go v.writePump(relay)

	// Reader blocks here until disconnect
	v.readPump(relay)

	relay.leave(v.id)
	v.close()
}

// ---------------------------------------------------------------------------
// Read pump - one goroutine per viewer, reads control messages
// ---------------------------------------------------------------------------

func (v *Viewer) readPump(relay *Relay) {
	v.conn.SetReadDeadline(time.Now().Add(readTimeout))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, rd, err := v.conn.NextReader()
		if err != nil {
			return
		}
		data, err := io.ReadAll(io.LimitReader(rd, MaxClientMessageSize+1))
		if err != nil {
			return
		}
		size := int64(len(data))
		if len(data) > MaxClientMessageSize {
			skipped, err := io.Copy(io.Discard, rd)
			if err != nil {
				return
			}
			size += skipped
		}
		atomic.AddInt64(&relay.totalBytesRecv, size)
		v.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if key, ok := parseControlMessage(data); ok {
			relay.setKey(v.id, key)
		}
	}
}

// parseControlMessage extracts the viewer key from a control message. Only
// objects carrying "viewer_key" as a base-10 string yield a key.
func parseControlMessage(data []byte) (uint64, bool) {
	if len(data) > MaxClientMessageSize {
		return 0, false
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, false
	}
	raw, ok := msg["viewer_key"].(string)
	if !ok {
		return 0, false
	}
	key, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return key, true
}

// ---------------------------------------------------------------------------
// Write pump - one goroutine per viewer, sends frame updates and log items
// ---------------------------------------------------------------------------

func (v *Viewer) writePump(relay *Relay) {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case msg := <-v.sendCh:
			v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := v.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				relay.logger.Printf("[WS] write to viewer %s failed: %v", v.id, err)
				v.close()
				return
			}
		case <-pingTicker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				v.close()
				return
			}
		case <-v.done:
			return
		case <-relay.Done():
			v.close()
			return
		}
	}
}
