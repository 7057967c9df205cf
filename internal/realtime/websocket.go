package realtime

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Galien-Dev/celo-sumbit/internal/event"
)

const (
	pingInterval = 30 * time.Second
	readDeadline = 60 * time.Second
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// encodeBufPool recycles marshal buffers across feed writes to reduce GC
// pressure when many clients watch a busy market.
var encodeBufPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// feedFrame is the wire envelope for one event.
type feedFrame struct {
	Type event.Type  `json:"type"`
	Data event.Event `json:"data"`
}

// handleFeed upgrades the connection and streams every committed market event
// until the client disconnects or falls too far behind (the bus evicts slow
// subscribers by closing their channel).
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so an event committed right
	// after the client connects is never missed.
	events, cancel := s.bus.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.metrics.IncrementConnections()
	defer s.metrics.DecrementConnections()

	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	// Reader drains control frames and detects disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				s.log.Info("feed subscriber evicted or bus closed")
				return
			}
			if err := writeFrame(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, ev event.Event) error {
	buf := encodeBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer encodeBufPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(feedFrame{Type: ev.GetType(), Data: ev}); err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, buf.Bytes())
}
