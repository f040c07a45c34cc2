package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rfmesh/meshmap/pkg/events"
	"github.com/rfmesh/meshmap/pkg/logging"
)

// The daemon binds to loopback by default, so cross-origin browser pages
// on the same machine are allowed to connect.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient serializes writes to one websocket connection. Gorilla allows
// at most one concurrent writer, and every topic fan-in goroutine writes.
type wsClient struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (c *wsClient) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(v)
}

// handleWebsocket streams every bus envelope to the client as JSON. The
// connection lives until the client goes away, a write fails, or the
// server shuts down the bus.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.Error(err))
		return
	}

	log := s.log.With(logging.String("remote", conn.RemoteAddr().String()))
	log.Debug("websocket client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &wsClient{conn: conn, writeTimeout: s.wsWriteTimeout}

	var wg sync.WaitGroup
	for _, topic := range events.Topics() {
		sub := s.bus.Subscribe(ctx, topic)
		if sub == nil {
			// Bus already shut down
			conn.Close()
			return
		}
		wg.Add(1)
		go func(sub *events.Subscription) {
			defer wg.Done()
			for env := range sub.Channel() {
				if err := client.writeJSON(env); err != nil {
					log.Debug("websocket write failed", logging.Error(err))
					cancel()
					return
				}
			}
		}(sub)
	}

	// Inbound frames are ignored; the read loop only detects disconnects
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	<-ctx.Done()
	conn.Close()
	wg.Wait()
	log.Debug("websocket client disconnected")
}
