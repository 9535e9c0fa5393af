package handler

import (
	"net/http"
	"time"

	"fxhedge/src/dashboard"
	"fxhedge/src/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type viewSubscriber interface {
	Subscribe() (<-chan *dashboard.View, func())
}

// wsClient is one connected dashboard.
type wsClient struct {
	ID   uuid.UUID
	Conn *websocket.Conn
	Done chan struct{}
}

// ViewStreamHandler pushes every new view of the watched account to the client.
// The first message is the current view.
func ViewStreamHandler(sub viewSubscriber, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}

		client := &wsClient{ID: uuid.New(), Conn: conn, Done: make(chan struct{})}
		views, cancel := sub.Subscribe()
		if m != nil {
			m.WSClients.Inc()
		}
		logger.WithField("client", client.ID).Debug("websocket client connected")

		go readPump(client)
		writePump(client, views)

		cancel()
		if m != nil {
			m.WSClients.Dec()
		}
		logger.WithField("client", client.ID).Debug("websocket client disconnected")
	}
}

// readPump only drains control frames; it closes Done when the peer goes away.
func readPump(c *wsClient) {
	defer close(c.Done)
	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(c *wsClient, views <-chan *dashboard.View) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-c.Done:
			return

		case v := <-views:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(v); err != nil {
				logger.WithError(err).WithField("client", c.ID).Debug("websocket write failed")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
