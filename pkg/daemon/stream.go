package daemon

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var errNoHub = errors.New("event stream is not available")

// stream upgrades to a websocket and forwards hub events until either side
// goes away. ?event=<name> limits the stream to one event name.
func (s *server) stream(c *gin.Context) {
	hub := s.app.Hub()
	if hub == nil {
		abortWithError(c, http.StatusNotFound, errNoHub)
		return
	}

	// Subscribe before the handshake completes so that nothing published
	// after the client sees the upgrade is missed.
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	filter := c.Query("event")
	log := logrus.WithFields(logrus.Fields{
		"remote": c.Request.RemoteAddr,
		"filter": filter,
	})
	log.Debug("stream client connected")
	defer log.Debug("stream client disconnected")

	// Clients only send control frames; reading is needed to process them
	// and to notice a closed connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Debug("stream read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if filter != "" && ev.Name != filter {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
