package services

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sprig/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// WSClient is the middleman between one websocket connection and the hub.
type WSClient struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger
}

// HandleConnection registers an upgraded websocket connection with the hub
// and starts its read/write pumps.
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	client := &WSClient{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: h.logger,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump consumes client→server messages. The only meaningful inbound
// event is controlPump; everything else is ignored.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close() //nolint:errcheck
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Websocket read error",
					zap.String("client_id", c.id),
					zap.Error(err))
			}
			return
		}

		var envelope struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			c.logger.Warn("Ignoring malformed client message",
				zap.String("client_id", c.id),
				zap.Error(err))
			continue
		}

		if envelope.Event != models.EventControlPump {
			continue
		}

		var intent models.ControlPumpIntent
		if err := json.Unmarshal(envelope.Data, &intent); err != nil {
			c.logger.Warn("Ignoring malformed controlPump intent",
				zap.String("client_id", c.id),
				zap.Error(err))
			continue
		}
		c.hub.handleControl(intent)
	}
}

// writePump pushes hub broadcasts to the connection and keeps it alive with
// pings.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Websocket write error",
					zap.String("client_id", c.id),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
