package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// 쓰기 타임아웃
	writeWait = 10 * time.Second

	// Pong 대기 시간
	pongWait = 60 * time.Second

	// Ping 주기 (pongWait보다 짧아야 함)
	pingPeriod = (pongWait * 9) / 10

	// 최대 메시지 크기 (submit_result가 답안 목록을 포함한다)
	maxMessageSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS는 미들웨어에서 처리
		return true
	},
}

// Client WebSocket 클라이언트 연결
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan *Message
	playerID string
	logger   *zap.Logger
}

// readPump 클라이언트로부터 메시지 수신
// 수신한 메시지는 Hub의 EventHandler로 넘긴다. 연결이 끊기면
// unregister를 통해 disconnect 처리가 이어진다.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.String("playerId", c.playerID),
					zap.Error(err))
			}
			break
		}

		if handler := c.hub.handler; handler != nil {
			handler.OnMessage(c.playerID, data)
		}
	}
}

// writePump 클라이언트로 메시지 전송
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub가 채널을 닫음
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.logger.Error("Failed to marshal message",
					zap.String("playerId", c.playerID),
					zap.Error(err))
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs WebSocket 연결 핸들러
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, playerID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	logger, _ := zap.NewProduction()
	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan *Message, 64),
		playerID: playerID,
		logger:   logger,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}
