package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// EventHandler 인바운드 이벤트 처리기 (Gateway가 구현)
type EventHandler interface {
	OnMessage(playerID string, data []byte)
	OnDisconnect(playerID string)
}

// Message WebSocket 메시지
type Message struct {
	PlayerID string      `json:"-"`                 // 수신자 (빈 문자열이면 전체 브로드캐스트)
	Type     string      `json:"type"`              // 메시지 타입
	Payload  interface{} `json:"payload,omitempty"` // 메시지 내용
}

// Hub WebSocket 연결 관리 및 브로드캐스트
// playerId 기준으로 연결을 저장한다. 도메인 컴포넌트 중 연결 핸들을
// 아는 곳은 이 패키지뿐이다.
type Hub struct {
	// 플레이어별 연결 저장 (playerID -> *Client)
	clients map[string]*Client
	mu      sync.RWMutex

	// 브로드캐스트 채널
	broadcast chan *Message

	// 등록/해제 채널
	register   chan *Client
	unregister chan *Client

	handler EventHandler
	logger  *zap.Logger
}

// NewHub Hub 생성
func NewHub() *Hub {
	logger, _ := zap.NewProduction()
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// SetHandler 인바운드 이벤트 처리기 설정 (Run 호출 전에 설정해야 한다)
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

// Run Hub 실행
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient 클라이언트 등록
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 기존 연결이 있으면 닫기 (재접속)
	if oldClient, exists := h.clients[client.playerID]; exists {
		close(oldClient.send)
		h.logger.Info("Replaced existing WebSocket connection",
			zap.String("playerId", client.playerID))
	}

	h.clients[client.playerID] = client
	h.logger.Info("WebSocket client registered",
		zap.String("playerId", client.playerID),
		zap.Int("totalClients", len(h.clients)))
}

// unregisterClient 클라이언트 해제
// 재접속으로 대체된 옛 연결의 해제는 disconnect로 취급하지 않는다.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	current, exists := h.clients[client.playerID]
	if !exists || current != client {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client.playerID)
	close(client.send)
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("WebSocket client unregistered",
		zap.String("playerId", client.playerID),
		zap.Int("totalClients", total))

	if h.handler != nil {
		h.handler.OnDisconnect(client.playerID)
	}
}

// broadcastMessage 메시지 브로드캐스트
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.PlayerID == "" {
		// 전체 브로드캐스트
		for _, client := range h.clients {
			select {
			case client.send <- message:
			default:
				h.logger.Warn("Client send channel full, dropping message",
					zap.String("playerId", client.playerID),
					zap.String("type", message.Type))
			}
		}
	} else {
		// 특정 플레이어에게만 전송
		if client, exists := h.clients[message.PlayerID]; exists {
			select {
			case client.send <- message:
			default:
				h.logger.Warn("Client send channel full, dropping message",
					zap.String("playerId", message.PlayerID),
					zap.String("type", message.Type))
			}
		}
	}
}

// SendToUser 특정 플레이어에게 메시지 전송
func (h *Hub) SendToUser(playerID string, msgType string, payload interface{}) {
	msg := &Message{
		PlayerID: playerID,
		Type:     msgType,
		Payload:  payload,
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast channel full, dropping message",
			zap.String("playerId", playerID),
			zap.String("type", msgType))
	}
}

// Broadcast 모든 플레이어에게 메시지 전송
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	msg := &Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast channel full, dropping broadcast",
			zap.String("type", msgType))
	}
}

// IsConnected 플레이어 접속 여부
func (h *Hub) IsConnected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, exists := h.clients[playerID]
	return exists
}
