package websocket

import (
	"encoding/json"
	"time"

	"github.com/codecade/arena-backend/internal/models"
)

// 클라이언트 → 서버 메시지 타입
const (
	MsgFindMatch      = "find_match"
	MsgCancelMatch    = "cancel_match"
	MsgAnswerProgress = "answer_progress"
	MsgSubmitResult   = "submit_result"
)

// 서버 → 클라이언트 이벤트 타입
const (
	EventPlayersUpdate        = "players_update"
	EventQueued               = "queued"
	EventMatchCancelled       = "match_cancelled"
	EventMatchFound           = "match_found"
	EventOpponentAnswered     = "opponent_answered"
	EventWaitingOpponent      = "waiting_opponent"
	EventBattleResult         = "battle_result"
	EventOpponentDisconnected = "opponent_disconnected"
	EventError                = "error"
)

// ClientMessage 인바운드 메시지 봉투
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// FindMatchPayload find_match 요청 내용
type FindMatchPayload struct {
	SkillBand string `json:"skillBand"`
	Topic     string `json:"topic"`
}

// AnswerProgressPayload answer_progress 요청 내용
type AnswerProgressPayload struct {
	BattleID string `json:"battleId"`
	Score    int    `json:"score"`
}

// SubmitResultPayload submit_result 요청 내용
type SubmitResultPayload struct {
	BattleID    string                `json:"battleId"`
	Score       int                   `json:"score"`
	Answers     []models.AnswerRecord `json:"answers"`
	TimeSpentMs int64                 `json:"timeSpentMs"`
}

// MatchFoundPayload match_found 이벤트 내용
type MatchFoundPayload struct {
	BattleID    string               `json:"battleId"`
	Opponent    models.PlayerSummary `json:"opponent"`
	Questions   []models.Question    `json:"questions"`
	Deadline    time.Time            `json:"deadline"`
	TimeLimitMs int64                `json:"timeLimitMs"`
}

// QueuedPayload queued 이벤트 내용
type QueuedPayload struct {
	Criteria models.MatchCriteria `json:"criteria"`
}

// OpponentAnsweredPayload opponent_answered 이벤트 내용
type OpponentAnsweredPayload struct {
	BattleID string `json:"battleId"`
	Score    int    `json:"score"`
}

// OpponentDisconnectedPayload opponent_disconnected 이벤트 내용
type OpponentDisconnectedPayload struct {
	BattleID string `json:"battleId"`
}

// ErrorPayload error 이벤트 내용
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
