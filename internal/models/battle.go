package models

import "time"

type BattleStatus string

const (
	BattleStatusActive          BattleStatus = "active"
	BattleStatusAwaitingResults BattleStatus = "awaiting_results"
	BattleStatusCompleted       BattleStatus = "completed"
	BattleStatusAborted         BattleStatus = "aborted"
)

// Terminal 종료 상태 여부
func (s BattleStatus) Terminal() bool {
	return s == BattleStatusCompleted || s == BattleStatusAborted
}

// AnswerRecord 문제별 답안 기록
type AnswerRecord struct {
	QuestionID string `json:"questionId"`
	Selected   int    `json:"selected"`
	Correct    bool   `json:"correct"`
}

// Submission 플레이어의 배틀 결과 제출
// 한번 기록되면 불변이다. 같은 플레이어의 두번째 제출은 거부된다.
type Submission struct {
	PlayerID    string         `json:"playerId"`
	Score       int            `json:"score"`
	Answers     []AnswerRecord `json:"answers"`
	TimeSpentMs int64          `json:"timeSpentMs"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// Battle 진행 중인 1대1 배틀
// 상태 전이는 단조적이다: Active → AwaitingResults → Completed,
// Active/AwaitingResults → Aborted.
type Battle struct {
	ID          string                `json:"id"`
	Player1ID   string                `json:"player1Id"`
	Player2ID   string                `json:"player2Id"`
	Topic       string                `json:"topic"`
	Questions   []Question            `json:"questions"`
	Status      BattleStatus          `json:"status"`
	Submissions map[string]Submission `json:"submissions"`
	WinnerID    *string               `json:"winnerId,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	Deadline    time.Time             `json:"deadline"`
}

// Opponent 상대 플레이어 ID
func (b *Battle) Opponent(playerID string) (string, bool) {
	switch playerID {
	case b.Player1ID:
		return b.Player2ID, true
	case b.Player2ID:
		return b.Player1ID, true
	}
	return "", false
}

// Contains 플레이어 참가 여부
func (b *Battle) Contains(playerID string) bool {
	return playerID == b.Player1ID || playerID == b.Player2ID
}

// BattleHistoryRecord 영속화된 배틀 히스토리 행
type BattleHistoryRecord struct {
	BattleID      string     `json:"battleId" db:"battle_id"`
	Player1ID     string     `json:"player1Id" db:"player1_id"`
	Player2ID     string     `json:"player2Id" db:"player2_id"`
	WinnerID      *string    `json:"winnerId,omitempty" db:"winner_id"`
	Player1Score  int        `json:"player1Score" db:"player1_score"`
	Player2Score  int        `json:"player2Score" db:"player2_score"`
	Player1TimeMs int64      `json:"player1TimeMs" db:"player1_time_ms"`
	Player2TimeMs int64      `json:"player2TimeMs" db:"player2_time_ms"`
	Forfeit       bool       `json:"forfeit" db:"forfeit"`
	StartedAt     time.Time  `json:"startedAt" db:"started_at"`
	FinishedAt    time.Time  `json:"finishedAt" db:"finished_at"`
}

// PlayerResult 배틀 결과의 플레이어별 항목
type PlayerResult struct {
	PlayerID     string `json:"playerId"`
	Username     string `json:"username"`
	Score        int    `json:"score"`
	TimeSpentMs  int64  `json:"timeSpentMs"`
	RatingBefore int    `json:"ratingBefore"`
	RatingAfter  int    `json:"ratingAfter"`
	RatingChange int    `json:"ratingChange"`
	XPAwarded    int    `json:"xpAwarded"`
}

// BattleResult 종료된 배틀의 결과 레코드
// 배틀 히스토리 저장과 클라이언트 battle_result 이벤트에 모두 쓰인다.
type BattleResult struct {
	BattleID       string       `json:"battleId"`
	Status         BattleStatus `json:"status"`
	WinnerID       *string      `json:"winnerId,omitempty"`
	Draw           bool         `json:"draw"`
	Forfeit        bool         `json:"forfeit"`
	DisconnectedID *string      `json:"disconnectedId,omitempty"`
	Player1        PlayerResult `json:"player1"`
	Player2        PlayerResult `json:"player2"`
	StartedAt      time.Time    `json:"startedAt"`
	FinishedAt     time.Time    `json:"finishedAt"`
}
