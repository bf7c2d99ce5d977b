package models

import "time"

type PresenceState string

const (
	PresenceIdle     PresenceState = "idle"
	PresenceQueued   PresenceState = "queued"
	PresenceInBattle PresenceState = "in_battle"
)

// PlayerPresence 접속 중인 플레이어의 현재 상태
// 수명은 Presence Registry가 단독으로 소유한다.
type PlayerPresence struct {
	PlayerID    string        `json:"playerId"`
	Username    string        `json:"username"`
	Level       int           `json:"level"`
	Rating      int           `json:"rating"`
	State       PresenceState `json:"state"`
	BattleID    string        `json:"-"` // InBattle일 때만 설정
	ConnectedAt time.Time     `json:"connectedAt"`
}

// PlayerSummary players_update 이벤트용 스냅샷 항목
type PlayerSummary struct {
	PlayerID string        `json:"playerId"`
	Username string        `json:"username"`
	Level    int           `json:"level"`
	Rating   int           `json:"rating"`
	State    PresenceState `json:"state"`
}

// Summary 브로드캐스트용 요약 생성
func (p *PlayerPresence) Summary() PlayerSummary {
	return PlayerSummary{
		PlayerID: p.PlayerID,
		Username: p.Username,
		Level:    p.Level,
		Rating:   p.Rating,
		State:    p.State,
	}
}
