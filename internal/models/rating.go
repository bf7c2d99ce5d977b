package models

// DefaultRating 신규 플레이어 초기 레이팅
const DefaultRating = 1200

// RatingRecord 플레이어별 레이팅 기록
// 배틀 정산 트랜잭션 안에서만 변경되며, 배틀 하나당 정확히 한번 갱신된다.
type RatingRecord struct {
	PlayerID string `json:"playerId" db:"player_id"`
	Rating   int    `json:"rating" db:"rating"`
	Wins     int    `json:"wins" db:"wins"`
	Losses   int    `json:"losses" db:"losses"`
}

// LeaderboardEntry 리더보드 항목
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

// BattleStats 플레이어 배틀 통계 (REST 조회용)
type BattleStats struct {
	PlayerID     string `json:"playerId"`
	Rating       int    `json:"rating"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	TotalBattles int    `json:"totalBattles"`
}
