package service

import "math"

// Battle outcome scores from player1's perspective.
const (
	OutcomePlayer1Wins = 1.0
	OutcomeDraw        = 0.5
	OutcomePlayer2Wins = 0.0
)

// ELOService ELO 레이팅 계산 서비스
// 상태가 없는 순수 계산기이며 적용의 멱등성은 배틀 finalize 쪽에서 보장한다.
type ELOService struct {
	kFactor     float64
	ratingFloor int
}

// NewELOService ELO 서비스 생성
// ratingFloor 이하로는 레이팅이 내려가지 않는다 (0이면 하한 없음).
func NewELOService(ratingFloor int) *ELOService {
	return &ELOService{
		kFactor:     32, // K-factor: 레이팅 변동 폭
		ratingFloor: ratingFloor,
	}
}

// CalculateNewRatings 배틀 결과에 따른 새로운 ELO 레이팅 계산
// result: 1.0 (player1 승), 0.5 (무승부), 0.0 (player2 승)
func (s *ELOService) CalculateNewRatings(player1Rating, player2Rating int, result float64) (newPlayer1Rating, newPlayer2Rating, player1Change, player2Change int) {
	// 기대 승률 계산
	expected1 := s.expectedScore(float64(player1Rating), float64(player2Rating))
	expected2 := 1.0 - expected1

	newPlayer1Rating = int(math.Round(float64(player1Rating) + s.kFactor*(result-expected1)))
	newPlayer2Rating = int(math.Round(float64(player2Rating) + s.kFactor*((1.0-result)-expected2)))

	// 레이팅 하한 적용
	if s.ratingFloor > 0 {
		if newPlayer1Rating < s.ratingFloor {
			newPlayer1Rating = s.ratingFloor
		}
		if newPlayer2Rating < s.ratingFloor {
			newPlayer2Rating = s.ratingFloor
		}
	}

	player1Change = newPlayer1Rating - player1Rating
	player2Change = newPlayer2Rating - player2Rating

	return
}

// expectedScore ELO에 기반한 기대 승률 계산
func (s *ELOService) expectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}
