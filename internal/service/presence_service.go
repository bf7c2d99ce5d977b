package service

import (
	"sort"
	"sync"
	"time"

	"github.com/codecade/arena-backend/internal/models"
)

// PresenceService 접속 중인 플레이어 레지스트리
// playerId 기준 단일 키 연산만 제공하며 키별 원자성만 보장한다.
// 연결 핸들은 Transport Gateway만 알고, 여기는 플레이어 상태만 소유한다.
type PresenceService struct {
	mu      sync.RWMutex
	players map[string]*models.PlayerPresence
}

// NewPresenceService Presence 레지스트리 생성
func NewPresenceService() *PresenceService {
	return &PresenceService{
		players: make(map[string]*models.PlayerPresence),
	}
}

// Register 접속한 플레이어 등록 (상태는 Idle로 초기화)
func (s *PresenceService) Register(p *models.PlayerPresence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.State = models.PresenceIdle
	p.BattleID = ""
	p.ConnectedAt = time.Now()
	s.players[p.PlayerID] = p
}

// Remove 플레이어 제거 (연결 종료 시)
func (s *PresenceService) Remove(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.players, playerID)
}

// Get 플레이어 상태 복사본 조회
func (s *PresenceService) Get(playerID string) (models.PlayerPresence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return models.PlayerPresence{}, false
	}
	return *p, true
}

// State 플레이어의 현재 상태만 조회
func (s *PresenceService) State(playerID string) (models.PresenceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return "", false
	}
	return p.State, true
}

// SetState 플레이어 상태 전이 (미접속 플레이어면 no-op)
// battleID는 InBattle 전이에서만 의미가 있다.
func (s *PresenceService) SetState(playerID string, state models.PresenceState, battleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return
	}
	p.State = state
	if state == models.PresenceInBattle {
		p.BattleID = battleID
	} else {
		p.BattleID = ""
	}
}

// SetRating 배틀 종료 후 레이팅 반영
func (s *PresenceService) SetRating(playerID string, rating int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.players[playerID]; ok {
		p.Rating = rating
	}
}

// Snapshot players_update 브로드캐스트용 스냅샷 (접속 순 정렬)
func (s *PresenceService) Snapshot() []models.PlayerSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.PlayerPresence, 0, len(s.players))
	for _, p := range s.players {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ConnectedAt.Before(list[j].ConnectedAt)
	})

	summaries := make([]models.PlayerSummary, 0, len(list))
	for _, p := range list {
		summaries = append(summaries, p.Summary())
	}
	return summaries
}

// Count 접속 중인 플레이어 수
func (s *PresenceService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.players)
}
