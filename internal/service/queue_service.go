package service

import (
	"sync"
	"time"

	"github.com/codecade/arena-backend/internal/models"
	"go.uber.org/zap"
)

// QueueService 매칭 대기 큐
// enqueue/match/dequeue는 하나의 뮤텍스로 직렬화된다. 상대를 찾아서
// 큐에서 제거하는 과정이 단일 임계 구역이므로 두 플레이어가 동시에
// 같은 상대를 가져가는 일은 일어나지 않는다.
type QueueService struct {
	mu       sync.Mutex
	entries  []models.QueueEntry
	presence *PresenceService
	logger   *zap.Logger
}

// NewQueueService 매칭 큐 생성
func NewQueueService(presence *PresenceService) *QueueService {
	logger, _ := zap.NewProduction()

	return &QueueService{
		presence: presence,
		logger:   logger,
	}
}

// Enqueue 플레이어를 큐에 추가
// 이미 큐에 있으면 ErrAlreadyQueued, 배틀 중이면 ErrAlreadyInBattle.
func (s *QueueService) Enqueue(playerID string, criteria models.MatchCriteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEligibleLocked(playerID); err != nil {
		return err
	}

	s.appendLocked(playerID, criteria)
	return nil
}

// TryMatch 호환되는 상대 검색
// 찾으면 요청자와 상대의 큐 항목을 모두 소비하고 둘을 InBattle로 전이한다.
// 없으면 (nil, nil)을 반환하며 요청자는 큐에 남는다 (keep waiting).
func (s *QueueService) TryMatch(playerID string, criteria models.MatchCriteria) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.matchLocked(playerID, criteria.Normalize()), nil
}

// SeekMatch 매칭 요청의 단일 진입점: enqueue와 match를 한 임계 구역에서 수행
// 상대를 찾으면 해당 QueueEntry를 반환하고, 못 찾으면 큐에 등록 후 (nil, nil).
func (s *QueueService) SeekMatch(playerID string, criteria models.MatchCriteria) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	criteria = criteria.Normalize()

	if err := s.checkEligibleLocked(playerID); err != nil {
		return nil, err
	}

	if opponent := s.matchLocked(playerID, criteria); opponent != nil {
		return opponent, nil
	}

	s.appendLocked(playerID, criteria)
	return nil, nil
}

// Dequeue 큐에서 제거 (멱등, 취소/소비 공용)
func (s *QueueService) Dequeue(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removeLocked(playerID) {
		if state, ok := s.presence.State(playerID); ok && state == models.PresenceQueued {
			s.presence.SetState(playerID, models.PresenceIdle, "")
		}
	}
}

// Len 현재 대기 인원
func (s *QueueService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// checkEligibleLocked 등록 여부, 중복 등록, 배틀 중 여부 검사
// Presence에 없는 플레이어는 큐에 오를 수 없다. 접속 등록 전에 도착한
// 메시지가 사라질 연결의 QueueEntry를 남기는 것을 막는다.
func (s *QueueService) checkEligibleLocked(playerID string) error {
	state, ok := s.presence.State(playerID)
	if !ok {
		return ErrUnauthenticated
	}

	switch state {
	case models.PresenceQueued:
		return ErrAlreadyQueued
	case models.PresenceInBattle:
		return ErrAlreadyInBattle
	}

	// 상태가 어긋난 경우 대비 큐 자체도 확인
	for _, e := range s.entries {
		if e.PlayerID == playerID {
			return ErrAlreadyQueued
		}
	}
	return nil
}

// matchLocked 삽입 순서대로 첫 호환 상대를 찾아 소비
func (s *QueueService) matchLocked(playerID string, criteria models.MatchCriteria) *models.QueueEntry {
	for _, e := range s.entries {
		if e.PlayerID == playerID {
			continue
		}
		if !criteria.Compatible(e.Criteria) {
			continue
		}

		opponent := e
		s.removeLocked(opponent.PlayerID)
		s.removeLocked(playerID)

		// 배틀 생성 전에 InBattle로 전이해 두 번째 매칭 시도를 차단한다
		s.presence.SetState(playerID, models.PresenceInBattle, "")
		s.presence.SetState(opponent.PlayerID, models.PresenceInBattle, "")

		s.logger.Debug("Matched players",
			zap.String("player", playerID),
			zap.String("opponent", opponent.PlayerID))
		return &opponent
	}
	return nil
}

func (s *QueueService) appendLocked(playerID string, criteria models.MatchCriteria) {
	s.entries = append(s.entries, models.QueueEntry{
		PlayerID:   playerID,
		Criteria:   criteria.Normalize(),
		EnqueuedAt: time.Now(),
	})
	s.presence.SetState(playerID, models.PresenceQueued, "")
}

func (s *QueueService) removeLocked(playerID string) bool {
	for i, e := range s.entries {
		if e.PlayerID == playerID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}
