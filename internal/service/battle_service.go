package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// XP awarded by the battle-history collaborator per outcome.
const (
	xpWin  = 50
	xpLoss = 20
	xpDraw = 30
)

// QuestionProvider 배틀용 문제 샘플링 (콘텐츠 협력자)
type QuestionProvider interface {
	SampleQuestions(ctx context.Context, topic string, count int) ([]models.Question, error)
}

// RatingStore 플레이어 레이팅 저장소의 원자적 read-modify-write
// apply는 두 레코드를 같은 트랜잭션 안에서 받아 직접 수정한다.
type RatingStore interface {
	UpdatePair(ctx context.Context, player1ID, player2ID string, apply func(r1, r2 *models.RatingRecord)) (*models.RatingRecord, *models.RatingRecord, error)
}

// BattleArchiver 종료된 배틀 결과 영속화 + XP 지급 (히스토리 협력자)
type BattleArchiver interface {
	SaveResult(ctx context.Context, result *models.BattleResult) error
}

// ResultNotifier finalize 완료 통지 (Transport Gateway가 구현)
type ResultNotifier interface {
	BattleFinalized(result *models.BattleResult)
}

// LeaderboardUpdater 레이팅 변경의 리더보드 반영 (선택적)
type LeaderboardUpdater interface {
	SetRating(ctx context.Context, record models.RatingRecord, username string) error
}

// battleState 배틀 하나의 소유 상태
// mu가 submit/abort/만료 → finalize 전이를 배틀 단위로 직렬화한다.
type battleState struct {
	mu     sync.Mutex
	battle *models.Battle
	timer  *time.Timer

	// 결과 페이로드용 표시 이름 스냅샷 (연결이 끊겨도 유지)
	player1Name string
	player2Name string
}

// BattleService 배틀 세션 매니저
// 배틀마다 독립된 뮤텍스를 가지므로 서로 다른 배틀의 finalize는
// 경합 없이 병렬로 진행된다.
type BattleService struct {
	mu      sync.RWMutex
	battles map[string]*battleState

	questions   QuestionProvider
	ratings     RatingStore
	archiver    BattleArchiver
	elo         *ELOService
	presence    *PresenceService
	notifier    ResultNotifier
	leaderboard LeaderboardUpdater

	questionCount int
	timeLimit     time.Duration
	logger        *zap.Logger
}

// NewBattleService 배틀 세션 매니저 생성
func NewBattleService(
	questions QuestionProvider,
	ratings RatingStore,
	archiver BattleArchiver,
	elo *ELOService,
	presence *PresenceService,
	questionCount int,
	timeLimit time.Duration,
) *BattleService {
	logger, _ := zap.NewProduction()

	return &BattleService{
		battles:       make(map[string]*battleState),
		questions:     questions,
		ratings:       ratings,
		archiver:      archiver,
		elo:           elo,
		presence:      presence,
		questionCount: questionCount,
		timeLimit:     timeLimit,
		logger:        logger,
	}
}

// SetNotifier 결과 통지 대상 설정 (Gateway와의 순환 참조 회피)
func (s *BattleService) SetNotifier(n ResultNotifier) {
	s.notifier = n
}

// SetLeaderboard 리더보드 연동 설정 (nil이면 비활성)
func (s *BattleService) SetLeaderboard(l LeaderboardUpdater) {
	s.leaderboard = l
}

// CreateBattle 매칭 확정된 두 플레이어의 배틀 생성
// 문제 샘플링 후 Active 상태로 시작하며 마감 타이머를 건다.
func (s *BattleService) CreateBattle(ctx context.Context, player1ID, player2ID, topic string) (*models.Battle, error) {
	questions, err := s.questions.SampleQuestions(ctx, topic, s.questionCount)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions: %w", err)
	}

	now := time.Now()
	battle := &models.Battle{
		ID:          uuid.NewString(),
		Player1ID:   player1ID,
		Player2ID:   player2ID,
		Topic:       topic,
		Questions:   questions,
		Status:      models.BattleStatusActive,
		Submissions: make(map[string]models.Submission),
		CreatedAt:   now,
		Deadline:    now.Add(s.timeLimit),
	}

	state := &battleState{battle: battle}
	if p, ok := s.presence.Get(player1ID); ok {
		state.player1Name = p.Username
	}
	if p, ok := s.presence.Get(player2ID); ok {
		state.player2Name = p.Username
	}

	battleID := battle.ID
	state.timer = time.AfterFunc(s.timeLimit, func() {
		s.expire(battleID)
	})

	s.mu.Lock()
	s.battles[battleID] = state
	s.mu.Unlock()

	s.presence.SetState(player1ID, models.PresenceInBattle, battleID)
	s.presence.SetState(player2ID, models.PresenceInBattle, battleID)

	s.logger.Info("Battle created",
		zap.String("battleId", battleID),
		zap.String("player1", player1ID),
		zap.String("player2", player2ID),
		zap.String("topic", topic),
		zap.Int("questions", len(questions)))

	return battle, nil
}

// SubmitResult 플레이어의 결과 제출
// 두 번째 유효 제출이 들어오면 같은 호출 안에서 finalize까지 수행한다.
// 아직 상대를 기다리는 중이면 (nil, nil)을 반환한다.
func (s *BattleService) SubmitResult(ctx context.Context, battleID, playerID string, score int, answers []models.AnswerRecord, timeSpentMs int64) (*models.BattleResult, error) {
	state, ok := s.get(battleID)
	if !ok {
		return nil, ErrBattleNotFound
	}

	state.mu.Lock()
	b := state.battle

	if b.Status.Terminal() {
		state.mu.Unlock()
		return nil, ErrBattleAlreadyFinalized
	}
	if !b.Contains(playerID) {
		state.mu.Unlock()
		return nil, ErrNotAParticipant
	}
	if _, dup := b.Submissions[playerID]; dup {
		state.mu.Unlock()
		return nil, ErrDuplicateSubmission
	}

	b.Submissions[playerID] = models.Submission{
		PlayerID:    playerID,
		Score:       score,
		Answers:     answers,
		TimeSpentMs: timeSpentMs,
		SubmittedAt: time.Now(),
	}

	if len(b.Submissions) < 2 {
		b.Status = models.BattleStatusAwaitingResults
		state.mu.Unlock()
		return nil, nil
	}

	result := s.finalizeLocked(ctx, state, models.BattleStatusCompleted, nil)
	state.mu.Unlock()

	s.afterFinalize(result)
	return result, nil
}

// Abort 연결이 끊긴 플레이어의 배틀 중단 (멱등, first caller wins)
// 남은 플레이어가 부전승 처리되며 레이팅도 승리로 정산된다.
func (s *BattleService) Abort(ctx context.Context, battleID, disconnectedPlayerID string) (*models.BattleResult, error) {
	state, ok := s.get(battleID)
	if !ok {
		return nil, ErrBattleNotFound
	}

	state.mu.Lock()
	b := state.battle

	if b.Status.Terminal() {
		state.mu.Unlock()
		return nil, ErrBattleAlreadyFinalized
	}
	if !b.Contains(disconnectedPlayerID) {
		state.mu.Unlock()
		return nil, ErrNotAParticipant
	}

	result := s.finalizeLocked(ctx, state, models.BattleStatusAborted, &disconnectedPlayerID)
	state.mu.Unlock()

	s.afterFinalize(result)
	return result, nil
}

// OpponentOf 배틀 내 상대 플레이어 조회 (진행 상황 중계용)
func (s *BattleService) OpponentOf(battleID, playerID string) (string, error) {
	state, ok := s.get(battleID)
	if !ok {
		return "", ErrBattleNotFound
	}

	opponent, ok := state.battle.Opponent(playerID)
	if !ok {
		return "", ErrNotAParticipant
	}
	return opponent, nil
}

// Questions 배틀 문제 조회 (REST 재요청용)
func (s *BattleService) Questions(battleID, playerID string) ([]models.Question, error) {
	state, ok := s.get(battleID)
	if !ok {
		return nil, ErrBattleNotFound
	}
	if !state.battle.Contains(playerID) {
		return nil, ErrNotAParticipant
	}
	return state.battle.Questions, nil
}

// ActiveCount 진행 중인 배틀 수
func (s *BattleService) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.battles)
}

// Shutdown 모든 마감 타이머 해제
func (s *BattleService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, state := range s.battles {
		if state.timer != nil {
			state.timer.Stop()
		}
	}
}

func (s *BattleService) get(battleID string) (*battleState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.battles[battleID]
	return state, ok
}

// expire 마감 시각 도달 시 강제 finalize
// 미제출 플레이어는 0점 제출로 간주한다. 늦은 제출과의 경합은 배틀
// 뮤텍스가 판가름하며, 진 쪽은 ErrBattleAlreadyFinalized를 받는다.
func (s *BattleService) expire(battleID string) {
	state, ok := s.get(battleID)
	if !ok {
		return
	}

	state.mu.Lock()
	b := state.battle

	if b.Status.Terminal() {
		state.mu.Unlock()
		return
	}

	s.logger.Info("Battle deadline elapsed, forcing finalize",
		zap.String("battleId", battleID),
		zap.Int("submissions", len(b.Submissions)))

	result := s.finalizeLocked(context.Background(), state, models.BattleStatusCompleted, nil)
	state.mu.Unlock()

	s.afterFinalize(result)
}

// finalizeLocked 배틀 종료의 단일 경로. state.mu를 쥔 채로 호출해야 한다.
// 승자 결정, 레이팅 갱신(배틀당 정확히 한번), 히스토리 저장까지 수행한다.
func (s *BattleService) finalizeLocked(ctx context.Context, state *battleState, status models.BattleStatus, disconnectedID *string) *models.BattleResult {
	b := state.battle

	if state.timer != nil {
		state.timer.Stop()
	}

	// 미제출 플레이어는 0점으로 채운다 (마감 초과 또는 중단)
	for _, pid := range []string{b.Player1ID, b.Player2ID} {
		if _, ok := b.Submissions[pid]; !ok {
			b.Submissions[pid] = models.Submission{
				PlayerID:    pid,
				Score:       0,
				TimeSpentMs: 0,
				SubmittedAt: time.Now(),
			}
		}
	}

	var winnerID *string
	if status == models.BattleStatusAborted && disconnectedID != nil {
		// 부전승: 남은 플레이어가 승자
		if remaining, ok := b.Opponent(*disconnectedID); ok {
			winnerID = &remaining
		}
	} else {
		winnerID = decideWinner(b)
	}

	b.Status = status
	b.WinnerID = winnerID

	// 결과 점수 환산: 1.0 = player1 승, 0.5 = 무승부, 0.0 = player2 승
	outcome := OutcomeDraw
	if winnerID != nil {
		if *winnerID == b.Player1ID {
			outcome = OutcomePlayer1Wins
		} else {
			outcome = OutcomePlayer2Wins
		}
	}

	result := &models.BattleResult{
		BattleID:       b.ID,
		Status:         status,
		WinnerID:       winnerID,
		Draw:           winnerID == nil,
		Forfeit:        status == models.BattleStatusAborted,
		DisconnectedID: disconnectedID,
		StartedAt:      b.CreatedAt,
		FinishedAt:     time.Now(),
	}

	sub1 := b.Submissions[b.Player1ID]
	sub2 := b.Submissions[b.Player2ID]
	result.Player1 = playerResult(b.Player1ID, state.player1Name, sub1, winnerID)
	result.Player2 = playerResult(b.Player2ID, state.player2Name, sub2, winnerID)

	// 레이팅 갱신: 정산 시점에 양쪽 레이팅을 한 트랜잭션에서 읽고 쓴다
	rec1, rec2, err := s.ratings.UpdatePair(ctx, b.Player1ID, b.Player2ID, func(r1, r2 *models.RatingRecord) {
		result.Player1.RatingBefore = r1.Rating
		result.Player2.RatingBefore = r2.Rating

		new1, new2, _, _ := s.elo.CalculateNewRatings(r1.Rating, r2.Rating, outcome)
		r1.Rating = new1
		r2.Rating = new2

		if winnerID != nil {
			if *winnerID == b.Player1ID {
				r1.Wins++
				r2.Losses++
			} else {
				r2.Wins++
				r1.Losses++
			}
		}
	})
	if err != nil {
		s.logger.Error("Failed to apply rating update",
			zap.String("battleId", b.ID),
			zap.Error(err))

		// apply가 실행되지 못했으면 before/after가 비어 있다.
		// Presence가 아는 현재 레이팅으로 채워 변동 0으로 보고한다.
		if p, ok := s.presence.Get(b.Player1ID); ok {
			result.Player1.RatingBefore = p.Rating
			result.Player1.RatingAfter = p.Rating
		}
		if p, ok := s.presence.Get(b.Player2ID); ok {
			result.Player2.RatingBefore = p.Rating
			result.Player2.RatingAfter = p.Rating
		}
	} else {
		result.Player1.RatingAfter = rec1.Rating
		result.Player1.RatingChange = rec1.Rating - result.Player1.RatingBefore
		result.Player2.RatingAfter = rec2.Rating
		result.Player2.RatingChange = rec2.Rating - result.Player2.RatingBefore

		if s.leaderboard != nil {
			if lerr := s.leaderboard.SetRating(ctx, *rec1, state.player1Name); lerr != nil {
				s.logger.Warn("Failed to update leaderboard", zap.String("playerId", rec1.PlayerID), zap.Error(lerr))
			}
			if lerr := s.leaderboard.SetRating(ctx, *rec2, state.player2Name); lerr != nil {
				s.logger.Warn("Failed to update leaderboard", zap.String("playerId", rec2.PlayerID), zap.Error(lerr))
			}
		}
	}

	if err := s.archiver.SaveResult(ctx, result); err != nil {
		s.logger.Error("Failed to archive battle result",
			zap.String("battleId", b.ID),
			zap.Error(err))
	}

	s.logger.Info("Battle finalized",
		zap.String("battleId", b.ID),
		zap.String("status", string(status)),
		zap.Any("winner", winnerID),
		zap.Bool("forfeit", result.Forfeit))

	return result
}

// finalizedRetention 종료된 배틀을 메모리에 유지하는 시간
// 늦은 제출이 BattleNotFound 대신 BattleAlreadyFinalized를 받게 한다.
const finalizedRetention = time.Minute

// afterFinalize 배틀 뮤텍스 밖에서의 마무리: 지연 제거 예약, presence 복귀, 통지
func (s *BattleService) afterFinalize(result *models.BattleResult) {
	time.AfterFunc(finalizedRetention, func() {
		s.mu.Lock()
		delete(s.battles, result.BattleID)
		s.mu.Unlock()
	})

	for _, pr := range []models.PlayerResult{result.Player1, result.Player2} {
		s.presence.SetRating(pr.PlayerID, pr.RatingAfter)
		if p, ok := s.presence.Get(pr.PlayerID); ok && p.BattleID == result.BattleID {
			s.presence.SetState(pr.PlayerID, models.PresenceIdle, "")
		}
	}

	if s.notifier != nil {
		s.notifier.BattleFinalized(result)
	}
}

// decideWinner 높은 점수 우선, 동점이면 짧은 소요 시간, 그것도 같으면 무승부
func decideWinner(b *models.Battle) *string {
	sub1 := b.Submissions[b.Player1ID]
	sub2 := b.Submissions[b.Player2ID]

	switch {
	case sub1.Score > sub2.Score:
		return &b.Player1ID
	case sub2.Score > sub1.Score:
		return &b.Player2ID
	case sub1.TimeSpentMs < sub2.TimeSpentMs:
		return &b.Player1ID
	case sub2.TimeSpentMs < sub1.TimeSpentMs:
		return &b.Player2ID
	}
	return nil
}

func playerResult(playerID, username string, sub models.Submission, winnerID *string) models.PlayerResult {
	xp := xpDraw
	if winnerID != nil {
		if *winnerID == playerID {
			xp = xpWin
		} else {
			xp = xpLoss
		}
	}

	return models.PlayerResult{
		PlayerID:    playerID,
		Username:    username,
		Score:       sub.Score,
		TimeSpentMs: sub.TimeSpentMs,
		XPAwarded:   xp,
	}
}
