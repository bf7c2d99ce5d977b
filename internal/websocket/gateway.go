package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/codecade/arena-backend/internal/service"
	"github.com/codecade/arena-backend/pkg/ratelimit"
	"go.uber.org/zap"
)

// Gateway 실시간 매치메이킹/배틀 이벤트 라우터
// 클라이언트 메시지를 도메인 오퍼레이션으로 변환하고, 도메인 결과를
// 이벤트로 되돌려 보낸다. 도메인 서비스는 연결 핸들을 모른다.
type Gateway struct {
	hub      *Hub
	presence *service.PresenceService
	queue    *service.QueueService
	battles  *service.BattleService
	limiter  *ratelimit.RateLimiter
	logger   *zap.Logger
}

// NewGateway Gateway 생성 및 Hub/BattleService에 연결
func NewGateway(
	hub *Hub,
	presence *service.PresenceService,
	queue *service.QueueService,
	battles *service.BattleService,
) *Gateway {
	logger, _ := zap.NewProduction()

	g := &Gateway{
		hub:      hub,
		presence: presence,
		queue:    queue,
		battles:  battles,
		limiter:  ratelimit.NewRateLimiter(20, 10), // 플레이어당 초당 10개, 버스트 20개
		logger:   logger,
	}

	hub.SetHandler(g)
	battles.SetNotifier(g)
	return g
}

// OnConnect 인증된 플레이어 접속 처리
// Presence에 Idle로 등록하고 전체 플레이어 목록을 브로드캐스트한다.
func (g *Gateway) OnConnect(p *models.PlayerPresence) {
	g.presence.Register(p)
	g.broadcastPlayers()

	g.logger.Info("Player connected",
		zap.String("playerId", p.PlayerID),
		zap.String("username", p.Username),
		zap.Int("online", g.presence.Count()))
}

// OnMessage 인바운드 메시지 디스패치 (Client readPump 고루틴에서 실행)
func (g *Gateway) OnMessage(playerID string, data []byte) {
	if !g.limiter.Allow(playerID) {
		g.logger.Warn("Rate limit exceeded, dropping message",
			zap.String("playerId", playerID))
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		g.sendError(playerID, "invalid_message", "malformed message")
		return
	}

	switch msg.Type {
	case MsgFindMatch:
		g.handleFindMatch(playerID, msg.Payload)
	case MsgCancelMatch:
		g.handleCancelMatch(playerID)
	case MsgAnswerProgress:
		g.handleAnswerProgress(playerID, msg.Payload)
	case MsgSubmitResult:
		g.handleSubmitResult(playerID, msg.Payload)
	default:
		g.sendError(playerID, "unknown_type", "unknown message type: "+msg.Type)
	}
}

// OnDisconnect 연결 종료 처리
// 대기열에 있으면 제거, 배틀 중이면 몰수패 처리 후 Presence에서 내린다.
func (g *Gateway) OnDisconnect(playerID string) {
	p, ok := g.presence.Get(playerID)
	if !ok {
		return
	}

	switch p.State {
	case models.PresenceQueued:
		g.queue.Dequeue(playerID)

	case models.PresenceInBattle:
		if _, err := g.battles.Abort(context.Background(), p.BattleID, playerID); err != nil {
			if !errors.Is(err, service.ErrBattleNotFound) && !errors.Is(err, service.ErrBattleAlreadyFinalized) {
				g.logger.Error("Failed to abort battle on disconnect",
					zap.String("playerId", playerID),
					zap.String("battleId", p.BattleID),
					zap.Error(err))
			}
		}
	}

	g.presence.Remove(playerID)
	g.broadcastPlayers()

	g.logger.Info("Player disconnected",
		zap.String("playerId", playerID),
		zap.String("state", string(p.State)))
}

// BattleFinalized finalize 완료 통지 (service.ResultNotifier 구현)
// 몰수 종료면 남은 쪽에 opponent_disconnected를 먼저 보낸다.
func (g *Gateway) BattleFinalized(result *models.BattleResult) {
	if result.Forfeit && result.DisconnectedID != nil {
		remaining := result.Player1.PlayerID
		if remaining == *result.DisconnectedID {
			remaining = result.Player2.PlayerID
		}
		g.hub.SendToUser(remaining, EventOpponentDisconnected, OpponentDisconnectedPayload{
			BattleID: result.BattleID,
		})
	}

	g.hub.SendToUser(result.Player1.PlayerID, EventBattleResult, result)
	g.hub.SendToUser(result.Player2.PlayerID, EventBattleResult, result)
	g.broadcastPlayers()
}

// handleFindMatch 매칭 탐색
// 즉시 매칭되면 배틀을 만들어 양쪽에 match_found를 보내고,
// 아니면 대기열에 올린 뒤 queued로 응답한다.
func (g *Gateway) handleFindMatch(playerID string, raw json.RawMessage) {
	var payload FindMatchPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			g.sendError(playerID, "invalid_message", "malformed find_match payload")
			return
		}
	}

	criteria := models.MatchCriteria{
		SkillBand: payload.SkillBand,
		Topic:     payload.Topic,
	}.Normalize()

	opponent, err := g.queue.SeekMatch(playerID, criteria)
	if err != nil {
		g.sendError(playerID, errorCode(err), err.Error())
		return
	}

	if opponent == nil {
		// 호환 상대 없음, 대기열 등록됨
		g.hub.SendToUser(playerID, EventQueued, QueuedPayload{Criteria: criteria})
		g.broadcastPlayers()
		return
	}

	// 먼저 대기하던 쪽이 player1
	topic := criteria.Topic
	if topic == models.CriteriaAny {
		topic = opponent.Criteria.Topic
	}

	battle, err := g.battles.CreateBattle(context.Background(), opponent.PlayerID, playerID, topic)
	if err != nil {
		g.logger.Error("Failed to create battle",
			zap.String("player1Id", opponent.PlayerID),
			zap.String("player2Id", playerID),
			zap.Error(err))

		// 매칭 롤백: 양쪽 다 Idle 복귀
		g.presence.SetState(opponent.PlayerID, models.PresenceIdle, "")
		g.presence.SetState(playerID, models.PresenceIdle, "")
		g.sendError(opponent.PlayerID, "battle_create_failed", "failed to start battle")
		g.sendError(playerID, "battle_create_failed", "failed to start battle")
		g.broadcastPlayers()
		return
	}

	// 매칭 확정과 배틀 생성 사이에 끊긴 플레이어 확인
	// 그 창에서의 disconnect는 battleId를 모르는 채 처리되므로 여기서
	// 몰수 처리를 마무리한다. 남은 쪽은 battle_result로 통지받는다.
	for _, pid := range []string{battle.Player1ID, battle.Player2ID} {
		if _, ok := g.presence.Get(pid); !ok {
			if _, aerr := g.battles.Abort(context.Background(), battle.ID, pid); aerr != nil &&
				!errors.Is(aerr, service.ErrBattleAlreadyFinalized) {
				g.logger.Error("Failed to abort battle for vanished player",
					zap.String("battleId", battle.ID),
					zap.String("playerId", pid),
					zap.Error(aerr))
			}
			g.broadcastPlayers()
			return
		}
	}

	g.sendMatchFound(battle, battle.Player1ID, battle.Player2ID)
	g.sendMatchFound(battle, battle.Player2ID, battle.Player1ID)
	g.broadcastPlayers()
}

// handleCancelMatch 대기열 이탈 (멱등)
func (g *Gateway) handleCancelMatch(playerID string) {
	g.queue.Dequeue(playerID)
	g.hub.SendToUser(playerID, EventMatchCancelled, nil)
	g.broadcastPlayers()
}

// handleAnswerProgress 진행 중 점수를 상대에게 중계
func (g *Gateway) handleAnswerProgress(playerID string, raw json.RawMessage) {
	var payload AnswerProgressPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		g.sendError(playerID, "invalid_message", "malformed answer_progress payload")
		return
	}

	opponentID, err := g.battles.OpponentOf(payload.BattleID, playerID)
	if err != nil {
		g.sendError(playerID, errorCode(err), err.Error())
		return
	}

	g.hub.SendToUser(opponentID, EventOpponentAnswered, OpponentAnsweredPayload{
		BattleID: payload.BattleID,
		Score:    payload.Score,
	})
}

// handleSubmitResult 최종 결과 제출
// 첫 제출이면 waiting_opponent로 응답하고, 두번째 제출이 finalize를
// 일으키면 battle_result는 BattleFinalized 경로로 양쪽에 전달된다.
func (g *Gateway) handleSubmitResult(playerID string, raw json.RawMessage) {
	var payload SubmitResultPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		g.sendError(playerID, "invalid_message", "malformed submit_result payload")
		return
	}

	result, err := g.battles.SubmitResult(
		context.Background(),
		payload.BattleID,
		playerID,
		payload.Score,
		payload.Answers,
		payload.TimeSpentMs,
	)
	if err != nil {
		g.sendError(playerID, errorCode(err), err.Error())
		return
	}

	if result == nil {
		g.hub.SendToUser(playerID, EventWaitingOpponent, map[string]string{
			"battleId": payload.BattleID,
		})
	}
}

// sendMatchFound match_found 이벤트 전송
func (g *Gateway) sendMatchFound(battle *models.Battle, to, opponentID string) {
	var opponent models.PlayerSummary
	if p, ok := g.presence.Get(opponentID); ok {
		opponent = p.Summary()
	} else {
		opponent = models.PlayerSummary{PlayerID: opponentID}
	}

	g.hub.SendToUser(to, EventMatchFound, MatchFoundPayload{
		BattleID:    battle.ID,
		Opponent:    opponent,
		Questions:   battle.Questions,
		Deadline:    battle.Deadline,
		TimeLimitMs: battle.Deadline.Sub(battle.CreatedAt).Milliseconds(),
	})
}

// broadcastPlayers 온라인 플레이어 스냅샷 브로드캐스트
func (g *Gateway) broadcastPlayers() {
	g.hub.Broadcast(EventPlayersUpdate, g.presence.Snapshot())
}

func (g *Gateway) sendError(playerID, code, message string) {
	g.hub.SendToUser(playerID, EventError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}

// errorCode 도메인 에러를 클라이언트 에러 코드로 변환
func errorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, service.ErrAlreadyQueued):
		return "already_queued"
	case errors.Is(err, service.ErrAlreadyInBattle):
		return "already_in_battle"
	case errors.Is(err, service.ErrBattleNotFound):
		return "battle_not_found"
	case errors.Is(err, service.ErrBattleAlreadyFinalized):
		return "battle_already_finalized"
	case errors.Is(err, service.ErrDuplicateSubmission):
		return "duplicate_submission"
	case errors.Is(err, service.ErrNotAParticipant):
		return "not_a_participant"
	default:
		return "internal_error"
	}
}
