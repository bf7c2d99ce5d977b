package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/codecade/arena-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuestions struct {
	// 샘플링 도중 동작 주입용 (배틀 생성 창에서의 경합 재현)
	onSample func()
}

func (s *stubQuestions) SampleQuestions(_ context.Context, topic string, count int) ([]models.Question, error) {
	if s.onSample != nil {
		s.onSample()
	}

	questions := make([]models.Question, count)
	for i := range questions {
		questions[i] = models.Question{
			ID:            fmt.Sprintf("q-%d", i),
			Title:         fmt.Sprintf("Question %d", i),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: 0,
			Topic:         topic,
		}
	}
	return questions, nil
}

type stubRatings struct {
	mu      sync.Mutex
	records map[string]*models.RatingRecord
	updates int
}

func newStubRatings() *stubRatings {
	return &stubRatings{records: make(map[string]*models.RatingRecord)}
}

func (s *stubRatings) UpdatePair(_ context.Context, player1ID, player2ID string, apply func(r1, r2 *models.RatingRecord)) (*models.RatingRecord, *models.RatingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	get := func(id string) *models.RatingRecord {
		if r, ok := s.records[id]; ok {
			return r
		}
		r := &models.RatingRecord{PlayerID: id, Rating: models.DefaultRating}
		s.records[id] = r
		return r
	}

	r1, r2 := get(player1ID), get(player2ID)
	apply(r1, r2)
	s.updates++

	c1, c2 := *r1, *r2
	return &c1, &c2, nil
}

func (s *stubRatings) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

type stubArchiver struct {
	mu      sync.Mutex
	results []*models.BattleResult
}

func (s *stubArchiver) SaveResult(_ context.Context, result *models.BattleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *stubArchiver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type gatewayFixture struct {
	gateway   *Gateway
	presence  *service.PresenceService
	queue     *service.QueueService
	battles   *service.BattleService
	questions *stubQuestions
	ratings   *stubRatings
	archiver  *stubArchiver
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	hub := NewHub()
	go hub.Run()

	presence := service.NewPresenceService()
	queue := service.NewQueueService(presence)
	questions := &stubQuestions{}
	ratings := newStubRatings()
	archiver := &stubArchiver{}
	battles := service.NewBattleService(
		questions,
		ratings,
		archiver,
		service.NewELOService(800),
		presence,
		5,
		time.Minute,
	)
	t.Cleanup(battles.Shutdown)

	return &gatewayFixture{
		gateway:   NewGateway(hub, presence, queue, battles),
		presence:  presence,
		queue:     queue,
		battles:   battles,
		questions: questions,
		ratings:   ratings,
		archiver:  archiver,
	}
}

func (fx *gatewayFixture) connect(playerID, username string) {
	fx.gateway.OnConnect(&models.PlayerPresence{
		PlayerID: playerID,
		Username: username,
		Level:    1,
		Rating:   models.DefaultRating,
	})
}

func clientJSON(t *testing.T, msgType string, payload interface{}) []byte {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	data, err := json.Marshal(ClientMessage{Type: msgType, Payload: raw})
	require.NoError(t, err)
	return data
}

func TestGateway_FindMatchQueuesThenMatches(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.connect("alice", "alice")
	fx.connect("bob", "bob")

	// 첫번째 플레이어는 대기열로
	fx.gateway.OnMessage("alice", clientJSON(t, MsgFindMatch, FindMatchPayload{Topic: "algorithms"}))

	state, ok := fx.presence.State("alice")
	require.True(t, ok)
	assert.Equal(t, models.PresenceQueued, state)
	assert.Equal(t, 1, fx.queue.Len())

	// 두번째 플레이어가 호환 조건으로 탐색하면 즉시 매칭
	fx.gateway.OnMessage("bob", clientJSON(t, MsgFindMatch, FindMatchPayload{Topic: "algorithms"}))

	assert.Equal(t, 0, fx.queue.Len())
	assert.Equal(t, 1, fx.battles.ActiveCount())

	for _, id := range []string{"alice", "bob"} {
		state, ok := fx.presence.State(id)
		require.True(t, ok)
		assert.Equal(t, models.PresenceInBattle, state)
	}
}

func TestGateway_IncompatibleCriteriaDoNotMatch(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.connect("alice", "alice")
	fx.connect("bob", "bob")

	fx.gateway.OnMessage("alice", clientJSON(t, MsgFindMatch, FindMatchPayload{Topic: "algorithms"}))
	fx.gateway.OnMessage("bob", clientJSON(t, MsgFindMatch, FindMatchPayload{Topic: "databases"}))

	assert.Equal(t, 2, fx.queue.Len())
	assert.Equal(t, 0, fx.battles.ActiveCount())
}

func TestGateway_CancelMatchDequeues(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.connect("alice", "alice")

	fx.gateway.OnMessage("alice", clientJSON(t, MsgFindMatch, FindMatchPayload{}))
	require.Equal(t, 1, fx.queue.Len())

	fx.gateway.OnMessage("alice", clientJSON(t, MsgCancelMatch, nil))

	assert.Equal(t, 0, fx.queue.Len())
	state, ok := fx.presence.State("alice")
	require.True(t, ok)
	assert.Equal(t, models.PresenceIdle, state)
}

func TestGateway_SubmitBothFinalizes(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.connect("alice", "alice")
	fx.connect("bob", "bob")

	fx.gateway.OnMessage("alice", clientJSON(t, MsgFindMatch, FindMatchPayload{}))
	fx.gateway.OnMessage("bob", clientJSON(t, MsgFindMatch, FindMatchPayload{}))
	require.Equal(t, 1, fx.battles.ActiveCount())

	p, ok := fx.presence.Get("alice")
	require.True(t, ok)
	battleID := p.BattleID
	require.NotEmpty(t, battleID)

	fx.gateway.OnMessage("alice", clientJSON(t, MsgSubmitResult, SubmitResultPayload{
		BattleID:    battleID,
		Score:       80,
		TimeSpentMs: 30000,
	}))
	fx.gateway.OnMessage("bob", clientJSON(t, MsgSubmitResult, SubmitResultPayload{
		BattleID:    battleID,
		Score:       60,
		TimeSpentMs: 30000,
	}))

	assert.Equal(t, 1, fx.ratings.updateCount())
	assert.Equal(t, 1, fx.archiver.count())

	for _, id := range []string{"alice", "bob"} {
		state, ok := fx.presence.State(id)
		require.True(t, ok)
		assert.Equal(t, models.PresenceIdle, state)
	}
}

func TestGateway_MessageBeforeRegistrationDoesNotQueue(t *testing.T) {
	fx := newGatewayFixture(t)

	// 접속 등록 전에 도착한 find_match는 큐 항목을 남기면 안 된다
	fx.gateway.OnMessage("alice", clientJSON(t, MsgFindMatch, FindMatchPayload{}))

	assert.Equal(t, 0, fx.queue.Len())
	_, ok := fx.presence.Get("alice")
	assert.False(t, ok)

	// 등록 후에는 정상 동작
	fx.connect("alice", "alice")
	fx.gateway.OnMessage("alice", clientJSON(t, MsgFindMatch, FindMatchPayload{}))
	assert.Equal(t, 1, fx.queue.Len())
}

func TestGateway_DisconnectBeforeRegistrationIsNoop(t *testing.T) {
	fx := newGatewayFixture(t)

	fx.gateway.OnDisconnect("alice")
	assert.Equal(t, 0, fx.presence.Count())

	// 이후 정상 접속·종료 사이클에 흔적을 남기지 않는다
	fx.connect("alice", "alice")
	assert.Equal(t, 1, fx.presence.Count())

	fx.gateway.OnDisconnect("alice")
	assert.Equal(t, 0, fx.presence.Count())
}

func TestGateway_DisconnectDuringBattleCreation(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.connect("alice", "alice")
	fx.connect("bob", "bob")

	fx.gateway.OnMessage("alice", clientJSON(t, MsgFindMatch, FindMatchPayload{}))
	require.Equal(t, 1, fx.queue.Len())

	// bob의 매칭이 문제를 샘플링하는 동안 alice의 연결이 끊긴다
	fx.questions.onSample = func() {
		fx.questions.onSample = nil
		fx.gateway.OnDisconnect("alice")
	}

	fx.gateway.OnMessage("bob", clientJSON(t, MsgFindMatch, FindMatchPayload{}))

	// 배틀은 즉시 몰수 종료되고 bob은 Idle로 돌아온다
	require.Equal(t, 1, fx.archiver.count())
	fx.archiver.mu.Lock()
	result := fx.archiver.results[0]
	fx.archiver.mu.Unlock()

	assert.True(t, result.Forfeit)
	require.NotNil(t, result.WinnerID)
	assert.Equal(t, "bob", *result.WinnerID)

	state, ok := fx.presence.State("bob")
	require.True(t, ok)
	assert.Equal(t, models.PresenceIdle, state)

	_, ok = fx.presence.Get("alice")
	assert.False(t, ok)
}

func TestGateway_DisconnectWhileQueued(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.connect("alice", "alice")

	fx.gateway.OnMessage("alice", clientJSON(t, MsgFindMatch, FindMatchPayload{}))
	require.Equal(t, 1, fx.queue.Len())

	fx.gateway.OnDisconnect("alice")

	assert.Equal(t, 0, fx.queue.Len())
	_, ok := fx.presence.Get("alice")
	assert.False(t, ok)
}

func TestGateway_DisconnectWhileInBattleForfeits(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.connect("alice", "alice")
	fx.connect("bob", "bob")

	fx.gateway.OnMessage("alice", clientJSON(t, MsgFindMatch, FindMatchPayload{}))
	fx.gateway.OnMessage("bob", clientJSON(t, MsgFindMatch, FindMatchPayload{}))
	require.Equal(t, 1, fx.battles.ActiveCount())

	fx.gateway.OnDisconnect("alice")

	// 남은 쪽이 몰수승
	require.Equal(t, 1, fx.archiver.count())
	fx.archiver.mu.Lock()
	result := fx.archiver.results[0]
	fx.archiver.mu.Unlock()

	require.NotNil(t, result.WinnerID)
	assert.Equal(t, "bob", *result.WinnerID)
	assert.True(t, result.Forfeit)

	state, ok := fx.presence.State("bob")
	require.True(t, ok)
	assert.Equal(t, models.PresenceIdle, state)
}
