package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuestions struct{}

func (f *fakeQuestions) SampleQuestions(_ context.Context, topic string, count int) ([]models.Question, error) {
	questions := make([]models.Question, count)
	for i := range questions {
		questions[i] = models.Question{
			ID:            fmt.Sprintf("q%d", i+1),
			Title:         fmt.Sprintf("Question %d", i+1),
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: 0,
			Topic:         topic,
		}
	}
	return questions, nil
}

type fakeRatingStore struct {
	mu         sync.Mutex
	records    map[string]*models.RatingRecord
	applyCalls int
	failWith   error
}

func newFakeRatingStore() *fakeRatingStore {
	return &fakeRatingStore{records: make(map[string]*models.RatingRecord)}
}

func (f *fakeRatingStore) UpdatePair(_ context.Context, player1ID, player2ID string, apply func(r1, r2 *models.RatingRecord)) (*models.RatingRecord, *models.RatingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return nil, nil, f.failWith
	}

	r1 := f.getOrCreate(player1ID)
	r2 := f.getOrCreate(player2ID)
	apply(r1, r2)
	f.applyCalls++

	c1, c2 := *r1, *r2
	return &c1, &c2, nil
}

func (f *fakeRatingStore) getOrCreate(playerID string) *models.RatingRecord {
	if r, ok := f.records[playerID]; ok {
		return r
	}
	r := &models.RatingRecord{PlayerID: playerID, Rating: models.DefaultRating}
	f.records[playerID] = r
	return r
}

func (f *fakeRatingStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyCalls
}

func (f *fakeRatingStore) rating(playerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.records[playerID]; ok {
		return r.Rating
	}
	return models.DefaultRating
}

type fakeArchiver struct {
	mu      sync.Mutex
	results []*models.BattleResult
}

func (f *fakeArchiver) SaveResult(_ context.Context, result *models.BattleResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

func (f *fakeArchiver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

type fakeNotifier struct {
	mu      sync.Mutex
	results []*models.BattleResult
}

func (f *fakeNotifier) BattleFinalized(result *models.BattleResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

func (f *fakeNotifier) first() *models.BattleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return nil
	}
	return f.results[0]
}

type battleFixture struct {
	service  *BattleService
	presence *PresenceService
	ratings  *fakeRatingStore
	archiver *fakeArchiver
	notifier *fakeNotifier
}

func newBattleFixture(t *testing.T, timeLimit time.Duration) *battleFixture {
	t.Helper()

	presence := NewPresenceService()
	registerPlayer(presence, "p1")
	registerPlayer(presence, "p2")

	ratings := newFakeRatingStore()
	archiver := &fakeArchiver{}
	notifier := &fakeNotifier{}

	svc := NewBattleService(&fakeQuestions{}, ratings, archiver, NewELOService(800), presence, 5, timeLimit)
	svc.SetNotifier(notifier)
	t.Cleanup(svc.Shutdown)

	return &battleFixture{
		service:  svc,
		presence: presence,
		ratings:  ratings,
		archiver: archiver,
		notifier: notifier,
	}
}

func TestBattleService_CompleteBattle(t *testing.T) {
	fx := newBattleFixture(t, time.Minute)
	ctx := context.Background()

	battle, err := fx.service.CreateBattle(ctx, "p1", "p2", "arrays")
	require.NoError(t, err)
	require.Len(t, battle.Questions, 5)

	state, _ := fx.presence.State("p1")
	assert.Equal(t, models.PresenceInBattle, state)

	// First submission: keep waiting
	result, err := fx.service.SubmitResult(ctx, battle.ID, "p1", 80, nil, 30000)
	require.NoError(t, err)
	assert.Nil(t, result)

	// Second submission finalizes the battle
	result, err = fx.service.SubmitResult(ctx, battle.ID, "p2", 60, nil, 25000)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotNil(t, result.WinnerID)
	assert.Equal(t, "p1", *result.WinnerID)
	assert.False(t, result.Draw)
	assert.False(t, result.Forfeit)

	// Equal 1200 ratings: winner +16, loser -16
	assert.Equal(t, 1216, result.Player1.RatingAfter)
	assert.Equal(t, 1184, result.Player2.RatingAfter)
	assert.Equal(t, 16, result.Player1.RatingChange)
	assert.Equal(t, -16, result.Player2.RatingChange)
	assert.Equal(t, xpWin, result.Player1.XPAwarded)
	assert.Equal(t, xpLoss, result.Player2.XPAwarded)

	assert.Equal(t, 1, fx.ratings.calls(), "rating update applied exactly once")
	assert.Equal(t, 1, fx.archiver.count())
	assert.Equal(t, 1, fx.notifier.count())

	// Players return to idle with refreshed ratings
	p, _ := fx.presence.Get("p1")
	assert.Equal(t, models.PresenceIdle, p.State)
	assert.Equal(t, 1216, p.Rating)
}

func TestBattleService_TieBrokenByTime(t *testing.T) {
	fx := newBattleFixture(t, time.Minute)
	ctx := context.Background()

	battle, err := fx.service.CreateBattle(ctx, "p1", "p2", "any")
	require.NoError(t, err)

	_, err = fx.service.SubmitResult(ctx, battle.ID, "p1", 100, nil, 20000)
	require.NoError(t, err)

	result, err := fx.service.SubmitResult(ctx, battle.ID, "p2", 100, nil, 15000)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NotNil(t, result.WinnerID)
	assert.Equal(t, "p2", *result.WinnerID, "equal scores are broken by lower time")
}

func TestBattleService_Draw(t *testing.T) {
	fx := newBattleFixture(t, time.Minute)
	ctx := context.Background()

	battle, err := fx.service.CreateBattle(ctx, "p1", "p2", "any")
	require.NoError(t, err)

	_, err = fx.service.SubmitResult(ctx, battle.ID, "p1", 100, nil, 20000)
	require.NoError(t, err)

	result, err := fx.service.SubmitResult(ctx, battle.ID, "p2", 100, nil, 20000)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Nil(t, result.WinnerID)
	assert.True(t, result.Draw)
	assert.Equal(t, 0, result.Player1.RatingChange)
	assert.Equal(t, 0, result.Player2.RatingChange)
	assert.Equal(t, xpDraw, result.Player1.XPAwarded)
	assert.Equal(t, 1, fx.ratings.calls())
}

func TestBattleService_SubmissionErrors(t *testing.T) {
	fx := newBattleFixture(t, time.Minute)
	ctx := context.Background()

	_, err := fx.service.SubmitResult(ctx, "missing", "p1", 10, nil, 1000)
	assert.ErrorIs(t, err, ErrBattleNotFound)

	battle, err := fx.service.CreateBattle(ctx, "p1", "p2", "any")
	require.NoError(t, err)

	_, err = fx.service.SubmitResult(ctx, battle.ID, "stranger", 10, nil, 1000)
	assert.ErrorIs(t, err, ErrNotAParticipant)

	_, err = fx.service.SubmitResult(ctx, battle.ID, "p1", 10, nil, 1000)
	require.NoError(t, err)

	_, err = fx.service.SubmitResult(ctx, battle.ID, "p1", 99, nil, 500)
	assert.ErrorIs(t, err, ErrDuplicateSubmission, "submissions are immutable once recorded")
}

func TestBattleService_AbortForfeit(t *testing.T) {
	fx := newBattleFixture(t, time.Minute)
	ctx := context.Background()

	battle, err := fx.service.CreateBattle(ctx, "p1", "p2", "any")
	require.NoError(t, err)

	result, err := fx.service.Abort(ctx, battle.ID, "p1")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Forfeit)
	require.NotNil(t, result.WinnerID)
	assert.Equal(t, "p2", *result.WinnerID, "remaining player wins by forfeit")
	assert.Equal(t, 1216, fx.ratings.rating("p2"), "forfeit counts as a decisive win")
	assert.Equal(t, 1, fx.ratings.calls())

	// Second abort is a no-op
	_, err = fx.service.Abort(ctx, battle.ID, "p2")
	assert.ErrorIs(t, err, ErrBattleAlreadyFinalized)

	// Late submission after reconnection is rejected
	_, err = fx.service.SubmitResult(ctx, battle.ID, "p1", 100, nil, 1000)
	assert.ErrorIs(t, err, ErrBattleAlreadyFinalized)
}

func TestBattleService_DeadlineForcesFinalize(t *testing.T) {
	fx := newBattleFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	battle, err := fx.service.CreateBattle(ctx, "p1", "p2", "any")
	require.NoError(t, err)

	_, err = fx.service.SubmitResult(ctx, battle.ID, "p1", 40, nil, 10000)
	require.NoError(t, err)

	// Wait for the deadline to fire
	require.Eventually(t, func() bool {
		return fx.notifier.count() == 1
	}, time.Second, 10*time.Millisecond)

	result := fx.notifier.first()
	require.NotNil(t, result.WinnerID)
	assert.Equal(t, "p1", *result.WinnerID)
	assert.Equal(t, 0, result.Player2.Score, "missing player scores zero")
	assert.Equal(t, 1, fx.ratings.calls())

	_, err = fx.service.SubmitResult(ctx, battle.ID, "p2", 100, nil, 5000)
	assert.ErrorIs(t, err, ErrBattleAlreadyFinalized)
}

func TestBattleService_RatingStoreFailureKeepsPresenceRating(t *testing.T) {
	fx := newBattleFixture(t, time.Minute)
	ctx := context.Background()

	fx.ratings.failWith = errors.New("connection refused")

	battle, err := fx.service.CreateBattle(ctx, "p1", "p2", "any")
	require.NoError(t, err)

	_, err = fx.service.SubmitResult(ctx, battle.ID, "p1", 80, nil, 30000)
	require.NoError(t, err)

	result, err := fx.service.SubmitResult(ctx, battle.ID, "p2", 60, nil, 25000)
	require.NoError(t, err)
	require.NotNil(t, result)

	// Settlement failed: the result reports current ratings with zero change
	assert.Equal(t, models.DefaultRating, result.Player1.RatingBefore)
	assert.Equal(t, models.DefaultRating, result.Player1.RatingAfter)
	assert.Equal(t, 0, result.Player1.RatingChange)
	assert.Equal(t, models.DefaultRating, result.Player2.RatingAfter)

	// Presence must not be clobbered with a zero rating
	p, _ := fx.presence.Get("p1")
	assert.Equal(t, models.DefaultRating, p.Rating)
	p, _ = fx.presence.Get("p2")
	assert.Equal(t, models.DefaultRating, p.Rating)

	// History still records the battle outcome
	assert.Equal(t, 1, fx.archiver.count())
}

func TestBattleService_ConcurrentFinalizeIdempotent(t *testing.T) {
	fx := newBattleFixture(t, time.Minute)
	ctx := context.Background()

	battle, err := fx.service.CreateBattle(ctx, "p1", "p2", "any")
	require.NoError(t, err)

	_, err = fx.service.SubmitResult(ctx, battle.ID, "p1", 70, nil, 12000)
	require.NoError(t, err)

	// Race the second submission against aborts from both sides
	const attempts = 16
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				fx.service.SubmitResult(ctx, battle.ID, "p2", 30, nil, 9000) //nolint:errcheck
			} else {
				fx.service.Abort(ctx, battle.ID, "p2") //nolint:errcheck
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, fx.ratings.calls(), "exactly one rating update per battle")
	assert.Equal(t, 1, fx.archiver.count())
	assert.Equal(t, 1, fx.notifier.count())
}
