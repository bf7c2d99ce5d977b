package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/codecade/arena-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerPlayer(p *PresenceService, id string) {
	p.Register(&models.PlayerPresence{
		PlayerID: id,
		Username: id,
		Level:    1,
		Rating:   models.DefaultRating,
	})
}

func TestQueueService_SeekMatch_FIFO(t *testing.T) {
	presence := NewPresenceService()
	queue := NewQueueService(presence)

	registerPlayer(presence, "p1")
	registerPlayer(presence, "p2")

	criteria := models.MatchCriteria{SkillBand: "intermediate", Topic: models.CriteriaAny}

	opponent, err := queue.SeekMatch("p1", criteria)
	require.NoError(t, err)
	assert.Nil(t, opponent, "first seeker should wait")
	assert.Equal(t, 1, queue.Len())

	opponent, err = queue.SeekMatch("p2", criteria)
	require.NoError(t, err)
	require.NotNil(t, opponent, "second seeker should match the first")
	assert.Equal(t, "p1", opponent.PlayerID)
	assert.Equal(t, 0, queue.Len(), "queue should be empty after matching")

	// Both players transition to InBattle inside the critical section
	state, _ := presence.State("p1")
	assert.Equal(t, models.PresenceInBattle, state)
	state, _ = presence.State("p2")
	assert.Equal(t, models.PresenceInBattle, state)
}

func TestQueueService_SeekMatch_InsertionOrderTieBreak(t *testing.T) {
	presence := NewPresenceService()
	queue := NewQueueService(presence)

	for _, id := range []string{"p1", "p2", "p3"} {
		registerPlayer(presence, id)
	}

	criteria := models.MatchCriteria{SkillBand: models.CriteriaAny, Topic: models.CriteriaAny}

	_, err := queue.SeekMatch("p1", criteria)
	require.NoError(t, err)
	err = queue.Enqueue("p2", criteria)
	require.NoError(t, err)

	opponent, err := queue.SeekMatch("p3", criteria)
	require.NoError(t, err)
	require.NotNil(t, opponent)
	assert.Equal(t, "p1", opponent.PlayerID, "earliest queued player wins the tie-break")
	assert.Equal(t, 1, queue.Len(), "p2 remains queued")
}

func TestQueueService_CriteriaCompatibility(t *testing.T) {
	presence := NewPresenceService()
	queue := NewQueueService(presence)

	registerPlayer(presence, "graphs")
	registerPlayer(presence, "arrays")
	registerPlayer(presence, "wildcard")

	_, err := queue.SeekMatch("graphs", models.MatchCriteria{SkillBand: "advanced", Topic: "graphs"})
	require.NoError(t, err)

	// Different topic must not match
	opponent, err := queue.SeekMatch("arrays", models.MatchCriteria{SkillBand: "advanced", Topic: "arrays"})
	require.NoError(t, err)
	assert.Nil(t, opponent)

	// Wildcard matches the earliest compatible entry
	opponent, err = queue.SeekMatch("wildcard", models.MatchCriteria{})
	require.NoError(t, err)
	require.NotNil(t, opponent)
	assert.Equal(t, "graphs", opponent.PlayerID)
}

func TestQueueService_Enqueue_Errors(t *testing.T) {
	presence := NewPresenceService()
	queue := NewQueueService(presence)

	registerPlayer(presence, "p1")
	registerPlayer(presence, "p2")

	criteria := models.MatchCriteria{}

	require.NoError(t, queue.Enqueue("p1", criteria))
	assert.ErrorIs(t, queue.Enqueue("p1", criteria), ErrAlreadyQueued)

	_, err := queue.SeekMatch("p1", criteria)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	// p2 matches p1, both are now in battle
	opponent, err := queue.SeekMatch("p2", criteria)
	require.NoError(t, err)
	require.NotNil(t, opponent)

	assert.ErrorIs(t, queue.Enqueue("p1", criteria), ErrAlreadyInBattle)
	_, err = queue.SeekMatch("p2", criteria)
	assert.ErrorIs(t, err, ErrAlreadyInBattle)
}

func TestQueueService_TryMatch(t *testing.T) {
	presence := NewPresenceService()
	queue := NewQueueService(presence)

	registerPlayer(presence, "p1")
	registerPlayer(presence, "p2")

	criteria := models.MatchCriteria{SkillBand: "intermediate", Topic: models.CriteriaAny}

	require.NoError(t, queue.Enqueue("p1", criteria))
	require.NoError(t, queue.Enqueue("p2", criteria))

	// Second player's match attempt consumes both entries
	opponent, err := queue.TryMatch("p2", criteria)
	require.NoError(t, err)
	require.NotNil(t, opponent)
	assert.Equal(t, "p1", opponent.PlayerID)
	assert.Equal(t, 0, queue.Len(), "queue should be empty after matching")

	state, _ := presence.State("p1")
	assert.Equal(t, models.PresenceInBattle, state)
	state, _ = presence.State("p2")
	assert.Equal(t, models.PresenceInBattle, state)

	// No opponent left: keep waiting
	registerPlayer(presence, "p3")
	opponent, err = queue.TryMatch("p3", models.MatchCriteria{})
	require.NoError(t, err)
	assert.Nil(t, opponent)
}

func TestQueueService_UnregisteredPlayerRejected(t *testing.T) {
	presence := NewPresenceService()
	queue := NewQueueService(presence)

	// Presence 등록 전에는 큐에 오를 수 없다
	err := queue.Enqueue("ghost", models.MatchCriteria{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = queue.SeekMatch("ghost", models.MatchCriteria{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 0, queue.Len())
}

func TestQueueService_Dequeue(t *testing.T) {
	presence := NewPresenceService()
	queue := NewQueueService(presence)

	registerPlayer(presence, "p1")

	require.NoError(t, queue.Enqueue("p1", models.MatchCriteria{}))
	assert.Equal(t, 1, queue.Len())

	queue.Dequeue("p1")
	assert.Equal(t, 0, queue.Len())

	state, _ := presence.State("p1")
	assert.Equal(t, models.PresenceIdle, state)

	// Idempotent
	queue.Dequeue("p1")
	assert.Equal(t, 0, queue.Len())
}

func TestQueueService_ConcurrentSeekers_SingleClaim(t *testing.T) {
	presence := NewPresenceService()
	queue := NewQueueService(presence)

	registerPlayer(presence, "target")
	require.NoError(t, queue.Enqueue("target", models.MatchCriteria{}))

	const seekers = 32
	matched := make(chan string, seekers)

	var wg sync.WaitGroup
	for i := 0; i < seekers; i++ {
		id := fmt.Sprintf("seeker-%d", i)
		registerPlayer(presence, id)

		wg.Add(1)
		go func() {
			defer wg.Done()
			opponent, err := queue.SeekMatch(id, models.MatchCriteria{})
			if err != nil {
				return
			}
			if opponent != nil && opponent.PlayerID == "target" {
				matched <- id
			}
		}()
	}
	wg.Wait()
	close(matched)

	var winners []string
	for id := range matched {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1, "exactly one seeker may claim the queued opponent")
}
