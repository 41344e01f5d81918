package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewSessionState(sessionID, "support", 1)
		state.CurrentPhaseID = 2
		state.AccumulatedConditions = []int{3, 1}
		state.VisitedPhases = []int{1, 1}
		state.Utterances = []string{"hello", "I run a bakery"}
		state.Turn = 2

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, 2, loaded.CurrentPhaseID)
		assert.Equal(t, []int{3, 1}, loaded.AccumulatedConditions, "accumulation order must survive persistence")
		assert.Equal(t, []int{1, 1}, loaded.VisitedPhases)
		assert.Equal(t, []string{"hello", "I run a bakery"}, loaded.Utterances)
		assert.Equal(t, "support", loaded.ScenarioID)
		assert.Equal(t, 2, loaded.Turn)
	})

	t.Run("Saved State Is Isolated", func(t *testing.T) {
		state := domain.NewSessionState(sessionID, "support", 1)
		require.NoError(t, store.Save(ctx, sessionID, state))

		state.AccumulatedConditions = append(state.AccumulatedConditions, 9)
		state.Ended = true

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Empty(t, loaded.AccumulatedConditions)
		assert.False(t, loaded.Ended)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSessionState(sessionID, "support", 1))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSessionState(id1, "support", 1))
		_ = store.Save(ctx, id2, domain.NewSessionState(id2, "support", 1))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
