package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/scenaria/pkg/adapters/memory"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{`\b(?:\d[ -]?){13,16}\b`, `[\w.]+@[\w.]+`})
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	state := secretState("s1")
	state.Utterances = append(state.Utterances, "write to jane.doe@example.com", "thanks")
	require.NoError(t, store.Save(ctx, "s1", state))

	assert.Equal(t, "my card is 4111 1111 1111 1111", state.Utterances[0], "caller state is not modified")

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"my card is ***", "write to ***", "thanks"}, stored.Utterances)
	assert.Equal(t, state.AccumulatedConditions, stored.AccumulatedConditions)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestChain_EncryptsRedactedState(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{`\d{4}`})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", secretState("s1")))

	raw, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"my card is *** *** *** ***"}, loaded.Utterances)
}
