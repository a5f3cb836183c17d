package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistryResolve verifies a reply reaches the waiting prompt exactly once.
func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	key := Key{Participant: "p1", Kind: KindRowChoice}
	p := r.Open(context.Background(), key)
	require.True(t, r.Has(key))

	assert.True(t, r.Resolve(key, Reply{Index: 2}))
	assert.False(t, r.Resolve(key, Reply{Index: 3}), "second resolution must find nothing")

	got, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, 2, got.Index)
	assert.False(t, r.Has(key))
}

// TestRegistryOpenReplaces verifies one live prompt per key.
func TestRegistryOpenReplaces(t *testing.T) {
	r := NewRegistry()
	key := Key{Participant: "p1", Kind: KindCardChoice}
	first := r.Open(context.Background(), key)
	second := r.Open(context.Background(), key)
	assert.Equal(t, 1, r.Len())

	_, err := first.Wait()
	assert.ErrorIs(t, err, ErrSuperseded)

	require.True(t, r.Resolve(key, Reply{Index: 4}))
	got, err := second.Wait()
	require.NoError(t, err)
	assert.Equal(t, 4, got.Index)
}

// TestRegistryCloseStale verifies closing a replaced prompt leaves the new one registered.
func TestRegistryCloseStale(t *testing.T) {
	r := NewRegistry()
	key := Key{Participant: "p1", Kind: KindCardChoice}
	first := r.Open(context.Background(), key)
	r.Open(context.Background(), key)
	r.Close(first, context.Canceled)
	assert.True(t, r.Has(key))
}

// TestRegistryCancelParticipant verifies only that participant's prompts are cancelled.
func TestRegistryCancelParticipant(t *testing.T) {
	r := NewRegistry()
	a := r.Open(context.Background(), Key{Participant: "a", Kind: KindCardChoice})
	b := r.Open(context.Background(), Key{Participant: "b", Kind: KindCardChoice})
	r.CancelParticipant("a", ErrParticipantGone)

	_, err := a.Wait()
	assert.ErrorIs(t, err, ErrParticipantGone)
	assert.NoError(t, b.Context().Err())
	assert.Equal(t, []Kind{KindCardChoice}, r.Kinds("b"))
	assert.Empty(t, r.Kinds("a"))
}

// TestRegistryCancelAll verifies every prompt is released.
func TestRegistryCancelAll(t *testing.T) {
	r := NewRegistry()
	a := r.Open(context.Background(), Key{Participant: "a", Kind: KindPlayAgain})
	b := r.Open(context.Background(), Key{Participant: "b", Kind: KindRowChoice})
	r.CancelAll(ErrMatchEnded)
	for _, p := range []*Pending{a, b} {
		_, err := p.Wait()
		assert.ErrorIs(t, err, ErrMatchEnded)
	}
	assert.Zero(t, r.Len())
}
