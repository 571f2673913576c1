package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coup-league/coupd/pkg/coreerr"
)

func TestChannelBindingStoreBindAndListDiscord(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	bindings := NewChannelBindingStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)

	require.NoError(t, bindings.BindDiscord(ctx, sess.ID, "chan-1"))

	list, err := bindings.ListDiscordBindings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sess.ID, list[0].SessionID)
	assert.Equal(t, "chan-1", list[0].ChannelID)
	assert.Equal(t, "discord", list[0].Platform)

	require.NoError(t, bindings.UnbindDiscord(ctx, sess.ID))
	list, err = bindings.ListDiscordBindings(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChannelBindingStoreBindAndListSlack(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	bindings := NewChannelBindingStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)

	require.NoError(t, bindings.BindSlack(ctx, sess.ID, "C123"))

	list, err := bindings.ListSlackBindings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "C123", list[0].ChannelID)
	assert.Equal(t, "slack", list[0].Platform)
}

func TestChannelBindingStoreBindMissingSessionReturnsNotFound(t *testing.T) {
	client := newTestClient(t)
	bindings := NewChannelBindingStore(client)

	err := bindings.BindDiscord(t.Context(), "does-not-exist", "chan-1")
	assert.ErrorIs(t, err, coreerr.ErrNotFound)
}
