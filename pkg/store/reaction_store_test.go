package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coup-league/coupd/pkg/models"
)

func TestReactionStoreSetAndListForTurn(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	players := NewPlayerStore(client)
	reactions := NewReactionStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u1", "alice")
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u2", "bob")
	require.NoError(t, err)

	rx, err := reactions.Set(ctx, sess.ID, 1, "u2", "u1", models.ActionTax, models.ReactionChallenge, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionChallenge, rx.Kind)
	assert.False(t, rx.IsLocked)
	assert.False(t, rx.IsResolved)

	list, err := reactions.ListForTurn(ctx, sess.ID, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rx.ID, list[0].ID)
}

func TestReactionStoreSetIsLastWriteWinsOnConflict(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	players := NewPlayerStore(client)
	reactions := NewReactionStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u1", "alice")
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u2", "bob")
	require.NoError(t, err)

	first, err := reactions.Set(ctx, sess.ID, 1, "u2", "u1", models.ActionForeignAid, models.ReactionPass, nil)
	require.NoError(t, err)

	role := models.RoleDuke
	second, err := reactions.Set(ctx, sess.ID, 1, "u2", "u1", models.ActionForeignAid, models.ReactionBlock, &role)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "conflict target reuses the same row")

	list, err := reactions.ListForTurn(ctx, sess.ID, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.ReactionBlock, list[0].Kind)
	require.NotNil(t, list[0].BlockWithRole)
	assert.Equal(t, models.RoleDuke, *list[0].BlockWithRole)
}

func TestReactionStoreLockAndMarkResolvedTx(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	players := NewPlayerStore(client)
	reactions := NewReactionStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u1", "alice")
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u2", "bob")
	require.NoError(t, err)

	_, err = reactions.Set(ctx, sess.ID, 1, "u2", "u1", models.ActionTax, models.ReactionPass, nil)
	require.NoError(t, err)

	tx, err := sessions.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, reactions.LockTurnTx(ctx, tx, sess.ID, 1))
	require.NoError(t, reactions.MarkResolvedTx(ctx, tx, sess.ID, 1))
	require.NoError(t, tx.Commit())

	list, err := reactions.ListForTurn(ctx, sess.ID, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsLocked)
	assert.True(t, list[0].IsResolved)
}
