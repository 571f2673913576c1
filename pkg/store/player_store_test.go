package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coup-league/coupd/pkg/coreerr"
	"github.com/coup-league/coupd/pkg/models"
)

func TestPlayerStoreJoinAndLeave(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	players := NewPlayerStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)

	alice, err := players.Join(ctx, sess.ID, "u1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.DisplayName)
	assert.Equal(t, models.StatusAlive, alice.Status)

	roster, err := players.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)

	require.NoError(t, players.Leave(ctx, sess.ID, "u1"))

	roster, err = players.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestPlayerStoreJoinRejectsOnceSessionIsFull(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	players := NewPlayerStore(client)
	ctx := t.Context()

	cfg := testSessionConfig()
	cfg.MaxPlayers = 2
	sess, err := sessions.Create(ctx, cfg)
	require.NoError(t, err)

	_, err = players.Join(ctx, sess.ID, "u1", "alice")
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u2", "bob")
	require.NoError(t, err)

	_, err = players.Join(ctx, sess.ID, "u3", "carol")
	assert.ErrorIs(t, err, coreerr.ErrPreconditionFailed)
}

func TestPlayerStoreJoinRejectsOnceSessionStarted(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	players := NewPlayerStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u1", "alice")
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u2", "bob")
	require.NoError(t, err)
	_, err = sessions.Start(ctx, sess.ID, []string{"u1", "u2"}, dealTwoRoles)
	require.NoError(t, err)

	_, err = players.Join(ctx, sess.ID, "u3", "carol")
	assert.ErrorIs(t, err, coreerr.ErrInvalidState)
}

func TestPlayerStoreSetPendingActionOverwritesLastWriteWins(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	players := NewPlayerStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u1", "alice")
	require.NoError(t, err)

	target := "bob"
	_, err = players.SetPendingAction(ctx, sess.ID, "u1", models.ActionSteal, &target, nil)
	require.NoError(t, err)

	updated, err := players.SetPendingAction(ctx, sess.ID, "u1", models.ActionIncome, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, updated.PendingAction)
	assert.Equal(t, models.ActionIncome, *updated.PendingAction)
	assert.Nil(t, updated.PendingTarget)
}

func TestPlayerStoreSetPendingActionWithUpgradeRoundTrips(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	players := NewPlayerStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)
	_, err = players.Join(ctx, sess.ID, "u1", "alice")
	require.NoError(t, err)

	target := "bob"
	upgrade := &models.UpgradeFlags{AssassinationPriorityRole: models.RoleContessa}
	updated, err := players.SetPendingAction(ctx, sess.ID, "u1", models.ActionAssassinate, &target, upgrade)
	require.NoError(t, err)
	require.NotNil(t, updated.PendingAction)
	assert.Equal(t, models.ActionAssassinate, *updated.PendingAction)
	require.NotNil(t, updated.PendingUpgrade)
	assert.Equal(t, models.RoleContessa, updated.PendingUpgrade.AssassinationPriorityRole)
}
