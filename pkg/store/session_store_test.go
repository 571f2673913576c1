package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coup-league/coupd/pkg/coreerr"
	"github.com/coup-league/coupd/pkg/models"
)

func testSessionConfig() models.SessionConfig {
	return models.SessionConfig{
		Name:       "table one",
		MaxPlayers: 4,
		Durations:  models.DefaultDurations(),
	}
}

func dealTwoRoles(playerCount int) ([]models.Role, [][]models.Role) {
	hands := make([][]models.Role, playerCount)
	for i := range hands {
		hands[i] = []models.Role{models.RoleDuke, models.RoleCaptain}
	}
	return []models.Role{models.RoleAssassin, models.RoleContessa}, hands
}

func TestSessionStoreCreateAndGet(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, sess.Status)
	assert.Equal(t, 1, sess.TurnNumber)

	fetched, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, fetched.ID)
	assert.Equal(t, "table one", fetched.Name)
}

func TestSessionStoreGetMissingReturnsNotFound(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)

	_, err := sessions.Get(t.Context(), "does-not-exist")
	assert.ErrorIs(t, err, coreerr.ErrNotFound)
}

func TestSessionStoreCreateRejectsOutOfRangeMaxPlayers(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)

	cfg := testSessionConfig()
	cfg.MaxPlayers = 1
	_, err := sessions.Create(t.Context(), cfg)

	var verr *coreerr.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSessionStoreStartDealsHandsAndOpensActionPhase(t *testing.T) {
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

	started, err := sessions.Start(ctx, sess.ID, []string{"u1", "u2"}, dealTwoRoles)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, started.Status)
	assert.Equal(t, models.PhaseAction, started.CurrentPhase)
	require.NotNil(t, started.PhaseEndTime)

	alice, err := players.Get(ctx, sess.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, alice.Coins)
	assert.Len(t, alice.Hand, 2)
}

func TestSessionStoreStartRejectsFewerThanTwoPlayers(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)

	_, err = sessions.Start(ctx, sess.ID, []string{"u1"}, dealTwoRoles)
	assert.ErrorIs(t, err, coreerr.ErrPreconditionFailed)
}

func TestSessionStoreUpdateConfigRejectedOnceStarted(t *testing.T) {
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

	_, err = sessions.UpdateConfig(ctx, sess.ID, testSessionConfig())
	assert.ErrorIs(t, err, coreerr.ErrInvalidState)
}

func TestSessionStoreCancelAndList(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)

	require.NoError(t, sessions.Cancel(ctx, sess.ID))

	fetched, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, fetched.Status)

	list, err := sessions.List(ctx, ListFilter{Status: models.StatusCancelled})
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, sess.ID, list[0].ID)
}

func TestSessionStoreNextDueSessionIDSkipsFutureAndInactive(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	players := NewPlayerStore(client)
	ctx := t.Context()

	waiting, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)

	active, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)
	_, err = players.Join(ctx, active.ID, "u1", "alice")
	require.NoError(t, err)
	_, err = players.Join(ctx, active.ID, "u2", "bob")
	require.NoError(t, err)
	_, err = sessions.Start(ctx, active.ID, []string{"u1", "u2"}, dealTwoRoles)
	require.NoError(t, err)

	id, err := sessions.NextDueSessionID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id, "a freshly-started session's phase_end_time is in the future")
	_ = waiting
}
