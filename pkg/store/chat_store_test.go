package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStoreQueuePeekAndSnapshotAndClear(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	chats := NewChatStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)

	_, err = chats.Queue(ctx, sess.ID, "alice", "discord", "hello there")
	require.NoError(t, err)
	_, err = chats.Queue(ctx, sess.ID, "bob", "discord", "hi alice")
	require.NoError(t, err)

	peeked, err := chats.Peek(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, peeked, 2)
	assert.Equal(t, "hello there", peeked[0].Content)

	snapshot, err := chats.SnapshotAndClear(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)

	remaining, err := chats.Peek(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestChatStoreRegisterAndDeactivateEndpoint(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	chats := NewChatStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)

	require.NoError(t, chats.RegisterEndpoint(ctx, sess.ID, "discord", "http://example.invalid/push"))

	active, err := chats.ActiveEndpoints(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "http://example.invalid/push", active[0].EndpointURL)
	assert.Nil(t, active[0].LastBroadcastAt)

	require.NoError(t, chats.RegisterEndpoint(ctx, sess.ID, "discord", "http://example.invalid/push2"))
	active, err = chats.ActiveEndpoints(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, active, 1, "re-registering the same platform upserts rather than duplicates")
	assert.Equal(t, "http://example.invalid/push2", active[0].EndpointURL)

	require.NoError(t, chats.DeactivateEndpoint(ctx, sess.ID, "discord"))
	active, err = chats.ActiveEndpoints(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestChatStoreTouchLastBroadcastAndSessionsNeedingTick(t *testing.T) {
	client := newTestClient(t)
	sessions := NewSessionStore(client)
	chats := NewChatStore(client)
	ctx := t.Context()

	sess, err := sessions.Create(ctx, testSessionConfig())
	require.NoError(t, err)
	require.NoError(t, chats.RegisterEndpoint(ctx, sess.ID, "slack", "http://example.invalid/push"))

	need, err := chats.SessionsNeedingTick(ctx)
	require.NoError(t, err)
	assert.Contains(t, need, sess.ID)

	require.NoError(t, chats.TouchLastBroadcast(ctx, sess.ID, "slack", time.Now()))

	active, err := chats.ActiveEndpoints(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.NotNil(t, active[0].LastBroadcastAt)
}
