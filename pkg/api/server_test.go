package api

import (
	stdsql "database/sql"
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coup-league/coupd/pkg/chat"
	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/models"
	"github.com/coup-league/coupd/pkg/store"
)

// newTestServer wires a full Server against a disposable Postgres instance
// (testcontainers-go, mirroring pkg/store's integration tests) and returns
// an httptest.Server ready for end-to-end HTTP requests.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := t.Context()

	var connStr string
	if ci := os.Getenv("CI_DATABASE_URL"); ci != "" {
		connStr = ci
	} else {
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("coup_api_test"),
			postgres.WithUsername("coup_api_test"),
			postgres.WithPassword("coup_api_test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = testcontainers.TerminateContainer(pgContainer) })

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	client := database.NewClientFromDB(db)
	require.NoError(t, client.Migrate())
	t.Cleanup(func() { _ = client.Close() })

	sessions := store.NewSessionStore(client)
	players := store.NewPlayerStore(client)
	reactions := store.NewReactionStore(client)
	turns := store.NewTurnResultStore(client)
	bindings := store.NewChannelBindingStore(client)
	chatStore := store.NewChatStore(client)
	broadcaster := chat.New(chatStore, http.DefaultClient, "")

	r := rand.New(rand.NewPCG(1, 2))
	srv := NewServer(sessions, players, reactions, turns, bindings, chatStore, broadcaster, r, "")

	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any, userID string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp := doJSON(t, ts, http.MethodGet, "/health", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateJoinAndStartSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/admin/sessions", CreateSessionRequest{Name: "table one", MaxPlayers: 4}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created SessionResponse
	decodeJSON(t, resp, &created)
	assert.Equal(t, "table one", created.Name)
	assert.Equal(t, "waiting", created.Status)

	resp = doJSON(t, ts, http.MethodPost, "/game/sessions/"+created.ID+"/join", JoinRequest{DisplayName: "alice"}, "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodPost, "/game/sessions/"+created.ID+"/join", JoinRequest{DisplayName: "bob"}, "u2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodPost, "/admin/sessions/"+created.ID+"/start", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started SessionResponse
	decodeJSON(t, resp, &started)
	assert.Equal(t, "active", started.Status)
	assert.Equal(t, "P1_action", started.CurrentPhase)

	resp = doJSON(t, ts, http.MethodGet, "/game/state/"+created.ID, nil, "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state StateResponse
	decodeJSON(t, resp, &state)
	require.Len(t, state.Players, 2)
}

func TestJoinMissingSessionReturnsNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp := doJSON(t, ts, http.MethodPost, "/game/sessions/does-not-exist/join", JoinRequest{DisplayName: "alice"}, "u1")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinWithoutUserHeaderIsUnauthenticated(t *testing.T) {
	ts := newTestServer(t)
	resp := doJSON(t, ts, http.MethodPost, "/admin/sessions", CreateSessionRequest{Name: "t", MaxPlayers: 4}, "")
	var created SessionResponse
	decodeJSON(t, resp, &created)

	resp = doJSON(t, ts, http.MethodPost, "/game/sessions/"+created.ID+"/join", JoinRequest{DisplayName: "alice"}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSetActionAndListActionsRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/admin/sessions", CreateSessionRequest{Name: "t", MaxPlayers: 4}, "")
	var created SessionResponse
	decodeJSON(t, resp, &created)

	doJSON(t, ts, http.MethodPost, "/game/sessions/"+created.ID+"/join", JoinRequest{DisplayName: "alice"}, "u1").Body.Close()
	doJSON(t, ts, http.MethodPost, "/game/sessions/"+created.ID+"/join", JoinRequest{DisplayName: "bob"}, "u2").Body.Close()
	doJSON(t, ts, http.MethodPost, "/admin/sessions/"+created.ID+"/start", nil, "").Body.Close()

	resp = doJSON(t, ts, http.MethodPost, "/game/actions/"+created.ID, SetActionRequest{Action: "income"}, "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodGet, "/game/actions/"+created.ID, nil, "u1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var actions []models.PublicView
	decodeJSON(t, resp, &actions)
	found := false
	for _, a := range actions {
		if a.UserID == "u1" {
			found = true
			require.NotNil(t, a.PendingAction)
			assert.Equal(t, "income", string(*a.PendingAction))
		}
	}
	assert.True(t, found)
}

func TestDiscordChannelBindUnbindAndPublicListing(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/admin/sessions", CreateSessionRequest{Name: "t", MaxPlayers: 4}, "")
	var created SessionResponse
	decodeJSON(t, resp, &created)

	resp = doJSON(t, ts, http.MethodPost, "/admin/sessions/"+created.ID+"/discord-channel", BindChannelRequest{ChannelID: "chan-1"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodGet, "/game/sessions/discord-channels", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bindings []*ChannelBindingResponse
	decodeJSON(t, resp, &bindings)
	require.Len(t, bindings, 1)
	assert.Equal(t, "chan-1", bindings[0].ChannelID)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/admin/sessions/"+created.ID+"/discord-channel", nil)
	require.NoError(t, err)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, ts, http.MethodGet, "/game/sessions/discord-channels", nil, "")
	decodeJSON(t, resp, &bindings)
	assert.Empty(t, bindings)
}
