// Package api provides the Request Adapters: the REST façade over the
// Session Store, Player Game-State Store, Reaction persistence, Chat
// Fan-out, and Channel Binding Registry. Built on echo/v5, a flat route
// table, a single mapServiceError translation point, and a shared
// security-headers middleware.
package api

import (
	"context"
	"math/rand/v2"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/coup-league/coupd/pkg/chat"
	"github.com/coup-league/coupd/pkg/deck"
	"github.com/coup-league/coupd/pkg/models"
	"github.com/coup-league/coupd/pkg/store"
)

// Server is the HTTP API server ('s Request Adapters).
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	sessions *store.SessionStore
	players  *store.PlayerStore
	reactions *store.ReactionStore
	turns    *store.TurnResultStore
	bindings *store.ChannelBindingStore
	chatStore *store.ChatStore
	chat     *chat.Broadcaster
	rand     *rand.Rand

	// publicBaseURL is prefixed onto the join-by-QR URL. Empty disables
	// the qr endpoint's absolute URL generation in favour of a path-only
	// URL.
	publicBaseURL string
}

// NewServer creates a new API server with Echo v5, wiring every store
// this surface needs up front. Every dependency here is mandatory for the
// REST surface to function, so there is no ValidateWiring step; a missing
// store argument is a compile error, not a runtime one.
func NewServer(
	sessions *store.SessionStore,
	players *store.PlayerStore,
	reactions *store.ReactionStore,
	turns *store.TurnResultStore,
	bindings *store.ChannelBindingStore,
	chatStore *store.ChatStore,
	broadcaster *chat.Broadcaster,
	r *rand.Rand,
	publicBaseURL string,
) *Server {
	e := echo.New()

	s := &Server{
		echo:          e,
		sessions:      sessions,
		players:       players,
		reactions:     reactions,
		turns:         turns,
		bindings:      bindings,
		chatStore:     chatStore,
		chat:          broadcaster,
		rand:          r,
		publicBaseURL: publicBaseURL,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every admin and public game endpoint, plus the
// join-by-QR and turn-history endpoints.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())
	s.echo.Use(userContext())

	s.echo.GET("/health", s.healthHandler)

	admin := s.echo.Group("/admin")
	admin.POST("/sessions", s.createSessionHandler, RequirePrivilege("START_GAME"))
	admin.PUT("/sessions/:id", s.updateConfigHandler, RequirePrivilege("START_GAME"))
	admin.POST("/sessions/:id/start", s.startSessionHandler, RequirePrivilege("START_GAME"))
	admin.POST("/sessions/:id/end", s.endSessionHandler, RequirePrivilege("START_GAME"))
	admin.POST("/sessions/:id/restart", s.restartSessionHandler, RequirePrivilege("START_GAME"))
	admin.POST("/sessions/:id/discord-channel", s.bindDiscordHandler, RequirePrivilege("START_GAME"))
	admin.DELETE("/sessions/:id/discord-channel", s.unbindDiscordHandler, RequirePrivilege("START_GAME"))
	admin.POST("/sessions/:id/slack-channel", s.bindSlackHandler, RequirePrivilege("START_GAME"))
	admin.DELETE("/sessions/:id/slack-channel", s.unbindSlackHandler, RequirePrivilege("START_GAME"))
	admin.GET("/sessions/:id/qr", s.sessionQRHandler, RequirePrivilege("START_GAME"))

	game := s.echo.Group("/game")
	// Static paths before :id params: echo's router matches greedily, so
	// /sessions/discord-channels must be registered ahead of /sessions/:id
	// or it would be swallowed as an :id value.
	game.GET("/sessions/discord-channels", s.listDiscordChannelsHandler)
	game.GET("/sessions/slack-channels", s.listSlackChannelsHandler)
	game.GET("/sessions", s.listSessionsHandler)
	game.GET("/sessions/:id", s.getSessionHandler)
	game.GET("/sessions/:id/status", s.sessionStatusHandler)
	game.GET("/sessions/:id/history", s.sessionHistoryHandler)
	game.POST("/sessions/:id/join", s.joinSessionHandler)
	game.POST("/sessions/:id/leave", s.leaveSessionHandler)
	game.POST("/sessions/:id/request-rematch", s.requestRematchHandler)

	game.POST("/actions/:session_id", s.setActionHandler)
	game.GET("/actions/:session_id", s.listActionsHandler)

	game.POST("/reactions/:session_id", s.setReactionHandler)
	game.GET("/reactions/:session_id", s.listReactionsHandler)

	game.GET("/state/:session_id", s.getStateHandler)

	game.POST("/chat/:session_id/send", s.sendChatHandler)
	game.GET("/chat/:session_id/messages", s.listChatMessagesHandler)
}

// Start starts the HTTP server on the given address and blocks until the
// server stops; callers run it in its own goroutine.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, for
// test infrastructure that needs a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health. Always available, even for a
// caller with no session in mind, matching "the status
// endpoint is always available, even in terminal states" — generalised
// here to process-level health.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// dealFn builds the deck.New+Shuffle+Deal closure the Session Store's
// Start/Rematch take, so the store package itself never imports pkg/deck
// ( deck operations "run within the same transaction as
// their caller" — here the caller is this handler layer, not the store).
func (s *Server) dealFn(playerCount int) (remaining []models.Role, hands [][]models.Role) {
	d := deck.New()
	deck.Shuffle(s.rand, d)
	return deck.Deal(d, playerCount)
}

func (s *Server) rosterUserIDs(ctx context.Context, sessionID string) ([]string, error) {
	players, err := s.players.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.UserID
	}
	return ids, nil
}
