// Package gateway is the shared shell for cmd/discordgateway and
// cmd/slackgateway: each is a thin bridge process that rebuilds its
// session routing table from the game server's public channel-binding
// listing at startup and exposes the chat fan-out's gateway push contract
// as a logging stub. Platform SDK wiring and command parsing are
// explicitly out of scope for both binaries.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Options configures one gateway process.
type Options struct {
	// Platform is "discord" or "slack", used only for logging.
	Platform string
	// GameServerURL is the base URL of the coupserver REST API.
	GameServerURL string
	// ListenAddr is where this gateway's own push-contract receiver listens.
	ListenAddr string
	// ChannelListURL is the path (on GameServerURL) of the public
	// channel-binding listing for this platform, e.g.
	// "/game/sessions/discord-channels".
	ChannelListURL string
}

// channelBinding mirrors pkg/api.ChannelBindingResponse, the public
// listing's wire shape.
type channelBinding struct {
	SessionID string `json:"session_id"`
	ChannelID string `json:"channel_id"`
}

// router holds this gateway's in-memory channel-id -> session-id routing
// table, rebuilt from the game server's session listing every time the
// gateway (re)starts.
type router struct {
	mu       sync.RWMutex
	sessions map[string]string // channelID -> sessionID
}

func newRouter() *router {
	return &router{sessions: make(map[string]string)}
}

func (r *router) replace(bindings []channelBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]string, len(bindings))
	for _, b := range bindings {
		r.sessions[b.ChannelID] = b.SessionID
	}
}

func (r *router) sessionFor(channelID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.sessions[channelID]
	return id, ok
}

// Run fetches the channel-binding listing once, then serves the gateway
// push contract receiver until interrupted. It never returns an error: a
// gateway that cannot reach the game server at startup logs a warning and
// serves anyway, since routing-table refresh is the only thing that
// depends on it.
func Run(opts Options) {
	log := slog.With("component", "gateway", "platform", opts.Platform)

	rt := newRouter()
	if err := refreshRoutingTable(context.Background(), opts, rt); err != nil {
		log.Warn("failed to fetch channel bindings at startup", "error", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/gateway/push", func(w http.ResponseWriter, req *http.Request) {
		handlePush(log, w, req)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: opts.ListenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("gateway push receiver listening", "addr", opts.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("gateway push receiver failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// refreshRoutingTable fetches opts.ChannelListURL and replaces rt's
// contents. Run calls it once at startup; there is no periodic refresh.
func refreshRoutingTable(ctx context.Context, opts Options, rt *router) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.GameServerURL+opts.ChannelListURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &unexpectedStatusError{status: resp.Status}
	}

	var bindings []channelBinding
	if err := json.NewDecoder(resp.Body).Decode(&bindings); err != nil {
		return err
	}
	rt.replace(bindings)
	slog.Info("channel routing table refreshed", "platform", opts.Platform, "bound_sessions", len(bindings))
	return nil
}

type unexpectedStatusError struct{ status string }

func (e *unexpectedStatusError) Error() string { return "unexpected status: " + e.status }

// pushBody is the gateway push contract's inbound shape: a POST to
// <endpoint_url> with a body of {session_id, broadcast_time,
// message_count, messages: [...]}.
type pushBody struct {
	SessionID     string `json:"session_id"`
	BroadcastTime string `json:"broadcast_time"`
	MessageCount  int    `json:"message_count"`
	Messages      []struct {
		ID        int64  `json:"id"`
		Sender    string `json:"sender"`
		Platform  string `json:"platform"`
		Content   string `json:"content"`
		Timestamp string `json:"timestamp"`
	} `json:"messages"`
}

// handlePush is the stub gateway push contract receiver: it logs the
// batch and always returns 200, since idempotent re-delivery handling and
// actual Discord/Slack posting are Non-goals of this binary.
func handlePush(log *slog.Logger, w http.ResponseWriter, req *http.Request) {
	var body pushBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	log.Info("received chat broadcast push", "session_id", body.SessionID, "message_count", len(body.Messages))
	w.WriteHeader(http.StatusOK)
}
