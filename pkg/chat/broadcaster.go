// Package chat implements the Chat Fan-out: queuing a player's chat
// message and, on broadcast, pushing the accumulated queue to every
// registered gateway endpoint for a session. Delivery is nil-safe and
// fail-open — a missing or unreachable endpoint never blocks the others —
// generalized from one fixed destination to N dynamically registered
// per-session endpoints pushed in parallel.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coup-league/coupd/pkg/models"
)

// Store is the subset of pkg/store.ChatStore the broadcaster drives.
type Store interface {
	Queue(ctx context.Context, sessionID, sender, platform, content string) (*models.ChatMessage, error)
	SnapshotAndClear(ctx context.Context, sessionID string) ([]*models.ChatMessage, error)
	ActiveEndpoints(ctx context.Context, sessionID string) ([]*models.ChatBotEndpoint, error)
	TouchLastBroadcast(ctx context.Context, sessionID, platform string, at time.Time) error
}

// pushTimeout bounds each individual gateway push.
const pushTimeout = 10 * time.Second

// eventPushTimeout bounds the best-effort LLM reasoning-server event push
// fired on every Queue call.
const eventPushTimeout = 5 * time.Second

// Broadcaster pushes a session's queued chat to every registered gateway
// endpoint, and fires a best-effort event push to the reasoning server on
// every queued message. It satisfies pkg/orchestrator.Broadcaster.
type Broadcaster struct {
	store        Store
	client       *http.Client
	reasoningURL string // base URL of the reasoning server; empty disables event push
}

// New creates a Broadcaster. client may be nil, in which case
// http.DefaultClient is used (tests inject one pointed at httptest
// servers). reasoningURL is the base URL the LLM event push is POSTed to;
// an empty string disables the push entirely.
func New(store Store, client *http.Client, reasoningURL string) *Broadcaster {
	if client == nil {
		client = http.DefaultClient
	}
	return &Broadcaster{store: store, client: client, reasoningURL: reasoningURL}
}

// reasoningEvent is the body POSTed to the reasoning server's event
// endpoint at <reasoning_url>/coup-events/event.
type reasoningEvent struct {
	EventType            string `json:"event_type"`
	SourcePlatform       string `json:"source_platform"`
	SenderID             string `json:"sender_id"`
	SenderIsLLM          bool   `json:"sender_is_llm"`
	GameID               string `json:"game_id"`
	BroadcastToAllAgents bool   `json:"broadcast_to_all_agents"`
	Payload              any    `json:"payload"`
}

// pushPayload is the body POSTed to each registered gateway endpoint,
// matching the gateway push contract's inbound shape (pkg/gateway.pushBody):
// {session_id, broadcast_time, message_count, messages}.
type pushPayload struct {
	SessionID     string                `json:"session_id"`
	BroadcastTime time.Time             `json:"broadcast_time"`
	MessageCount  int                   `json:"message_count"`
	Messages      []*models.ChatMessage `json:"messages"`
}

// Queue appends one player-submitted chat message to a session's queue
// (POST /game/chat/{session_id}/send). Queuing itself never fails the
// caller's request on a downstream delivery problem — delivery only
// happens when the orchestrator next leaves the session's broadcast phase. A best-effort event push to the
// reasoning server fires in the background as a separate task; its
// failure never blocks the queue append.
func (b *Broadcaster) Queue(ctx context.Context, sessionID, sender, platform, content string) (*models.ChatMessage, error) {
	msg, err := b.store.Queue(ctx, sessionID, sender, platform, content)
	if err != nil {
		return nil, err
	}
	if b.reasoningURL != "" {
		go b.pushReasoningEvent(sessionID, sender, platform, msg)
	}
	return msg, nil
}

func (b *Broadcaster) pushReasoningEvent(sessionID, sender, platform string, msg *models.ChatMessage) {
	log := slog.With("component", "chat-broadcaster", "session_id", sessionID)

	event := reasoningEvent{
		EventType:            "chat_message",
		SourcePlatform:       platform,
		SenderID:             sender,
		SenderIsLLM:          false,
		GameID:               sessionID,
		BroadcastToAllAgents: true,
		Payload:              msg,
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Error("marshal reasoning event failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventPushTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.reasoningURL+"/coup-events/event", bytes.NewReader(body))
	if err != nil {
		log.Error("build reasoning event request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		log.Warn("reasoning event push failed", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn("reasoning server rejected event", "status", resp.Status)
	}
}

// Broadcast snapshots and clears a session's chat queue, then pushes the
// snapshot to every active endpoint in parallel. A push failure to one
// endpoint never affects delivery to the others, and never re-queues the
// message — clear after attempt, not clear after success.
func (b *Broadcaster) Broadcast(ctx context.Context, sessionID string) error {
	log := slog.With("component", "chat-broadcaster", "session_id", sessionID)

	msgs, err := b.store.SnapshotAndClear(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("snapshot chat queue: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	endpoints, err := b.store.ActiveEndpoints(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list active endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		log.Warn("chat messages dropped: no active gateway endpoints", "message_count", len(msgs))
		return nil
	}

	payload := pushPayload{
		SessionID:     sessionID,
		BroadcastTime: time.Now().UTC(),
		MessageCount:  len(msgs),
		Messages:      msgs,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal broadcast payload: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range endpoints {
		ep := ep
		g.Go(func() error {
			pushCtx, cancel := context.WithTimeout(gctx, pushTimeout)
			defer cancel()
			if err := b.push(pushCtx, ep.EndpointURL, body); err != nil {
				log.Error("gateway push failed", "platform", ep.Platform, "endpoint", ep.EndpointURL, "error", err)
			}
			if err := b.store.TouchLastBroadcast(ctx, sessionID, ep.Platform, time.Now()); err != nil {
				log.Error("failed to record broadcast attempt", "platform", ep.Platform, "error", err)
			}
			return nil // a single endpoint's failure never fails the group
		})
	}
	return g.Wait()
}

func (b *Broadcaster) push(ctx context.Context, endpointURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway responded %s", resp.Status)
	}
	return nil
}
