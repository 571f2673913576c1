// discordgateway is a thin bridge process: it rebuilds its routing table
// from the game server's public channel-binding listing at startup and
// exposes the gateway push contract as a logging stub. Discord SDK
// wiring and slash-command parsing are out of scope — this
// binary exists only so the channel-binding registry and chat push
// contract have a real consumer.
package main

import (
	"log/slog"
	"os"

	"github.com/coup-league/coupd/pkg/gateway"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	gateway.Run(gateway.Options{
		Platform:       "discord",
		GameServerURL:  envOr("COUP_GAME_SERVER_URL", "http://localhost:8080"),
		ListenAddr:     envOr("COUP_DISCORDGATEWAY_ADDR", ":8081"),
		ChannelListURL: "/game/sessions/discord-channels",
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
