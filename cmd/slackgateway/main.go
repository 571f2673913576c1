// slackgateway is discordgateway's Slack counterpart: same startup
// routing-table rebuild, same gateway push stub. Slack SDK wiring is out
// of scope.
package main

import (
	"log/slog"
	"os"

	"github.com/coup-league/coupd/pkg/gateway"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	gateway.Run(gateway.Options{
		Platform:       "slack",
		GameServerURL:  envOr("COUP_GAME_SERVER_URL", "http://localhost:8080"),
		ListenAddr:     envOr("COUP_SLACKGATEWAY_ADDR", ":8082"),
		ChannelListURL: "/game/sessions/slack-channels",
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
