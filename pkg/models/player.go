package models

// PlayerStatus is one of the two mutually-exclusive life states a player
// can be in.
type PlayerStatus string

const (
	StatusAlive PlayerStatus = "alive"
	StatusDead  PlayerStatus = "dead"
)

// UpgradeFlags holds action-kind-specific options a player has opted into
// for their pending action. Currently only the assassination
// card-priority upgrade is defined; the zero value means no upgrade.
type UpgradeFlags struct {
	// AssassinationPriorityRole names the card the actor wants removed from
	// the target's hand on a successful, unblocked assassinate, if present
	// in the target's hand.
	AssassinationPriorityRole Role
}

// PlayerGameState is the per-session-per-user record owned by the Player
// Game-State Store.
type PlayerGameState struct {
	UserID          string
	SessionID       string
	DisplayName     string
	JoinOrder       int // position in insertion order; the resolver's documented iteration order
	Coins           int
	Debt            int
	Hand            []Role
	Status          PlayerStatus
	PendingAction   *ActionKind
	PendingTarget   *string // display name of the target, when the pending action targets someone
	PendingUpgrade  *UpgradeFlags
}

// IsAlive reports whether the player is still in the game.
func (p *PlayerGameState) IsAlive() bool {
	return p.Status == StatusAlive
}

// PublicView is what other players (and the REST API) are allowed to see
// of a PlayerGameState —'s visibility rule: "other players'
// hands are never exposed; only hand_count, coins, is_alive, pending_action
// kind (not upgrade details), and target."
type PublicView struct {
	UserID        string       `json:"user_id"`
	DisplayName   string       `json:"display_name"`
	Coins         int          `json:"coins"`
	HandCount     int          `json:"hand_count"`
	IsAlive       bool         `json:"is_alive"`
	PendingAction *ActionKind  `json:"pending_action,omitempty"`
	PendingTarget *string      `json:"pending_target,omitempty"`
}

// Public projects a PlayerGameState down to what any player may see about
// another player.
func (p *PlayerGameState) Public() PublicView {
	return PublicView{
		UserID:        p.UserID,
		DisplayName:   p.DisplayName,
		Coins:         p.Coins,
		HandCount:     len(p.Hand),
		IsAlive:       p.IsAlive(),
		PendingAction: p.PendingAction,
		PendingTarget: p.PendingTarget,
	}
}
