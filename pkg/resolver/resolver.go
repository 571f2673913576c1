// Package resolver implements the Turn Resolver: the pure,
// wall-clock-free function that turns a turn's submitted actions and
// reactions into a models.TurnResult plus a mutation list the caller
// applies in one commit. This package deliberately imports no database
// or HTTP package, keeping the entire resolution algorithm testable as
// plain data in, data out.
package resolver

import (
	"fmt"
	"math/rand/v2"

	"github.com/coup-league/coupd/pkg/deck"
	"github.com/coup-league/coupd/pkg/models"
)

// Snapshot is the resolver's entire input: a session, every player in it,
// and every non-resolved reaction for the current turn.
type Snapshot struct {
	Session   *models.Session
	Players   []*models.PlayerGameState // must be in join order
	Reactions []*models.Reaction
}

// Mutation is the post-resolution state for one player, for the caller to
// persist (pkg/orchestrator writes these via PlayerStore.ApplyMutationTx).
type Mutation struct {
	UserID string
	Coins  int
	Debt   int
	Hand   []models.Role
	Status models.PlayerStatus
}

// Result is everything the orchestrator needs to commit after a turn
// resolves.
type Result struct {
	TurnResult *models.TurnResult
	Mutations  []Mutation
	Deck       []models.Role
	Revealed   []models.Role
}

// state is the resolver's mutable working copy of one player, keyed by
// user id, built from the Snapshot and mutated in place as actions and
// reactions are applied.
type state struct {
	userID      string
	displayName string
	coins       int
	debt        int
	hand        []models.Role
	status      models.PlayerStatus
	alive       bool
}

// Resolve runs the full ordering algorithm of over snap and
// returns the TurnResult plus the mutation list. r drives every shuffle
// the turn needs (challenge-vindication redraws, ambassador swaps);
// production wires a rand.Rand seeded from crypto-random entropy, tests
// inject a fixed seed for determinism.
func Resolve(r *rand.Rand, snap Snapshot) *Result {
	states := make(map[string]*state, len(snap.Players))
	order := make([]string, 0, len(snap.Players))
	for _, p := range snap.Players {
		states[p.UserID] = &state{
			userID:      p.UserID,
			displayName: p.DisplayName,
			coins:       p.Coins,
			debt:        p.Debt,
			hand:        append([]models.Role{}, p.Hand...),
			status:      p.Status,
			alive:       p.IsAlive(),
		}
		order = append(order, p.UserID)
	}
	byDisplayName := make(map[string]string, len(snap.Players)) // display name -> user id
	for _, p := range snap.Players {
		if prev, ok := byDisplayName[p.DisplayName]; ok && states[prev].alive {
			continue // a shared name resolves to the alive player
		}
		byDisplayName[p.DisplayName] = p.UserID
	}

	workDeck := append([]models.Role{}, snap.Session.Deck...)
	workRevealed := append([]models.Role{}, snap.Session.Revealed...)

	res := &runState{
		reactions:     snap.Reactions,
		states:        states,
		byDisplayName: byDisplayName,
		deck:          workDeck,
		revealed:      workRevealed,
		rand:          r,
	}

	var outcomes []models.ActionOutcome
	for _, p := range snap.Players {
		st := states[p.UserID]
		if !st.alive || p.PendingAction == nil {
			continue
		}
		outcomes = append(outcomes, res.resolveOne(p, st))
	}

	var eliminated []string
	for _, userID := range order {
		st := states[userID]
		if len(st.hand) == 0 && st.status != models.StatusDead {
			st.status = models.StatusDead
			st.alive = false
			eliminated = append(eliminated, st.displayName)
		}
	}

	mutations := make([]Mutation, 0, len(order))
	for _, userID := range order {
		st := states[userID]
		mutations = append(mutations, Mutation{
			UserID: st.userID,
			Coins:  st.coins,
			Debt:   st.debt,
			Hand:   st.hand,
			Status: st.status,
		})
	}

	return &Result{
		TurnResult: &models.TurnResult{
			SessionID:         snap.Session.ID,
			TurnNumber:        snap.Session.TurnNumber,
			Outcomes:          outcomes,
			PlayersEliminated: eliminated,
			Summary:           summarize(outcomes, eliminated),
		},
		Mutations: mutations,
		Deck:      res.deck,
		Revealed:  res.revealed,
	}
}

// runState carries the mutable deck/revealed piles and per-player state
// across resolveOne calls for a single turn.
type runState struct {
	reactions     []*models.Reaction
	states        map[string]*state
	byDisplayName map[string]string
	deck          []models.Role
	revealed      []models.Role
	rand          *rand.Rand
}

// resolveOne resolves a single alive player's pending action, applying
// steps (a) through (d) in order.
func (rs *runState) resolveOne(p *models.PlayerGameState, actor *state) models.ActionOutcome {
	action := *p.PendingAction
	info := models.Actions[action]
	targetName := ""
	if p.PendingTarget != nil {
		targetName = *p.PendingTarget
	}

	outcome := models.ActionOutcome{
		Actor:  actor.displayName,
		Action: action,
		Target: targetName,
	}

	// (a) cost check
	if actor.coins < info.Cost {
		outcome.Outcome = models.OutcomeFailed
		outcome.Description = fmt.Sprintf("%s attempted %s but had insufficient coins", actor.displayName, action)
		return outcome
	}

	cancelled := false
	var revealedCards []models.Role

	// (b) challenges first
	if info.Challengeable {
		if challenge := rs.earliestReaction(models.ReactionChallenge, actor.userID, action); challenge != nil {
			challenger := rs.states[challenge.ReactorUserID]
			if challenger != nil {
				if actorHasRole(actor.hand, info.ClaimedRole) {
					// Actor was honest: challenger loses an influence; actor
					// reveals and swaps the claimed card for a fresh draw.
					card := rs.loseInfluence(challenger, "")
					revealedCards = append(revealedCards, card)
					rs.swapClaimedCard(actor, info.ClaimedRole)
					outcome.Outcome = models.OutcomeChallengedWon
					outcome.Description = fmt.Sprintf("%s's claim of %s was challenged by %s and held; %s loses an influence",
						actor.displayName, info.ClaimedRole, challenger.displayName, challenger.displayName)
				} else {
					// Bluff caught: actor loses an influence, action cancelled.
					card := rs.loseInfluence(actor, "")
					revealedCards = append(revealedCards, card)
					cancelled = true
					outcome.Outcome = models.OutcomeChallengedLost
					outcome.Description = fmt.Sprintf("%s's claim of %s was challenged by %s and failed; %s loses an influence",
						actor.displayName, info.ClaimedRole, challenger.displayName, actor.displayName)
				}
			}
		}
	}

	// (c) blocks second, only if not already cancelled and blockable
	if !cancelled && info.Blockable {
		if block := rs.earliestReaction(models.ReactionBlock, actor.userID, action); block != nil {
			blocker := rs.states[block.ReactorUserID]
			if blocker != nil {
				blockHolds := true
				if counter := rs.earliestReactionAgainstActor(models.ReactionChallenge, block.ReactorUserID, action); counter != nil {
					counterChallenger := rs.states[counter.ReactorUserID]
					claimedRole := models.Role("")
					if block.BlockWithRole != nil {
						claimedRole = *block.BlockWithRole
					}
					if actorHasRole(blocker.hand, claimedRole) {
						// Block's claim held: counter-challenger loses an influence.
						if counterChallenger != nil {
							card := rs.loseInfluence(counterChallenger, "")
							revealedCards = append(revealedCards, card)
						}
						rs.swapClaimedCard(blocker, claimedRole)
					} else {
						// Counter-challenge wins: blocker loses an influence, block fails.
						card := rs.loseInfluence(blocker, "")
						revealedCards = append(revealedCards, card)
						blockHolds = false
					}
				}
				if blockHolds {
					cancelled = true
					outcome.Outcome = models.OutcomeBlocked
					outcome.Description = fmt.Sprintf("%s's %s was blocked by %s", actor.displayName, action, blocker.displayName)
				}
			}
		}
	}

	if cancelled {
		// Irrevocable costs (e.g. assassination's 3-coin fee) are paid even
		// when the action is blocked.
		if info.Cost > 0 {
			actor.coins -= info.Cost
			outcome.CoinsTransferred = -info.Cost
		}
		outcome.CardsRevealed = revealedCards
		return outcome
	}

	// (d) effect application
	rs.applyEffect(action, p, actor, targetName, &outcome)
	outcome.CardsRevealed = append(outcome.CardsRevealed, revealedCards...)
	if outcome.Outcome == "" {
		outcome.Outcome = models.OutcomeSuccess
	}
	return outcome
}

// applyEffect runs the per-action-kind effect of step 1d.
func (rs *runState) applyEffect(action models.ActionKind, p *models.PlayerGameState, actor *state, targetName string, outcome *models.ActionOutcome) {
	switch action {
	case models.ActionIncome:
		actor.coins++
		outcome.CoinsTransferred = 1
		outcome.Description = fmt.Sprintf("%s took income (+1 coin)", actor.displayName)
	case models.ActionForeignAid:
		actor.coins += 2
		outcome.CoinsTransferred = 2
		outcome.Description = fmt.Sprintf("%s took foreign aid (+2 coins)", actor.displayName)
	case models.ActionTax:
		actor.coins += 3
		outcome.CoinsTransferred = 3
		outcome.Description = fmt.Sprintf("%s collected tax (+3 coins)", actor.displayName)
	case models.ActionSteal:
		target := rs.lookupTarget(targetName)
		if target == nil {
			outcome.Outcome = models.OutcomeFailed
			outcome.Description = fmt.Sprintf("%s attempted to steal from a missing target", actor.displayName)
			return
		}
		amount := min(2, target.coins)
		target.coins -= amount
		actor.coins += amount
		outcome.CoinsTransferred = amount
		outcome.Description = fmt.Sprintf("%s stole %d coin(s) from %s", actor.displayName, amount, target.displayName)
	case models.ActionAssassinate:
		actor.coins -= 3
		outcome.CoinsTransferred = -3
		target := rs.lookupTarget(targetName)
		if target == nil {
			outcome.Outcome = models.OutcomeFailed
			outcome.Description = fmt.Sprintf("%s paid for assassination but the target was missing", actor.displayName)
			return
		}
		preferred := models.Role("")
		if p.PendingUpgrade != nil {
			preferred = p.PendingUpgrade.AssassinationPriorityRole
		}
		card := rs.loseInfluence(target, preferred)
		outcome.CardsRevealed = append(outcome.CardsRevealed, card)
		outcome.Description = fmt.Sprintf("%s assassinated %s, who loses an influence", actor.displayName, target.displayName)
	case models.ActionCoup:
		actor.coins -= 7
		outcome.CoinsTransferred = -7
		target := rs.lookupTarget(targetName)
		if target == nil {
			outcome.Outcome = models.OutcomeFailed
			outcome.Description = fmt.Sprintf("%s paid for a coup but the target was missing", actor.displayName)
			return
		}
		card := rs.loseInfluence(target, "")
		outcome.CardsRevealed = append(outcome.CardsRevealed, card)
		outcome.Description = fmt.Sprintf("%s staged a coup against %s, who loses an influence", actor.displayName, target.displayName)
	case models.ActionSwapInfluence:
		drawn, remaining := deck.Draw(rs.deck, 2)
		fourCard := append(append([]models.Role{}, actor.hand...), drawn...)
		// Auto-return the two lowest-index cards of the post-draw hand
		// (as many as were drawn, if the deck ran short) rather than leave
		// the hand at 4 pending an out-of-band choice.
		keep := fourCard[len(drawn):]
		returnSet := fourCard[:len(drawn)]
		rs.deck, actor.hand = deck.Swap(rs.rand, remaining, returnSet, keep)
		outcome.Description = fmt.Sprintf("%s exchanged cards with the deck", actor.displayName)
	}
}

// lookupTarget resolves a pending action's target display name to its
// live state record. Reactions identify players by stable user id, but
// PlayerGameState.PendingTarget is a display name for presentation — this
// is the one place the resolver must bridge the two. Ties are broken in
// favor of the currently-alive player sharing that name.
func (rs *runState) lookupTarget(displayName string) *state {
	if displayName == "" {
		return nil
	}
	if userID, ok := rs.byDisplayName[displayName]; ok {
		return rs.states[userID]
	}
	return nil
}

// earliestReaction finds the lowest-id reaction of kind k against
// actorUserID's claimed action — the "earliest reaction wins" tie-break.
func (rs *runState) earliestReaction(k models.ReactionKind, actorUserID string, action models.ActionKind) *models.Reaction {
	var best *models.Reaction
	for _, rx := range rs.reactions {
		if rx.Kind != k || rx.ActorUserID != actorUserID || rx.TargetAction != action {
			continue
		}
		if best == nil || rx.ID < best.ID {
			best = rx
		}
	}
	return best
}

// earliestReactionAgainstActor finds a reaction of kind k whose ActorUserID
// is the blocker being counter-challenged — the core's representation of
// "a reaction against a reaction": a counter-
// challenge is itself a Reaction row with ActorUserID set to the blocker
// rather than the original action's actor, disambiguated by the same
// TargetAction kind. See DESIGN.md for why this reuses the Reaction shape
// instead of a second reaction table.
func (rs *runState) earliestReactionAgainstActor(k models.ReactionKind, blockerUserID string, action models.ActionKind) *models.Reaction {
	return rs.earliestReaction(k, blockerUserID, action)
}

// loseInfluence removes one card from victim's hand — index 0 unless
// preferred names a role present in the hand ( tie-break:
// "First card for forced influence loss is hand index 0 (stable) unless
// the assassination_priority upgrade names a card that is present").
func (rs *runState) loseInfluence(victim *state, preferred models.Role) models.Role {
	if len(victim.hand) == 0 {
		return ""
	}
	newHand, newRevealed, card := deck.RevealRole(victim.hand, rs.revealed, preferred)
	victim.hand = newHand
	rs.revealed = newRevealed
	return card
}

// swapClaimedCard returns an honest claimant's claimed card to the deck,
// reshuffles, and draws a replacement.
func (rs *runState) swapClaimedCard(actor *state, claimedRole models.Role) {
	idx := 0
	for i, c := range actor.hand {
		if c == claimedRole {
			idx = i
			break
		}
	}
	card := actor.hand[idx]
	remainingHand := append(append([]models.Role{}, actor.hand[:idx]...), actor.hand[idx+1:]...)
	rs.deck = deck.Return(rs.rand, rs.deck, []models.Role{card}, true)
	drawn, remaining := deck.Draw(rs.deck, 1)
	rs.deck = remaining
	actor.hand = append(remainingHand, drawn...)
}

func actorHasRole(hand []models.Role, role models.Role) bool {
	for _, c := range hand {
		if c == role {
			return true
		}
	}
	return false
}

func summarize(outcomes []models.ActionOutcome, eliminated []string) string {
	if len(outcomes) == 0 {
		return "no actions were submitted this turn"
	}
	summary := ""
	for i, o := range outcomes {
		if i > 0 {
			summary += "; "
		}
		summary += o.Description
	}
	if len(eliminated) > 0 {
		summary += fmt.Sprintf("; eliminated: %v", eliminated)
	}
	return summary
}
