// Package deck implements the Deck Manager: shuffle, deal, draw, return,
// reveal, and swap over a session's card pool. The package is pure — it
// has no database or HTTP imports, mirroring the Turn Resolver's "pure
// function" shape so both can be unit tested without a live Postgres.
// Callers (pkg/store, pkg/orchestrator) persist the returned deck/hand
// slices within their own transaction.
package deck

import (
	"math/rand/v2"

	"github.com/coup-league/coupd/pkg/models"
)

// New builds the starting 15-card deck: three copies of each of the five
// roles, unshuffled — callers shuffle explicitly via Shuffle so tests can
// inject a fixed-seed rand.Rand.
func New() []models.Role {
	cards := make([]models.Role, 0, models.DeckSize)
	for _, role := range models.Roles {
		for i := 0; i < models.CopiesPerRole; i++ {
			cards = append(cards, role)
		}
	}
	return cards
}

// Shuffle randomizes cards in place using r, a caller-supplied uniform
// PRNG. Production wires a rand.New(rand.NewPCG(...)) seeded from
// crypto-random entropy; tests inject a fixed-seed rand.Rand for
// deterministic fixtures.
func Shuffle(r *rand.Rand, cards []models.Role) {
	r.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

// Deal pops two cards per player off the top of a freshly shuffled deck
// and returns the remaining deck plus each player's hand, in the order
// players are given.
func Deal(deck []models.Role, playerCount int) (remaining []models.Role, hands [][]models.Role) {
	hands = make([][]models.Role, playerCount)
	idx := 0
	for i := 0; i < playerCount; i++ {
		hands[i] = append([]models.Role{}, deck[idx:idx+2]...)
		idx += 2
	}
	return append([]models.Role{}, deck[idx:]...), hands
}

// Draw removes the top n cards from the deck and returns them along with
// the remaining deck. If fewer than n remain, it draws what is available
// without error.
func Draw(deck []models.Role, n int) (drawn, remaining []models.Role) {
	if n > len(deck) {
		n = len(deck)
	}
	return append([]models.Role{}, deck[:n]...), append([]models.Role{}, deck[n:]...)
}

// Return appends cards back to the deck and, if shuffle is true,
// reshuffles the whole deck with r. Used after a challenged-and-vindicated
// actor reveals their card: it is returned to the deck, the deck is
// reshuffled, then the actor draws a fresh replacement.
func Return(r *rand.Rand, deck []models.Role, cards []models.Role, shuffle bool) []models.Role {
	out := append(append([]models.Role{}, deck...), cards...)
	if shuffle {
		Shuffle(r, out)
	}
	return out
}

// Reveal moves one card from a hand to the revealed pile, returning the
// updated hand and revealed pile. idx selects which hand slot is
// revealed — the "first card" tie-break (hand index 0 unless an upgrade
// names a present card) is the caller's responsibility to compute.
func Reveal(hand []models.Role, revealed []models.Role, idx int) (newHand, newRevealed []models.Role, card models.Role) {
	card = hand[idx]
	newHand = append(append([]models.Role{}, hand[:idx]...), hand[idx+1:]...)
	newRevealed = append(append([]models.Role{}, revealed...), card)
	return newHand, newRevealed, card
}

// RevealRole finds and reveals the first occurrence of a specific role in
// a hand, used for the assassination_priority upgrade (removes one
// influence from the target, optionally a specific role if the upgrade
// names one present in the hand). If the role is absent, it falls back to
// index 0.
func RevealRole(hand []models.Role, revealed []models.Role, preferred models.Role) (newHand, newRevealed []models.Role, card models.Role) {
	idx := 0
	if preferred != "" {
		for i, c := range hand {
			if c == preferred {
				idx = i
				break
			}
		}
	}
	return Reveal(hand, revealed, idx)
}

// Swap exchanges part of a hand for newly drawn cards: the player ends up
// holding keepSet, and the rest of the post-draw set (returnSet) goes back
// to the deck, reshuffled.
func Swap(r *rand.Rand, deck []models.Role, returnSet, keepSet []models.Role) (newDeck []models.Role, newHand []models.Role) {
	return Return(r, deck, returnSet, true), append([]models.Role{}, keepSet...)
}
