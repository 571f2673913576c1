package deck

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coup-league/coupd/pkg/models"
)

func fixedRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestNewHasFifteenCardsThreeOfEachRole(t *testing.T) {
	cards := New()
	require.Len(t, cards, models.DeckSize)

	counts := map[models.Role]int{}
	for _, c := range cards {
		counts[c]++
	}
	for _, role := range models.Roles {
		assert.Equal(t, models.CopiesPerRole, counts[role], "role %s", role)
	}
}

func TestShufflePreservesComposition(t *testing.T) {
	cards := New()
	before := append([]models.Role{}, cards...)
	Shuffle(fixedRand(), cards)

	assert.Len(t, cards, len(before))
	assert.ElementsMatch(t, before, cards)
}

func TestDealSplitsTwoCardsPerPlayer(t *testing.T) {
	cards := New()
	Shuffle(fixedRand(), cards)

	remaining, hands := Deal(cards, 4)

	require.Len(t, hands, 4)
	for _, h := range hands {
		assert.Len(t, h, 2)
	}
	assert.Len(t, remaining, models.DeckSize-8)

	var all []models.Role
	all = append(all, remaining...)
	for _, h := range hands {
		all = append(all, h...)
	}
	assert.ElementsMatch(t, cards, all)
}

func TestDrawCapsAtDeckSize(t *testing.T) {
	small := []models.Role{models.RoleDuke, models.RoleAssassin}
	drawn, remaining := Draw(small, 5)

	assert.Len(t, drawn, 2)
	assert.Empty(t, remaining)
}

func TestDrawPartial(t *testing.T) {
	cards := []models.Role{models.RoleDuke, models.RoleAssassin, models.RoleCaptain}
	drawn, remaining := Draw(cards, 1)

	assert.Equal(t, []models.Role{models.RoleDuke}, drawn)
	assert.Equal(t, []models.Role{models.RoleAssassin, models.RoleCaptain}, remaining)
}

func TestReturnWithoutShuffleAppends(t *testing.T) {
	deck := []models.Role{models.RoleDuke}
	out := Return(fixedRand(), deck, []models.Role{models.RoleContessa}, false)

	assert.Equal(t, []models.Role{models.RoleDuke, models.RoleContessa}, out)
}

func TestReturnWithShuffleKeepsComposition(t *testing.T) {
	deck := []models.Role{models.RoleDuke, models.RoleAssassin}
	out := Return(fixedRand(), deck, []models.Role{models.RoleContessa}, true)

	assert.ElementsMatch(t, []models.Role{models.RoleDuke, models.RoleAssassin, models.RoleContessa}, out)
}

func TestRevealRemovesFromHandAndAppendsToRevealed(t *testing.T) {
	hand := []models.Role{models.RoleDuke, models.RoleAssassin}
	newHand, newRevealed, card := Reveal(hand, nil, 0)

	assert.Equal(t, models.RoleDuke, card)
	assert.Equal(t, []models.Role{models.RoleAssassin}, newHand)
	assert.Equal(t, []models.Role{models.RoleDuke}, newRevealed)
}

func TestRevealRolePrefersNamedRole(t *testing.T) {
	hand := []models.Role{models.RoleDuke, models.RoleAssassin}
	newHand, _, card := RevealRole(hand, nil, models.RoleAssassin)

	assert.Equal(t, models.RoleAssassin, card)
	assert.Equal(t, []models.Role{models.RoleDuke}, newHand)
}

func TestRevealRoleFallsBackToFirstWhenAbsent(t *testing.T) {
	hand := []models.Role{models.RoleDuke, models.RoleAssassin}
	_, _, card := RevealRole(hand, nil, models.RoleCaptain)

	assert.Equal(t, models.RoleDuke, card)
}

func TestRevealRoleEmptyPreferredUsesFirst(t *testing.T) {
	hand := []models.Role{models.RoleDuke, models.RoleAssassin}
	_, _, card := RevealRole(hand, nil, "")

	assert.Equal(t, models.RoleDuke, card)
}

func TestSwapReturnsAndKeeps(t *testing.T) {
	deck := []models.Role{models.RoleDuke}
	newDeck, newHand := Swap(fixedRand(), deck, []models.Role{models.RoleAssassin}, []models.Role{models.RoleContessa})

	assert.ElementsMatch(t, []models.Role{models.RoleDuke, models.RoleAssassin}, newDeck)
	assert.Equal(t, []models.Role{models.RoleContessa}, newHand)
}
