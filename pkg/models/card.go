package models

// Role is a card kind (an "influence") in the Coup deck.
type Role string

// The five role kinds, three copies each in the starting deck.
const (
	RoleDuke       Role = "duke"
	RoleAssassin   Role = "assassin"
	RoleCaptain    Role = "captain"
	RoleAmbassador Role = "ambassador"
	RoleContessa   Role = "contessa"
)

// Roles lists every role kind in a stable order, used to build the
// starting deck and to validate claimed roles on the wire.
var Roles = []Role{RoleDuke, RoleAssassin, RoleCaptain, RoleAmbassador, RoleContessa}

// Valid reports whether r is one of the five known role kinds.
func (r Role) Valid() bool {
	for _, k := range Roles {
		if k == r {
			return true
		}
	}
	return false
}

// CopiesPerRole is the number of copies of each role in the starting deck.
const CopiesPerRole = 3

// DeckSize is the total card count (CopiesPerRole * len(Roles)), which must
// always equal deck + revealed + all hands combined once a game has started.
const DeckSize = CopiesPerRole * 5

// ActionKind identifies the action a player submits for a turn.
type ActionKind string

const (
	ActionIncome        ActionKind = "income"
	ActionForeignAid    ActionKind = "foreign_aid"
	ActionTax           ActionKind = "tax"
	ActionSteal         ActionKind = "steal"
	ActionAssassinate   ActionKind = "assassinate"
	ActionCoup          ActionKind = "coup"
	ActionSwapInfluence ActionKind = "swap_influence"
)

// ActionInfo describes the fixed rules of an action kind.
type ActionInfo struct {
	Cost           int // coin cost to attempt the action (0 if none)
	RequiresTarget bool
	Blockable      bool
	Challengeable  bool // false for income/foreign_aid/coup, which claim no role
	ClaimedRole    Role // the role a player implicitly claims by taking this action ("" if none)
}

// Actions maps every action kind to its fixed cost, challengeability, and
// claimed-role rules.
var Actions = map[ActionKind]ActionInfo{
	ActionIncome:        {Cost: 0, Challengeable: false},
	ActionForeignAid:    {Cost: 0, Challengeable: false, Blockable: true},
	ActionTax:           {Cost: 0, Challengeable: true, ClaimedRole: RoleDuke},
	ActionSteal:         {Cost: 0, RequiresTarget: true, Challengeable: true, Blockable: true, ClaimedRole: RoleCaptain},
	ActionAssassinate:   {Cost: 3, RequiresTarget: true, Challengeable: true, Blockable: true, ClaimedRole: RoleAssassin},
	ActionCoup:          {Cost: 7, RequiresTarget: true},
	ActionSwapInfluence: {Cost: 0, Challengeable: true, ClaimedRole: RoleAmbassador},
}

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	_, ok := Actions[k]
	return ok
}

// ReactionKind identifies the kind of a player's reaction to a pending action.
type ReactionKind string

const (
	ReactionChallenge ReactionKind = "challenge"
	ReactionBlock     ReactionKind = "block"
	ReactionPass      ReactionKind = "pass"
)

// Valid reports whether k is a known reaction kind.
func (k ReactionKind) Valid() bool {
	switch k {
	case ReactionChallenge, ReactionBlock, ReactionPass:
		return true
	}
	return false
}

// TurnOutcome is the recorded result of resolving a single player's action.
type TurnOutcome string

const (
	OutcomeSuccess        TurnOutcome = "success"
	OutcomeChallengedWon  TurnOutcome = "challenged_won"
	OutcomeChallengedLost TurnOutcome = "challenged_lost"
	OutcomeBlocked        TurnOutcome = "blocked"
	OutcomeFailed         TurnOutcome = "failed"
)
