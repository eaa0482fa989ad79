// Package onlyconnect implements the Only-Connect round state machines: the
// top-level round tracker, the per-round handlers (Connections, Completions,
// Connecting Walls, Missing Vowels), and the closed set of player/host
// actions each handler accepts.
package onlyconnect

// Round is the top-level round tracker. It is a linear sequence; Next always
// walks forward one step and never goes back.
type Round string

const (
	RoundPreGame         Round = "pre-game"
	RoundConnections     Round = "connections"
	RoundCompletions     Round = "completions"
	RoundConnectingWalls Round = "connecting_walls"
	RoundMissingVowels   Round = "missing_vowels"
	RoundPostGame        Round = "post-game"
)

var roundSequence = []Round{
	RoundPreGame,
	RoundConnections,
	RoundCompletions,
	RoundConnectingWalls,
	RoundMissingVowels,
	RoundPostGame,
}

// Next returns the round that follows r. RoundPostGame is absorbing.
func (r Round) Next() Round {
	if r == RoundPostGame {
		return RoundPostGame
	}
	for i, v := range roundSequence {
		if v == r {
			return roundSequence[i+1]
		}
	}
	return RoundPostGame
}

// SubState is a round handler's internal position within its own round.
type SubState string

const (
	SubPreRound          SubState = "pre-round"
	SubQuestionSelection SubState = "question-selection"
	SubQuestionActive    SubState = "question-active"
	SubLockedIn          SubState = "locked-in"
	SubStealing          SubState = "stealing"
	SubAnswerRevealed    SubState = "answer-revealed"
	SubPostRound         SubState = "post-round"
)

// Action is one member of the closed set of commands a round handler can
// carry out. Six of them (the hieroglyph-named SELECT_* tokens) exist solely
// so a question-selection UI never needs to send a raw array index.
type Action string

const (
	ActionNextQuestion      Action = "NEXT_QUESTION"
	ActionSelectTwoReeds    Action = "SELECT_TWO_REEDS"
	ActionSelectLion        Action = "SELECT_LION"
	ActionSelectTwistedFlax Action = "SELECT_TWISTED_FLAX"
	ActionSelectHornedViper Action = "SELECT_HORNED_VIPER"
	ActionSelectWater       Action = "SELECT_WATER"
	ActionSelectEyeOfHorus  Action = "SELECT_EYE_OF_HORUS"
	ActionNextClue          Action = "NEXT_CLUE"
	ActionLockIn            Action = "LOCK_IN"
	ActionRevealForSteal    Action = "REVEAL_FOR_STEAL"
	ActionScoreTeam1        Action = "SCORE_TEAM1"
	ActionScoreTeam2        Action = "SCORE_TEAM2"
	ActionScoreSteal        Action = "SCORE_STEAL"
	ActionScoreIncorrect    Action = "SCORE_INCORRECT"
	ActionStartNextRound    Action = "START_NEXT_ROUND"
)

// selectionTokens is the fixed order in which the six hieroglyph tokens map
// onto a StandardRoundState's six questions. A wall pair's two walls are
// picked with SELECT_LION and SELECT_WATER instead.
var selectionTokens = [6]Action{
	ActionSelectTwoReeds,
	ActionSelectLion,
	ActionSelectTwistedFlax,
	ActionSelectHornedViper,
	ActionSelectWater,
	ActionSelectEyeOfHorus,
}

// ActionSet is the set of actions a handler currently accepts.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	s := make(ActionSet, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// Has reports whether a is a member of the set.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// RoundHandler is the contract every per-round state machine satisfies.
// PublicState and AdminState return wire-ready views (map[string]any,
// marshalled by the caller); Do attempts an action and reports whether it
// changed anything, so a no-op action never triggers a fanout.
type RoundHandler interface {
	PublicState() map[string]any
	AdminState() map[string]any
	PossibleActions() ActionSet
	Do(action Action) bool
}
