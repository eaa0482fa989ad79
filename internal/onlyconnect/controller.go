package onlyconnect

import "github.com/benharcourt/catbox-quiz/internal/content"

// Controller is the game-specific state a room holds for one Only-Connect
// play session: the round tracker, the currently installed round handler,
// and the teams that handler scores against. A room embeds a Controller
// rather than this package knowing anything about transport or persistence.
type Controller struct {
	Episode content.Content
	Teams   []*Team

	round   Round
	handler RoundHandler
}

// NewController builds a Controller sitting at PRE_GAME with no handler
// installed.
func NewController(episode content.Content, teams []*Team) *Controller {
	return &Controller{Episode: episode, Teams: teams, round: RoundPreGame}
}

// Round reports the current top-level round.
func (c *Controller) Round() Round { return c.round }

// Handler returns the active round's handler, or nil during PRE_GAME and
// POST_GAME.
func (c *Controller) Handler() RoundHandler { return c.handler }

// NextRound walks the round tracker forward, installing the first round
// whose content is actually playable; rounds whose content is missing or
// invalid are skipped silently. It reports whether an actual round (not
// POST_GAME) was reached; if nothing ahead is offerable, it installs
// POST_GAME itself and returns false.
func (c *Controller) NextRound() bool {
	r := c.round
	for r != RoundPostGame {
		r = r.Next()
		if r == RoundPostGame {
			break
		}
		if c.startRound(r) {
			return true
		}
	}
	c.startRound(RoundPostGame)
	return false
}

// Skip installs round r directly, bypassing the normal forward walk, for
// host-initiated round skipping. Content is still checked: a round whose
// content is missing or invalid is not installed and Skip returns false.
func (c *Controller) Skip(r Round) bool {
	return c.startRound(r)
}

func (c *Controller) startRound(r Round) bool {
	switch r {
	case RoundPreGame, RoundPostGame:
		c.round = r
		c.handler = nil
		return true
	case RoundConnections:
		if c.Episode.ConnectionsRound == nil || !c.Episode.ConnectionsRound.Valid() {
			return false
		}
		c.round = r
		c.handler = NewStandardRoundState(c.Teams, false, *c.Episode.ConnectionsRound)
		return true
	case RoundCompletions:
		if c.Episode.CompletionsRound == nil || !c.Episode.CompletionsRound.Valid() {
			return false
		}
		c.round = r
		c.handler = NewStandardRoundState(c.Teams, true, *c.Episode.CompletionsRound)
		return true
	case RoundConnectingWalls:
		if !c.Episode.ConnectingWallsOfferable(len(c.Teams)) {
			return false
		}
		c.round = r
		c.handler = NewConnectingWallState(c.Teams, *c.Episode.ConnectingWalls)
		return true
	case RoundMissingVowels:
		if !c.Episode.MissingVowelsOfferable() {
			return false
		}
		c.round = r
		c.handler = NewMissingVowelsState(c.Teams, c.Episode.MissingVowels)
		return true
	default:
		return false
	}
}
