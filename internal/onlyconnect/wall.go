package onlyconnect

import (
	"math/rand"
	"sort"

	"github.com/benharcourt/catbox-quiz/internal/content"
)

// ActiveWall tracks one team's play through a single 16-clue grid: which
// clues are still ungrouped, which groups have been solved or given up on,
// and the steal-confirmation cursor once the board closes out.
type ActiveWall struct {
	wall content.ConnectingWall

	ungrouped []content.Element
	grouped   []content.Element
	notFound  []content.Element
	selected  []int // indices into ungrouped

	strikes *int
	groups  []content.Question // solved or revealed groups, in the order found

	confirmingGroup *int
	isGroupRevealed bool
}

func newActiveWall(wall content.ConnectingWall) *ActiveWall {
	clues := wall.Clues()
	shuffled := make([]content.Element, len(clues))
	copy(shuffled, clues[:])
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	// isGroupRevealed starts true: right after the wall locks in, the first
	// REVEAL_FOR_STEAL is always offered before any confirmation has begun.
	return &ActiveWall{wall: wall, ungrouped: shuffled, isGroupRevealed: true}
}

func questionHasClue(q content.Question, word string) bool {
	for _, e := range q.Elements {
		if e.Text == word {
			return true
		}
	}
	return false
}

func questionHasAllClues(q content.Question, words []string) bool {
	for _, w := range words {
		if !questionHasClue(q, w) {
			return false
		}
	}
	return true
}

func indexOfInt(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

// Toggle selects or deselects the clue named by word. onStep is invoked once
// per visible change (select, deselect, or group-check settling) so the
// caller can fan out an intermediate snapshot after each one. It reports
// whether the board was just solved or ran out of strikes -- the caller is
// then expected to lock the wall in.
func (w *ActiveWall) Toggle(word string, onStep func()) (overflow bool) {
	idx := -1
	for i, e := range w.ungrouped {
		if e.Text == word {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	if pos := indexOfInt(w.selected, idx); pos != -1 {
		w.selected = append(w.selected[:pos], w.selected[pos+1:]...)
		onStep()
		return false
	}

	w.selected = append(w.selected, idx)
	onStep()

	if len(w.selected) != content.SlotsPerConnection {
		return false
	}

	words := make([]string, len(w.selected))
	for i, si := range w.selected {
		words[i] = w.ungrouped[si].Text
	}
	overflow = w.checkMatchGroup(words)
	w.selected = nil
	onStep()
	return overflow
}

// checkMatchGroup tests whether words forms one of the wall's four groups.
// On a match it moves the clues from ungrouped into grouped, arming strikes
// once the field narrows to 8 clues; on a miss it burns a strike if strikes
// are armed. It reports whether the board is now fully solved or just ran
// out of strikes -- either ends the round handler's QUESTION_ACTIVE state.
func (w *ActiveWall) checkMatchGroup(words []string) bool {
	for _, group := range w.wall {
		if !questionHasAllClues(group, words) {
			continue
		}
		removed := append([]int{}, w.selected...)
		sort.Sort(sort.Reverse(sort.IntSlice(removed)))
		for _, idx := range removed {
			w.ungrouped = append(w.ungrouped[:idx], w.ungrouped[idx+1:]...)
		}
		w.grouped = append(w.grouped, group.Elements[:]...)
		w.groups = append(w.groups, group)
		if len(w.ungrouped) == 2*content.SlotsPerConnection {
			strikes := 3
			w.strikes = &strikes
		}
		return len(w.ungrouped) == 0
	}

	if w.strikes != nil {
		*w.strikes--
		if *w.strikes <= 0 {
			return true
		}
	}
	return false
}

// revealWall auto-solves whatever is left on the board once it locks in:
// every remaining group is credited to notFound rather than grouped.
func (w *ActiveWall) revealWall() {
	w.strikes = nil
	for len(w.ungrouped) > 0 {
		word := w.ungrouped[0].Text
		for _, group := range w.wall {
			if !questionHasClue(group, word) {
				continue
			}
			w.notFound = append(w.notFound, group.Elements[:]...)
			w.groups = append(w.groups, group)
			for _, e := range group.Elements {
				for i, u := range w.ungrouped {
					if u.Text == e.Text {
						w.ungrouped = append(w.ungrouped[:i], w.ungrouped[i+1:]...)
						break
					}
				}
			}
			break
		}
	}
}

// startConfirmNextGroup advances the steal-confirmation cursor to the next
// solved-or-revealed group and clears its reveal flag.
func (w *ActiveWall) startConfirmNextGroup() {
	if w.confirmingGroup == nil {
		start := -1
		w.confirmingGroup = &start
	}
	*w.confirmingGroup++
	w.isGroupRevealed = false
}

// Json renders the wall's current visible state. admin additionally reveals
// the connection of a group under confirmation before the steal team has
// answered, and its host-only details.
func (w *ActiveWall) Json(admin bool) map[string]any {
	var confirming map[string]any
	if w.confirmingGroup != nil && *w.confirmingGroup >= 0 && *w.confirmingGroup < len(w.groups) {
		group := w.groups[*w.confirmingGroup]
		confirming = map[string]any{
			"group_id": *w.confirmingGroup,
			"clues":    append([]content.Element{}, group.Elements[:]...),
		}
		if admin || w.isGroupRevealed {
			confirming["connection"] = group.Connection
		}
		if admin {
			confirming["details"] = group.Details
		}
	}
	return map[string]any{
		"grouped":    append([]content.Element{}, w.grouped...),
		"ungrouped":  append([]content.Element{}, w.ungrouped...),
		"not_found":  append([]content.Element{}, w.notFound...),
		"selected":   append([]int{}, w.selected...),
		"strikes":    w.strikes,
		"confirming": confirming,
	}
}

// ConnectingWallState drives the Connecting Walls round: two grids (one per
// team in two-team mode), solved sequentially, each followed by a
// confirmation pass over all four of that wall's groups.
type ConnectingWallState struct {
	teams []*Team
	state SubState

	availableWalls [2]*content.ConnectingWall
	activeTeam     int
	activeWall     *ActiveWall
}

// NewConnectingWallState builds the handler. In two-team mode the team
// currently behind on points picks first.
func NewConnectingWallState(teams []*Team, walls content.WallPair) *ConnectingWallState {
	s := &ConnectingWallState{
		teams:          teams,
		state:          SubPreRound,
		availableWalls: [2]*content.ConnectingWall{&walls[0], &walls[1]},
	}
	if len(teams) > 1 && teams[1].Score < teams[0].Score {
		s.activeTeam = 1
	}
	return s
}

func (s *ConnectingWallState) view(admin bool) map[string]any {
	var current map[string]any
	if s.activeWall != nil {
		current = s.activeWall.Json(admin)
	}
	return map[string]any{
		"round":       string(RoundConnectingWalls),
		"state":       string(s.state),
		"active_team": s.teams[s.activeTeam].Json(),
		"available":   []bool{s.availableWalls[0] != nil, s.availableWalls[1] != nil},
		"current":     current,
	}
}

// PublicState implements RoundHandler.
func (s *ConnectingWallState) PublicState() map[string]any { return s.view(false) }

// AdminState implements RoundHandler.
func (s *ConnectingWallState) AdminState() map[string]any { return s.view(true) }

// PossibleActions implements RoundHandler.
func (s *ConnectingWallState) PossibleActions() ActionSet {
	switch s.state {
	case SubPreRound:
		return NewActionSet(ActionNextQuestion)
	case SubQuestionSelection:
		return NewActionSet()
	case SubPostRound:
		return NewActionSet(ActionStartNextRound)
	}

	if s.state != SubLockedIn && s.activeWall != nil {
		return NewActionSet(ActionLockIn)
	}
	if s.activeWall == nil {
		return NewActionSet()
	}
	if s.activeWall.isGroupRevealed {
		if s.activeWall.confirmingGroup != nil && *s.activeWall.confirmingGroup == content.SlotsPerConnection-1 {
			return NewActionSet(ActionNextQuestion)
		}
		return NewActionSet(ActionRevealForSteal)
	}
	scoreAction := ActionScoreTeam1
	if s.activeTeam != 0 {
		scoreAction = ActionScoreTeam2
	}
	return NewActionSet(scoreAction, ActionScoreIncorrect)
}

// Do implements RoundHandler. Toggle is handled separately (see Toggle)
// since clue selection is not itself part of the closed action set.
func (s *ConnectingWallState) Do(action Action) bool {
	switch action {
	case ActionNextQuestion:
		return s.nextQuestion()
	case ActionSelectLion:
		return s.selectWall(0)
	case ActionSelectWater:
		return s.selectWall(1)
	case ActionLockIn:
		return s.lockIn()
	case ActionRevealForSteal:
		return s.revealForSteal()
	case ActionScoreTeam1:
		return s.scoreTeam(0)
	case ActionScoreTeam2:
		return s.scoreTeam(1)
	case ActionScoreIncorrect:
		return s.scoreIncorrect()
	default:
		return false
	}
}

// Toggle forwards a clue selection to the active wall, automatically locking
// the round in once the board is solved or strikes run out.
func (s *ConnectingWallState) Toggle(word string, onStep func()) bool {
	if s.state != SubQuestionActive || s.activeWall == nil {
		return false
	}
	overflow := s.activeWall.Toggle(word, onStep)
	if overflow {
		onStep()
		s.lockIn()
		onStep()
	}
	return true
}

func (s *ConnectingWallState) nextQuestion() bool {
	if s.state == SubPreRound {
		s.state = SubQuestionSelection
		return true
	}
	if s.state != SubLockedIn || s.activeWall == nil || s.activeWall.confirmingGroup == nil ||
		*s.activeWall.confirmingGroup < content.SlotsPerConnection-1 {
		return false
	}
	if len(s.teams) == 1 || (s.availableWalls[0] == nil && s.availableWalls[1] == nil) {
		s.state = SubPostRound
		return true
	}
	s.activeTeam = 1 - s.activeTeam
	s.state = SubQuestionSelection
	return true
}

func (s *ConnectingWallState) selectWall(i int) bool {
	if s.state != SubQuestionSelection || s.availableWalls[i] == nil {
		return false
	}
	s.activeWall = newActiveWall(*s.availableWalls[i])
	s.availableWalls[i] = nil
	s.state = SubQuestionActive
	return true
}

func (s *ConnectingWallState) lockIn() bool {
	if s.state != SubQuestionActive || s.activeWall == nil {
		return false
	}
	s.teams[s.activeTeam].Score += len(s.activeWall.grouped) / content.SlotsPerConnection
	s.activeWall.revealWall()
	s.state = SubLockedIn
	return true
}

func (s *ConnectingWallState) revealForSteal() bool {
	if s.state != SubLockedIn || s.activeWall == nil {
		return false
	}
	s.activeWall.startConfirmNextGroup()
	return true
}

func (s *ConnectingWallState) scoreTeam(team int) bool {
	if s.state != SubLockedIn || s.activeWall == nil || s.activeWall.confirmingGroup == nil ||
		s.activeWall.isGroupRevealed || team >= len(s.teams) {
		return false
	}
	s.teams[team].Score++
	s.activeWall.isGroupRevealed = true
	return true
}

func (s *ConnectingWallState) scoreIncorrect() bool {
	if s.state != SubLockedIn || s.activeWall == nil || s.activeWall.confirmingGroup == nil || s.activeWall.isGroupRevealed {
		return false
	}
	s.activeWall.isGroupRevealed = true
	return true
}
