package onlyconnect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benharcourt/catbox-quiz/internal/content"
)

func questionWithElements(connection string, words ...string) content.Question {
	q := content.DefaultQuestion()
	q.Connection = connection
	for i, w := range words {
		q.Elements[i] = content.NewTextElement(w)
	}
	return q
}

func sixQuestions() content.SixQuestions {
	var s content.SixQuestions
	for i := range s {
		s[i] = questionWithElements("connection", "A", "B", "C", "D")
	}
	return s
}

func oneTeam() []*Team    { return []*Team{{ID: "t1", Name: "One"}} }
func twoTeams() []*Team   { return []*Team{{ID: "t1", Name: "One"}, {ID: "t2", Name: "Two"}} }

// Scenario 1: Connections score ladder, single team.
func TestConnectionsScoreLadderSingleTeam(t *testing.T) {
	teams := oneTeam()
	s := NewStandardRoundState(teams, false, sixQuestions())

	require.True(t, s.Do(ActionNextQuestion))
	for i := 0; i < 4; i++ {
		require.True(t, s.Do(selectionTokens[i]))
		for c := 0; c < i; c++ {
			require.True(t, s.Do(ActionNextClue))
		}
		if s.state == SubQuestionActive {
			require.True(t, s.Do(ActionLockIn))
		}
		require.True(t, s.Do(ActionScoreTeam1))
		require.True(t, s.Do(ActionNextQuestion))
	}

	assert.Equal(t, 11, teams[0].Score)
}

// Scenario 2: Completions max_revealed behaviour.
func TestCompletionsMaxRevealed(t *testing.T) {
	teams := oneTeam()
	qs := sixQuestions()
	qs[0] = questionWithElements("connection", "A", "B", "C", "D")
	s := NewStandardRoundState(teams, true, qs)

	require.True(t, s.Do(ActionNextQuestion))
	require.True(t, s.Do(selectionTokens[0]))

	pub := s.PublicState()
	current := pub["current"].(map[string]any)
	assert.Equal(t, 1, current["revealed"])

	require.True(t, s.Do(ActionNextClue))
	require.True(t, s.Do(ActionNextClue))

	pub = s.PublicState()
	current = pub["current"].(map[string]any)
	assert.Equal(t, 3, current["revealed"])

	// Sub-state is now LOCKED_IN: a third NEXT_CLUE is a no-op.
	assert.False(t, s.Do(ActionNextClue))

	admin := s.AdminState()
	adminCurrent := admin["current"].(map[string]any)
	elements := adminCurrent["elements"].([]content.Element)
	require.Len(t, elements, 4)
	assert.Equal(t, "D", elements[3].Text)

	pubCurrent := s.PublicState()["current"].(map[string]any)
	pubElements := pubCurrent["elements"].([]content.Element)
	assert.Len(t, pubElements, 3)
}

func connectingWall(groups ...[4]string) content.ConnectingWall {
	var w content.ConnectingWall
	for i, g := range groups {
		w[i] = questionWithElements("group", g[0], g[1], g[2], g[3])
	}
	return w
}

// Scenario 3: connecting wall auto-reveal once strikes are exhausted.
func TestConnectingWallAutoReveal(t *testing.T) {
	teams := oneTeam()
	wallA := connectingWall(
		[4]string{"a1", "a2", "a3", "a4"},
		[4]string{"b1", "b2", "b3", "b4"},
		[4]string{"c1", "c2", "c3", "c4"},
		[4]string{"d1", "d2", "d3", "d4"},
	)
	wallB := connectingWall(
		[4]string{"e1", "e2", "e3", "e4"},
		[4]string{"f1", "f2", "f3", "f4"},
		[4]string{"g1", "g2", "g3", "g4"},
		[4]string{"h1", "h2", "h3", "h4"},
	)
	s := NewConnectingWallState(teams, content.WallPair{wallA, wallB})

	require.True(t, s.Do(ActionNextQuestion)) // -> QUESTION_SELECTION
	require.True(t, s.Do(ActionSelectLion))    // -> QUESTION_ACTIVE

	noop := func() {}

	// Solve two groups correctly.
	for _, word := range []string{"a1", "a2", "a3", "a4"} {
		s.Toggle(word, noop)
	}
	for _, word := range []string{"b1", "b2", "b3", "b4"} {
		s.Toggle(word, noop)
	}
	require.Len(t, s.activeWall.ungrouped, 8)
	require.NotNil(t, s.activeWall.strikes)
	assert.Equal(t, 3, *s.activeWall.strikes)

	// Three incorrect 4-selections exhaust strikes.
	wrong := [][4]string{
		{"c1", "c2", "c3", "d1"},
		{"c1", "c2", "d1", "d2"},
		{"c1", "d1", "c2", "d2"},
	}
	for _, combo := range wrong {
		for _, word := range combo {
			s.Toggle(word, noop)
		}
	}

	assert.Equal(t, SubLockedIn, s.state)
	assert.Len(t, s.activeWall.notFound, 8)
	assert.Equal(t, 2, teams[0].Score)
}

// Scenario 4: missing-vowels advance sequence over a single 3-pair group.
func TestMissingVowelsAdvanceSequence(t *testing.T) {
	teams := oneTeam()
	group := content.VowelGroup{
		Connection: "capitals",
		Pairs: []content.VowelPair{
			{Answer: "LONDON", Prompt: content.GeneratePrompt("LONDON")},
			{Answer: "PARIS", Prompt: content.GeneratePrompt("PARIS")},
			{Answer: "BERLIN", Prompt: content.GeneratePrompt("BERLIN")},
		},
	}
	s := NewMissingVowelsState(teams, []content.VowelGroup{group})

	require.True(t, s.Do(ActionNextQuestion))
	assert.Equal(t, SubQuestionActive, s.state)

	require.True(t, s.Do(ActionScoreTeam1))
	assert.Equal(t, SubAnswerRevealed, s.state)
	assert.Equal(t, 1, teams[0].Score)

	require.True(t, s.Do(ActionNextQuestion))
	assert.Equal(t, SubQuestionActive, s.state)

	require.True(t, s.Do(ActionScoreIncorrect))
	assert.Equal(t, SubAnswerRevealed, s.state)
	assert.Equal(t, 1, teams[0].Score)

	require.True(t, s.Do(ActionNextQuestion))
	assert.Equal(t, SubQuestionActive, s.state)

	require.True(t, s.Do(ActionScoreTeam1))
	assert.Equal(t, SubAnswerRevealed, s.state)
	assert.Equal(t, 2, teams[0].Score)

	require.True(t, s.Do(ActionNextQuestion))
	assert.Equal(t, SubPostRound, s.state)
}

func TestStandardRoundPossibleActionsNeverOffersOutOfStateAction(t *testing.T) {
	teams := twoTeams()
	s := NewStandardRoundState(teams, false, sixQuestions())

	allStates := []SubState{SubPreRound, SubQuestionSelection, SubQuestionActive, SubLockedIn, SubStealing, SubAnswerRevealed, SubPostRound}
	for _, st := range allStates {
		s.state = st
		actions := s.PossibleActions()
		for a := range actions {
			switch st {
			case SubQuestionSelection:
				t.Fatalf("QUESTION_SELECTION should offer no possible_actions, got %v", a)
			case SubPostRound:
				assert.Equal(t, ActionStartNextRound, a)
			}
		}
	}
}

func TestPostRoundOnlyStartNextRoundChangesState(t *testing.T) {
	teams := oneTeam()
	s := NewStandardRoundState(teams, false, sixQuestions())
	s.state = SubPostRound

	for _, a := range []Action{ActionNextQuestion, ActionNextClue, ActionLockIn, ActionScoreTeam1, ActionScoreIncorrect} {
		assert.False(t, s.Do(a))
		assert.Equal(t, SubPostRound, s.state)
	}
}

func TestScoreLadderByRevealedClues(t *testing.T) {
	for revealed, want := range map[int]int{1: 5, 2: 3, 3: 2, 4: 1} {
		teams := oneTeam()
		s := NewStandardRoundState(teams, false, sixQuestions())
		s.state = SubLockedIn
		s.revealedClues = revealed
		require.True(t, s.Do(ActionScoreTeam1))
		assert.Equal(t, want, teams[0].Score)
	}
}

func TestConnectingWallGroupedPlusUngroupedPlusNotFoundIsSixteen(t *testing.T) {
	wallA := connectingWall(
		[4]string{"a1", "a2", "a3", "a4"},
		[4]string{"b1", "b2", "b3", "b4"},
		[4]string{"c1", "c2", "c3", "c4"},
		[4]string{"d1", "d2", "d3", "d4"},
	)
	w := newActiveWall(wallA)
	noop := func() {}
	for _, word := range []string{"a1", "a2", "a3", "a4"} {
		w.Toggle(word, noop)
	}
	total := len(w.grouped) + len(w.ungrouped) + len(w.notFound)
	assert.Equal(t, 16, total)
	w.revealWall()
	total = len(w.grouped) + len(w.ungrouped) + len(w.notFound)
	assert.Equal(t, 16, total)
}

func TestControllerSkipsRoundsWithoutOfferableContent(t *testing.T) {
	teams := oneTeam()
	ep := content.Content{} // nothing offerable at all
	c := NewController(ep, teams)

	reached := c.NextRound()
	assert.False(t, reached)
	assert.Equal(t, RoundPostGame, c.Round())
}

func TestControllerInstallsFirstOfferableRound(t *testing.T) {
	teams := oneTeam()
	completions := sixQuestions()
	ep := content.Content{CompletionsRound: &completions}
	c := NewController(ep, teams)

	reached := c.NextRound()
	require.True(t, reached)
	assert.Equal(t, RoundCompletions, c.Round())
	require.NotNil(t, c.Handler())
}
