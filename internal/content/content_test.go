package content

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion(connection string) Question {
	q := DefaultQuestion()
	q.Connection = connection
	for i := range q.Elements {
		q.Elements[i] = NewTextElement("clue")
	}
	return q
}

func validSixQuestions() SixQuestions {
	var s SixQuestions
	for i := range s {
		s[i] = validQuestion("connection")
	}
	return s
}

func validWall() ConnectingWall {
	var w ConnectingWall
	for i := range w {
		w[i] = validQuestion("group")
	}
	return w
}

func TestQuestionValidity(t *testing.T) {
	q := validQuestion("answer")
	assert.True(t, q.Valid())

	q.Connection = ""
	assert.False(t, q.Valid())

	q = validQuestion("answer")
	q.Elements[2] = NewTextElement("")
	assert.False(t, q.Valid())

	q = validQuestion("answer")
	q.Elements[2] = NewMediaElement("")
	assert.False(t, q.Valid())

	q = validQuestion("answer")
	q.Elements[2] = NewMediaElement("deadbeef")
	assert.True(t, q.Valid())
}

func TestSixQuestionsValidity(t *testing.T) {
	s := validSixQuestions()
	assert.True(t, s.Valid())

	s[3].Connection = ""
	assert.False(t, s.Valid())
}

func TestConnectingWallValidityAndClues(t *testing.T) {
	w := validWall()
	assert.True(t, w.Valid())

	clues := w.Clues()
	assert.Len(t, clues, 16)

	w[1].Elements[0] = NewTextElement("")
	assert.False(t, w.Valid())
}

func TestContentRoundTrip(t *testing.T) {
	s := validSixQuestions()
	wall := WallPair{validWall(), validWall()}
	c := Content{
		ConnectionsRound: &s,
		ConnectingWalls:  &wall,
		MissingVowels: []VowelGroup{
			{Connection: "capitals", Pairs: []VowelPair{{Answer: "LONDON", Prompt: GeneratePrompt("LONDON")}}},
		},
	}

	serialised, err := c.Serialise()
	require.NoError(t, err)

	parsed, err := ParseContent(serialised)
	require.NoError(t, err)

	require.NotNil(t, parsed.ConnectionsRound)
	assert.Equal(t, *c.ConnectionsRound, *parsed.ConnectionsRound)
	assert.Nil(t, parsed.CompletionsRound)
	require.NotNil(t, parsed.ConnectingWalls)
	assert.Equal(t, *c.ConnectingWalls, *parsed.ConnectingWalls)
	require.Len(t, parsed.MissingVowels, 1)
	assert.True(t, parsed.MissingVowels[0].Valid())
}

func TestParseContentRejectsWrongShapeSection(t *testing.T) {
	// connections has 5 questions instead of 6: that section alone is rejected,
	// the rest of the document still parses.
	blob := `{"connections": [{"question_type":"text","connection":"a","details":"","elements":[{"kind":"text","text":"1"},{"kind":"text","text":"2"},{"kind":"text","text":"3"},{"kind":"text","text":"4"}]}], "completions": null, "connecting_walls": null, "missing_vowels": null}`

	c, err := ParseContent(blob)
	require.NoError(t, err)
	assert.Nil(t, c.ConnectionsRound)
}

func TestMissingSectionTreatedAsDisabled(t *testing.T) {
	c, err := ParseContent(`{"connections": null, "completions": null, "connecting_walls": null, "missing_vowels": null}`)
	require.NoError(t, err)
	assert.Nil(t, c.ConnectionsRound)
	assert.Nil(t, c.CompletionsRound)
	assert.Nil(t, c.ConnectingWalls)
	assert.Nil(t, c.MissingVowels)
}

func TestConnectingWallsOfferable(t *testing.T) {
	valid := validWall()
	var invalid ConnectingWall
	for i := range invalid {
		invalid[i] = DefaultQuestion()
	}

	c := Content{ConnectingWalls: &WallPair{valid, invalid}}
	assert.True(t, c.ConnectingWallsOfferable(1))
	assert.False(t, c.ConnectingWallsOfferable(2))

	c.ConnectingWalls[1] = valid
	assert.True(t, c.ConnectingWallsOfferable(2))
}

func TestMissingVowelsOfferable(t *testing.T) {
	c := Content{}
	assert.False(t, c.MissingVowelsOfferable())

	c.MissingVowels = []VowelGroup{{Connection: "x", Pairs: []VowelPair{{Answer: "CAT", Prompt: "not valid"}}}}
	assert.False(t, c.MissingVowelsOfferable())

	c.MissingVowels[0].Pairs[0].Prompt = GeneratePrompt("CAT")
	assert.True(t, c.MissingVowelsOfferable())
}

func TestGeneratePromptRoundTripsThroughCheckValid(t *testing.T) {
	for _, answer := range []string{"LONDON", "NEW YORK", "a", "THE QUICK BROWN FOX"} {
		prompt := GeneratePrompt(answer)
		assert.True(t, CheckValid(prompt, answer), "answer=%q prompt=%q", answer, prompt)
	}
}

func TestRegexpMatchesGeneratedPrompt(t *testing.T) {
	for _, answer := range []string{"LONDON", "NEW YORK", "PARIS"} {
		prompt := GeneratePrompt(answer)
		re, err := regexp.Compile(Regexp(answer))
		require.NoError(t, err)
		assert.True(t, re.MatchString(prompt), "answer=%q prompt=%q pattern=%q", answer, prompt, Regexp(answer))
	}
}

func TestCheckValidRejectsMismatch(t *testing.T) {
	assert.False(t, CheckValid("LNDN", "PARIS"))
	assert.False(t, CheckValid("", "LONDON"))
	assert.False(t, CheckValid("LNDN", ""))
}
