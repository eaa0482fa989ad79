package content

import (
	"encoding/json"
	"fmt"
)

// SlotsPerConnection is the fixed number of clue elements in every Question.
const SlotsPerConnection = 4

// QuestionsPerRound is the fixed number of Questions in a Connections or
// Completions round.
const QuestionsPerRound = 6

// QuestionType marks whether a Question's clues are meant to be read or
// viewed; it is independent of whether any individual clue is a media
// reference (a text-type question can still embed a media clue element).
type QuestionType string

const (
	QuestionText  QuestionType = "text"
	QuestionMedia QuestionType = "media"
)

// Question is one Connections/Completions/Wall cell: a hidden connection,
// host-only details, and exactly four clue elements.
type Question struct {
	Type       QuestionType
	Connection string
	Details    string
	Elements   [SlotsPerConnection]Element
}

// DefaultQuestion returns a blank, invalid Question suitable as CMS scaffolding.
func DefaultQuestion() Question {
	return Question{Type: QuestionText}
}

// Valid reports whether the Question is playable: a non-empty connection and
// four non-empty clues.
func (q Question) Valid() bool {
	if q.Connection == "" {
		return false
	}
	for _, e := range q.Elements {
		if e.Empty() {
			return false
		}
	}
	return true
}

type questionWire struct {
	QuestionType string    `json:"question_type"`
	Connection   string    `json:"connection"`
	Details      string    `json:"details"`
	Elements     []Element `json:"elements"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	w := questionWire{
		QuestionType: string(q.Type),
		Connection:   q.Connection,
		Details:      q.Details,
		Elements:     q.Elements[:],
	}
	if w.QuestionType == "" {
		w.QuestionType = string(QuestionText)
	}
	return json.Marshal(w)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("content: decode question: %w", err)
	}
	if len(w.Elements) != SlotsPerConnection {
		return fmt.Errorf("content: question has %d elements, want %d", len(w.Elements), SlotsPerConnection)
	}
	qt := QuestionType(w.QuestionType)
	if qt != QuestionText && qt != QuestionMedia {
		qt = QuestionText
	}
	*q = Question{Type: qt, Connection: w.Connection, Details: w.Details}
	copy(q.Elements[:], w.Elements)
	return nil
}

// SixQuestions is the fixed six-question content of a Connections or
// Completions round.
type SixQuestions [QuestionsPerRound]Question

// DefaultSixQuestions returns six blank, invalid Questions.
func DefaultSixQuestions() SixQuestions {
	var qs SixQuestions
	for i := range qs {
		qs[i] = DefaultQuestion()
	}
	return qs
}

// Valid reports whether every Question in the round is valid.
func (s SixQuestions) Valid() bool {
	for _, q := range s {
		if !q.Valid() {
			return false
		}
	}
	return true
}

func decodeSixQuestions(data []byte) (*SixQuestions, error) {
	var qs []Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("content: decode six-question round: %w", err)
	}
	if len(qs) != QuestionsPerRound {
		return nil, fmt.Errorf("content: round has %d questions, want %d", len(qs), QuestionsPerRound)
	}
	var out SixQuestions
	copy(out[:], qs)
	return &out, nil
}

// ConnectingWall is a 4-question (16-clue) grid to be grouped during play.
type ConnectingWall [SlotsPerConnection]Question

// DefaultConnectingWall returns four blank, invalid Questions.
func DefaultConnectingWall() ConnectingWall {
	var w ConnectingWall
	for i := range w {
		w[i] = DefaultQuestion()
	}
	return w
}

// Valid reports whether every group on the wall is valid.
func (w ConnectingWall) Valid() bool {
	for _, q := range w {
		if !q.Valid() {
			return false
		}
	}
	return true
}

// Clues flattens the wall's 4 groups of 4 into the 16 clue elements to be
// shuffled and displayed during play.
func (w ConnectingWall) Clues() [16]Element {
	var out [16]Element
	for gi, q := range w {
		for ei, e := range q.Elements {
			out[gi*SlotsPerConnection+ei] = e
		}
	}
	return out
}

func decodeConnectingWall(data []byte) (*ConnectingWall, error) {
	var qs []Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("content: decode wall: %w", err)
	}
	if len(qs) != SlotsPerConnection {
		return nil, fmt.Errorf("content: wall has %d groups, want %d", len(qs), SlotsPerConnection)
	}
	var out ConnectingWall
	copy(out[:], qs)
	return &out, nil
}
