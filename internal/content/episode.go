package content

import (
	"bytes"
	"encoding/json"
	"time"
)

// EpisodeState is the lifecycle state of one version of an episode.
type EpisodeState string

const (
	StateDraft         EpisodeState = "DRAFT"
	StatePendingReview EpisodeState = "PENDING_REVIEW"
	StatePublished     EpisodeState = "PUBLISHED"
	StateSuperseded    EpisodeState = "SUPERSEDED"
	StateDiscarded     EpisodeState = "DISCARDED"
)

// Terminal reports whether state never triggers further demotions of sibling
// versions (see Engine.SaveState).
func (s EpisodeState) Terminal() bool {
	return s == StateDiscarded || s == StateSuperseded
}

// VersionInfo is one row of an episode's per-version lifecycle history.
type VersionInfo struct {
	State   EpisodeState
	Updated time.Time
}

// EpisodeMeta is the summary row used for dashboard-style listings: ownership
// and lifecycle, without the (potentially large) content payload. Recovered
// from original_source's engine.get_episode_meta/list_user_episodes, which
// spec.md's "list a user's episodes grouped" operation needs but the
// distillation left implicit.
type EpisodeMeta struct {
	ID          int64
	EngineIdent string
	UserID      int64
	Title       string
	Description string
	Versions    map[int]VersionInfo
}

// WallPair is the two Walls of a connecting-walls round, one per team.
type WallPair [2]ConnectingWall

// Content is the Only-Connect round content tree stored as the `data` column
// of an EpisodeVersion row. All four sections are optional; a nil section is
// a disabled round.
type Content struct {
	ConnectionsRound *SixQuestions
	CompletionsRound *SixQuestions
	ConnectingWalls  *WallPair
	MissingVowels    []VowelGroup
}

// ConnectingWallsOfferable reports whether the connecting-walls round can be
// started given the active team count, per spec.md §3: offerable iff wall 0
// is valid in single-team mode, or both walls are valid in two-team mode.
func (c Content) ConnectingWallsOfferable(teams int) bool {
	if c.ConnectingWalls == nil {
		return false
	}
	if teams <= 1 {
		return c.ConnectingWalls[0].Valid()
	}
	return c.ConnectingWalls[0].Valid() && c.ConnectingWalls[1].Valid()
}

// MissingVowelsOfferable reports whether at least one group has at least one
// valid pair.
func (c Content) MissingVowelsOfferable() bool {
	for _, g := range c.MissingVowels {
		if g.Valid() {
			return true
		}
	}
	return false
}

type contentWire struct {
	Connections     json.RawMessage `json:"connections"`
	Completions     json.RawMessage `json:"completions"`
	ConnectingWalls json.RawMessage `json:"connecting_walls"`
	MissingVowels   json.RawMessage `json:"missing_vowels"`
}

// Json produces the canonical tree suitable for durable storage, mirroring
// OnlyConnectEpisode.json() in the original engine.
func (c Content) Json() map[string]any {
	out := map[string]any{
		"connections":      nil,
		"completions":      nil,
		"connecting_walls": nil,
		"missing_vowels":   nil,
	}
	if c.ConnectionsRound != nil {
		out["connections"] = c.ConnectionsRound
	}
	if c.CompletionsRound != nil {
		out["completions"] = c.CompletionsRound
	}
	if c.ConnectingWalls != nil {
		out["connecting_walls"] = c.ConnectingWalls
	}
	if c.MissingVowels != nil {
		out["missing_vowels"] = c.MissingVowels
	}
	return out
}

// Serialise renders Json() as compact UTF-8 text, the form written to the
// EpisodeVersion.data column.
func (c Content) Serialise() (string, error) {
	data, err := json.Marshal(c.Json())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isNullOrEmpty(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// ParseContent rebuilds a Content tree from a serialised blob. Missing
// sections are treated as disabled. A section present but with the wrong
// shape (wrong question count, wrong element count) is rejected individually
// -- the remainder of the document still parses, per spec.md §4.A.
func ParseContent(data string) (Content, error) {
	var raw contentWire
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return Content{}, err
	}

	var c Content

	if !isNullOrEmpty(raw.Connections) {
		if qs, err := decodeSixQuestions(raw.Connections); err == nil {
			c.ConnectionsRound = qs
		}
	}
	if !isNullOrEmpty(raw.Completions) {
		if qs, err := decodeSixQuestions(raw.Completions); err == nil {
			c.CompletionsRound = qs
		}
	}
	if !isNullOrEmpty(raw.ConnectingWalls) {
		var walls []json.RawMessage
		if err := json.Unmarshal(raw.ConnectingWalls, &walls); err == nil && len(walls) == 2 {
			w0, err0 := decodeConnectingWall(walls[0])
			w1, err1 := decodeConnectingWall(walls[1])
			if err0 == nil && err1 == nil {
				c.ConnectingWalls = &WallPair{*w0, *w1}
			}
		}
	}
	if !isNullOrEmpty(raw.MissingVowels) {
		var groups []VowelGroup
		if err := json.Unmarshal(raw.MissingVowels, &groups); err == nil {
			c.MissingVowels = groups
		}
	}

	return c, nil
}
