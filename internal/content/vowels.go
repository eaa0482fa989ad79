package content

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

// VowelPair is one answer and the prompt derived from it by stripping spaces
// and vowels.
type VowelPair struct {
	Answer string
	Prompt string
}

// Valid reports whether Prompt is genuinely derivable from Answer per
// CheckValid.
func (p VowelPair) Valid() bool {
	return CheckValid(p.Prompt, p.Answer)
}

// VowelGroup is a connection and its ordered list of answer/prompt pairs.
type VowelGroup struct {
	Connection string
	Pairs      []VowelPair
}

// Valid reports whether at least one pair in the group is genuinely derived
// from its answer.
func (g VowelGroup) Valid() bool {
	return len(g.ValidPairs()) > 0
}

// ValidPairs returns the subset of Pairs that are genuinely derived from
// their answer, in order. A round only ever plays these: CMS scaffolding
// rows left with a placeholder prompt are skipped rather than shown.
func (g VowelGroup) ValidPairs() []VowelPair {
	var out []VowelPair
	for _, p := range g.Pairs {
		if p.Valid() {
			out = append(out, p)
		}
	}
	return out
}

type vowelPairWire struct {
	Answer string `json:"answer"`
	Prompt string `json:"prompt"`
}

type vowelGroupWire struct {
	Connection string          `json:"connection"`
	Words      []vowelPairWire `json:"words"`
}

func (g VowelGroup) MarshalJSON() ([]byte, error) {
	w := vowelGroupWire{Connection: g.Connection}
	for _, p := range g.Pairs {
		w.Words = append(w.Words, vowelPairWire{Answer: p.Answer, Prompt: p.Prompt})
	}
	return json.Marshal(w)
}

func (g *VowelGroup) UnmarshalJSON(data []byte) error {
	var w vowelGroupWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("content: decode missing-vowels group: %w", err)
	}
	*g = VowelGroup{Connection: w.Connection}
	for _, p := range w.Words {
		g.Pairs = append(g.Pairs, VowelPair{Answer: p.Answer, Prompt: p.Prompt})
	}
	return nil
}

const vowels = "AEIOU"

func isVowel(r rune) bool {
	return strings.ContainsRune(vowels, r)
}

// stripped uppercases s and removes every space and vowel, leaving only the
// consonant skeleton used to compare a prompt against its answer.
func stripped(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if r == ' ' || isVowel(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func withoutSpaces(s string) string {
	return strings.ReplaceAll(strings.ToUpper(s), " ", "")
}

// GeneratePrompt derives the displayed, vowel-stripped prompt for an answer:
// uppercase, spaces and vowels removed, then re-spaced at a random stride of
// 2-6 characters so the puzzle does not visually mirror the answer's own
// word breaks.
func GeneratePrompt(answer string) string {
	skeleton := stripped(answer)
	if skeleton == "" {
		return ""
	}

	var b strings.Builder
	remaining := skeleton
	first := true
	for len(remaining) > 0 {
		stride := 2 + rand.Intn(5) // 2..6 inclusive
		if stride > len(remaining) {
			stride = len(remaining)
		}
		if !first {
			b.WriteByte(' ')
		}
		b.WriteString(remaining[:stride])
		remaining = remaining[stride:]
		first = false
	}
	return b.String()
}

// CheckValid reports whether prompt is a legitimate vowel-stripped rendering
// of answer: stripping spaces, vowels, and case from answer must equal
// stripping spaces and case from prompt. An empty answer is never valid; an
// all-vowel answer such as "a" is valid only with an empty prompt.
func CheckValid(prompt, answer string) bool {
	if answer == "" {
		return false
	}
	return withoutSpaces(prompt) == stripped(answer)
}

// Regexp builds a human-typable pattern that matches any re-spacing of
// answer's consonant skeleton, for client-side input validation.
func Regexp(answer string) string {
	skeleton := stripped(answer)
	if skeleton == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("(?i)^[AEIOU ]*")
	for _, r := range skeleton {
		b.WriteString(regexpQuote(r))
		b.WriteString("[AEIOU ]*")
	}
	b.WriteString("$")
	return b.String()
}

func regexpQuote(r rune) string {
	switch r {
	case '.', '+', '*', '?', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
		return "\\" + string(r)
	default:
		return string(r)
	}
}
