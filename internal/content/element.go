// Package content implements the Only-Connect episode content tree: typed
// questions, clue elements, missing-vowels groups, JSON round-trip, and the
// validity predicates that decide which rounds a room may offer.
package content

import (
	"encoding/json"
	"fmt"
)

// ElementKind tags a clue as plain text or a reference to an uploaded blob.
type ElementKind string

const (
	ElementText  ElementKind = "text"
	ElementMedia ElementKind = "media"
)

// Element is a single clue cell: either a literal string or a blob reference.
// It is a tagged variant rather than a stringly-typed field so the two kinds
// can never be confused on the wire.
type Element struct {
	Kind   ElementKind
	Text   string
	BlobID string
}

// NewTextElement builds a text clue.
func NewTextElement(text string) Element {
	return Element{Kind: ElementText, Text: text}
}

// NewMediaElement builds a clue referencing an uploaded blob by its hex sha256.
func NewMediaElement(blobID string) Element {
	return Element{Kind: ElementMedia, BlobID: blobID}
}

// Empty reports whether the clue carries no content, regardless of kind.
func (e Element) Empty() bool {
	switch e.Kind {
	case ElementMedia:
		return e.BlobID == ""
	default:
		return e.Text == ""
	}
}

type elementWire struct {
	Kind   ElementKind `json:"kind"`
	Text   string      `json:"text,omitempty"`
	BlobID string      `json:"blob_id,omitempty"`
}

func (e Element) MarshalJSON() ([]byte, error) {
	w := elementWire{Kind: e.Kind}
	switch e.Kind {
	case ElementMedia:
		w.BlobID = e.BlobID
	default:
		w.Kind = ElementText
		w.Text = e.Text
	}
	return json.Marshal(w)
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var w elementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("content: decode element: %w", err)
	}
	switch w.Kind {
	case ElementMedia:
		*e = Element{Kind: ElementMedia, BlobID: w.BlobID}
	case ElementText, "":
		*e = Element{Kind: ElementText, Text: w.Text}
	default:
		return fmt.Errorf("content: unknown element kind %q", w.Kind)
	}
	return nil
}
