package model

import (
	"fmt"
	"strings"
)

// Span is a half-open byte range [Start, End) in the document text
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one byte
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// ClaimMarker binds one atomic statement to a location inside a declared source.
// Markers are immutable once parsed.
type ClaimMarker struct {
	ID         string `json:"id"`          // "C{n}"
	Number     int    `json:"-"`           // numeric part of ID, used for monotonicity checks
	HashPrefix string `json:"hash_prefix"` // 8-10 lowercase hex chars
	Location   string `json:"location"`    // opaque structural selector
	Span       Span   `json:"span"`        // marker text in the document
	Text       string `json:"text"`        // asserted claim text preceding the marker
	TextSpan   Span   `json:"text_span"`   // where Text was taken from
}

// RelationType is the kind of synthesis a relationship asserts
type RelationType string

const (
	RelationCausal     RelationType = "CAUSAL"
	RelationInference  RelationType = "INFERENCE"
	RelationSummary    RelationType = "SUMMARY"
	RelationComparison RelationType = "COMPARISON"
	RelationPrediction RelationType = "PREDICTION"
)

// RelationTypes lists all valid relation types in canonical order
var RelationTypes = []RelationType{
	RelationCausal,
	RelationInference,
	RelationSummary,
	RelationComparison,
	RelationPrediction,
}

// ParseRelationType returns the canonical type for s, or false if unknown
func ParseRelationType(s string) (RelationType, bool) {
	for _, t := range RelationTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// RelationshipMarker binds a synthesized statement to its premise claims
type RelationshipMarker struct {
	ID        string       `json:"id"` // "R{n}"
	Number    int          `json:"-"`
	Type      RelationType `json:"type"`
	DependsOn []string     `json:"depends_on"` // ordered, non-empty, no duplicates
	Span      Span         `json:"span"`
}

// Markers is the ordered output of the marker parser
type Markers struct {
	Claims        []ClaimMarker
	Relationships []RelationshipMarker
}

// Claim returns the claim with the given id
func (m *Markers) Claim(id string) (ClaimMarker, bool) {
	for _, c := range m.Claims {
		if c.ID == id {
			return c, true
		}
	}
	return ClaimMarker{}, false
}

// Len returns the total number of markers
func (m *Markers) Len() int {
	return len(m.Claims) + len(m.Relationships)
}
