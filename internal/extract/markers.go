package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

var (
	claimIDPattern    = regexp.MustCompile(`^C(\d+)$`)
	relationIDPattern = regexp.MustCompile(`^R(\d+)$`)
	hashPrefixPattern = regexp.MustCompile(`^[0-9A-Fa-f]{8,10}$`)
	depIDPattern      = regexp.MustCompile(`^[A-Za-z]+\d+$`)
)

// Document is a parsed audit input: markers, sentence layout and the
// optional embedded registry block
type Document struct {
	Text      string
	Markers   *model.Markers
	Sentences []model.Span
	Block     *Block // nil when the document carries no ACG block
}

// Body returns the span of the text that excludes the embedded block
func (d *Document) Body() model.Span {
	if d.Block == nil {
		return model.Span{Start: 0, End: len(d.Text)}
	}
	return model.Span{Start: 0, End: d.Block.Span.Start}
}

// MarkerSpans returns the spans of all markers in document order
func (d *Document) MarkerSpans() []model.Span {
	spans := make([]model.Span, 0, d.Markers.Len())
	for _, c := range d.Markers.Claims {
		spans = append(spans, c.Span)
	}
	for _, r := range d.Markers.Relationships {
		spans = append(spans, r.Span)
	}
	sortSpans(spans)
	return spans
}

// SentenceAt returns the sentence containing byte offset pos
func (d *Document) SentenceAt(pos int) (model.Span, bool) {
	for _, s := range d.Sentences {
		if pos >= s.Start && pos < s.End {
			return s, true
		}
	}
	return model.Span{}, false
}

// Analyze extracts the Claim and Relationship Markers of text, segments
// sentences and attaches the asserted text of every claim. It is pure and
// idempotent.
func Analyze(text string) (*Document, error) {
	block := FindBlock(text)

	body := len(text)
	if block != nil {
		body = block.Span.Start
	}

	markers, err := scanMarkers(text[:body])
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Text:    text,
		Markers: markers,
		Block:   block,
	}
	doc.Sentences = Sentences(text, model.Span{Start: 0, End: body}, doc.MarkerSpans())
	attachClaimText(doc)

	return doc, nil
}

// scanMarkers walks the text once, tracking the last id seen per namespace
func scanMarkers(text string) (*model.Markers, error) {
	markers := &model.Markers{}
	lastClaim, lastRelation := 0, 0

	for i := 0; i < len(text); i++ {
		switch {
		case isMarkerStart(text, i, '[', 'C'):
			end, ok := findClose(text, i, ']')
			span := model.Span{Start: i, End: end}
			if !ok {
				return nil, model.NewStructuralError(model.ErrMalformedMarker, "", &span, "unterminated claim marker %q", text[i:end])
			}
			claim, err := parseClaim(text[i+1:end-1], span)
			if err != nil {
				return nil, err
			}
			if claim.Number <= lastClaim {
				return nil, model.NewStructuralError(model.ErrNonMonotonicID, claim.ID, &span, "follows C%d", lastClaim)
			}
			lastClaim = claim.Number
			markers.Claims = append(markers.Claims, claim)
			i = end - 1

		case isMarkerStart(text, i, '(', 'R'):
			end, ok := findClose(text, i, ')')
			span := model.Span{Start: i, End: end}
			if !ok {
				return nil, model.NewStructuralError(model.ErrMalformedMarker, "", &span, "unterminated relationship marker %q", text[i:end])
			}
			rel, err := parseRelationship(text[i+1:end-1], span)
			if err != nil {
				return nil, err
			}
			if rel.Number <= lastRelation {
				return nil, model.NewStructuralError(model.ErrNonMonotonicID, rel.ID, &span, "follows R%d", lastRelation)
			}
			lastRelation = rel.Number
			markers.Relationships = append(markers.Relationships, rel)
			i = end - 1
		}
	}

	return markers, nil
}

// isMarkerStart matches "[C<digits>:" or "(R<digits>:" at position i. Prose
// such as "(R2 = 0.93)" or "[C4 cells]" is not a marker.
func isMarkerStart(text string, i int, open, letter byte) bool {
	if i+2 >= len(text) || text[i] != open || text[i+1] != letter {
		return false
	}
	j := i + 2
	for j < len(text) && text[j] >= '0' && text[j] <= '9' {
		j++
	}
	return j > i+2 && j < len(text) && text[j] == ':'
}

// findClose returns the offset just past the closing delimiter. A marker
// never spans lines; on failure the returned offset is the end of the line.
func findClose(text string, start int, closer byte) (int, bool) {
	for j := start + 1; j < len(text); j++ {
		switch text[j] {
		case closer:
			return j + 1, true
		case '\n':
			return j, false
		}
	}
	return len(text), false
}

func parseClaim(inner string, span model.Span) (model.ClaimMarker, error) {
	parts := strings.SplitN(inner, ":", 3)
	if len(parts) != 3 {
		return model.ClaimMarker{}, model.NewStructuralError(model.ErrMalformedMarker, "", &span, "claim marker needs id, hash prefix and selector")
	}

	id := strings.TrimSpace(parts[0])
	m := claimIDPattern.FindStringSubmatch(id)
	if m == nil {
		return model.ClaimMarker{}, model.NewStructuralError(model.ErrMalformedMarker, id, &span, "invalid claim id")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return model.ClaimMarker{}, model.NewStructuralError(model.ErrMalformedMarker, id, &span, "claim number out of range")
	}

	prefix := strings.TrimSpace(parts[1])
	if !hashPrefixPattern.MatchString(prefix) {
		return model.ClaimMarker{}, model.NewStructuralError(model.ErrMalformedMarker, id, &span, "hash prefix %q must be 8-10 hex characters", prefix)
	}

	selector := strings.TrimSpace(parts[2])
	if selector == "" {
		return model.ClaimMarker{}, model.NewStructuralError(model.ErrMalformedMarker, id, &span, "empty location selector")
	}

	return model.ClaimMarker{
		ID:         id,
		Number:     n,
		HashPrefix: strings.ToLower(prefix),
		Location:   selector,
		Span:       span,
	}, nil
}

func parseRelationship(inner string, span model.Span) (model.RelationshipMarker, error) {
	parts := strings.SplitN(inner, ":", 3)
	if len(parts) != 3 {
		return model.RelationshipMarker{}, model.NewStructuralError(model.ErrMalformedMarker, "", &span, "relationship marker needs id, type and dependencies")
	}

	id := strings.TrimSpace(parts[0])
	m := relationIDPattern.FindStringSubmatch(id)
	if m == nil {
		return model.RelationshipMarker{}, model.NewStructuralError(model.ErrMalformedMarker, id, &span, "invalid relationship id")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return model.RelationshipMarker{}, model.NewStructuralError(model.ErrMalformedMarker, id, &span, "relationship number out of range")
	}

	typeToken := strings.TrimSpace(parts[1])
	relType, ok := model.ParseRelationType(typeToken)
	if !ok {
		return model.RelationshipMarker{}, model.NewStructuralError(model.ErrUnknownRelationType, id, &span, "%q", typeToken)
	}

	var deps []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(parts[2], ",") {
		dep := strings.TrimSpace(raw)
		if !depIDPattern.MatchString(dep) {
			return model.RelationshipMarker{}, model.NewStructuralError(model.ErrMalformedMarker, id, &span, "invalid dependency id %q", dep)
		}
		if seen[dep] {
			return model.RelationshipMarker{}, model.NewStructuralError(model.ErrMalformedMarker, id, &span, "duplicate dependency %s", dep)
		}
		seen[dep] = true
		deps = append(deps, dep)
	}

	return model.RelationshipMarker{
		ID:        id,
		Number:    n,
		Type:      relType,
		DependsOn: deps,
		Span:      span,
	}, nil
}

// attachClaimText sets the asserted text of each claim: the text before the
// marker, bounded by its sentence start and the end of the previous marker.
// Consecutive claim markers with nothing between them share the assertion.
func attachClaimText(doc *Document) {
	spans := doc.MarkerSpans()
	var prevClaim *model.ClaimMarker

	for i := range doc.Markers.Claims {
		c := &doc.Markers.Claims[i]

		lower := 0
		if sentence, ok := doc.SentenceAt(c.Span.Start); ok {
			lower = sentence.Start
		}
		for _, s := range spans {
			if s.End <= c.Span.Start && s.End > lower {
				lower = s.End
			}
		}

		raw := doc.Text[lower:c.Span.Start]
		text := strings.TrimSpace(raw)
		if text == "" && prevClaim != nil && sameSentence(doc, prevClaim.Span.Start, c.Span.Start) {
			c.Text = prevClaim.Text
			c.TextSpan = prevClaim.TextSpan
		} else {
			lead := len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
			c.Text = text
			c.TextSpan = model.Span{Start: lower + lead, End: lower + lead + len(text)}
		}
		prevClaim = c
	}
}

func sameSentence(doc *Document, a, b int) bool {
	sa, okA := doc.SentenceAt(a)
	sb, okB := doc.SentenceAt(b)
	return okA && okB && sa == sb
}
