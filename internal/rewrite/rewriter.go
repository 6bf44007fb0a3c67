// Package rewrite produces the audited document: sentences governed by a
// failed marker are removed or flagged, everything else is kept verbatim.
package rewrite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
)

// Mode selects what happens to a failed sentence
type Mode string

const (
	ModeRemove Mode = "remove"
	ModeFlag   Mode = "flag"
)

const flagPrefix = "[UNVERIFIED "

// Options configures a rewrite
type Options struct {
	Mode         Mode
	StripMarkers bool
	Registry     []byte // appended as an ACG block when non-nil
}

// Result is the audited text plus per-marker provenance
type Result struct {
	Text    string
	Regions []model.Region
	Actions map[string]model.RewriteAction // marker id -> action
}

type markerRef struct {
	id   string
	span model.Span
}

// Rewrite applies verdicts to doc. The output depends only on the text, the
// verdict set and the options, and rewriting the output again with the same
// verdicts leaves it unchanged.
func Rewrite(doc *extract.Document, verdicts *model.Verdicts, opts Options) *Result {
	if opts.Mode == "" {
		opts.Mode = ModeRemove
	}

	markers := markerRefs(doc)
	regions := failedRegions(doc, markers, verdicts, opts.Mode)

	actions := make(map[string]model.RewriteAction, len(markers))
	for _, m := range markers {
		actions[m.id] = model.ActionRetained
	}
	for _, r := range regions {
		for _, m := range markers {
			if r.Span.Start <= m.span.Start && m.span.End <= r.Span.End {
				actions[m.id] = r.Action
			}
		}
	}

	w := &writer{doc: doc, markers: markers, strip: opts.StripMarkers}
	w.write(regions)

	text := w.String()
	if opts.Registry != nil {
		text = extract.AppendBlock(text, opts.Registry)
	}

	return &Result{Text: text, Regions: regions, Actions: actions}
}

func markerRefs(doc *extract.Document) []markerRef {
	refs := make([]markerRef, 0, doc.Markers.Len())
	for _, c := range doc.Markers.Claims {
		refs = append(refs, markerRef{id: c.ID, span: c.Span})
	}
	for _, r := range doc.Markers.Relationships {
		refs = append(refs, markerRef{id: r.ID, span: r.Span})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].span.Start < refs[j].span.Start })
	return refs
}

// failedRegions maps every failed marker to its enclosing sentence and merges
// overlapping sentences into one region
func failedRegions(doc *extract.Document, markers []markerRef, verdicts *model.Verdicts, mode Mode) []model.Region {
	action := model.ActionRemoved
	if mode == ModeFlag {
		action = model.ActionFlagged
	}

	var regions []model.Region
	for _, m := range markers {
		if !verdicts.Failed(m.id) {
			continue
		}
		span, ok := doc.SentenceAt(m.span.Start)
		if !ok {
			span = m.span
		} else if isRelationID(m.id) {
			span = relationSpan(span, m, markers, verdicts)
		}
		reason := m.id
		if r := verdicts.Reason(m.id); r != "" {
			reason = fmt.Sprintf("%s: %s", m.id, r)
		}
		regions = append(regions, model.Region{
			Span:      span,
			MarkerIDs: []string{m.id},
			Action:    action,
			Reasons:   []string{reason},
		})
	}

	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Span.Start < regions[j].Span.Start })

	var merged []model.Region
	for _, r := range regions {
		if n := len(merged); n > 0 && merged[n-1].Span.Overlaps(r.Span) {
			last := &merged[n-1]
			if r.Span.End > last.Span.End {
				last.Span.End = r.Span.End
			}
			last.MarkerIDs = append(last.MarkerIDs, r.MarkerIDs...)
			last.Reasons = append(last.Reasons, r.Reasons...)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// relationSpan narrows a failed relationship's region when its sentence also
// carries claim markers that survive: only the text after the last such claim
// marker, up to the end of the relationship marker, goes.
func relationSpan(sentence model.Span, rel markerRef, markers []markerRef, verdicts *model.Verdicts) model.Span {
	start := sentence.Start
	kept := false
	for _, m := range markers {
		if isRelationID(m.id) || verdicts.Failed(m.id) {
			continue
		}
		if m.span.Start < sentence.Start || m.span.End > sentence.End {
			continue
		}
		kept = true
		if m.span.End <= rel.span.Start && m.span.End > start {
			start = m.span.End
		}
	}
	if !kept {
		return sentence
	}
	if start == sentence.Start {
		start = rel.span.Start
	}
	return model.Span{Start: start, End: rel.span.End}
}

func isRelationID(id string) bool {
	return strings.HasPrefix(id, "R")
}

// writer assembles the audited body
type writer struct {
	doc     *extract.Document
	markers []markerRef
	strip   bool
	buf     []byte
}

func (w *writer) String() string {
	return string(w.buf)
}

func (w *writer) write(regions []model.Region) {
	text := w.doc.Text
	bodyEnd := w.doc.Body().End
	contentEnd := bodyEnd
	for contentEnd > 0 && isSpace(text[contentEnd-1]) {
		contentEnd--
	}

	cursor := 0
	for _, r := range regions {
		if r.Span.Start > cursor {
			w.copyRange(cursor, r.Span.Start)
		}

		if r.Action == model.ActionFlagged {
			w.flag(r)
			cursor = r.Span.End
			continue
		}
		cursor = w.skipRemoved(r.Span.End, contentEnd)
	}
	if cursor < contentEnd {
		w.copyRange(cursor, contentEnd)
	}

	w.buf = trimRight(w.buf, " \t\r\n")
	if len(w.buf) > 0 {
		w.buf = append(w.buf, text[contentEnd:bodyEnd]...)
	}
}

// flag wraps the region, or copies it unchanged when it is already flagged
func (w *writer) flag(r model.Region) {
	text := w.doc.Text
	sentence := text[r.Span.Start:r.Span.End]
	if strings.HasPrefix(sentence, flagPrefix) && strings.HasSuffix(sentence, "]") {
		w.copyRange(r.Span.Start, r.Span.End)
		return
	}
	opener := flagPrefix + strings.Join(r.MarkerIDs, ",") + ": "
	closed := r.Span.End < len(text) && text[r.Span.End] == ']'
	if closed && (strings.HasSuffix(text[:r.Span.Start], opener) || strings.HasPrefix(sentence, opener)) {
		w.copyRange(r.Span.Start, r.Span.End)
		return
	}
	w.buf = append(w.buf, flagPrefix...)
	w.buf = append(w.buf, strings.Join(r.MarkerIDs, ",")...)
	w.buf = append(w.buf, ": "...)
	w.copyRange(r.Span.Start, r.Span.End)
	w.buf = append(w.buf, ']')
}

// skipRemoved drops the whitespace a removed region leaves behind and
// returns where copying resumes
func (w *writer) skipRemoved(end, limit int) int {
	text := w.doc.Text
	w.buf = trimRight(w.buf, " \t")

	for end < limit && (text[end] == ' ' || text[end] == '\t') {
		end++
	}

	switch {
	case len(w.buf) == 0 || hasBlankLineSuffix(w.buf):
		for end < limit && isSpace(text[end]) {
			end++
		}
	case w.buf[len(w.buf)-1] == '\n':
		if end < limit && text[end] == '\r' {
			end++
		}
		if end < limit && text[end] == '\n' {
			end++
		}
	case end < limit && text[end] != '\n' && text[end] != '\r' && !isClosingPunct(text[end]):
		w.buf = append(w.buf, ' ')
	}
	return end
}

// copyRange copies text[from:to], dropping marker text when stripping
func (w *writer) copyRange(from, to int) {
	text := w.doc.Text
	if !w.strip {
		w.buf = append(w.buf, text[from:to]...)
		return
	}

	pos := from
	for _, m := range w.markers {
		if m.span.End <= pos || m.span.Start >= to {
			continue
		}
		start := m.span.Start
		if start < pos {
			start = pos
		}
		w.buf = append(w.buf, text[pos:start]...)
		w.buf = trimRight(w.buf, " \t")
		pos = m.span.End
		if pos > to {
			pos = to
		}
	}
	w.buf = append(w.buf, text[pos:to]...)
}

func trimRight(b []byte, cutset string) []byte {
	for len(b) > 0 && strings.IndexByte(cutset, b[len(b)-1]) >= 0 {
		b = b[:len(b)-1]
	}
	return b
}

func hasBlankLineSuffix(b []byte) bool {
	s := strings.TrimRight(string(b), " \t\r")
	return strings.HasSuffix(s, "\n\n") || strings.HasSuffix(s, "\n\r\n")
}

func isClosingPunct(c byte) bool {
	return strings.IndexByte(".,;:!?)]", c) >= 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
