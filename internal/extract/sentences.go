package extract

import (
	"sort"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// abbreviations that end with a period but do not end a sentence
var abbreviations = map[string]bool{
	"e.g": true, "i.e": true, "etc": true, "vs": true, "cf": true,
	"dr": true, "mr": true, "mrs": true, "ms": true, "st": true,
	"fig": true, "al": true, "approx": true,
}

// Sentences segments region of text into sentence spans. Masked spans
// (markers) are opaque: terminators inside them never end a sentence.
// A sentence ends at '.', '!' or '?' (plus closing quotes or brackets)
// followed by whitespace or the region end, or at a blank line.
func Sentences(text string, region model.Span, masks []model.Span) []model.Span {
	masks = append([]model.Span(nil), masks...)
	sortSpans(masks)

	var sentences []model.Span
	start := -1
	m := 0

	emit := func(end int) {
		if start >= 0 && end > start {
			sentences = append(sentences, model.Span{Start: start, End: end})
		}
		start = -1
	}

	for i := region.Start; i < region.End; i++ {
		for m < len(masks) && masks[m].End <= i {
			m++
		}
		if m < len(masks) && masks[m].Start <= i {
			if start < 0 {
				start = masks[m].Start
			}
			i = masks[m].End - 1
			continue
		}

		c := text[i]
		if start < 0 {
			if !isSpace(c) {
				start = i
			}
			continue
		}

		switch {
		case c == '\n' && blankLineFollows(text, i, region.End):
			emit(trimRightSpace(text, start, i))
		case c == '.' || c == '!' || c == '?':
			end := i + 1
			for end < region.End && strings.IndexByte(`"')]`, text[end]) >= 0 {
				end++
			}
			if end < region.End && !isSpace(text[end]) {
				continue
			}
			if c == '.' && isAbbreviation(text, start, i) {
				continue
			}
			emit(end)
			i = end - 1
		}
	}
	if start >= 0 {
		emit(trimRightSpace(text, start, region.End))
	}

	return sentences
}

// blankLineFollows reports whether the newline at i is followed by another
// newline with only horizontal whitespace in between
func blankLineFollows(text string, i, limit int) bool {
	for j := i + 1; j < limit; j++ {
		switch text[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return false
}

func isAbbreviation(text string, start, dot int) bool {
	j := dot
	for j > start && !isSpace(text[j-1]) {
		j--
	}
	word := strings.TrimLeft(text[j:dot], `"'(`)
	if len(word) == 1 && isUpper(word[0]) {
		return isInitial(text, start, j, dot)
	}
	return abbreviations[strings.ToLower(word)]
}

// isInitial decides whether the single capital letter ending at dot is a
// name initial: it follows another initial or a capitalised word ("John F.
// Kennedy"), or another initial follows it ("J. R. Smith"). "vitamin C."
// ends a sentence.
func isInitial(text string, start, wordStart, dot int) bool {
	if prev := previousWord(text, start, wordStart); prev != "" && isUpper(prev[0]) {
		return true
	}
	return isInitialToken(nextWord(text, dot+1))
}

func previousWord(text string, start, wordStart int) string {
	end := wordStart
	for end > start && isSpace(text[end-1]) {
		end--
	}
	j := end
	for j > start && !isSpace(text[j-1]) {
		j--
	}
	return strings.TrimLeft(text[j:end], `"'(`)
}

func nextWord(text string, from int) string {
	for from < len(text) && isSpace(text[from]) {
		from++
	}
	j := from
	for j < len(text) && !isSpace(text[j]) {
		j++
	}
	return text[from:j]
}

func isInitialToken(word string) bool {
	return len(word) == 2 && isUpper(word[0]) && word[1] == '.'
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func trimRightSpace(text string, start, end int) int {
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func sortSpans(spans []model.Span) {
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})
}
