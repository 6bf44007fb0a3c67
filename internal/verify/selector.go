package verify

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	ErrUnsupportedSelector = errors.New("unsupported selector type")
	ErrInvalidSelector     = errors.New("invalid selector")
	ErrElementNotFound     = errors.New("selector matched no element")
)

var (
	schemePattern    = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*)=`)
	lineRangePattern = regexp.MustCompile(`^(\d+)(?:-(\d+))?$`)
)

// SelectorKind is the addressing scheme of a location selector
type SelectorKind int

const (
	SelectCSS SelectorKind = iota
	SelectLines
	SelectDocument
)

// Selector is a parsed location selector
type Selector struct {
	Kind     SelectorKind
	Raw      string
	css      cascadia.Selector
	from, to int // 1-based inclusive line range
}

// ParseSelector parses a claim location. Supported forms: "css=<sel>" or a
// bare CSS selector, "line=<n>", "lines=<a>-<b>", and "*" or "doc" for the
// whole document.
func ParseSelector(location string) (*Selector, error) {
	loc := strings.TrimSpace(location)
	s := &Selector{Raw: loc}

	if loc == "*" || strings.EqualFold(loc, "doc") {
		s.Kind = SelectDocument
		return s, nil
	}

	expr := loc
	scheme := "css"
	if m := schemePattern.FindStringSubmatch(loc); m != nil {
		scheme = strings.ToLower(m[1])
		expr = strings.TrimSpace(loc[len(m[0]):])
	}

	switch scheme {
	case "css":
		sel, err := cascadia.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, expr, err)
		}
		s.Kind = SelectCSS
		s.css = sel
	case "line", "lines":
		m := lineRangePattern.FindStringSubmatch(expr)
		if m == nil {
			return nil, fmt.Errorf("%w %q: expected <n> or <a>-<b>", ErrInvalidSelector, expr)
		}
		s.Kind = SelectLines
		s.from, _ = strconv.Atoi(m[1])
		s.to = s.from
		if m[2] != "" {
			s.to, _ = strconv.Atoi(m[2])
		}
		if s.from < 1 || s.to < s.from {
			return nil, fmt.Errorf("%w %q: bad line range", ErrInvalidSelector, expr)
		}
	case "doc":
		s.Kind = SelectDocument
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedSelector, scheme)
	}

	return s, nil
}

// Locate applies the selector to raw source content and returns the text
// found there
func (s *Selector) Locate(content []byte) (string, error) {
	switch s.Kind {
	case SelectLines:
		lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
		if s.from > len(lines) {
			return "", fmt.Errorf("%w: line %d beyond end of document (%d lines)", ErrElementNotFound, s.from, len(lines))
		}
		to := s.to
		if to > len(lines) {
			to = len(lines)
		}
		return strings.Join(lines[s.from-1:to], "\n"), nil

	case SelectDocument:
		if !looksLikeHTML(content) {
			return string(content), nil
		}
		doc, err := html.Parse(bytes.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("parse HTML: %w", err)
		}
		return visibleText(doc), nil

	default:
		doc, err := html.Parse(bytes.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("parse HTML: %w", err)
		}
		n := s.css.MatchFirst(doc)
		if n == nil {
			return "", fmt.Errorf("%w: %s", ErrElementNotFound, s.Raw)
		}
		return visibleText(n), nil
	}
}

// visibleText collects text nodes, skipping scripts and styles
func visibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.TrimSpace(buf.String())
}

func looksLikeHTML(content []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(content))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) ||
		bytes.Contains(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<body")) ||
		bytes.Contains(head, []byte("<p"))
}

// normalize lowercases and collapses whitespace for comparison
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Contains reports whether claim appears in located text, ignoring case,
// whitespace layout and the claim's trailing punctuation
func Contains(located, claim string) bool {
	needle := normalize(strings.TrimRight(strings.TrimSpace(claim), ".,;:!?"))
	if needle == "" {
		return false
	}
	return strings.Contains(normalize(located), needle)
}
