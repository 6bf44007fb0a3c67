package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

const (
	blockStart = "--- ACG_START ---"
	blockEnd   = "--- ACG_END ---"
)

var blockPattern = regexp.MustCompile(`(?s)\n?` + regexp.QuoteMeta(blockStart) + `\r?\n(.*?)\r?\n` + regexp.QuoteMeta(blockEnd) + `\s*`)

// Block is the registry payload embedded at the end of a generated document
type Block struct {
	Span    model.Span // whole block including delimiters
	Payload []byte     // JSON between the delimiters
}

// FindBlock locates the embedded ACG block, or returns nil
func FindBlock(text string) *Block {
	loc := blockPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil
	}
	return &Block{
		Span:    model.Span{Start: loc[0], End: loc[1]},
		Payload: []byte(text[loc[2]:loc[3]]),
	}
}

// AppendBlock appends payload to body as an ACG block
func AppendBlock(body string, payload []byte) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(body, " \t\r\n"))
	b.WriteString("\n\n")
	b.WriteString(blockStart)
	b.WriteString("\n")
	b.Write(payload)
	b.WriteString("\n")
	b.WriteString(blockEnd)
	b.WriteString("\n")
	return b.String()
}
