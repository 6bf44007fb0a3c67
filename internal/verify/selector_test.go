package verify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const article = `<!DOCTYPE html><html><head><title>T</title><script>var x = "hidden";</script></head>
<body><div id="post-1"><p class="intro">Ciphers   are <b>old</b>.</p>
<p>The ancient Egyptians used hieroglyphic substitution.</p></div></body></html>`

func TestParseSelector(t *testing.T) {
	tests := []struct {
		loc  string
		kind SelectorKind
		err  error
	}{
		{"css=p.intro", SelectCSS, nil},
		{"#post-1 > p:nth-of-type(2)", SelectCSS, nil},
		{"a[href=x]", SelectCSS, nil},
		{"line=3", SelectLines, nil},
		{"lines=2-4", SelectLines, nil},
		{"*", SelectDocument, nil},
		{"doc", SelectDocument, nil},
		{"xpath=//p[1]", 0, ErrUnsupportedSelector},
		{"page=4", 0, ErrUnsupportedSelector},
		{"lines=4-2", 0, ErrInvalidSelector},
		{"line=abc", 0, ErrInvalidSelector},
		{"css=p[", 0, ErrInvalidSelector},
	}

	for _, tt := range tests {
		t.Run(tt.loc, func(t *testing.T) {
			sel, err := ParseSelector(tt.loc)
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, sel.Kind)
		})
	}
}

func TestLocate_CSS(t *testing.T) {
	sel, err := ParseSelector("css=p.intro")
	require.NoError(t, err)
	text, err := sel.Locate([]byte(article))
	require.NoError(t, err)
	assert.Equal(t, "ciphers are old .", normalize(text))

	sel, err = ParseSelector("#post-1 > p:nth-of-type(2)")
	require.NoError(t, err)
	text, err = sel.Locate([]byte(article))
	require.NoError(t, err)
	assert.Contains(t, text, "hieroglyphic substitution")

	sel, err = ParseSelector("css=table")
	require.NoError(t, err)
	_, err = sel.Locate([]byte(article))
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestLocate_Document(t *testing.T) {
	sel, err := ParseSelector("doc")
	require.NoError(t, err)

	text, err := sel.Locate([]byte(article))
	require.NoError(t, err)
	assert.NotContains(t, text, "hidden")
	assert.Contains(t, text, "Egyptians")

	text, err = sel.Locate([]byte("plain text source"))
	require.NoError(t, err)
	assert.Equal(t, "plain text source", text)
}

func TestLocate_Lines(t *testing.T) {
	content := []byte("one\r\ntwo\nthree\nfour")

	sel, err := ParseSelector("lines=2-3")
	require.NoError(t, err)
	text, err := sel.Locate(content)
	require.NoError(t, err)
	assert.Equal(t, "two\nthree", text)

	sel, err = ParseSelector("lines=3-99")
	require.NoError(t, err)
	text, err = sel.Locate(content)
	require.NoError(t, err)
	assert.Equal(t, "three\nfour", text)

	sel, err = ParseSelector("line=9")
	require.NoError(t, err)
	_, err = sel.Locate(content)
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestContains(t *testing.T) {
	located := "The ancient   Egyptians used\nhieroglyphic substitution. More text."
	assert.True(t, Contains(located, "the ancient Egyptians used hieroglyphic substitution."))
	assert.True(t, Contains(located, "Egyptians used hieroglyphic"))
	assert.False(t, Contains(located, "Romans used hieroglyphic substitution"))
	assert.False(t, Contains(located, "  ."))
}
