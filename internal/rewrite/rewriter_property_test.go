//go:build property
// +build property

package rewrite_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/rewrite"
)

// buildDocument renders one claim per sentence; fails[i] marks claim i+1 failed.
// Every third sentence starts a new paragraph.
func buildDocument(fails []bool) (string, *model.Verdicts) {
	var b strings.Builder
	v := model.NewVerdicts()
	for i, failed := range fails {
		id := fmt.Sprintf("C%d", i+1)
		fmt.Fprintf(&b, "Statement number %d [%s:cafebabe:p].", i+1, id)
		if (i+1)%3 == 0 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" ")
		}
		status := model.ClaimVerified
		if failed {
			status = model.ClaimFailed
		}
		v.Claims[id] = model.Verdict{ClaimID: id, Status: status}
	}
	return b.String(), v
}

func TestRewriteProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	modes := gen.OneConstOf(rewrite.ModeRemove, rewrite.ModeFlag)

	properties.Property("rewriting is idempotent", prop.ForAll(
		func(fails []bool, mode rewrite.Mode) bool {
			text, v := buildDocument(fails)
			doc, err := extract.Analyze(text)
			if err != nil {
				return false
			}
			first := rewrite.Rewrite(doc, v, rewrite.Options{Mode: mode})

			again, err := extract.Analyze(first.Text)
			if err != nil {
				return false
			}
			return rewrite.Rewrite(again, v, rewrite.Options{Mode: mode}).Text == first.Text
		},
		gen.SliceOf(gen.Bool()),
		modes,
	))

	properties.Property("verified sentences survive and failed ones do not", prop.ForAll(
		func(fails []bool) bool {
			text, v := buildDocument(fails)
			doc, err := extract.Analyze(text)
			if err != nil {
				return false
			}
			out := rewrite.Rewrite(doc, v, rewrite.Options{}).Text

			for i, failed := range fails {
				sentence := fmt.Sprintf("Statement number %d [C%d:cafebabe:p].", i+1, i+1)
				if strings.Contains(out, sentence) == failed {
					return false
				}
			}
			return !strings.Contains(out, "\n\n\n") && out == strings.TrimLeft(out, " \n")
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("every marker gets exactly one action", prop.ForAll(
		func(fails []bool, mode rewrite.Mode) bool {
			text, v := buildDocument(fails)
			doc, err := extract.Analyze(text)
			if err != nil {
				return false
			}
			res := rewrite.Rewrite(doc, v, rewrite.Options{Mode: mode})
			if len(res.Actions) != len(fails) {
				return false
			}
			for i, failed := range fails {
				action := res.Actions[fmt.Sprintf("C%d", i+1)]
				if failed != (action != model.ActionRetained) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
		modes,
	))

	properties.TestingRun(t)
}
