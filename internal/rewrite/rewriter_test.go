package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
)

func analyze(t *testing.T, text string) *extract.Document {
	t.Helper()
	doc, err := extract.Analyze(text)
	require.NoError(t, err)
	return doc
}

// verdictsFor marks every marker of doc verified unless listed in failed
func verdictsFor(doc *extract.Document, failed map[string]string) *model.Verdicts {
	v := model.NewVerdicts()
	for _, c := range doc.Markers.Claims {
		status := model.ClaimVerified
		if _, ok := failed[c.ID]; ok {
			status = model.ClaimFailed
		}
		v.Claims[c.ID] = model.Verdict{ClaimID: c.ID, Status: status, Reason: failed[c.ID]}
	}
	for _, r := range doc.Markers.Relationships {
		status := model.AuditVerifiedLogic
		if _, ok := failed[r.ID]; ok {
			status = model.AuditInsufficientLogic
		}
		v.Relations[r.ID] = model.RelationVerdict{RelationID: r.ID, Status: status, Reason: failed[r.ID]}
	}
	return v
}

// Scenario A
func TestRewrite_AllVerifiedKeepsText(t *testing.T) {
	text := "Ciphers are old [C1:cafebabe:p]. Tea is hot [C2:cafebabe:q].\n"
	doc := analyze(t, text)

	res := Rewrite(doc, verdictsFor(doc, nil), Options{})

	assert.Equal(t, text, res.Text)
	assert.Empty(t, res.Regions)
	assert.Equal(t, model.ActionRetained, res.Actions["C1"])
}

// Scenario B
func TestRewrite_FailedPremiseRemovesBothSentences(t *testing.T) {
	doc := analyze(t, "Ciphers are old [C1:cafebabe:p]. So upgrade them (R1:CAUSAL:C1). Tea is hot [C2:cafebabe:q].")
	v := verdictsFor(doc, map[string]string{"C1": "selector matched no element"})
	v.Relations["R1"] = model.RelationVerdict{RelationID: "R1", Status: model.AuditInsufficientPremise, Reason: "failed premise C1"}

	res := Rewrite(doc, v, Options{})

	assert.Equal(t, "Tea is hot [C2:cafebabe:q].", res.Text)
	require.Len(t, res.Regions, 2)
	assert.Equal(t, []string{"C1"}, res.Regions[0].MarkerIDs)
	assert.Equal(t, []string{"R1"}, res.Regions[1].MarkerIDs)
	assert.Equal(t, model.ActionRemoved, res.Actions["C1"])
	assert.Equal(t, model.ActionRemoved, res.Actions["R1"])
	assert.Equal(t, model.ActionRetained, res.Actions["C2"])
}

// Scenario C
func TestRewrite_RejectedLogicRemovesOnlySynthesis(t *testing.T) {
	doc := analyze(t, "Sales rose [C1:cafebabe:p]. Costs fell [C2:cafebabe:q]. Therefore profit doubled (R1:SUMMARY:C1,C2). Tail.")
	res := Rewrite(doc, verdictsFor(doc, map[string]string{"R1": "no support"}), Options{})

	assert.Equal(t, "Sales rose [C1:cafebabe:p]. Costs fell [C2:cafebabe:q]. Tail.", res.Text)
	require.Len(t, res.Regions, 1)
	assert.Equal(t, []string{"R1: no support"}, res.Regions[0].Reasons)
}

func TestRewrite_RejectedLogicKeepsClaimInSameSentence(t *testing.T) {
	text := "Sales rose [C1:cafebabe:p]. Costs fell [C2:cafebabe:q](R1:SUMMARY:C1,C2)."
	failed := map[string]string{"R1": "no support"}

	doc := analyze(t, text)
	res := Rewrite(doc, verdictsFor(doc, failed), Options{})

	assert.Equal(t, "Sales rose [C1:cafebabe:p]. Costs fell [C2:cafebabe:q].", res.Text)
	require.Len(t, res.Regions, 1)
	assert.Equal(t, []string{"R1"}, res.Regions[0].MarkerIDs)
	assert.Equal(t, model.ActionRetained, res.Actions["C2"])
	assert.Equal(t, model.ActionRemoved, res.Actions["R1"])

	flagged := Rewrite(doc, verdictsFor(doc, failed), Options{Mode: ModeFlag})
	assert.Equal(t, "Sales rose [C1:cafebabe:p]. Costs fell [C2:cafebabe:q][UNVERIFIED R1: (R1:SUMMARY:C1,C2)].", flagged.Text)
	assert.Equal(t, model.ActionRetained, flagged.Actions["C2"])

	again := analyze(t, flagged.Text)
	assert.Equal(t, flagged.Text, Rewrite(again, verdictsFor(again, failed), Options{Mode: ModeFlag}).Text)
}

func TestRewrite_RejectedLogicAfterSentenceText(t *testing.T) {
	doc := analyze(t, "Sales rose [C1:cafebabe:p] so profit doubled (R1:CAUSAL:C1). Tail.")
	res := Rewrite(doc, verdictsFor(doc, map[string]string{"R1": "no support"}), Options{})

	assert.Equal(t, "Sales rose [C1:cafebabe:p]. Tail.", res.Text)
	assert.Equal(t, model.ActionRetained, res.Actions["C1"])
}

func TestRewrite_FlagMode(t *testing.T) {
	doc := analyze(t, "Sales rose [C1:cafebabe:p]. Costs fell [C2:cafebabe:q]. Therefore profit doubled (R1:SUMMARY:C1,C2). Tail.")
	res := Rewrite(doc, verdictsFor(doc, map[string]string{"R1": "no support"}), Options{Mode: ModeFlag})

	assert.Equal(t,
		"Sales rose [C1:cafebabe:p]. Costs fell [C2:cafebabe:q]. [UNVERIFIED R1: Therefore profit doubled (R1:SUMMARY:C1,C2).] Tail.",
		res.Text)
	assert.Equal(t, model.ActionFlagged, res.Actions["R1"])
}

func TestRewrite_OverlappingSpansMerge(t *testing.T) {
	doc := analyze(t, "Both fail here [C1:cafebabe:p] and here [C2:cafebabe:q]. Kept [C3:cafebabe:r].")
	res := Rewrite(doc, verdictsFor(doc, map[string]string{"C1": "a", "C2": "b"}), Options{Mode: ModeFlag})

	require.Len(t, res.Regions, 1)
	assert.Equal(t, []string{"C1", "C2"}, res.Regions[0].MarkerIDs)
	assert.Equal(t, "[UNVERIFIED C1,C2: Both fail here [C1:cafebabe:p] and here [C2:cafebabe:q].] Kept [C3:cafebabe:r].", res.Text)
}

func TestRewrite_Paragraphs(t *testing.T) {
	text := "Alpha [C1:cafebabe:p].\n\nBeta [C2:cafebabe:q].\n\nGamma [C3:cafebabe:r].\n"

	tests := []struct {
		name   string
		failed string
		want   string
	}{
		{"first", "C1", "Beta [C2:cafebabe:q].\n\nGamma [C3:cafebabe:r].\n"},
		{"middle", "C2", "Alpha [C1:cafebabe:p].\n\nGamma [C3:cafebabe:r].\n"},
		{"last", "C3", "Alpha [C1:cafebabe:p].\n\nBeta [C2:cafebabe:q].\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := analyze(t, text)
			res := Rewrite(doc, verdictsFor(doc, map[string]string{tt.failed: "x"}), Options{})
			assert.Equal(t, tt.want, res.Text)
		})
	}
}

func TestRewrite_SingleLineBreaks(t *testing.T) {
	doc := analyze(t, "Alpha [C1:cafebabe:p].\nBeta [C2:cafebabe:q].\nGamma [C3:cafebabe:r].")
	res := Rewrite(doc, verdictsFor(doc, map[string]string{"C2": "x"}), Options{})
	assert.Equal(t, "Alpha [C1:cafebabe:p].\nGamma [C3:cafebabe:r].", res.Text)
}

func TestRewrite_NeighbouringContentSurvives(t *testing.T) {
	doc := analyze(t, "Intro without markers. Bad claim [C1:cafebabe:p]! Good claim [C2:cafebabe:q]? Outro.")
	res := Rewrite(doc, verdictsFor(doc, map[string]string{"C1": "x"}), Options{})
	assert.Equal(t, "Intro without markers. Good claim [C2:cafebabe:q]? Outro.", res.Text)
}

func TestRewrite_StripMarkers(t *testing.T) {
	doc := analyze(t, "Fact one [C1:cafebabe:p]. Fact two [C2:cafebabe:q](R1:CAUSAL:C2). Fact three [C3:cafebabe:r].")

	res := Rewrite(doc, verdictsFor(doc, map[string]string{"C3": "x"}), Options{StripMarkers: true})
	assert.Equal(t, "Fact one. Fact two.", res.Text)

	res = Rewrite(doc, verdictsFor(doc, map[string]string{"C3": "x"}), Options{StripMarkers: true, Mode: ModeFlag})
	assert.Equal(t, "Fact one. Fact two. [UNVERIFIED C3: Fact three.]", res.Text)
}

func TestRewrite_EmbedRegistry(t *testing.T) {
	doc := analyze(t, "Fact one [C1:cafebabe:p].\n\n--- ACG_START ---\n{\"SOURCES\": []}\n--- ACG_END ---\n")
	payload := []byte(`{"SOURCES": [], "REASONING": []}`)

	res := Rewrite(doc, verdictsFor(doc, nil), Options{})
	assert.Equal(t, "Fact one [C1:cafebabe:p].\n", res.Text, "stale block is dropped")

	res = Rewrite(doc, verdictsFor(doc, nil), Options{Registry: payload})
	block := extract.FindBlock(res.Text)
	require.NotNil(t, block)
	assert.Equal(t, payload, block.Payload)
	assert.Equal(t, "Fact one [C1:cafebabe:p].\n", res.Text[:block.Span.Start])
}

func TestRewrite_EverythingRemoved(t *testing.T) {
	doc := analyze(t, "Only claim [C1:cafebabe:p].\n")
	res := Rewrite(doc, verdictsFor(doc, map[string]string{"C1": "x"}), Options{})
	assert.Equal(t, "", res.Text)
}

func TestRewrite_Idempotent(t *testing.T) {
	text := "Sales rose [C1:cafebabe:p]. Costs fell [C2:cafebabe:q].\n\nTherefore profit doubled (R1:SUMMARY:C1,C2). Tail [C3:cafebabe:r].\n"
	failed := map[string]string{"C2": "mismatch", "R1": "premise"}

	for _, opts := range []Options{
		{Mode: ModeRemove},
		{Mode: ModeFlag},
		{Mode: ModeRemove, StripMarkers: true},
		{Mode: ModeFlag, Registry: []byte(`{"SOURCES": []}`)},
	} {
		doc := analyze(t, text)
		v := verdictsFor(doc, failed)

		first := Rewrite(doc, v, opts)
		assert.Equal(t, first.Text, Rewrite(doc, v, opts).Text, "same input, same output (%+v)", opts)

		again := Rewrite(analyze(t, first.Text), v, opts)
		assert.Equal(t, first.Text, again.Text, "rewriting the output is a no-op (%+v)", opts)
	}
}
