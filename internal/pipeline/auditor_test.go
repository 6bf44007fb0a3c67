package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/registry"
)

const (
	hashA = "aaaaaaaaaa000000000000000000000000000000000000000000000000000001"
	hashB = "bbbbbbbbbb000000000000000000000000000000000000000000000000000002"
)

// countingFetcher serves fixed content per URI and counts calls
type countingFetcher struct {
	mu      sync.Mutex
	content map[string]string
	calls   map[string]int
}

func newCountingFetcher(content map[string]string) *countingFetcher {
	return &countingFetcher{content: content, calls: make(map[string]int)}
}

func (f *countingFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	f.calls[uri]++
	f.mu.Unlock()
	body, ok := f.content[uri]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return []byte(body), nil
}

func (f *countingFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// fixedJudge answers every request with the same decision
type fixedJudge struct {
	mu       sync.Mutex
	decision model.AuditStatus
	requests []model.JudgeRequest
}

func (j *fixedJudge) Name() string { return "fixed" }

func (j *fixedJudge) Judge(ctx context.Context, req model.JudgeRequest) (*model.Judgment, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.requests = append(j.requests, req)
	return &model.Judgment{Decision: j.decision, Rationale: "fixed answer"}, nil
}

func (j *fixedJudge) calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.requests)
}

var sourcePages = map[string]string{
	"https://a.example/report": `<html><body><p class="a">Sales rose sharply in March.</p><p class="b">Ciphers are old.</p></body></html>`,
	"https://b.example/notes":  `<html><body><p class="c">Costs fell after the merger.</p><p class="d">Tea is hot.</p></body></html>`,
}

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Concurrency.ClaimWorkers = 4
	cfg.Concurrency.JudgeWorkers = 2
	return cfg
}

func newTestAuditor(t *testing.T, fetcher *countingFetcher, judge *fixedJudge, mutate func(*model.Config)) *Auditor {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	a, err := NewAuditor(cfg, WithFetcher(fetcher), WithJudge(judge), WithStore(nil))
	require.NoError(t, err)
	return a
}

func registryJSON(reasoning string) []byte {
	return []byte(`{
	  "SOURCES": [
	    {"SHI": "` + hashA + `", "Type": "Web Article", "Canonical_URI": "https://a.example/report"},
	    {"SHI": "` + hashB + `", "Type": "Web Article", "Canonical_URI": "https://b.example/notes"}
	  ],
	  "REASONING": [` + reasoning + `]
	}`)
}

// Scenario A
func TestAudit_SingleVerifiedClaim(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	judge := &fixedJudge{decision: model.AuditVerifiedLogic}
	text := "Sales rose sharply [C1:aaaaaaaaaa:css=p.a].\n"

	res, err := newTestAuditor(t, fetcher, judge, nil).Audit(context.Background(), Document{
		Name:     "a.md",
		Text:     text,
		Registry: registryJSON(""),
	})
	require.NoError(t, err)

	assert.Equal(t, text, res.AuditedText)
	report := res.Report
	assert.Equal(t, model.OutcomeVerified, report.Outcome)
	require.Len(t, report.Claims, 1)
	assert.Equal(t, model.ClaimVerified, report.Claims[0].Status)
	assert.Equal(t, model.ActionRetained, report.Claims[0].Action)
	assert.Equal(t, hashA, report.Claims[0].SourceHash)

	assert.Equal(t, model.SourceVerified, report.Sources[0].DeclaredStatus)
	assert.Equal(t, model.SourceUnverified, report.Sources[1].DeclaredStatus, "uncited source is never VERIFIED")
	assert.NotEmpty(t, report.Sources[0].Authority)

	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Digest, 64)
	assert.Equal(t, 0, judge.calls())
}

// Scenario B
func TestAudit_FailedPremisePropagates(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	judge := &fixedJudge{decision: model.AuditVerifiedLogic}
	text := "Ciphers are new [C1:aaaaaaaaaa:css=p.b]. So upgrade them (R1:CAUSAL:C1). Tea is hot [C2:bbbbbbbbbb:css=p.d]."

	res, err := newTestAuditor(t, fetcher, judge, nil).Audit(context.Background(), Document{
		Text:     text,
		Registry: registryJSON(`{"RELATION_ID": "R1", "TYPE": "CAUSAL", "DEP_CLAIMS": ["C1"], "LOGIC_MODEL": "Modus Ponens", "SYNTHESIS_PROSE": "So upgrade them"}`),
	})
	require.NoError(t, err)

	report := res.Report
	assert.Equal(t, model.ClaimFailed, report.Claims[0].Status)
	assert.Equal(t, model.ClaimVerified, report.Claims[1].Status)
	assert.Equal(t, model.AuditInsufficientPremise, report.Reasoning[0].AuditStatus)
	assert.NotEmpty(t, report.Reasoning[0].Timestamp)
	assert.Equal(t, 0, judge.calls(), "judge is never consulted for a poisoned premise")

	assert.Equal(t, "Tea is hot [C2:bbbbbbbbbb:css=p.d].", res.AuditedText)
	assert.Equal(t, model.OutcomePartial, report.Outcome)
	assert.Equal(t, model.SourceUnverified, report.Sources[0].DeclaredStatus)
	assert.Equal(t, model.SourceVerified, report.Sources[1].DeclaredStatus)
}

// Scenario C
func TestAudit_JudgeRejectsSynthesis(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	judge := &fixedJudge{decision: model.AuditInsufficientLogic}
	text := "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Costs fell [C2:bbbbbbbbbb:css=p.c]. Therefore profit doubled (R1:SUMMARY:C1,C2). Tail."

	res, err := newTestAuditor(t, fetcher, judge, nil).Audit(context.Background(), Document{
		Text:     text,
		Registry: registryJSON(`{"RELATION_ID": "R1", "TYPE": "SUMMARY", "DEP_CLAIMS": ["C1", "C2"], "LOGIC_MODEL": "Aggregation", "SYNTHESIS_PROSE": "Therefore profit doubled"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Costs fell [C2:bbbbbbbbbb:css=p.c]. Tail.", res.AuditedText)
	assert.Equal(t, model.AuditInsufficientLogic, res.Report.Reasoning[0].AuditStatus)
	require.Equal(t, 1, judge.calls())

	req := judge.requests[0]
	assert.Equal(t, model.RelationSummary, req.Type)
	require.Len(t, req.Premises, 2)
	assert.Contains(t, req.Premises[0].Located, "Sales rose sharply")
	assert.Equal(t, model.ActionRemoved, res.Report.Reasoning[0].Action)
}

// Scenario C with the relationship marker written after the last claim of
// the same sentence
func TestAudit_JudgeRejectsSynthesis_SharedSentence(t *testing.T) {
	for _, mode := range []string{"remove", "flag"} {
		t.Run(mode, func(t *testing.T) {
			fetcher := newCountingFetcher(sourcePages)
			judge := &fixedJudge{decision: model.AuditInsufficientLogic}
			text := "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Costs fell [C2:bbbbbbbbbb:css=p.c](R1:SUMMARY:C1,C2)."

			a := newTestAuditor(t, fetcher, judge, func(cfg *model.Config) { cfg.Rewrite.Mode = mode })
			res, err := a.Audit(context.Background(), Document{
				Text:     text,
				Registry: registryJSON(`{"RELATION_ID": "R1", "TYPE": "SUMMARY", "DEP_CLAIMS": ["C1", "C2"]}`),
			})
			require.NoError(t, err)

			report := res.Report
			require.Len(t, report.Claims, 2)
			for _, c := range report.Claims {
				assert.Equal(t, model.ClaimVerified, c.Status, c.ClaimID)
				assert.Equal(t, model.ActionRetained, c.Action, c.ClaimID)
			}
			assert.Equal(t, model.AuditInsufficientLogic, report.Reasoning[0].AuditStatus)
			require.Len(t, report.Regions, 1)
			assert.Equal(t, []string{"R1"}, report.Regions[0].MarkerIDs)

			if mode == "remove" {
				assert.Equal(t, "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Costs fell [C2:bbbbbbbbbb:css=p.c].", res.AuditedText)
				assert.Equal(t, model.ActionRemoved, report.Reasoning[0].Action)
			} else {
				assert.Equal(t, "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Costs fell [C2:bbbbbbbbbb:css=p.c][UNVERIFIED R1: (R1:SUMMARY:C1,C2)].", res.AuditedText)
				assert.Equal(t, model.ActionFlagged, report.Reasoning[0].Action)
			}
		})
	}
}

// Scenario D
func TestAudit_AmbiguousPrefixAbortsBeforeVerification(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	payload := []byte(`{"SOURCES": [
	  {"SHI": "deadbeef01aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "Canonical_URI": "https://a.example/report"},
	  {"SHI": "deadbeef02bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Canonical_URI": "https://b.example/notes"}
	]}`)

	_, err := newTestAuditor(t, fetcher, &fixedJudge{}, nil).Audit(context.Background(), Document{
		Text:     "Fact [C1:deadbeef:p].",
		Registry: payload,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAmbiguousSourcePrefix))
	assert.True(t, model.IsStructural(err))
	assert.Equal(t, 0, fetcher.total())
}

func TestAudit_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		reg  []byte
		kind error
	}{
		{"malformed marker", "Broken [C1:zz:p].", registryJSON(""), model.ErrMalformedMarker},
		{"unknown dependency", "Fact [C1:aaaaaaaaaa:css=p.a]. So (R1:CAUSAL:C9).", registryJSON(`{"RELATION_ID": "R1", "TYPE": "CAUSAL", "DEP_CLAIMS": ["C9"]}`), model.ErrUnknownDependency},
		{"missing registry", "Fact [C1:aaaaaaaaaa:css=p.a].", nil, model.ErrInvalidRegistry},
		{"unknown source", "Fact [C1:0123456789:css=p.a].", registryJSON(""), model.ErrUnknownSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newCountingFetcher(sourcePages)
			_, err := newTestAuditor(t, fetcher, &fixedJudge{}, nil).Audit(context.Background(), Document{Text: tt.text, Registry: tt.reg})
			require.Error(t, err)
			assert.True(t, model.IsStructural(err), "expected structural error, got %v", err)
			assert.True(t, errors.Is(err, tt.kind), "expected %v, got %v", tt.kind, err)
			assert.Equal(t, 0, fetcher.total())
		})
	}
}

func TestAudit_SharedSourceFetchedOnce(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	text := "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Ciphers are old [C2:aaaaaaaaaa:css=p.b]. Sales rose [C3:aaaaaaaaaa:*]."

	res, err := newTestAuditor(t, fetcher, &fixedJudge{}, nil).Audit(context.Background(), Document{
		Text:     text,
		Registry: registryJSON(""),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls["https://a.example/report"])
	assert.Equal(t, model.OutcomeVerified, res.Report.Outcome)
	assert.Equal(t, int64(1), res.CacheStats.Fetches)
}

func TestAudit_Metrics(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	text := "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Ciphers are old [C2:aaaaaaaaaa:css=p.b]. Tea is cold [C3:bbbbbbbbbb:css=p.d]."

	fetched := testutil.ToFloat64(metrics.SourceFetches.WithLabelValues("ok"))
	verified := testutil.ToFloat64(metrics.ClaimVerdicts.WithLabelValues(string(model.ClaimVerified)))
	failed := testutil.ToFloat64(metrics.ClaimVerdicts.WithLabelValues(string(model.ClaimFailed)))
	partialRuns := testutil.ToFloat64(metrics.AuditRuns.WithLabelValues(string(model.OutcomePartial)))

	_, err := newTestAuditor(t, fetcher, &fixedJudge{}, nil).Audit(context.Background(), Document{
		Text:     text,
		Registry: registryJSON(""),
	})
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SourceFetches.WithLabelValues("ok"))-fetched, "one fetch per source hash")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ClaimVerdicts.WithLabelValues(string(model.ClaimVerified)))-verified)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClaimVerdicts.WithLabelValues(string(model.ClaimFailed)))-failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditRuns.WithLabelValues(string(model.OutcomePartial)))-partialRuns)
}

func TestAudit_EmbeddedRegistryCannotReadLocalFiles(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "id_rsa")
	require.NoError(t, os.WriteFile(secret, []byte("BEGIN PRIVATE KEY s3cr3t-material END"), 0o600))

	payload := []byte(`{
	  "SOURCES": [{"SHI": "cccccccccc000000000000000000000000000000000000000000000000000003", "Canonical_URI": "` + filepath.ToSlash(secret) + `"}],
	  "REASONING": [{"RELATION_ID": "R1", "TYPE": "SUMMARY", "DEP_CLAIMS": ["C1"]}]
	}`)
	text := extract.AppendBlock("BEGIN PRIVATE KEY [C1:cccccccccc:*]. So it is (R1:SUMMARY:C1).\n", payload)

	judge := &fixedJudge{decision: model.AuditVerifiedLogic}
	a, err := NewAuditor(testConfig(), WithJudge(judge), WithStore(nil))
	require.NoError(t, err)

	res, err := a.Audit(context.Background(), Document{Text: text})
	require.NoError(t, err)

	require.Len(t, res.Report.Claims, 1)
	assert.Equal(t, model.ClaimFailed, res.Report.Claims[0].Status)
	assert.Contains(t, res.Report.Claims[0].Reason, "local file source refused")
	assert.Equal(t, model.AuditInsufficientPremise, res.Report.Reasoning[0].AuditStatus)
	assert.Equal(t, 0, judge.calls())
}

func TestAudit_ExternalRegistryFileSourceNeedsOptIn(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(source, []byte("Tea is hot.\n"), 0o644))

	payload := []byte(`{"SOURCES": [{"SHI": "dddddddddd000000000000000000000000000000000000000000000000000004", "Canonical_URI": "` + filepath.ToSlash(source) + `"}]}`)
	doc := Document{Text: "Tea is hot [C1:dddddddddd:line=1].", Registry: payload}

	a, err := NewAuditor(testConfig(), WithJudge(&fixedJudge{}), WithStore(nil))
	require.NoError(t, err)
	res, err := a.Audit(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimFailed, res.Report.Claims[0].Status)

	cfg := testConfig()
	cfg.HTTP.AllowFileSources = true
	cfg.HTTP.FileRoot = dir
	a, err = NewAuditor(cfg, WithJudge(&fixedJudge{}), WithStore(nil))
	require.NoError(t, err)
	res, err = a.Audit(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimVerified, res.Report.Claims[0].Status)
}

func TestAudit_MarkerVerdictBijection(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	text := "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Costs fell [C2:bbbbbbbbbb:css=p.c]. Wrong [C3:bbbbbbbbbb:css=p.zz]. So (R1:CAUSAL:C1). Hence (R2:INFERENCE:C2,C3)."
	reasoning := `{"RELATION_ID": "R1", "TYPE": "CAUSAL", "DEP_CLAIMS": ["C1"]},
	  {"RELATION_ID": "R2", "TYPE": "INFERENCE", "DEP_CLAIMS": ["C2", "C3"]}`

	res, err := newTestAuditor(t, fetcher, &fixedJudge{decision: model.AuditVerifiedLogic}, nil).Audit(context.Background(), Document{
		Text:     text,
		Registry: registryJSON(reasoning),
	})
	require.NoError(t, err)

	doc, err := extract.Analyze(text)
	require.NoError(t, err)

	var markerIDs, reportIDs []string
	for _, c := range doc.Markers.Claims {
		markerIDs = append(markerIDs, c.ID)
	}
	for _, r := range doc.Markers.Relationships {
		markerIDs = append(markerIDs, r.ID)
	}
	for _, c := range res.Report.Claims {
		reportIDs = append(reportIDs, c.ClaimID)
	}
	for _, r := range res.Report.Reasoning {
		reportIDs = append(reportIDs, r.RelationID)
	}
	assert.Equal(t, markerIDs, reportIDs)

	statuses := map[string]model.AuditStatus{}
	for _, r := range res.Report.Reasoning {
		statuses[r.RelationID] = r.AuditStatus
	}
	assert.Equal(t, model.AuditVerifiedLogic, statuses["R1"])
	assert.Equal(t, model.AuditInsufficientPremise, statuses["R2"])
}

func TestAudit_CancelledRunIsIncomplete(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	text := "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. So (R1:CAUSAL:C1)."

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestAuditor(t, fetcher, &fixedJudge{decision: model.AuditVerifiedLogic}, nil).Audit(ctx, Document{
		Text:     text,
		Registry: registryJSON(`{"RELATION_ID": "R1", "TYPE": "CAUSAL", "DEP_CLAIMS": ["C1"]}`),
	})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeIncomplete, res.Report.Outcome)
	assert.True(t, res.Report.Cancelled)
	assert.Equal(t, model.ClaimPending, res.Report.Claims[0].Status)
	assert.Equal(t, model.AuditPending, res.Report.Reasoning[0].AuditStatus)
	assert.Empty(t, res.Report.Reasoning[0].Timestamp)
	assert.Equal(t, text, res.AuditedText, "undecided markers are not rewritten")
}

func TestAudit_EmbeddedRegistry(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	body := "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Costs fell [C2:bbbbbbbbbb:css=p.c]. Therefore profit doubled (R1:SUMMARY:C1,C2).\n"
	text := extract.AppendBlock(body, registryJSON(`{"RELATION_ID": "R1", "TYPE": "SUMMARY", "DEP_CLAIMS": ["C1", "C2"]}`))

	a := newTestAuditor(t, fetcher, &fixedJudge{decision: model.AuditVerifiedLogic}, func(cfg *model.Config) {
		cfg.Rewrite.EmbedRegistry = true
	})
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return stamp }
	res, err := a.Audit(context.Background(), Document{Text: text})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeVerified, res.Report.Outcome)

	block := extract.FindBlock(res.AuditedText)
	require.NotNil(t, block)
	payload, err := registry.Decode(block.Payload)
	require.NoError(t, err)
	require.Len(t, payload.Reasoning, 1)
	assert.Equal(t, model.AuditVerifiedLogic, payload.Reasoning[0].AuditStatus)
	assert.Equal(t, model.SourceVerified, payload.Sources[0].DeclaredStatus)

	// the audited output is itself a valid audit input
	again, err := a.Audit(context.Background(), Document{Text: res.AuditedText})
	require.NoError(t, err)
	assert.Equal(t, res.AuditedText, again.AuditedText)
}

func TestAudit_FlagMode(t *testing.T) {
	fetcher := newCountingFetcher(sourcePages)
	text := "Ciphers are new [C1:aaaaaaaaaa:css=p.b]. Tea is hot [C2:bbbbbbbbbb:css=p.d]."

	a := newTestAuditor(t, fetcher, &fixedJudge{}, func(cfg *model.Config) { cfg.Rewrite.Mode = "flag" })
	res, err := a.Audit(context.Background(), Document{Text: text, Registry: registryJSON("")})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.AuditedText, "[UNVERIFIED C1: Ciphers are new"))
	assert.Equal(t, model.ActionFlagged, res.Report.Claims[0].Action)
	require.Len(t, res.Report.Regions, 1)
	assert.Equal(t, model.ActionFlagged, res.Report.Regions[0].Action)
}

func TestAudit_NoMarkersNoRegistry(t *testing.T) {
	res, err := newTestAuditor(t, newCountingFetcher(nil), &fixedJudge{}, nil).Audit(context.Background(), Document{Text: "Plain prose.\n"})
	require.NoError(t, err)
	assert.Equal(t, "Plain prose.\n", res.AuditedText)
	assert.Equal(t, model.OutcomeVerified, res.Report.Outcome)
	assert.Empty(t, res.Report.Claims)
}

func TestAudit_UnreachableSourceFailsClaimOnly(t *testing.T) {
	fetcher := newCountingFetcher(map[string]string{
		"https://b.example/notes": sourcePages["https://b.example/notes"],
	})
	text := "Sales rose sharply [C1:aaaaaaaaaa:css=p.a]. Tea is hot [C2:bbbbbbbbbb:css=p.d]."

	res, err := newTestAuditor(t, fetcher, &fixedJudge{}, nil).Audit(context.Background(), Document{Text: text, Registry: registryJSON("")})
	require.NoError(t, err)

	assert.Equal(t, model.ClaimFailed, res.Report.Claims[0].Status)
	assert.Equal(t, model.ClaimVerified, res.Report.Claims[1].Status)
	assert.Equal(t, "Tea is hot [C2:bbbbbbbbbb:css=p.d].", res.AuditedText)
}

func TestAuditFile(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	regPath := filepath.Join(dir, "var.json")
	require.NoError(t, os.WriteFile(docPath, []byte("Sales rose sharply [C1:aaaaaaaaaa:css=p.a].\n"), 0o644))
	require.NoError(t, os.WriteFile(regPath, registryJSON(""), 0o644))

	a := newTestAuditor(t, newCountingFetcher(sourcePages), &fixedJudge{}, nil)
	report, err := a.AuditFile(context.Background(), docPath, regPath)
	require.NoError(t, err)
	assert.Equal(t, docPath, report.Document)
	assert.Equal(t, model.OutcomeVerified, report.Outcome)

	_, err = a.AuditFile(context.Background(), filepath.Join(dir, "missing.md"), "")
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	res, err := newTestAuditor(t, newCountingFetcher(sourcePages), &fixedJudge{}, nil).Audit(context.Background(), Document{
		Text:     "Sales rose sharply [C1:aaaaaaaaaa:css=p.a].",
		Registry: registryJSON(""),
	})
	require.NoError(t, err)
	report := res.Report

	digest, err := Digest(report)
	require.NoError(t, err)
	assert.Equal(t, report.Digest, digest, "digest ignores its own field")

	report.Claims[0].Reason = "tampered"
	tampered, err := Digest(report)
	require.NoError(t, err)
	assert.NotEqual(t, digest, tampered)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, model.OutcomeVerified, outcome(model.Summary{Claims: 2, ClaimsVerified: 2}))
	assert.Equal(t, model.OutcomePartial, outcome(model.Summary{ClaimsFailed: 1}))
	assert.Equal(t, model.OutcomePartial, outcome(model.Summary{InsufficientLogic: 1}))
	assert.Equal(t, model.OutcomeIncomplete, outcome(model.Summary{ClaimsFailed: 1, RelationsPending: 1}))
}
