// Package score summarises an audit: counts, integrity index and
// diagnostic signals with their formulas.
package score

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// concentrationRatio is the share of claims on one source that raises a signal
const concentrationRatio = 0.6

// Scorer calculates the integrity index and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate summarises the final claims, reasoning entries and sources of a report
func (s *Scorer) Calculate(report *model.Report) model.Summary {
	summary := s.count(report)

	// 1. Claim integrity (0-50 points)
	claimScore, claimSignal := s.claimIntegrity(summary)
	summary.Signals = append(summary.Signals, claimSignal)

	// 2. Reasoning integrity (0-30 points)
	reasoningScore, reasoningSignal := s.reasoningIntegrity(summary)
	summary.Signals = append(summary.Signals, reasoningSignal)

	// 3. Authority of cited sources (0-20 points)
	authorityScore, authoritySignal := s.authority(report)
	summary.Signals = append(summary.Signals, authoritySignal)

	summary.IntegrityIndex = claimScore + reasoningScore + authorityScore

	// Diagnostics, no points
	summary.Signals = append(summary.Signals, s.failureSignals(report)...)
	if sig, ok := s.premisePoisoning(summary); ok {
		summary.Signals = append(summary.Signals, sig)
	}
	if sig, ok := s.logicRejected(summary); ok {
		summary.Signals = append(summary.Signals, sig)
	}
	if sig, ok := s.incompleteRun(summary, report.Cancelled); ok {
		summary.Signals = append(summary.Signals, sig)
	}
	if sig, ok := s.concentration(report); ok {
		summary.Signals = append(summary.Signals, sig)
	}

	return summary
}

func (s *Scorer) count(report *model.Report) model.Summary {
	var sum model.Summary
	sum.Claims = len(report.Claims)
	for _, c := range report.Claims {
		switch c.Status {
		case model.ClaimVerified:
			sum.ClaimsVerified++
		case model.ClaimFailed:
			sum.ClaimsFailed++
		default:
			sum.ClaimsPending++
		}
	}

	sum.Relations = len(report.Reasoning)
	for _, r := range report.Reasoning {
		switch r.AuditStatus {
		case model.AuditVerifiedLogic:
			sum.RelationsVerified++
		case model.AuditInsufficientLogic:
			sum.InsufficientLogic++
		case model.AuditInsufficientPremise:
			sum.InsufficientPremise++
		default:
			sum.RelationsPending++
		}
	}
	return sum
}

// claimIntegrity scores the share of verified claims (0-50 points)
func (s *Scorer) claimIntegrity(sum model.Summary) (int, model.Signal) {
	if sum.Claims == 0 {
		return 0, model.Signal{
			Type:        model.SignalClaimIntegrity,
			Severity:    model.SeverityCritical,
			Description: "No claim markers in document",
			Data:        map[string]any{"claims": 0},
		}
	}

	ratio := float64(sum.ClaimsVerified) / float64(sum.Claims)
	score := int(ratio * 50)

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalClaimIntegrity,
		Severity:    severity,
		Description: fmt.Sprintf("Claims verified: %d/%d", sum.ClaimsVerified, sum.Claims),
		Data: map[string]any{
			"verified": sum.ClaimsVerified,
			"failed":   sum.ClaimsFailed,
			"pending":  sum.ClaimsPending,
			"ratio":    ratio,
			"score":    score,
			"formula":  "verified_claims / claims * 50",
		},
	}
}

// reasoningIntegrity scores the share of verified relationships (0-30 points).
// A document without relationships asserts no synthesis and gets full points.
func (s *Scorer) reasoningIntegrity(sum model.Summary) (int, model.Signal) {
	if sum.Relations == 0 {
		return 30, model.Signal{
			Type:        model.SignalReasoningIntegrity,
			Severity:    model.SeverityInfo,
			Description: "No relationship markers in document",
			Data:        map[string]any{"relations": 0, "score": 30},
		}
	}

	ratio := float64(sum.RelationsVerified) / float64(sum.Relations)
	score := int(ratio * 30)

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 1.0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalReasoningIntegrity,
		Severity:    severity,
		Description: fmt.Sprintf("Relationships verified: %d/%d", sum.RelationsVerified, sum.Relations),
		Data: map[string]any{
			"verified":             sum.RelationsVerified,
			"insufficient_logic":   sum.InsufficientLogic,
			"insufficient_premise": sum.InsufficientPremise,
			"pending":              sum.RelationsPending,
			"ratio":                ratio,
			"score":                score,
			"formula":              "verified_logic / relations * 30",
		},
	}
}

// authority scores the tiers of sources cited by at least one claim (0-20 points)
func (s *Scorer) authority(report *model.Report) (int, model.Signal) {
	cited := citedSources(report)

	primaryCount, secondaryCount, tertiaryCount := 0, 0, 0
	for _, src := range report.Sources {
		if !cited[src.Hash] {
			continue
		}
		switch src.Authority {
		case model.TierPrimary.String():
			primaryCount++
		case model.TierSecondary.String():
			secondaryCount++
		default:
			tertiaryCount++
		}
	}

	total := primaryCount + secondaryCount + tertiaryCount
	if total == 0 {
		return 0, model.Signal{
			Type:        model.SignalAuthority,
			Severity:    model.SeverityWarning,
			Description: "No cited sources",
			Data:        map[string]any{"cited": 0},
		}
	}

	weightedSum := float64(primaryCount*3 + secondaryCount*2 + tertiaryCount)
	score := int(weightedSum / float64(total*3) * 20)

	severity := model.SeverityInfo
	if primaryCount == 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalAuthority,
		Severity:    severity,
		Description: fmt.Sprintf("Authority distribution: %d primary, %d secondary, %d tertiary", primaryCount, secondaryCount, tertiaryCount),
		Data: map[string]any{
			"primary":   primaryCount,
			"secondary": secondaryCount,
			"tertiary":  tertiaryCount,
			"total":     total,
			"score":     score,
			"formula":   "(primary*3 + secondary*2 + tertiary*1) / (total*3) * 20",
		},
	}
}

// failureSignals groups failed claims by cause
func (s *Scorer) failureSignals(report *model.Report) []model.Signal {
	causes := []struct {
		typ      model.SignalType
		severity model.SignalSeverity
		match    func(reason string) bool
		label    string
	}{
		{model.SignalUnreachableSource, model.SeverityCritical, func(r string) bool { return strings.HasPrefix(r, "source unavailable") }, "source could not be fetched"},
		{model.SignalSelectorDrift, model.SeverityWarning, func(r string) bool {
			return strings.HasPrefix(r, "selector matched no element") ||
				strings.HasPrefix(r, "invalid selector") ||
				strings.HasPrefix(r, "unsupported selector")
		}, "selector does not resolve"},
		{model.SignalContentMismatch, model.SeverityCritical, func(r string) bool { return strings.HasPrefix(r, "content mismatch") }, "located text does not carry the claim"},
	}

	var signals []model.Signal
	for _, cause := range causes {
		var ids []string
		for _, c := range report.Claims {
			if c.Status == model.ClaimFailed && cause.match(c.Reason) {
				ids = append(ids, c.ClaimID)
			}
		}
		if len(ids) == 0 {
			continue
		}
		signals = append(signals, model.Signal{
			Type:        cause.typ,
			Severity:    cause.severity,
			Description: fmt.Sprintf("%d claim(s): %s", len(ids), cause.label),
			Data:        map[string]any{"claims": ids},
		})
	}
	return signals
}

func (s *Scorer) premisePoisoning(sum model.Summary) (model.Signal, bool) {
	if sum.InsufficientPremise == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalPremisePoisoning,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d relationship(s) rest on failed claims", sum.InsufficientPremise),
		Data:        map[string]any{"insufficient_premise": sum.InsufficientPremise},
	}, true
}

func (s *Scorer) logicRejected(sum model.Summary) (model.Signal, bool) {
	if sum.InsufficientLogic == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalLogicRejected,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d synthesis(es) not justified by their logic model", sum.InsufficientLogic),
		Data:        map[string]any{"insufficient_logic": sum.InsufficientLogic},
	}, true
}

func (s *Scorer) incompleteRun(sum model.Summary, cancelled bool) (model.Signal, bool) {
	pending := sum.ClaimsPending + sum.RelationsPending
	if pending == 0 && !cancelled {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalIncompleteRun,
		Severity:    model.SeverityCritical,
		Description: fmt.Sprintf("Run ended with %d marker(s) still pending", pending),
		Data: map[string]any{
			"claims_pending":    sum.ClaimsPending,
			"relations_pending": sum.RelationsPending,
			"cancelled":         cancelled,
		},
	}, true
}

// concentration flags documents whose claims mostly rest on one source
func (s *Scorer) concentration(report *model.Report) (model.Signal, bool) {
	if len(report.Claims) < 3 {
		return model.Signal{}, false
	}

	perSource := make(map[string]int)
	for _, c := range report.Claims {
		perSource[c.SourceHash]++
	}

	top, topCount := "", 0
	for hash, n := range perSource {
		if n > topCount || (n == topCount && hash < top) {
			top, topCount = hash, n
		}
	}

	ratio := float64(topCount) / float64(len(report.Claims))
	if ratio <= concentrationRatio {
		return model.Signal{}, false
	}

	return model.Signal{
		Type:        model.SignalSourceConcentrate,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d of %d claims cite one source", topCount, len(report.Claims)),
		Data: map[string]any{
			"source": top,
			"claims": topCount,
			"ratio":  ratio,
		},
	}, true
}

func citedSources(report *model.Report) map[string]bool {
	cited := make(map[string]bool, len(report.Sources))
	for _, c := range report.Claims {
		cited[c.SourceHash] = true
	}
	return cited
}
