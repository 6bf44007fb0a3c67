package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/registry"
)

// auditedSources copies the declared sources with their audited status. A
// source is VERIFIED iff at least one claim cites it and every citing claim
// is VERIFIED.
func auditedSources(reg *registry.Registry, verdicts *model.Verdicts) []model.SourceEntry {
	sources := make([]model.SourceEntry, len(reg.Sources))
	for i, src := range reg.Sources {
		citing := reg.CitingClaims(src.Hash)
		status := model.SourceVerified
		if len(citing) == 0 {
			status = model.SourceUnverified
		}
		for _, id := range citing {
			if verdicts.Claims[id].Status != model.ClaimVerified {
				status = model.SourceUnverified
				break
			}
		}
		src.DeclaredStatus = status
		sources[i] = src
	}
	return sources
}

// auditedReasoning copies the reasoning entries with their final audit
// status. Undecided relationships stay PENDING without a timestamp.
func auditedReasoning(reg *registry.Registry, verdicts *model.Verdicts, at time.Time) []model.ReasoningEntry {
	entries := make([]model.ReasoningEntry, len(reg.Reasoning))
	for i, e := range reg.Reasoning {
		v, ok := verdicts.Relations[e.RelationID]
		if !ok || !v.Status.Terminal() {
			e.AuditStatus = model.AuditPending
			e.Reason = v.Reason
			e.Timestamp = ""
		} else {
			e.AuditStatus = v.Status
			e.Reason = v.Reason
			e.Timestamp = at.Format(time.RFC3339)
		}
		entries[i] = e
	}
	return entries
}

// annotateReasoning records what the rewriter did with each relationship
func annotateReasoning(entries []model.ReasoningEntry, actions map[string]model.RewriteAction) {
	for i := range entries {
		action, ok := actions[entries[i].RelationID]
		if !ok {
			action = model.ActionRetained
		}
		entries[i].Action = action
	}
}

// claimRecords builds one record per claim marker, in document order
func claimRecords(markers *model.Markers, reg *registry.Registry, verdicts *model.Verdicts, actions map[string]model.RewriteAction) []model.ClaimRecord {
	records := make([]model.ClaimRecord, 0, len(markers.Claims))
	for _, c := range markers.Claims {
		v, ok := verdicts.Claims[c.ID]
		if !ok {
			v = model.Verdict{ClaimID: c.ID, Status: model.ClaimPending}
		}
		record := model.ClaimRecord{
			ClaimID:     c.ID,
			HashPrefix:  c.HashPrefix,
			LocSelector: c.Location,
			ClaimText:   c.Text,
			Status:      v.Status,
			Reason:      v.Reason,
			Span:        c.Span,
			Action:      actions[c.ID],
		}
		if src, ok := reg.SourceForClaim(c.ID); ok {
			record.SourceHash = src.Hash
		}
		if record.Action == "" {
			record.Action = model.ActionRetained
		}
		records = append(records, record)
	}
	return records
}

// outcome classifies a run from its summary counts
func outcome(sum model.Summary) model.Outcome {
	switch {
	case sum.ClaimsPending > 0 || sum.RelationsPending > 0:
		return model.OutcomeIncomplete
	case sum.ClaimsFailed > 0 || sum.InsufficientLogic > 0 || sum.InsufficientPremise > 0:
		return model.OutcomePartial
	default:
		return model.OutcomeVerified
	}
}

// Seal assigns a run id if missing and sets Digest to the SHA-256 of the
// report's canonical JSON (RFC 8785) computed without the digest itself
func Seal(report *model.Report) error {
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}
	digest, err := Digest(report)
	if err != nil {
		return err
	}
	report.Digest = digest
	return nil
}

// Digest computes the canonical digest of report, ignoring its Digest field
func Digest(report *model.Report) (string, error) {
	unsealed := *report
	unsealed.Digest = ""

	data, err := json.Marshal(&unsealed)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize report: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
