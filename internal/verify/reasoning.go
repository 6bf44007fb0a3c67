package verify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
)

// Judge is the external logic checker. It answers whether the logic model
// justifies the relationship type given the verified premises.
type Judge interface {
	Judge(ctx context.Context, req model.JudgeRequest) (*model.Judgment, error)
	Name() string
}

// Premise pairs a premise claim with its verdict
type Premise struct {
	Claim   model.ClaimMarker
	Verdict model.Verdict
}

// ReasoningVerifier drives one relationship through
// PENDING -> {INSUFFICIENT_PREMISE | AWAITING_JUDGMENT} -> {VERIFIED_LOGIC | INSUFFICIENT_LOGIC}
type ReasoningVerifier struct {
	judge  Judge
	logger *zap.Logger
}

// NewReasoningVerifier creates a reasoning verifier backed by judge
func NewReasoningVerifier(judge Judge, logger *zap.Logger) *ReasoningVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReasoningVerifier{judge: judge, logger: logger}
}

// CheckPremises decides the transition out of PENDING. It returns
// AWAITING_JUDGMENT when every premise is VERIFIED, INSUFFICIENT_PREMISE when
// any premise FAILED, and PENDING while any premise is undecided.
func CheckPremises(premises []Premise) (model.AuditStatus, string) {
	var failedIDs, reasons []string
	for _, p := range premises {
		switch p.Verdict.Status {
		case model.ClaimFailed:
			failedIDs = append(failedIDs, p.Claim.ID)
			reasons = append(reasons, fmt.Sprintf("%s: %s", p.Claim.ID, p.Verdict.Reason))
		case model.ClaimVerified:
		default:
			return model.AuditPending, "premises not yet decided"
		}
	}
	if len(failedIDs) > 0 {
		return model.AuditInsufficientPremise, fmt.Sprintf("failed premise %s (%s)", strings.Join(failedIDs, ","), strings.Join(reasons, "; "))
	}
	return model.AuditAwaitingJudgment, ""
}

// Verify produces the verdict of one relationship. premises must list the
// relationship's dependencies; the judge is consulted only when all of them
// are VERIFIED. Cancellation leaves the relationship PENDING.
func (v *ReasoningVerifier) Verify(ctx context.Context, rel model.RelationshipMarker, entry *model.ReasoningEntry, premises []Premise) model.RelationVerdict {
	verdict := v.verify(ctx, rel, entry, premises)
	metrics.RelationVerdicts.WithLabelValues(string(verdict.Status)).Inc()
	v.logger.Debug("relationship verdict",
		zap.String("relation", rel.ID),
		zap.String("status", string(verdict.Status)),
		zap.String("reason", verdict.Reason))
	return verdict
}

func (v *ReasoningVerifier) verify(ctx context.Context, rel model.RelationshipMarker, entry *model.ReasoningEntry, premises []Premise) model.RelationVerdict {
	status, reason := CheckPremises(premises)
	v.logger.Debug("relationship transition",
		zap.String("relation", rel.ID),
		zap.String("from", string(model.AuditPending)),
		zap.String("to", string(status)))

	if status != model.AuditAwaitingJudgment {
		return model.RelationVerdict{RelationID: rel.ID, Status: status, Reason: reason}
	}
	if ctx.Err() != nil {
		return model.RelationVerdict{RelationID: rel.ID, Status: model.AuditPending, Reason: "run cancelled"}
	}

	req := model.JudgeRequest{
		RelationID: rel.ID,
		Type:       rel.Type,
	}
	if entry != nil {
		req.LogicModel = entry.LogicModel
		req.SynthesisProse = entry.SynthesisProse
	}
	for _, p := range premises {
		req.Premises = append(req.Premises, model.PremiseText{
			ClaimID: p.Claim.ID,
			Text:    p.Claim.Text,
			Located: p.Verdict.Located,
		})
	}

	judgment, err := v.judge.Judge(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return model.RelationVerdict{RelationID: rel.ID, Status: model.AuditPending, Reason: "run cancelled"}
		}
		metrics.JudgeCalls.WithLabelValues(v.judge.Name(), "error").Inc()
		return model.RelationVerdict{
			RelationID: rel.ID,
			Status:     model.AuditInsufficientLogic,
			Reason:     fmt.Sprintf("judge unavailable: %v", err),
		}
	}
	metrics.JudgeCalls.WithLabelValues(v.judge.Name(), "ok").Inc()

	switch judgment.Decision {
	case model.AuditVerifiedLogic:
		return model.RelationVerdict{RelationID: rel.ID, Status: model.AuditVerifiedLogic, Reason: judgment.Rationale}
	case model.AuditInsufficientLogic:
		reason := judgment.Rationale
		if reason == "" {
			reason = fmt.Sprintf("logic model does not justify %s", rel.Type)
		}
		return model.RelationVerdict{RelationID: rel.ID, Status: model.AuditInsufficientLogic, Reason: reason}
	default:
		return model.RelationVerdict{
			RelationID: rel.ID,
			Status:     model.AuditInsufficientLogic,
			Reason:     fmt.Sprintf("judge returned invalid decision %q", judgment.Decision),
		}
	}
}
