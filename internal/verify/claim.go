// Package verify decides claim and relationship verdicts.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
)

// maxLocatedLen bounds the located text kept on a verdict for the judge
const maxLocatedLen = 4000

// ContentSource resolves source content by hash prefix (the Source Cache)
type ContentSource interface {
	Resolve(ctx context.Context, hashPrefix string) ([]byte, error)
}

// ClaimVerifier checks that a claim's text appears at its declared location
type ClaimVerifier struct {
	source ContentSource
	logger *zap.Logger
}

// NewClaimVerifier creates a claim verifier reading through source
func NewClaimVerifier(source ContentSource, logger *zap.Logger) *ClaimVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimVerifier{source: source, logger: logger}
}

// Verify produces the verdict of one claim. It never retries; a fetch
// failure is a FAILED verdict. If ctx is cancelled before a verdict is
// reached the claim stays PENDING.
func (v *ClaimVerifier) Verify(ctx context.Context, claim model.ClaimMarker) model.Verdict {
	verdict := v.verify(ctx, claim)
	metrics.ClaimVerdicts.WithLabelValues(string(verdict.Status)).Inc()
	v.logger.Debug("claim verdict",
		zap.String("claim", claim.ID),
		zap.String("status", string(verdict.Status)),
		zap.String("reason", verdict.Reason))
	return verdict
}

func (v *ClaimVerifier) verify(ctx context.Context, claim model.ClaimMarker) model.Verdict {
	pending := model.Verdict{ClaimID: claim.ID, Status: model.ClaimPending, Reason: "run cancelled"}
	if ctx.Err() != nil {
		return pending
	}

	if claim.Text == "" {
		return failed(claim.ID, "no asserted text precedes the marker")
	}

	sel, err := ParseSelector(claim.Location)
	if err != nil {
		return failed(claim.ID, err.Error())
	}

	content, err := v.source.Resolve(ctx, claim.HashPrefix)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return pending
		}
		return failed(claim.ID, fmt.Sprintf("source unavailable: %v", err))
	}

	located, err := sel.Locate(content)
	if err != nil {
		return failed(claim.ID, err.Error())
	}

	if !Contains(located, claim.Text) {
		return failed(claim.ID, fmt.Sprintf("content mismatch: claim text not found at %s", claim.Location))
	}

	if len(located) > maxLocatedLen {
		located = strings.ToValidUTF8(located[:maxLocatedLen], "")
	}
	return model.Verdict{
		ClaimID: claim.ID,
		Status:  model.ClaimVerified,
		Located: located,
	}
}

func failed(id, reason string) model.Verdict {
	return model.Verdict{ClaimID: id, Status: model.ClaimFailed, Reason: reason}
}
