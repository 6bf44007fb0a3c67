// Package llm implements the judge capability on top of language model
// providers. A judge decides whether a relationship's logic model justifies
// its type given the verified premises.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// Provider is a judge backed by a language model
type Provider interface {
	// Name returns the provider name
	Name() string

	// Judge asks the model for a binary logic decision
	Judge(ctx context.Context, req model.JudgeRequest) (*model.Judgment, error)

	// Ping checks that the provider is configured and reachable
	Ping(ctx context.Context) error
}

// Config holds judge provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for the decision and rationale
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // no judge: relationships are not verified
		Timeout:   30,
		MaxTokens: 400,
	}
}

const systemPrompt = "You are a strict logic checker for an audit pipeline. " +
	"You decide whether a stated logic model justifies a stated relationship between verified premises. " +
	"You never judge whether the premises are true; they have already been verified against their sources."

// BuildPrompt renders the user prompt for a judge request. The model must
// answer with the decision token alone on the first line.
func BuildPrompt(req model.JudgeRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Relationship %s of type %s.\n\n", req.RelationID, req.Type)
	b.WriteString("Verified premises:\n")
	for _, p := range req.Premises {
		fmt.Fprintf(&b, "- %s: %s\n", p.ClaimID, p.Text)
		if p.Located != "" {
			fmt.Fprintf(&b, "  source text: %s\n", truncate(p.Located, 600))
		}
	}

	logic := req.LogicModel
	if logic == "" {
		logic = "(none declared)"
	}
	fmt.Fprintf(&b, "\nDeclared logic model: %s\n", logic)
	if req.SynthesisProse != "" {
		fmt.Fprintf(&b, "Synthesized statement: %s\n", req.SynthesisProse)
	}

	fmt.Fprintf(&b, `
Does the logic model justify a %s relationship from these premises to the synthesized statement?

Answer format:
Line 1: exactly %s or %s
Line 2+: one or two sentences of rationale.`, req.Type, model.AuditVerifiedLogic, model.AuditInsufficientLogic)

	return b.String()
}

// ParseDecision reads the decision token from the first non-empty line of a
// model answer. Anything else on that line, or an unknown token, is an error.
func ParseDecision(answer, modelName string) (*model.Judgment, error) {
	lines := strings.Split(strings.TrimSpace(answer), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("empty judge answer")
	}

	token := strings.ToUpper(strings.Trim(strings.TrimSpace(lines[0]), "*`_.:\"' "))
	var decision model.AuditStatus
	switch token {
	case string(model.AuditVerifiedLogic):
		decision = model.AuditVerifiedLogic
	case string(model.AuditInsufficientLogic):
		decision = model.AuditInsufficientLogic
	default:
		return nil, fmt.Errorf("judge answer does not start with a decision token: %q", truncate(lines[0], 80))
	}

	return &model.Judgment{
		Decision:  decision,
		Rationale: strings.TrimSpace(strings.Join(lines[1:], " ")),
		Model:     modelName,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
