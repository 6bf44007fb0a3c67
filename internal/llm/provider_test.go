package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/veracity/internal/model"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		answer   string
		decision model.AuditStatus
		wantErr  bool
	}{
		{"VERIFIED_LOGIC\nFollows.", model.AuditVerifiedLogic, false},
		{"  insufficient_logic  \n\nNo link.", model.AuditInsufficientLogic, false},
		{"`VERIFIED_LOGIC`", model.AuditVerifiedLogic, false},
		{"VERIFIED_LOGIC.", model.AuditVerifiedLogic, false},
		{"VERIFIED", "", true},
		{"Yes, VERIFIED_LOGIC", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		judgment, err := ParseDecision(tt.answer, "m")
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDecision(%q): expected error", tt.answer)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDecision(%q): unexpected error %v", tt.answer, err)
			continue
		}
		if judgment.Decision != tt.decision {
			t.Errorf("ParseDecision(%q): expected %s, got %s", tt.answer, tt.decision, judgment.Decision)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testRequest)

	for _, want := range []string{"R1", "CAUSAL", "C1: Frequency analysis", "Modus Ponens", "VERIFIED_LOGIC", "INSUFFICIENT_LOGIC"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}

	empty := BuildPrompt(model.JudgeRequest{RelationID: "R2", Type: model.RelationSummary})
	if !strings.Contains(empty, "(none declared)") {
		t.Error("Expected placeholder for missing logic model")
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Name() != "none" {
		t.Errorf("Expected unavailable judge, got %s", p.Name())
	}
	if _, err := p.Judge(context.Background(), testRequest); !errors.Is(err, ErrNoJudge) {
		t.Errorf("Expected ErrNoJudge, got %v", err)
	}

	p, err = NewProvider(Config{Provider: "Claude", APIKey: "k"})
	if err != nil || p.Name() != "anthropic" {
		t.Errorf("Expected anthropic provider, got %v, %v", p, err)
	}

	if _, err := NewProvider(Config{Provider: "palm"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
