package model

import "time"

// Outcome is the overall result of an audit run
type Outcome string

const (
	OutcomeVerified   Outcome = "VERIFIED"   // every marker verified
	OutcomePartial    Outcome = "PARTIAL"    // some markers removed or flagged
	OutcomeIncomplete Outcome = "INCOMPLETE" // run cancelled, some markers still pending
)

// RewriteAction describes what the rewriter did with a marker's sentence
type RewriteAction string

const (
	ActionRetained RewriteAction = "retained"
	ActionRemoved  RewriteAction = "removed"
	ActionFlagged  RewriteAction = "flagged"
)

// Report is the machine-readable AuditReport. It mirrors the registry schema
// with final statuses filled in. Immutable once the run completes.
type Report struct {
	RunID       string    `json:"RUN_ID"`
	Document    string    `json:"DOCUMENT,omitempty"`
	StartedAt   time.Time `json:"STARTED_AT"`
	CompletedAt time.Time `json:"COMPLETED_AT"`
	Outcome     Outcome   `json:"OUTCOME"`
	Cancelled   bool      `json:"CANCELLED,omitempty"`

	Sources   []SourceEntry    `json:"SOURCES"`
	Reasoning []ReasoningEntry `json:"REASONING"`
	Claims    []ClaimRecord    `json:"CLAIMS"`
	Regions   []Region         `json:"REGIONS,omitempty"`

	Summary Summary `json:"SUMMARY"`
	Digest  string  `json:"DIGEST,omitempty"` // sha256 of the canonical report without this field
}

// ClaimRecord is the per-claim entry of the report
type ClaimRecord struct {
	ClaimID     string        `json:"CLAIM_ID"`
	HashPrefix  string        `json:"SHI_PREFIX"`
	SourceHash  string        `json:"SHI,omitempty"`
	LocSelector string        `json:"LOC_SELECTOR"`
	ClaimText   string        `json:"CLAIM_TEXT,omitempty"`
	Status      ClaimStatus   `json:"Verification_Status"`
	Reason      string        `json:"REASON,omitempty"`
	Span        Span          `json:"SPAN"`
	Action      RewriteAction `json:"ACTION"`
}

// Region is one contiguous range of the original text that was removed or flagged
type Region struct {
	Span      Span          `json:"span"`
	MarkerIDs []string      `json:"marker_ids"`
	Action    RewriteAction `json:"action"`
	Reasons   []string      `json:"reasons,omitempty"`
}

// Summary is the transparent scoring breakdown of an audit
type Summary struct {
	Claims              int      `json:"claims"`
	ClaimsVerified      int      `json:"claims_verified"`
	ClaimsFailed        int      `json:"claims_failed"`
	ClaimsPending       int      `json:"claims_pending"`
	Relations           int      `json:"relations"`
	RelationsVerified   int      `json:"relations_verified"`
	InsufficientLogic   int      `json:"insufficient_logic"`
	InsufficientPremise int      `json:"insufficient_premise"`
	RelationsPending    int      `json:"relations_pending"`
	IntegrityIndex      int      `json:"integrity_index"` // 0-100
	Signals             []Signal `json:"signals,omitempty"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalClaimIntegrity     SignalType = "claim_integrity"        // share of claims verified
	SignalReasoningIntegrity SignalType = "reasoning_integrity"    // share of relationships verified
	SignalAuthority          SignalType = "authority_distribution" // tiers of cited sources
	SignalUnreachableSource  SignalType = "unreachable_source"     // fetch capability failed
	SignalSelectorDrift      SignalType = "selector_drift"         // selector no longer resolves
	SignalContentMismatch    SignalType = "content_mismatch"       // located text does not carry the claim
	SignalPremisePoisoning   SignalType = "premise_poisoning"      // failed claims invalidated syntheses
	SignalLogicRejected      SignalType = "logic_rejected"         // judge rejected a synthesis
	SignalIncompleteRun      SignalType = "incomplete_run"         // cancellation left markers pending
	SignalSourceConcentrate  SignalType = "source_concentration"   // most claims rest on one source
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
