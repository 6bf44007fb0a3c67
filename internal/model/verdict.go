package model

// ClaimStatus is the verification state of a claim
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "PENDING"
	ClaimVerified ClaimStatus = "VERIFIED"
	ClaimFailed   ClaimStatus = "FAILED"
)

// Terminal reports whether the status will not change again within a run
func (s ClaimStatus) Terminal() bool {
	return s == ClaimVerified || s == ClaimFailed
}

// Verdict is the outcome of verifying one claim
type Verdict struct {
	ClaimID string      `json:"claim_id"`
	Status  ClaimStatus `json:"status"`
	Reason  string      `json:"reason,omitempty"`
	Located string      `json:"-"` // source text the claim was matched against
}

// RelationVerdict is the outcome of verifying one relationship
type RelationVerdict struct {
	RelationID string      `json:"relation_id"`
	Status     AuditStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
}

// Verdicts is the complete verdict set of a run, keyed by marker id
type Verdicts struct {
	Claims    map[string]Verdict
	Relations map[string]RelationVerdict
}

// NewVerdicts creates an empty verdict set
func NewVerdicts() *Verdicts {
	return &Verdicts{
		Claims:    make(map[string]Verdict),
		Relations: make(map[string]RelationVerdict),
	}
}

// Failed reports whether the marker with the given id resolved to a failure
func (v *Verdicts) Failed(id string) bool {
	if c, ok := v.Claims[id]; ok {
		return c.Status == ClaimFailed
	}
	if r, ok := v.Relations[id]; ok {
		return r.Status.Failed()
	}
	return false
}

// Reason returns the recorded reason for the marker with the given id
func (v *Verdicts) Reason(id string) string {
	if c, ok := v.Claims[id]; ok {
		return c.Reason
	}
	if r, ok := v.Relations[id]; ok {
		return r.Reason
	}
	return ""
}

// Status returns the status string of the marker with the given id
func (v *Verdicts) Status(id string) string {
	if c, ok := v.Claims[id]; ok {
		return string(c.Status)
	}
	if r, ok := v.Relations[id]; ok {
		return string(r.Status)
	}
	return ""
}

// PremiseText is one verified premise handed to the judge
type PremiseText struct {
	ClaimID string `json:"claim_id"`
	Text    string `json:"text"`    // asserted claim text
	Located string `json:"located"` // source text that verified it
}

// JudgeRequest is the input of the external logic checker
type JudgeRequest struct {
	RelationID     string        `json:"relation_id"`
	Type           RelationType  `json:"type"`
	LogicModel     string        `json:"logic_model"`
	Premises       []PremiseText `json:"premises"`
	SynthesisProse string        `json:"synthesis_prose"`
}

// Judgment is the binary answer of the external logic checker
type Judgment struct {
	Decision  AuditStatus `json:"decision"` // VERIFIED_LOGIC or INSUFFICIENT_LOGIC
	Rationale string      `json:"rationale,omitempty"`
	Model     string      `json:"model,omitempty"`
}
