package model

// SourceStatus is the declared (input) or audited (output) status of a source
type SourceStatus string

const (
	SourceUnverified SourceStatus = "UNVERIFIED"
	SourceVerified   SourceStatus = "VERIFIED"
)

// SourceEntry is one declared source in the Veracity Audit Registry.
// Field names follow the ACG registry JSON schema.
type SourceEntry struct {
	Hash           string       `json:"SHI"`                     // full fingerprint, opaque
	HashPrefix     string       `json:"SHI_Prefix,omitempty"`    // prefix used by markers (filled by the loader)
	SourceType     string       `json:"Type,omitempty"`          // e.g. "Web Article"
	CanonicalURI   string       `json:"Canonical_URI"`           // fetched through the fetch capability
	LocationType   string       `json:"Location_Type,omitempty"` // e.g. "CSS_Selector"
	LocSelector    string       `json:"Loc_Selector,omitempty"`
	DeclaredStatus SourceStatus `json:"Verification_Status,omitempty"`
	Authority      string       `json:"Authority,omitempty"` // output only
}

// AuditStatus is the lifecycle state of a relationship
type AuditStatus string

const (
	AuditPending             AuditStatus = "PENDING"
	AuditAwaitingJudgment    AuditStatus = "AWAITING_JUDGMENT"
	AuditVerifiedLogic       AuditStatus = "VERIFIED_LOGIC"
	AuditInsufficientLogic   AuditStatus = "INSUFFICIENT_LOGIC"
	AuditInsufficientPremise AuditStatus = "INSUFFICIENT_PREMISE"
)

// Terminal reports whether the status will not change again within a run
func (s AuditStatus) Terminal() bool {
	switch s {
	case AuditVerifiedLogic, AuditInsufficientLogic, AuditInsufficientPremise:
		return true
	}
	return false
}

// Failed reports whether the status counts as failure for rewriting
func (s AuditStatus) Failed() bool {
	return s == AuditInsufficientLogic || s == AuditInsufficientPremise
}

// ReasoningEntry documents one synthesized relationship in the registry
type ReasoningEntry struct {
	RelationID     string        `json:"RELATION_ID"`
	Type           RelationType  `json:"TYPE"`
	DepClaims      []string      `json:"DEP_CLAIMS"`
	LogicModel     string        `json:"LOGIC_MODEL"`
	SynthesisProse string        `json:"SYNTHESIS_PROSE"`
	AuditStatus    AuditStatus   `json:"AUDIT_STATUS"`
	Timestamp      string        `json:"TIMESTAMP,omitempty"`
	Reason         string        `json:"REASON,omitempty"` // output only
	Action         RewriteAction `json:"ACTION,omitempty"` // output only
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Laws, statutes, academic papers, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites, tourism sites
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}
