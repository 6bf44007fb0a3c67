// Package registry loads the Veracity Audit Registry (declared sources and
// reasoning entries) and cross-validates it against the parsed markers.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// defaultPrefixLength is used for sources no claim cites
const defaultPrefixLength = 10

// Payload is the JSON shape of a registry
type Payload struct {
	Sources   []model.SourceEntry    `json:"SOURCES"`
	Reasoning []model.ReasoningEntry `json:"REASONING"`
}

type rawPayload struct {
	Payload
	SSR []model.SourceEntry    `json:"SSR"`
	VAR []model.ReasoningEntry `json:"VAR"`
}

// Registry is a validated, indexed registry
type Registry struct {
	Sources   []model.SourceEntry
	Reasoning []model.ReasoningEntry

	byHash      map[string]int
	byRelation  map[string]int
	claimSource map[string]int // claim id -> index in Sources
}

// Decode validates data against the registry schema and decodes it
func Decode(data []byte) (*Payload, error) {
	s, err := schema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, model.NewStructuralError(model.ErrInvalidRegistry, "", nil, "invalid JSON: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, model.NewStructuralError(model.ErrInvalidRegistry, "", nil, "%v", err)
	}

	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, model.NewStructuralError(model.ErrInvalidRegistry, "", nil, "decode: %v", err)
	}

	p := raw.Payload
	if p.Sources == nil {
		p.Sources = raw.SSR
	}
	if p.Reasoning == nil {
		p.Reasoning = raw.VAR
	}
	return &p, nil
}

// Load decodes data and cross-validates it against markers
func Load(data []byte, markers *model.Markers) (*Registry, error) {
	p, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return New(p, markers)
}

// New indexes p and cross-validates it against markers. Every claim's hash
// prefix must resolve to exactly one source and every relationship must have
// exactly one reasoning entry with the same type and dependency set.
func New(p *Payload, markers *model.Markers) (*Registry, error) {
	r := &Registry{
		Sources:     make([]model.SourceEntry, len(p.Sources)),
		Reasoning:   make([]model.ReasoningEntry, len(p.Reasoning)),
		byHash:      make(map[string]int, len(p.Sources)),
		byRelation:  make(map[string]int, len(p.Reasoning)),
		claimSource: make(map[string]int, len(markers.Claims)),
	}
	copy(r.Sources, p.Sources)
	copy(r.Reasoning, p.Reasoning)

	if err := r.indexSources(); err != nil {
		return nil, err
	}
	if err := r.resolveClaims(markers.Claims); err != nil {
		return nil, err
	}
	if err := r.matchReasoning(markers.Relationships); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) indexSources() error {
	for i := range r.Sources {
		s := &r.Sources[i]
		s.Hash = strings.ToLower(strings.TrimSpace(s.Hash))
		s.CanonicalURI = strings.TrimSpace(s.CanonicalURI)
		if s.DeclaredStatus == "" {
			s.DeclaredStatus = model.SourceUnverified
		}
		if _, dup := r.byHash[s.Hash]; dup {
			return model.NewStructuralError(model.ErrDuplicateSource, "", nil, "SHI %s declared twice", s.Hash)
		}
		r.byHash[s.Hash] = i
	}
	return nil
}

func (r *Registry) resolveClaims(claims []model.ClaimMarker) error {
	for _, c := range claims {
		idx, err := r.lookup(c.HashPrefix)
		if err != nil {
			span := c.Span
			return model.NewStructuralError(err, c.ID, &span, "hash prefix %s", c.HashPrefix)
		}
		r.claimSource[c.ID] = idx
		if r.Sources[idx].HashPrefix == "" {
			r.Sources[idx].HashPrefix = c.HashPrefix
		}
	}

	for i := range r.Sources {
		if r.Sources[i].HashPrefix == "" {
			r.Sources[i].HashPrefix = r.displayPrefix(i)
		}
	}
	return nil
}

// displayPrefix is the shortest prefix of at least defaultPrefixLength that
// resolves to source i alone, so uncited sources never share a label
func (r *Registry) displayPrefix(i int) string {
	hash := r.Sources[i].Hash
	for n := defaultPrefixLength; n < len(hash); n++ {
		if idx, err := r.lookup(hash[:n]); err == nil && idx == i {
			return hash[:n]
		}
	}
	return hash
}

// lookup returns the index of the single source whose hash starts with prefix
func (r *Registry) lookup(prefix string) (int, error) {
	found := -1
	for i := range r.Sources {
		if !strings.HasPrefix(r.Sources[i].Hash, prefix) {
			continue
		}
		if found >= 0 {
			return -1, model.ErrAmbiguousSourcePrefix
		}
		found = i
	}
	if found < 0 {
		return -1, model.ErrUnknownSource
	}
	return found, nil
}

func (r *Registry) matchReasoning(relationships []model.RelationshipMarker) error {
	for i := range r.Reasoning {
		e := &r.Reasoning[i]
		e.RelationID = strings.TrimSpace(e.RelationID)
		if _, dup := r.byRelation[e.RelationID]; dup {
			return model.NewStructuralError(model.ErrReasoningMismatch, e.RelationID, nil, "reasoning entry declared twice")
		}
		r.byRelation[e.RelationID] = i
		if e.AuditStatus == "" {
			e.AuditStatus = model.AuditPending
		}
	}

	seen := make(map[string]bool, len(relationships))
	for _, rel := range relationships {
		seen[rel.ID] = true
		span := rel.Span

		idx, ok := r.byRelation[rel.ID]
		if !ok {
			return model.NewStructuralError(model.ErrReasoningMismatch, rel.ID, &span, "no reasoning entry")
		}
		e := &r.Reasoning[idx]

		entryType, ok := model.ParseRelationType(strings.TrimSpace(string(e.Type)))
		if !ok || entryType != rel.Type {
			return model.NewStructuralError(model.ErrReasoningMismatch, rel.ID, &span, "marker type %s, registry type %s", rel.Type, e.Type)
		}
		e.Type = entryType

		if !sameSet(rel.DependsOn, e.DepClaims) {
			return model.NewStructuralError(model.ErrReasoningMismatch, rel.ID, &span,
				"marker depends on %s, registry lists %s", strings.Join(rel.DependsOn, ","), strings.Join(e.DepClaims, ","))
		}
	}

	for _, e := range r.Reasoning {
		if !seen[e.RelationID] {
			return model.NewStructuralError(model.ErrReasoningMismatch, e.RelationID, nil, "reasoning entry has no relationship marker")
		}
	}
	return nil
}

// Resolve returns the single source whose full hash starts with prefix
func (r *Registry) Resolve(prefix string) (*model.SourceEntry, error) {
	idx, err := r.lookup(strings.ToLower(prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, prefix)
	}
	return &r.Sources[idx], nil
}

// SourceForClaim returns the source a claim cites
func (r *Registry) SourceForClaim(claimID string) (*model.SourceEntry, bool) {
	idx, ok := r.claimSource[claimID]
	if !ok {
		return nil, false
	}
	return &r.Sources[idx], true
}

// ReasoningFor returns the reasoning entry of a relationship
func (r *Registry) ReasoningFor(relationID string) (*model.ReasoningEntry, bool) {
	idx, ok := r.byRelation[relationID]
	if !ok {
		return nil, false
	}
	return &r.Reasoning[idx], true
}

// CitingClaims returns the ids of claims citing the source with hash, sorted
func (r *Registry) CitingClaims(hash string) []string {
	idx, ok := r.byHash[hash]
	if !ok {
		return nil
	}
	var ids []string
	for id, i := range r.claimSource {
		if i == idx {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(a, b int) bool {
		return claimNumber(ids[a]) < claimNumber(ids[b])
	})
	return ids
}

// Encode renders a payload as indented JSON in the registry schema
func Encode(p *Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode registry: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sameSet(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[strings.TrimSpace(id)] = true
	}
	other := make(map[string]bool, len(b))
	for _, id := range b {
		id = strings.TrimSpace(id)
		if !set[id] {
			return false
		}
		other[id] = true
	}
	return len(set) == len(other)
}

func claimNumber(id string) int {
	n := 0
	for _, c := range strings.TrimPrefix(id, "C") {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
