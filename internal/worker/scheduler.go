package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ppiankov/veracity/internal/graph"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/verify"
)

// CancelMode decides what happens to in-flight tasks when a run is cancelled
type CancelMode string

const (
	// CancelAbandon lets in-flight tasks observe the cancellation; their late
	// results are discarded and the markers stay PENDING
	CancelAbandon CancelMode = "abandon"
	// CancelDrain lets in-flight tasks finish on a detached context and keeps
	// their verdicts; nothing new starts
	CancelDrain CancelMode = "drain"
)

// ClaimVerifier produces one claim verdict
type ClaimVerifier interface {
	Verify(ctx context.Context, claim model.ClaimMarker) model.Verdict
}

// ReasoningVerifier produces one relationship verdict from terminal premises
type ReasoningVerifier interface {
	Verify(ctx context.Context, rel model.RelationshipMarker, entry *model.ReasoningEntry, premises []verify.Premise) model.RelationVerdict
}

// ReasoningIndex looks up the registry entry of a relationship
type ReasoningIndex interface {
	ReasoningFor(relationID string) (*model.ReasoningEntry, bool)
}

// SchedulerConfig bounds scheduler concurrency
type SchedulerConfig struct {
	ClaimWorkers int
	JudgeWorkers int
	CancelMode   CancelMode
}

// RunResult is the verdict set of one run
type RunResult struct {
	Verdicts  *model.Verdicts
	Cancelled bool
	Duration  time.Duration
}

// Scheduler runs claim verification in parallel and gates each relationship
// on completion notifications from its premises. Every marker is verified at
// most once per run, and no relationship is judged before all of its
// premises have terminal verdicts.
type Scheduler struct {
	claims    ClaimVerifier
	relations ReasoningVerifier
	reasoning ReasoningIndex
	config    SchedulerConfig
	logger    *zap.Logger
}

// NewScheduler creates a scheduler
func NewScheduler(claims ClaimVerifier, relations ReasoningVerifier, reasoning ReasoningIndex, config SchedulerConfig, logger *zap.Logger) *Scheduler {
	if config.ClaimWorkers <= 0 {
		config.ClaimWorkers = 1
	}
	if config.JudgeWorkers <= 0 {
		config.JudgeWorkers = 1
	}
	if config.CancelMode == "" {
		config.CancelMode = CancelAbandon
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		claims:    claims,
		relations: relations,
		reasoning: reasoning,
		config:    config,
		logger:    logger,
	}
}

// claimSlot is written once by its own task, then published by closing done
type claimSlot struct {
	marker  model.ClaimMarker
	verdict model.Verdict
	done    chan struct{}
}

// Run verifies every marker of g. It always waits for the goroutines it
// started, so a cancelled run returns only once in-flight work has ended.
func (s *Scheduler) Run(ctx context.Context, markers *model.Markers, g *graph.Graph) (*RunResult, error) {
	start := time.Now()

	slots := make(map[string]*claimSlot, len(markers.Claims))
	order := make([]*claimSlot, 0, len(markers.Claims))
	for _, c := range markers.Claims {
		slot := &claimSlot{
			marker:  c,
			verdict: model.Verdict{ClaimID: c.ID, Status: model.ClaimPending},
			done:    make(chan struct{}),
		}
		slots[c.ID] = slot
		order = append(order, slot)
	}

	for _, rel := range markers.Relationships {
		for _, dep := range g.Required[rel.ID] {
			if _, ok := slots[dep]; !ok {
				return nil, fmt.Errorf("relationship %s depends on unscheduled claim %s", rel.ID, dep)
			}
		}
	}
	scheduled := 0
	for _, node := range g.Order {
		if _, ok := slots[node.ID]; ok && node.Kind == graph.ClaimNode {
			scheduled++
		}
	}
	if scheduled != len(slots) {
		return nil, fmt.Errorf("graph orders %d of %d claims", scheduled, len(slots))
	}

	relVerdicts := make([]model.RelationVerdict, len(markers.Relationships))
	for i, rel := range markers.Relationships {
		relVerdicts[i] = model.RelationVerdict{RelationID: rel.ID, Status: model.AuditPending}
	}

	s.logger.Info("audit run started",
		zap.Int("claims", len(markers.Claims)),
		zap.Int("relationships", len(markers.Relationships)),
		zap.String("cancel_mode", string(s.config.CancelMode)))

	judges := semaphore.NewWeighted(int64(s.config.JudgeWorkers))

	relIndex := make(map[string]int, len(markers.Relationships))
	for i, rel := range markers.Relationships {
		relIndex[rel.ID] = i
	}

	// level 1: one waiter per relationship, woken by its premises
	var relGroup errgroup.Group
	for _, node := range g.Order {
		if node.Kind != graph.RelationNode {
			continue
		}
		i, ok := relIndex[node.ID]
		if !ok {
			continue
		}
		rel := markers.Relationships[i]
		relGroup.Go(func() error {
			if v, ok := s.runRelation(ctx, rel, g.Required[rel.ID], slots, judges); ok {
				relVerdicts[i] = v
			}
			return nil
		})
	}

	// level 0: claims in topological order, bounded by ClaimWorkers
	var claimGroup errgroup.Group
	claimGroup.SetLimit(s.config.ClaimWorkers)
	for _, node := range g.Order {
		slot, ok := slots[node.ID]
		if node.Kind != graph.ClaimNode || !ok {
			continue
		}
		dependents := g.Dependents[node.ID]
		claimGroup.Go(func() error {
			defer close(slot.done)
			if v, ok := s.runClaim(ctx, slot.marker); ok {
				slot.verdict = v
				if v.Status == model.ClaimFailed && len(dependents) > 0 {
					s.logger.Debug("failed claim propagates",
						zap.String("claim", slot.marker.ID),
						zap.Strings("relationships", dependents))
				}
			}
			return nil
		})
	}

	_ = claimGroup.Wait()
	_ = relGroup.Wait()

	verdicts := model.NewVerdicts()
	for _, slot := range order {
		verdicts.Claims[slot.marker.ID] = slot.verdict
	}
	for _, v := range relVerdicts {
		verdicts.Relations[v.RelationID] = v
	}

	result := &RunResult{
		Verdicts:  verdicts,
		Cancelled: ctx.Err() != nil,
		Duration:  time.Since(start),
	}

	if result.Cancelled {
		s.logger.Warn("audit run cancelled", zap.Duration("elapsed", result.Duration), zap.Error(ctx.Err()))
	} else {
		s.logger.Info("audit run finished", zap.Duration("elapsed", result.Duration))
	}

	return result, nil
}

// runClaim returns the claim verdict and whether it may be recorded
func (s *Scheduler) runClaim(ctx context.Context, claim model.ClaimMarker) (model.Verdict, bool) {
	if ctx.Err() != nil {
		return model.Verdict{}, false
	}

	v := s.claims.Verify(s.taskContext(ctx), claim)
	if !s.keep(ctx) || !v.Status.Terminal() {
		return model.Verdict{}, false
	}
	return v, true
}

// runRelation waits for every premise, then decides the relationship
func (s *Scheduler) runRelation(ctx context.Context, rel model.RelationshipMarker, required []string, slots map[string]*claimSlot, judges *semaphore.Weighted) (model.RelationVerdict, bool) {
	for _, dep := range required {
		select {
		case <-slots[dep].done:
		case <-ctx.Done():
			return model.RelationVerdict{}, false
		}
	}

	premises := make([]verify.Premise, 0, len(required))
	for _, dep := range required {
		slot := slots[dep]
		premises = append(premises, verify.Premise{Claim: slot.marker, Verdict: slot.verdict})
	}

	entry, _ := s.reasoning.ReasoningFor(rel.ID)

	// a failed premise decides the relationship without the judge
	switch status, _ := verify.CheckPremises(premises); status {
	case model.AuditPending:
		return model.RelationVerdict{}, false
	case model.AuditInsufficientPremise:
		if !s.keep(ctx) {
			return model.RelationVerdict{}, false
		}
		return s.relations.Verify(ctx, rel, entry, premises), true
	}

	if err := judges.Acquire(ctx, 1); err != nil {
		return model.RelationVerdict{}, false
	}
	defer judges.Release(1)

	if ctx.Err() != nil {
		return model.RelationVerdict{}, false
	}

	v := s.relations.Verify(s.taskContext(ctx), rel, entry, premises)
	if !s.keep(ctx) || !v.Status.Terminal() {
		return model.RelationVerdict{}, false
	}
	return v, true
}

// taskContext is the context an admitted task runs on
func (s *Scheduler) taskContext(ctx context.Context) context.Context {
	if s.config.CancelMode == CancelDrain {
		return context.WithoutCancel(ctx)
	}
	return ctx
}

// keep reports whether a result finished now may be recorded
func (s *Scheduler) keep(ctx context.Context) bool {
	return s.config.CancelMode == CancelDrain || ctx.Err() == nil
}
