// Package pipeline wires the audit together: parse, load the registry,
// build the graph, schedule verification, rewrite and report.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/graph"
	"github.com/ppiankov/veracity/internal/llm"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/registry"
	"github.com/ppiankov/veracity/internal/rewrite"
	"github.com/ppiankov/veracity/internal/score"
	"github.com/ppiankov/veracity/internal/validate"
	"github.com/ppiankov/veracity/internal/verify"
	"github.com/ppiankov/veracity/internal/worker"
)

// Document is one audit input
type Document struct {
	Name     string // path or label carried into the report
	Text     string
	Registry []byte // external registry payload; nil uses the embedded block
}

// Result is the outcome of one audit
type Result struct {
	AuditedText string
	Report      *model.Report
	CacheStats  cache.Stats
}

// Auditor runs audits with a fixed configuration and capabilities
type Auditor struct {
	config    *model.Config
	fetcher   cache.Fetcher
	store     cache.Store
	judge     verify.Judge
	authority *validate.AuthorityClassifier
	scorer    *score.Scorer
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures an Auditor
type Option func(*Auditor)

// WithFetcher replaces the HTTP/file fetch capability
func WithFetcher(f cache.Fetcher) Option {
	return func(a *Auditor) { a.fetcher = f }
}

// WithJudge replaces the configured judge provider
func WithJudge(j verify.Judge) Option {
	return func(a *Auditor) { a.judge = j }
}

// WithStore replaces the persistent content store (nil disables it)
func WithStore(s cache.Store) Option {
	return func(a *Auditor) { a.store = s }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *Auditor) { a.logger = logger }
}

// NewAuditor creates an auditor. Capabilities not supplied as options are
// built from cfg.
func NewAuditor(cfg *model.Config, opts ...Option) (*Auditor, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}

	a := &Auditor{
		config:    cfg,
		store:     cache.NewStore(cfg.Cache),
		authority: validate.NewAuthorityClassifier(&cfg.Authority),
		scorer:    score.NewScorer(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.fetcher == nil {
		a.fetcher = NewSourceFetcher(cfg.HTTP, a.logger.Named("fetch"))
	}
	if a.judge == nil {
		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.Judge, cfg.HTTP))
		if err != nil {
			return nil, fmt.Errorf("judge: %w", err)
		}
		a.judge = provider
	}

	return a, nil
}

// AuditFile reads a document and an optional registry file and audits them.
// It satisfies worker.DocumentAuditor.
func (a *Auditor) AuditFile(ctx context.Context, document, registryPath string) (*model.Report, error) {
	res, err := a.AuditPath(ctx, document, registryPath)
	if err != nil {
		return nil, err
	}
	return res.Report, nil
}

// AuditPath is AuditFile returning the audited text as well
func (a *Auditor) AuditPath(ctx context.Context, document, registryPath string) (*Result, error) {
	text, err := os.ReadFile(document)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc := Document{Name: document, Text: string(text)}
	if registryPath != "" {
		doc.Registry, err = os.ReadFile(registryPath)
		if err != nil {
			return nil, fmt.Errorf("read registry: %w", err)
		}
	}

	return a.Audit(ctx, doc)
}

// Audit verifies every marker of doc and rewrites it. Structural errors in
// the document or registry are returned before any verification starts;
// verification failures end up in the report.
func (a *Auditor) Audit(ctx context.Context, doc Document) (*Result, error) {
	started := a.now()
	logger := a.logger.With(zap.String("document", doc.Name))

	// 1. Parse markers
	parsed, err := extract.Analyze(doc.Text)
	if err != nil {
		return nil, err
	}

	// 2. Load and cross-validate the registry
	reg, embedded, err := a.loadRegistry(doc, parsed)
	if err != nil {
		return nil, err
	}

	// 3. Build the dependency graph
	g, err := graph.Build(parsed.Markers)
	if err != nil {
		return nil, err
	}

	logger.Info("audit started",
		zap.Int("claims", len(parsed.Markers.Claims)),
		zap.Int("relationships", len(parsed.Markers.Relationships)),
		zap.Int("sources", len(reg.Sources)))

	// 4. Verify
	fetcher := a.fetcher
	if embedded {
		fetcher = remoteOnly{next: fetcher}
	}
	sources := cache.NewSourceCache(reg, fetcher,
		cache.WithStore(a.store, a.config.Cache.DiskTTL),
		cache.WithLogger(logger.Named("cache")))

	scheduler := worker.NewScheduler(
		verify.NewClaimVerifier(sources, logger.Named("claims")),
		verify.NewReasoningVerifier(a.judge, logger.Named("reasoning")),
		reg,
		worker.SchedulerConfig{
			ClaimWorkers: a.config.Concurrency.ClaimWorkers,
			JudgeWorkers: a.config.Concurrency.JudgeWorkers,
			CancelMode:   worker.CancelMode(a.config.Concurrency.CancelMode),
		},
		logger.Named("scheduler"))

	run, err := scheduler.Run(ctx, parsed.Markers, g)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	completed := a.now()

	// 5. Report entries with final statuses
	report := &model.Report{
		Document:    doc.Name,
		StartedAt:   started,
		CompletedAt: completed,
		Cancelled:   run.Cancelled,
		Sources:     auditedSources(reg, run.Verdicts),
		Reasoning:   auditedReasoning(reg, run.Verdicts, completed),
	}
	a.authority.Annotate(report.Sources)

	// 6. Rewrite
	opts := rewrite.Options{
		Mode:         rewrite.Mode(a.config.Rewrite.Mode),
		StripMarkers: a.config.Rewrite.StripMarkers,
	}
	if a.config.Rewrite.EmbedRegistry {
		payload, err := registry.Encode(&registry.Payload{Sources: report.Sources, Reasoning: report.Reasoning})
		if err != nil {
			return nil, err
		}
		opts.Registry = payload
	}
	rewritten := rewrite.Rewrite(parsed, run.Verdicts, opts)
	logger.Debug("document rewritten", zap.Int("regions", len(rewritten.Regions)))

	report.Claims = claimRecords(parsed.Markers, reg, run.Verdicts, rewritten.Actions)
	annotateReasoning(report.Reasoning, rewritten.Actions)
	report.Regions = rewritten.Regions

	// 7. Summarise and seal
	report.Summary = a.scorer.Calculate(report)
	report.Outcome = outcome(report.Summary)
	if err := Seal(report); err != nil {
		return nil, err
	}

	metrics.AuditRuns.WithLabelValues(string(report.Outcome)).Inc()
	logger.Info("audit finished",
		zap.String("run_id", report.RunID),
		zap.String("outcome", string(report.Outcome)),
		zap.Int("integrity_index", report.Summary.IntegrityIndex),
		zap.Duration("elapsed", run.Duration))

	return &Result{
		AuditedText: rewritten.Text,
		Report:      report,
		CacheStats:  sources.Stats(),
	}, nil
}

// loadRegistry prefers the external payload over the embedded block and
// reports whether the embedded block was used. A document without markers
// needs no registry.
func (a *Auditor) loadRegistry(doc Document, parsed *extract.Document) (*registry.Registry, bool, error) {
	if doc.Registry != nil {
		reg, err := registry.Load(doc.Registry, parsed.Markers)
		return reg, false, err
	}
	if parsed.Block != nil {
		reg, err := registry.Load(parsed.Block.Payload, parsed.Markers)
		return reg, true, err
	}
	if parsed.Markers.Len() > 0 {
		return nil, false, model.NewStructuralError(model.ErrInvalidRegistry, "", nil, "no registry supplied and the document embeds none")
	}
	reg, err := registry.New(&registry.Payload{}, parsed.Markers)
	return reg, false, err
}

// PingJudge checks that the configured judge answers
func (a *Auditor) PingJudge(ctx context.Context) error {
	p, ok := a.judge.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}
