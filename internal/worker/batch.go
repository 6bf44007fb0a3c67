package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrNotAudited marks a manifest entry skipped because the batch was cancelled
var ErrNotAudited = errors.New("document not audited: batch cancelled")

// DocumentAuditor audits one document file. registry may be empty when the
// document embeds its registry block.
type DocumentAuditor interface {
	AuditFile(ctx context.Context, document, registry string) (*model.Report, error)
}

// BatchItem is one manifest line
type BatchItem struct {
	Document string
	Registry string
}

// AuditJob audits one manifest entry
type AuditJob struct {
	Item    BatchItem
	Auditor DocumentAuditor
}

// Execute executes the audit job
func (j *AuditJob) Execute(ctx context.Context) Result {
	report, err := j.Auditor.AuditFile(ctx, j.Item.Document, j.Item.Registry)
	return &AuditResult{Item: j.Item, Report: report, Error: err}
}

// AuditResult is the outcome of one manifest entry
type AuditResult struct {
	Item   BatchItem
	Report *model.Report
	Error  error
}

// GetError returns the error from the audit
func (r *AuditResult) GetError() error {
	return r.Error
}

// BatchProcessor audits many documents concurrently
type BatchProcessor struct {
	auditor     DocumentAuditor
	concurrency int
	logger      *zap.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(auditor DocumentAuditor, concurrency int, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		auditor:     auditor,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessItems audits every item and returns results in manifest order
func (b *BatchProcessor) ProcessItems(ctx context.Context, items []BatchItem) []*AuditResult {
	if len(items) == 0 {
		return []*AuditResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, item := range items {
		if err := pool.Submit(&AuditJob{Item: item, Auditor: b.auditor}); err != nil {
			b.logger.Warn("batch stopped submitting", zap.String("document", item.Document), zap.Error(err))
			break
		}
	}

	results := pool.Wait()

	out := make([]*AuditResult, len(items))
	for i, item := range items {
		if i < len(results) && results[i] != nil {
			out[i] = results[i].(*AuditResult)
			continue
		}
		out[i] = &AuditResult{Item: item, Error: ErrNotAudited}
	}

	return out
}

// ProcessManifest reads a manifest and audits its entries
func (b *BatchProcessor) ProcessManifest(ctx context.Context, path string) ([]*AuditResult, error) {
	items, err := ReadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	b.logger.Info("batch audit started", zap.String("manifest", path), zap.Int("documents", len(items)))
	return b.ProcessItems(ctx, items), nil
}

// ReadManifest reads `<document> [registry]` lines. Blank lines and #
// comments are skipped, duplicates dropped, and relative paths resolved
// against the manifest's directory.
func ReadManifest(path string) ([]BatchItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(path)
	var items []BatchItem
	seen := make(map[BatchItem]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) > 2 {
			return nil, fmt.Errorf("line %d: expected `<document> [registry]`, got %d fields", lineNo, len(fields))
		}

		item := BatchItem{Document: resolvePath(base, fields[0])}
		if len(fields) == 2 {
			item.Registry = resolvePath(base, fields[1])
		}

		if !seen[item] {
			seen[item] = true
			items = append(items, item)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return items, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
