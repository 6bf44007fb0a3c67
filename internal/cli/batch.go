package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/ppiankov/veracity/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	docTimeout   time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Audit many documents from a manifest in parallel",
	Long: `Batch audits every document listed in a manifest file:
- One document per line, optionally followed by its registry JSON
- Relative paths are resolved against the manifest's directory
- Documents are audited in parallel with a shared source cache on disk
- The audited text, JSON report and Markdown summary of each document
  are written to the output directory

Example:
  veracity batch docs.txt
  veracity batch docs.txt --concurrency 8 --output-dir ./audited
  veracity batch docs.txt --timeout 30m --doc-timeout 2m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of documents audited concurrently (default: concurrency.batch_workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./veracity-audits", "output directory for audited documents and reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().DurationVar(&docTimeout, "doc-timeout", 5*time.Minute, "timeout for each document")
	batchCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format (optional)")

	addRunFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifest := args[0]

	cfg, err := runConfig(cmd)
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = cfg.Concurrency.BatchWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Veracity Batch Audit\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Manifest:     %s\n", manifest)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.Judge.Provider != "" {
		fmt.Fprintf(os.Stderr, "  Judge:        %s/%s\n", cfg.Judge.Provider, cfg.Judge.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	auditor, err := pipeline.NewAuditor(cfg, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	writer := &batchAuditor{
		auditor:  auditor,
		renderer: pipeline.NewRenderer(cfg.Output.IncludeFooter),
		dir:      outputDir,
		timeout:  docTimeout,
		names:    make(map[string]int),
	}
	processor := worker.NewBatchProcessor(writer, concurrency, logger)

	fmt.Fprintf(os.Stderr, "⚙️  Auditing documents with %d workers...\n", concurrency)
	fmt.Fprintf(os.Stderr, "\n")

	results, err := processor.ProcessManifest(ctx, manifest)
	if err != nil {
		return err
	}

	verified, partial, failures := 0, 0, 0
	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Item.Document, result.Error)
			continue
		}

		mark := "✓"
		if result.Report.Outcome == model.OutcomeVerified {
			verified++
		} else {
			partial++
			mark = "~"
		}
		fmt.Fprintf(os.Stderr, "%s %s (%s, index: %d/100)\n",
			mark, result.Item.Document, result.Report.Outcome, result.Report.Summary.IntegrityIndex)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Verified:  %d\n", verified)
	fmt.Fprintf(os.Stderr, "  Partial:   %d\n", partial)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failures)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile); err != nil {
			return err
		}
	}

	if failures > 0 || partial > 0 {
		return &ExitCodeError{
			Code:    ExitPartial,
			Message: fmt.Sprintf("%d of %d documents not fully verified", failures+partial, len(results)),
		}
	}
	return nil
}

// batchAuditor audits one manifest entry and writes its outputs
type batchAuditor struct {
	auditor  *pipeline.Auditor
	renderer *pipeline.Renderer
	dir      string
	timeout  time.Duration

	mu    sync.Mutex
	names map[string]int
}

// AuditFile implements worker.DocumentAuditor
func (b *batchAuditor) AuditFile(ctx context.Context, document, registry string) (*model.Report, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	result, err := b.auditor.AuditPath(ctx, document, registry)
	if err != nil {
		return nil, err
	}

	slug := b.uniqueName(document)
	ext := filepath.Ext(document)
	if ext == "" {
		ext = ".txt"
	}
	base := filepath.Join(b.dir, slug)

	if err := b.renderer.RenderText(result.AuditedText, base+".audited"+ext); err != nil {
		return nil, err
	}
	if err := b.renderer.RenderJSON(result.Report, base+".report.json"); err != nil {
		return nil, err
	}
	if err := b.renderer.RenderMarkdown(result.Report, base+".report.md"); err != nil {
		return nil, err
	}
	return result.Report, nil
}

// uniqueName derives an output name from the document path; repeated base
// names get a numeric suffix
func (b *batchAuditor) uniqueName(document string) string {
	name := sanitizeFilename(strings.TrimSuffix(filepath.Base(document), filepath.Ext(document)))

	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.names[name]
	b.names[name] = n + 1
	if n == 0 {
		return name
	}
	return name + "-" + strconv.Itoa(n+1)
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "-",
)

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(s)
	s = strings.Trim(s, ".")
	if s == "" {
		s = "document"
	}

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}

	return s
}
