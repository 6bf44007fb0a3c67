package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
)

var (
	registryPath  string
	outText       string
	outJSON       string
	outMD         string
	rewriteMode   string
	judgeProvider string
	judgeModel    string
	timeout       time.Duration
	metricsFile   string
	checkJudge    bool
	stripMarkers  bool
	embedRegistry bool
	cancelMode    string
	claimWorkers  int
	judgeWorkers  int
	userAgent     string
	noCache       bool
	noRobots      bool
	noFooter      bool
	insecureTLS   bool
	httpProxy     string
	httpsProxy    string
	allowFiles    bool
	fileRoot      string
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <document>",
	Short: "Audit one document and write the verified text",
	Long: `Audit verifies every claim marker of a document against its declared
source and every relationship marker against its premises and the logic
judge, then writes the audited text with unverified sentences removed
(or flagged with --mode flag).

The registry (SOURCES and REASONING) is read from --registry, or from the
ACG block embedded at the end of the document.

Exit codes: 0 everything verified, 1 something removed, flagged or left
pending, 2 structural error in the document or registry, 3 other errors.

Example:
  veracity audit draft.md --registry var.json --out audited.md
  veracity audit draft.md --report report.json --md summary.md
  veracity audit draft.md --judge openai --model gpt-4o-mini --mode flag`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	// Input/output flags
	auditCmd.Flags().StringVar(&registryPath, "registry", "", "registry JSON (default: block embedded in the document)")
	auditCmd.Flags().StringVar(&outText, "out", "", "audited document path (default: stdout)")
	auditCmd.Flags().StringVar(&outJSON, "report", "", "AuditReport JSON path (optional)")
	auditCmd.Flags().StringVar(&outMD, "md", "", "Markdown summary path (optional)")
	auditCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format (optional)")

	addRunFlags(auditCmd)

	auditCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall audit timeout; undecided markers stay PENDING")
	auditCmd.Flags().BoolVar(&checkJudge, "check-judge", false, "ping the judge before auditing")
}

// addRunFlags registers the flags shared by audit and batch
func addRunFlags(cmd *cobra.Command) {
	// Rewrite flags
	cmd.Flags().StringVar(&rewriteMode, "mode", "", "rewrite mode: remove or flag")
	cmd.Flags().BoolVar(&stripMarkers, "strip-markers", false, "remove marker text from retained sentences")
	cmd.Flags().BoolVar(&embedRegistry, "embed-registry", false, "append the audited registry as an ACG block")

	// Judge flags
	cmd.Flags().StringVar(&judgeProvider, "judge", "", "judge provider (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&judgeModel, "model", "", "judge model name")

	// Scheduler flags
	cmd.Flags().StringVar(&cancelMode, "cancel-mode", "", "on timeout: abandon or drain in-flight verifications")
	cmd.Flags().IntVar(&claimWorkers, "claim-workers", 0, "concurrent claim verifications")
	cmd.Flags().IntVar(&judgeWorkers, "judge-workers", 0, "concurrent judge calls")

	// HTTP flags
	cmd.Flags().StringVar(&userAgent, "ua", "", "HTTP User-Agent")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the persistent source cache")
	cmd.Flags().BoolVar(&noRobots, "no-robots", false, "ignore robots.txt")
	cmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	cmd.Flags().BoolVar(&allowFiles, "allow-file-sources", false, "let an external --registry name local files as sources")
	cmd.Flags().StringVar(&fileRoot, "file-root", "", "directory local file sources must stay inside (implies --allow-file-sources)")

	cmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
}

// runConfig loads the layered config and applies the flags that were set
func runConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Rewrite.Mode = rewriteMode
	}
	if flags.Changed("strip-markers") {
		cfg.Rewrite.StripMarkers = stripMarkers
	}
	if flags.Changed("embed-registry") {
		cfg.Rewrite.EmbedRegistry = embedRegistry
	}
	if flags.Changed("judge") {
		cfg.Judge.Provider = judgeProvider
		applyJudgeEnv(&cfg.Judge)
	}
	if flags.Changed("model") {
		cfg.Judge.Model = judgeModel
	}
	if flags.Changed("cancel-mode") {
		cfg.Concurrency.CancelMode = cancelMode
	}
	if flags.Changed("claim-workers") {
		cfg.Concurrency.ClaimWorkers = claimWorkers
	}
	if flags.Changed("judge-workers") {
		cfg.Concurrency.JudgeWorkers = judgeWorkers
	}
	if flags.Changed("ua") {
		cfg.HTTP.UserAgent = userAgent
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noRobots {
		cfg.HTTP.RespectRobots = false
	}
	if insecureTLS {
		cfg.HTTP.InsecureTLS = true
	}
	if httpProxy != "" {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
	if allowFiles {
		cfg.HTTP.AllowFileSources = true
	}
	if fileRoot != "" {
		cfg.HTTP.AllowFileSources = true
		cfg.HTTP.FileRoot = fileRoot
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	cfg.Output.Verbose = verbose

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	document := args[0]

	cfg, err := runConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	auditor, err := pipeline.NewAuditor(cfg, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	if checkJudge {
		if err := auditor.PingJudge(ctx); err != nil {
			return fmt.Errorf("judge check failed: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Judge %s is reachable\n", cfg.Judge.Provider)
		}
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Auditing: %s\n", document)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	result, err := auditor.AuditPath(ctx, document, registryPath)
	if err != nil {
		return err
	}
	logger.Debug("source cache",
		zap.Int64("fetches", result.CacheStats.Fetches),
		zap.Int64("hits", result.CacheStats.Hits),
		zap.Int64("failures", result.CacheStats.Failures))

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	if err := writeOutputs(renderer, result, outText, outJSON, outMD); err != nil {
		return err
	}
	renderer.RenderSummary(os.Stderr, result.Report)

	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile); err != nil {
			return err
		}
	}

	return outcomeError(result.Report)
}

// writeOutputs writes the audited text (stdout when textPath is empty) and
// the optional report files
func writeOutputs(renderer *pipeline.Renderer, result *pipeline.Result, textPath, jsonPath, mdPath string) error {
	if textPath == "" {
		if _, err := fmt.Fprint(os.Stdout, result.AuditedText); err != nil {
			return fmt.Errorf("write audited text: %w", err)
		}
	} else {
		if err := renderer.RenderText(result.AuditedText, textPath); err != nil {
			return fmt.Errorf("render text: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote audited document: %s\n", textPath)
		}
	}

	if jsonPath != "" {
		if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := renderer.RenderMarkdown(result.Report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}
	return nil
}

// outcomeError turns a non-VERIFIED outcome into the partial exit code
func outcomeError(report *model.Report) error {
	if report.Outcome == model.OutcomeVerified {
		return nil
	}
	return &ExitCodeError{
		Code:    ExitPartial,
		Message: fmt.Sprintf("audit outcome %s", report.Outcome),
	}
}
