package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/deepscan/internal/model"
	"github.com/ppiankov/deepscan/internal/pipeline"
	"github.com/ppiankov/deepscan/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	// noFooter and the analysis flags are defined in analyze.go and shared here
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <list-file|directory>",
	Short: "Analyze many media files in parallel",
	Long: `Batch analyzes media files concurrently:
- Read paths from a list file (one per line) or every file in a directory
- Validate each file and detect its media type
- Analyze with a worker pool, rate limited per media type
- Write a JSON and Markdown report for each file

Example:
  deepscan batch ./uploads
  deepscan batch files.txt --concurrency 8 --output-dir ./reports
  deepscan batch ./clips --type video --delay 500ms`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindAnalysisFlags(cmd, args); err != nil {
			return err
		}
		return bindFlags(cmd, viper.GetViper(), map[string]string{"concurrency.workers": "concurrency"})
	},
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", model.DefaultConfig().Concurrency.Workers, "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./deepscan-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	addAnalysisFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	logger := newLogger(cfg.Logging, cfg.Output.Verbose, os.Stderr)

	selected, err := parseSelected(mediaType)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  deepscan Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s\n", input)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Delay:        %v\n", cfg.Analysis.Delay)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	intake := pipeline.NewIntake(cfg.Intake.MaxBytes)
	processor := worker.NewBatchProcessor(p, intake, cfg.Concurrency.Workers, cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	fmt.Fprintf(os.Stderr, "⚙️  Analyzing with %d workers...\n\n", cfg.Concurrency.Workers)
	results, err := processor.ProcessFile(ctx, input, selected)
	if err != nil {
		return fmt.Errorf("process input: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	for i, result := range results {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		slug := fmt.Sprintf("%03d-%s", i+1, sanitizeFilename(result.Media.Name))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Report, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
			continue
		}

		fmt.Fprintf(os.Stderr, "✓ %s: %s (fake probability %d%%)\n",
			result.Media.Name, result.Report.Verdict.Label(), result.Report.FakeProbability)
	}

	summary := worker.Summarize(results)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:       %d files\n", summary.Total)
	fmt.Fprintf(os.Stderr, "  Analyzed:    %d\n", summary.Succeeded)
	fmt.Fprintf(os.Stderr, "  Rejected:    %d\n", summary.Rejected)
	fmt.Fprintf(os.Stderr, "  Canceled:    %d\n", summary.Canceled)
	for _, v := range []model.Verdict{model.VerdictAuthentic, model.VerdictSuspicious, model.VerdictFake} {
		fmt.Fprintf(os.Stderr, "  %-12s %d\n", v.Label()+":", summary.Verdicts[v])
	}
	fmt.Fprintf(os.Stderr, "  Output:      %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename turns a media file name into a safe report file stem
func sanitizeFilename(s string) string {
	s = filepath.Base(filepath.Clean(s))
	s = strings.TrimSuffix(s, filepath.Ext(s))

	replacer := strings.NewReplacer(
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
	s = replacer.Replace(s)

	if s == "" || s == "." {
		s = "media"
	}

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}

	return s
}
