package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/deepscan/internal/model"
	"github.com/ppiankov/deepscan/internal/pipeline"
)

var (
	outJSON   string
	outMD     string
	mediaType string
	delay     time.Duration
	seed      uint64
	noFooter  bool
	apiOutput bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a single media file and print an authenticity report",
	Long: `Analyze accepts one image, video or audio file and:
- Detects its media type from content (or checks it against --type)
- Waits out the simulated processing delay (Ctrl-C cancels cleanly)
- Samples a fake-probability and four feature sub-scores
- Classifies a verdict and picks a narrative conclusion

Example:
  deepscan analyze photo.png
  deepscan analyze clip.mp4 --type video --json report.json --md report.md
  deepscan analyze voice.wav --delay 0 --seed 42 --api`,
	Args:    cobra.ExactArgs(1),
	PreRunE: bindAnalysisFlags,
	RunE:    runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON report path (optional)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown report path (optional)")
	analyzeCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	analyzeCmd.Flags().BoolVar(&apiOutput, "api", false, "print the API response JSON instead of the summary")

	// Analysis flags
	addAnalysisFlags(analyzeCmd)
}

// addAnalysisFlags registers the flags shared by analyze, batch and serve
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&mediaType, "type", "t", "", "expected media type: image, video or audio (default: detect)")
	cmd.Flags().DurationVar(&delay, "delay", 3*time.Second, "simulated processing delay")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for reproducible scores (0 = random)")
}

func bindAnalysisFlags(cmd *cobra.Command, _ []string) error {
	return bindFlags(cmd, viper.GetViper(), map[string]string{
		"analysis.delay": "delay",
		"analysis.seed":  "seed",
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

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

	// Validate the file before anything is scored
	intake := pipeline.NewIntake(cfg.Intake.MaxBytes)
	handle, err := intake.Open(path, selected)
	if err != nil {
		return fmt.Errorf("intake: %w", err)
	}

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", handle.Name)
		fmt.Fprintf(os.Stderr, "Media:     %s (%s, %d bytes)\n", handle.MediaType, handle.MIME, handle.Size)
		fmt.Fprintf(os.Stderr, "Delay:     %v\n", p.Delay())
		fmt.Fprintln(os.Stderr)
	}

	report, err := p.AnalyzeWithDelay(ctx, handle.MediaType, handle)
	if errors.Is(err, model.ErrCanceled) {
		return fmt.Errorf("analysis interrupted: %w", err)
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if apiOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(model.NewAPIResponse(report)); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		return p.RenderReport(nil, report, outJSON, outMD, cfg.Output.Verbose)
	}

	// Render outputs
	if err := p.RenderReport(cmd.OutOrStdout(), report, outJSON, outMD, cfg.Output.Verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	return nil
}
