package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimalign/internal/pipeline"
	"github.com/ppiankov/claimalign/internal/worker"
)

var (
	outputDir    string
	batchFormats string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Align many transcripts from a manifest in parallel",
	Long: `Batch processes many transcripts concurrently:
- Read the manifest (YAML with items, or one transcript path per line)
- Use each item's stored service output, or request one from the provider
- Pace provider requests with the configured rate limit
- Write one report per item to the output directory

Manifest example:
  items:
    - id: keynote
      transcript: keynote.vtt
      raw: keynote.fact.json
    - transcript: interview.txt

Example:
  claimalign batch manifest.yaml
  claimalign batch list.txt --provider ollama --model llama3 --concurrency 2
  claimalign batch manifest.yaml --output-dir ./reports --formats json,md,txt`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	flags := batchCmd.Flags()
	flags.Int("concurrency", 0, "number of concurrent workers (default from config)")
	flags.StringVar(&outputDir, "output-dir", "./claimalign-reports", "output directory for reports")
	flags.StringVar(&batchFormats, "formats", "json,md", "comma-separated report formats (json, yaml, md, txt)")
	flags.DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	flags.BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	_ = viper.BindPFlag("concurrency.workers", flags.Lookup("concurrency"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}

	formats, err := parseFormats(batchFormats)
	if err != nil {
		return err
	}

	file := args[0]
	workers := cfg.Concurrency.Workers
	if workers <= 0 {
		workers = 1
	}

	p, err := buildPipeline(cfg, newLogger(cfg.Output.Verbose))
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  claimalign Batch Processing\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Manifest:     %s\n", file)
	fmt.Fprintf(stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(stderr, "  Timeout:      %v\n", batchTimeout)

	processor := worker.NewBatchProcessor(p, workers)
	if provider := p.Provider(); provider != nil {
		limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
		processor = processor.WithLimiter(limiter, provider.Name())
		fmt.Fprintf(stderr, "  Provider:     %s (%.2f req/s)\n", provider.Name(), cfg.RateLimiting.RequestsPerSecond)
	}
	fmt.Fprintf(stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(stderr, "⚙️  Processing manifest with %d workers...\n\n", workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process manifest: %w", err)
	}

	renderer := p.Renderer()
	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(stderr, "✗ %s: %v\n", result.ID, result.Error)
			continue
		}

		slug := sanitizeFilename(result.ID)
		var writeErr error
		for _, format := range formats {
			path := filepath.Join(outputDir, slug+"."+extension(format))
			if writeErr = renderer.RenderFile(result.Report, format, path); writeErr != nil {
				break
			}
		}
		if writeErr != nil {
			failureCount++
			fmt.Fprintf(stderr, "✗ %s: write report: %v\n", result.ID, writeErr)
			continue
		}

		successCount++
		score := result.Report.Score
		fmt.Fprintf(stderr, "✓ %s (index: %d/100, %d/%d claims located)\n",
			result.ID, score.Index, score.Matched, score.Matched+score.Unmatched+score.Superseded)
	}

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Batch Complete\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Total:     %d transcripts\n", len(results))
	fmt.Fprintf(stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d transcripts failed", failureCount)
	}
	return nil
}

// parseFormats parses a comma-separated format list, dropping duplicates
func parseFormats(list string) ([]pipeline.Format, error) {
	var formats []pipeline.Format
	seen := make(map[pipeline.Format]bool)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := pipeline.ParseFormat(part)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no report formats given")
	}
	return formats, nil
}

// extension returns the file extension written for a format
func extension(f pipeline.Format) string {
	switch f {
	case pipeline.FormatMarkdown:
		return "md"
	case pipeline.FormatText:
		return "txt"
	default:
		return string(f)
	}
}
