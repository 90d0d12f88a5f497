package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimalign/internal/pipeline"
)

var (
	rawPath    string
	jsonOut    string
	yamlOut    string
	mdOut      string
	txtOut     string
	subject    string
	noFooter   bool
	runTimeout time.Duration
)

// annotateCmd represents the annotate command
var annotateCmd = &cobra.Command{
	Use:   "annotate <transcript>",
	Short: "Align a fact-check with its transcript and highlight every claim",
	Long: `Annotate runs the complete alignment pipeline on one transcript:
- Decode the service output, repairing broken JSON when needed
- Locate every claim in the transcript (exact, fuzzy, window, phrase, overlap)
- Highlight located claims with category markers
- Score how many claims could be anchored

The service output is read from --raw. Without it the configured provider
(--provider) is asked to produce one. Transcripts may be plain text,
WebVTT/SRT captions or saved HTML pages.

Example:
  claimalign annotate talk.txt --raw talk.fact.json
  claimalign annotate talk.vtt --provider openai --md report.md
  claimalign annotate talk.txt --raw - --format text < output.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnnotate,
}

func init() {
	rootCmd.AddCommand(annotateCmd)

	flags := annotateCmd.Flags()
	flags.StringVar(&rawPath, "raw", "", "file with the service output (- for stdin)")
	flags.StringVar(&subject, "subject", "", "report subject (default: transcript file name)")
	flags.StringVar(&jsonOut, "json", "", "write JSON report to file")
	flags.StringVar(&yamlOut, "yaml", "", "write YAML report to file")
	flags.StringVar(&mdOut, "md", "", "write Markdown report to file")
	flags.StringVar(&txtOut, "txt", "", "write plain text report to file")
	flags.String("format", "", "stdout format when no output file is given (json, yaml, markdown, text)")
	flags.BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	flags.DurationVar(&runTimeout, "timeout", 5*time.Minute, "timeout for the whole run")

	_ = viper.BindPFlag("output.format", flags.Lookup("format"))
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}

	transcriptPath := args[0]
	transcript, err := pipeline.LoadTranscript(transcriptPath)
	if err != nil {
		return err
	}
	raw, err := readRaw(rawPath)
	if err != nil {
		return err
	}
	name := subject
	if name == "" {
		name = pipeline.SubjectFromPath(transcriptPath)
	}

	p, err := buildPipeline(cfg, newLogger(cfg.Output.Verbose))
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	if cfg.Output.Verbose {
		fmt.Fprintf(stderr, "⚙️  Aligning %s (%d bytes)\n", name, len(transcript))
		if raw == "" && p.Provider() != nil {
			fmt.Fprintf(stderr, "⚙️  Requesting analysis from %s...\n", p.Provider().Name())
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	report, err := p.Process(ctx, pipeline.Input{
		Subject:    name,
		Transcript: transcript,
		Raw:        raw,
	})
	if err != nil {
		return err
	}

	out := pipeline.Outputs{JSON: jsonOut, YAML: yamlOut, Markdown: mdOut, Text: txtOut}
	if out == (pipeline.Outputs{}) {
		format, err := pipeline.ParseFormat(cfg.Output.Format)
		if err != nil {
			return err
		}
		if err := p.Renderer().Render(cmd.OutOrStdout(), report, format); err != nil {
			return err
		}
	}

	return p.RenderReport(report, out, stderr, cfg.Output.Verbose)
}
