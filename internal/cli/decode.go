package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimalign/internal/decode"
	"github.com/ppiankov/claimalign/internal/model"
	"github.com/ppiankov/claimalign/internal/pipeline"
)

var (
	decodeTranscript string
	decodeYAML       bool
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <raw>",
	Short: "Recover the claim record from service output without aligning it",
	Long: `Decode runs only the repair decoder and prints what it recovered:
the pass that succeeded, the passes that failed and the claims.

With --transcript the inline annotated transcript is validated against
the real one, the same way annotate does.

Example:
  claimalign decode output.json
  claimalign decode output.json --transcript talk.txt --yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

// decodeOutput is what the decode command prints
type decodeOutput struct {
	Decode model.DecodeInfo `json:"decode" yaml:"decode"`
	Claims *model.ClaimSet  `json:"claims,omitempty" yaml:"claims,omitempty"`
	Raw    string           `json:"raw,omitempty" yaml:"raw,omitempty"`
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVar(&decodeTranscript, "transcript", "", "transcript used to validate the inline annotation")
	decodeCmd.Flags().BoolVar(&decodeYAML, "yaml", false, "print YAML instead of JSON")
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	raw, err := readRaw(args[0])
	if err != nil {
		return err
	}

	var transcript string
	if decodeTranscript != "" {
		transcript, err = pipeline.LoadTranscript(decodeTranscript)
		if err != nil {
			return err
		}
	}

	res := decode.NewDecoder(decode.ConfigFromModel(cfg.Decoder)).Decode(raw, transcript)
	result := decodeOutput{Decode: res.Info(), Claims: res.Claims}
	if res.Unstructured {
		result.Raw = res.Raw
	}

	out := cmd.OutOrStdout()
	if decodeYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
	} else {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	}

	if cfg.Output.Verbose {
		stderr := cmd.ErrOrStderr()
		if res.Unstructured {
			fmt.Fprintf(stderr, "✗ No pass produced a claim record (%d failures)\n", len(res.Failures))
		} else {
			fmt.Fprintf(stderr, "✓ Decoded by pass %s: %d claims\n", res.Pass, res.Claims.Len())
		}
	}
	return nil
}
