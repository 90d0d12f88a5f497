package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimalign/internal/model"
)

const version = "claimalign v0.1.0"

var (
	cfgFile     string
	verbose     bool
	noCache     bool
	llmProvider string
	llmModel    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimalign",
	Short: "claimalign - anchor fact-check claims on the transcript they came from",
	Long: `claimalign takes the fact-check produced by a language model for a
video transcript, recovers it even when the model returned broken JSON,
finds where every claim was actually said, and highlights it in the
transcript with [VERIFIED], [OPINION], [UNCERTAIN] or [FALSE] markers.

It does not judge claims itself. Verdicts come from the analysis service;
claimalign only reports how faithfully they map back to the transcript.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimalign/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output and debug logging")
	flags.BoolVar(&noCache, "no-cache", false, "disable the cache of generated service output")
	flags.StringVar(&llmProvider, "provider", "", "analysis provider used when no service output is given (openai, anthropic, ollama)")
	flags.StringVar(&llmModel, "model", "", "provider model name")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("llm.provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("llm.model", flags.Lookup("model"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".claimalign"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CLAIMALIGN_LLM_PROVIDER overrides llm.provider, and so on
	viper.SetEnvPrefix("CLAIMALIGN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key with its built-in value.
// Viper only maps environment variables onto keys it knows about.
func setDefaults(v *viper.Viper) {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	for key, val := range flatten("", tree) {
		v.SetDefault(key, val)
	}

	// Keys hidden from YAML output
	v.SetDefault("llm.api_key", "")
	for _, key := range []string{"llm.base_url", "llm.http_proxy", "llm.https_proxy", "llm.no_proxy"} {
		v.SetDefault(key, "")
	}

	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault("cache.dir", filepath.Join(home, ".claimalign", "cache"))
	}
}

func flatten(prefix string, tree map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]interface{}); ok {
			for sk, sv := range flatten(key, sub) {
				out[sk] = sv
			}
			continue
		}
		out[key] = val
	}
	return out
}

// loadConfig resolves the effective configuration:
// flags > CLAIMALIGN_* env > config file > defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if noCache {
		cfg.Cache.Enabled = false
	}
	applyProviderEnv(&cfg.LLM)
	return cfg, nil
}

// applyProviderEnv fills credentials from the providers' conventional
// environment variables when the configuration has none
func applyProviderEnv(c *model.LLMConfig) {
	switch strings.ToLower(c.Provider) {
	case "openai":
		if c.APIKey == "" {
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if c.APIKey == "" {
			c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if c.BaseURL == "" {
			c.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// newLogger writes structured logs to stderr; pipeline decisions are only
// shown with --verbose
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
