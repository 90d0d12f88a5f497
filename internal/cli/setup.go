package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/claimalign/internal/cache"
	"github.com/ppiankov/claimalign/internal/llm"
	"github.com/ppiankov/claimalign/internal/model"
	"github.com/ppiankov/claimalign/internal/pipeline"
)

// buildPipeline wires the configured provider and cache into a pipeline
func buildPipeline(cfg *model.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("configure provider: %w", err)
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if provider != nil {
		opts = append(opts, pipeline.WithProvider(provider))
	}

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if c := cache.New(cfg.Cache.Enabled, ttl, cfg.Cache.Dir); c != nil {
		opts = append(opts, pipeline.WithCache(c))
	}

	return pipeline.NewPipeline(cfg, opts...), nil
}

// readRaw reads stored service output; "-" reads stdin
func readRaw(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read service output: %w", err)
	}
	return string(data), nil
}

// sanitizeFilename makes a subject or ID safe to use as a file name
func sanitizeFilename(s string) string {
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
	s = replacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".")
	if s == "" {
		s = "report"
	}

	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
