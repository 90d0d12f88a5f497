package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimalign/internal/model"
	"github.com/ppiankov/claimalign/internal/pipeline"
)

// Processor runs one transcript through the alignment pipeline
type Processor interface {
	Process(ctx context.Context, in pipeline.Input) (*model.Report, error)
}

// Item is one entry of a batch manifest. Paths are relative to the
// manifest file.
type Item struct {
	ID         string `yaml:"id"`
	Subject    string `yaml:"subject,omitempty"`
	Transcript string `yaml:"transcript"`
	Raw        string `yaml:"raw,omitempty"` // File with service output; generated when empty
}

// Manifest lists the transcripts of a batch run
type Manifest struct {
	Items []Item `yaml:"items"`
}

// AlignJob aligns one manifest item
type AlignJob struct {
	Index     int
	Item      Item
	Processor Processor
	Limiter   *Limiter
	LimitKey  string
}

// Execute loads the item's files and runs the pipeline. Provider calls are
// paced by the limiter; items that carry their own service output are not.
func (j *AlignJob) Execute(ctx context.Context) Result {
	res := &BatchResult{Index: j.Index, ID: j.Item.ID}

	transcript, err := pipeline.LoadTranscript(j.Item.Transcript)
	if err != nil {
		res.Error = err
		return res
	}

	var raw string
	if j.Item.Raw != "" {
		data, err := os.ReadFile(j.Item.Raw)
		if err != nil {
			res.Error = fmt.Errorf("read service output: %w", err)
			return res
		}
		raw = string(data)
	} else if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.LimitKey); err != nil {
			res.Error = fmt.Errorf("rate limit: %w", err)
			return res
		}
	}

	subject := j.Item.Subject
	if subject == "" {
		subject = pipeline.SubjectFromPath(j.Item.Transcript)
	}

	res.Report, res.Error = j.Processor.Process(ctx, pipeline.Input{
		Subject:    subject,
		Transcript: transcript,
		Raw:        raw,
	})
	return res
}

// BatchResult represents the result of one manifest item
type BatchResult struct {
	Index  int // Position in the manifest
	ID     string
	Report *model.Report
	Error  error
}

// GetError returns the error from the batch result
func (r *BatchResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many transcripts concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int
	limiter     *Limiter
	limitKey    string
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// WithLimiter paces generated requests under key (usually the provider name)
func (b *BatchProcessor) WithLimiter(limiter *Limiter, key string) *BatchProcessor {
	b.limiter = limiter
	b.limitKey = key
	return b
}

// ProcessManifest processes every item and returns results in manifest
// order. Items not started before ctx is cancelled report ctx.Err().
func (b *BatchProcessor) ProcessManifest(ctx context.Context, m *Manifest) []*BatchResult {
	if m == nil || len(m.Items) == 0 {
		return []*BatchResult{}
	}

	jobs := make([]Job, len(m.Items))
	for i, item := range m.Items {
		jobs[i] = &AlignJob{
			Index:     i,
			Item:      item,
			Processor: b.processor,
			Limiter:   b.limiter,
			LimitKey:  b.limitKey,
		}
	}

	pool := NewPool(ctx, b.concurrency)
	results := pool.Run(jobs)

	out := make([]*BatchResult, len(m.Items))
	for _, r := range results {
		br := r.(*BatchResult)
		out[br.Index] = br
	}
	for i, item := range m.Items {
		if out[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &BatchResult{Index: i, ID: item.ID, Error: err}
		}
	}
	return out
}

// ProcessFile reads a manifest and processes it
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string) ([]*BatchResult, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return b.ProcessManifest(ctx, m), nil
}

// LoadManifest reads a YAML manifest (.yaml, .yml) or a plain list with one
// transcript path per line. Relative paths are resolved against the
// manifest's directory and items without an ID get one from their file name.
func LoadManifest(path string) (*Manifest, error) {
	var (
		m   *Manifest
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		m, err = readYAMLManifest(path)
	default:
		m, err = readListManifest(path)
	}
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	seen := make(map[string]bool)
	for i := range m.Items {
		item := &m.Items[i]
		if item.Transcript == "" {
			return nil, fmt.Errorf("manifest item %d: transcript path is required", i+1)
		}
		item.Transcript = resolvePath(base, item.Transcript)
		if item.Raw != "" {
			item.Raw = resolvePath(base, item.Raw)
		}

		if item.ID == "" {
			item.ID = strings.TrimSuffix(filepath.Base(item.Transcript), filepath.Ext(item.Transcript))
		}
		item.ID = uniqueID(item.ID, seen)
	}

	return m, nil
}

// uniqueID returns id, or id-2, id-3... when taken, and marks the result as
// taken. IDs name output files, so they must be unique.
func uniqueID(id string, seen map[string]bool) string {
	candidate := id
	for n := 2; seen[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
	seen[candidate] = true
	return candidate
}

func readYAMLManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// readListManifest reads one transcript path per line
func readListManifest(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	m := &Manifest{}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			m.Items = append(m.Items, Item{Transcript: line})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}
	return m, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
