package model

// Config holds every tunable of a claimalign run.
// It is built once by the CLI (defaults < config file < env < flags) and
// passed explicitly to constructors.
type Config struct {
	Decoder      DecoderConfig     `yaml:"decoder" mapstructure:"decoder"`
	Locator      LocatorConfig     `yaml:"locator" mapstructure:"locator"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// DecoderConfig tunes the repair decoder
type DecoderConfig struct {
	// MinAnnotationRatio is the smallest accepted ratio of de-tagged service
	// annotation length to transcript length
	MinAnnotationRatio float64 `yaml:"min_annotation_ratio" mapstructure:"min_annotation_ratio"`
}

// LocatorConfig tunes the claim locator cascade
type LocatorConfig struct {
	FuzzyThreshold   float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	WindowThreshold  float64 `yaml:"window_threshold" mapstructure:"window_threshold"`
	OverlapThreshold float64 `yaml:"overlap_threshold" mapstructure:"overlap_threshold"`
	WindowWords      int     `yaml:"window_words" mapstructure:"window_words"`
	WindowOverlap    int     `yaml:"window_overlap" mapstructure:"window_overlap"`
	CommaSplitChars  int     `yaml:"comma_split_chars" mapstructure:"comma_split_chars"`
	MinPhraseWords   int     `yaml:"min_phrase_words" mapstructure:"min_phrase_words"`
	MaxPhraseWords   int     `yaml:"max_phrase_words" mapstructure:"max_phrase_words"`
}

// LLMConfig configures the optional analysis provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	HTTPProxy   string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy     string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the cache of generated service output
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds" mapstructure:"ttl_seconds"`
	Dir        string `yaml:"dir,omitempty" mapstructure:"dir"` // Persistent layer; empty keeps memory only
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitConfig paces provider requests in batch mode
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
	Format        string `yaml:"format" mapstructure:"format"` // json, yaml, markdown, text
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults.
// The 0.45 / 0.40 thresholds were tuned empirically against one service's
// phrasing; override them per deployment.
func DefaultConfig() *Config {
	return &Config{
		Decoder: DecoderConfig{
			MinAnnotationRatio: 0.80,
		},
		Locator: LocatorConfig{
			FuzzyThreshold:   0.45,
			WindowThreshold:  0.45,
			OverlapThreshold: 0.40,
			WindowWords:      75,
			WindowOverlap:    25,
			CommaSplitChars:  150,
			MinPhraseWords:   3,
			MaxPhraseWords:   5,
		},
		LLM: LLMConfig{
			Timeout:     120,
			MaxTokens:   8000,
			Temperature: 0.2,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 3600,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Output: OutputConfig{
			Format:        "json",
			IncludeFooter: true,
		},
	}
}
