package testsupport

import (
	"path/filepath"
	"testing"

	"notewriter/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test-key"
	cfgVal.LLM.VisionModel = cfgVal.LLM.Model
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIKey sets the completion API key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithBaseURL points the completion client at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithTagsDisabled switches off misleading-tag classification.
func WithTagsDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MisleadingTags.Enabled = false
	}
}

// WithRetries overrides the classifier attempt budget.
func WithRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MisleadingTags.Retries = n
	}
}

// WithWorkers overrides the batch worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.Workers = n
	}
}

// WithDescribeImages toggles image description during batch runs.
func WithDescribeImages(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.DescribeImages = enabled
	}
}
