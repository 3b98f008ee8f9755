package misleading

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"notewriter/internal/config"
	"notewriter/internal/logging"
	"notewriter/internal/posts"
	"notewriter/internal/services"
	"notewriter/internal/services/llm"
)

const (
	defaultRetries = 3
	// rawSnippetRunes bounds how much of a failed reply reaches the logs.
	rawSnippetRunes = 120
)

// Completer is the completion capability the classifier depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Attempt describes one round trip to the model. It is handed to the
// observer, if any, and then discarded.
type Attempt struct {
	Number int
	Raw    string
	Tags   []Tag
	Err    error
}

// Classifier assigns misleading tags to a post and its proposed note. It
// holds only read-only settings and is safe for concurrent use.
type Classifier struct {
	completer   Completer
	enabled     bool
	retries     int
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
	observer    func(Attempt)
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithObserver registers fn to receive every attempt.
func WithObserver(fn func(Attempt)) Option {
	return func(c *Classifier) {
		c.observer = fn
	}
}

type observerKey struct{}

// ObserveAttempts returns a context under which Classify also reports every
// attempt to fn. It runs on the calling goroutine, after any observer set
// with WithObserver.
func ObserveAttempts(ctx context.Context, fn func(Attempt)) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, observerKey{}, fn)
}

// WithRetries overrides the configured attempt budget. Values below one are
// ignored.
func WithRetries(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.retries = n
		}
	}
}

// New builds a classifier from configuration. A nil cfg uses defaults.
func New(completer Completer, cfg *config.Config, logger *slog.Logger, opts ...Option) *Classifier {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	c := &Classifier{
		completer:   completer,
		enabled:     cfg.MisleadingTags.Enabled,
		retries:     cfg.MisleadingTags.Retries,
		model:       cfg.LLM.Model,
		temperature: cfg.LLM.Temperature,
		maxTokens:   cfg.LLM.MaxTokens,
		logger:      logging.NewComponentLogger(logger, "misleading"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.retries <= 0 {
		c.retries = defaultRetries
	}
	return c
}

// Enabled reports whether classification is switched on.
func (c *Classifier) Enabled() bool {
	return c != nil && c.enabled
}

// Classify returns the validated tags for the post, or an empty slice when
// the feature is off, the note is a refusal, or every attempt fails. It never
// returns nil.
func (c *Classifier) Classify(ctx context.Context, post posts.Post, imagesSummary, noteText string) []Tag {
	if c == nil {
		return []Tag{}
	}
	logger := logging.WithContext(ctx, c.logger)

	if !c.enabled {
		logger.Debug("misleading tags skipped",
			logging.Args(logging.DecisionAttrs("misleading_tags", "skipped", "feature disabled")...)...)
		return []Tag{}
	}
	if strings.HasPrefix(noteText, NoNoteSentinel) {
		logger.Debug("misleading tags skipped",
			logging.Args(logging.DecisionAttrs("misleading_tags", "skipped", "no note needed")...)...)
		return []Tag{}
	}
	if c.completer == nil {
		logging.ErrorWithContext(logger, "misleading tags unavailable", "misleading_tags_misconfigured",
			logging.String(logging.FieldErrorHint, "construct the classifier with a completion client"),
		)
		return []Tag{}
	}

	req := llm.Request{
		Messages:    []llm.Message{llm.UserText(BuildPrompt(post, imagesSummary, noteText))},
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	for attempt := 1; attempt <= c.retries; attempt++ {
		if ctx.Err() != nil {
			logger.Debug("misleading tags cancelled",
				logging.Int("attempt", attempt),
				logging.Error(ctx.Err()),
			)
			return []Tag{}
		}

		raw, err := c.completer.Complete(ctx, req)
		var tags []Tag
		if err == nil {
			tags, err = ParseTags(raw)
		}
		c.report(ctx, Attempt{Number: attempt, Raw: raw, Tags: tags, Err: err})

		if err == nil {
			logger.Debug("misleading tags classified",
				logging.Int("attempt", attempt),
				logging.Strings("tags", Strings(tags)),
			)
			return tags
		}
		if !services.Retryable(err) {
			logging.ErrorWithContext(logger, "misleading tags unavailable", "misleading_tags_misconfigured",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check llm.api_key and llm.model in config"),
			)
			return []Tag{}
		}
		if ctx.Err() != nil {
			return []Tag{}
		}

		logging.WarnWithContext(logger, "bad misleading_tags response", "misleading_tags_attempt_failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", c.retries),
			logging.Error(err),
			logging.String("raw_snippet", snippet(raw)),
			logging.String(logging.FieldErrorHint, failureHint(err)),
			logging.String(logging.FieldImpact, "retrying classification"),
		)
	}

	logging.WarnWithContext(logger, "giving up on misleading_tags for this post", "misleading_tags_give_up",
		logging.Int("attempts", c.retries),
		logging.String(logging.FieldErrorHint, "inspect earlier attempt warnings for the model output"),
		logging.String(logging.FieldImpact, "post stored without misleading tags"),
	)
	return []Tag{}
}

func (c *Classifier) report(ctx context.Context, attempt Attempt) {
	if c.observer != nil {
		c.observer(attempt)
	}
	if fn, ok := ctx.Value(observerKey{}).(func(Attempt)); ok {
		fn(attempt)
	}
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrMalformedResponse):
		return "model reply was not a JSON object"
	case errors.Is(err, services.ErrTransport):
		return "completion endpoint unreachable or returned an error status"
	default:
		return "check logs for details"
	}
}

func snippet(raw string) string {
	runes := []rune(raw)
	if len(runes) > rawSnippetRunes {
		return string(runes[:rawSnippetRunes])
	}
	return raw
}
