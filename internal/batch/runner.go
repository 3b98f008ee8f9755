package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"notewriter/internal/config"
	"notewriter/internal/logging"
	"notewriter/internal/misleading"
	"notewriter/internal/posts"
	"notewriter/internal/services"
	"notewriter/internal/store"
)

// Classifier assigns misleading tags to one post.
type Classifier interface {
	Classify(ctx context.Context, post posts.Post, imagesSummary, noteText string) []misleading.Tag
}

// ResultStore persists outcomes. *store.Store satisfies it.
type ResultStore interface {
	Classified(ctx context.Context, postID string) (bool, error)
	Save(ctx context.Context, result store.Result) error
	BeginRun(ctx context.Context, runID, inputPath string) error
	FinishRun(ctx context.Context, runID string, total, tagged, skipped int) error
}

// Options tunes a single run.
type Options struct {
	// InputPath is recorded with the run for reference.
	InputPath string
	// Resume skips posts that already have a stored result. Posts whose
	// classification gave up are classified again.
	Resume bool
}

// Outcome is the result for one post of the run.
type Outcome struct {
	PostID    string           `json:"post_id"`
	RequestID string           `json:"request_id,omitempty"`
	Tags      []misleading.Tag `json:"tags"`
	Refusal   bool             `json:"refusal,omitempty"`
	Resumed   bool             `json:"resumed,omitempty"`
	Failed    bool             `json:"failed,omitempty"`
	Duration  time.Duration    `json:"duration_ns"`
}

// Summary aggregates a run.
type Summary struct {
	RunID     string         `json:"run_id"`
	Total     int            `json:"total"`
	Tagged    int            `json:"tagged"`
	Untagged  int            `json:"untagged"`
	Refusals  int            `json:"refusals"`
	Resumed   int            `json:"resumed"`
	Failed    int            `json:"failed"`
	TagCounts map[string]int `json:"tag_counts"`
	Outcomes  []Outcome      `json:"outcomes"`
	Duration  time.Duration  `json:"duration_ns"`
}

// Runner executes batch runs. A Runner may be reused for sequential runs;
// the run lock rejects overlapping ones.
type Runner struct {
	classifier     Classifier
	describer      posts.Describer
	results        ResultStore
	workers        int
	describeImages bool
	temperature    float64
	lockPath       string
	logger         *slog.Logger
}

// NewRunner wires a runner from configuration. describer may be nil, in
// which case posts are classified without image summaries.
func NewRunner(cfg *config.Config, classifier Classifier, describer posts.Describer, results ResultStore, logger *slog.Logger) *Runner {
	workers := cfg.Batch.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		classifier:     classifier,
		describer:      describer,
		results:        results,
		workers:        workers,
		describeImages: cfg.Batch.DescribeImages,
		temperature:    cfg.LLM.VisionTemperature,
		lockPath:       cfg.BatchLockPath(),
		logger:         logging.NewComponentLogger(logger, "batch"),
	}
}

// Run classifies entries and returns the run summary. Classification never
// fails a run; store errors and cancellation do.
func (r *Runner) Run(ctx context.Context, entries []posts.Entry, opts Options) (Summary, error) {
	if r.classifier == nil || r.results == nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "batch", "run", "classifier and store required", nil)
	}
	lock, err := acquireLock(r.lockPath)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			r.logger.Warn("failed to release batch lock",
				logging.Error(unlockErr),
				logging.String(logging.FieldEventType, "batch_unlock_failed"),
				logging.String(logging.FieldErrorHint, "remove the lock file if no run is active"),
				logging.String(logging.FieldImpact, "next batch run may report a run in progress"),
			)
		}
	}()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()

	if err := r.results.BeginRun(ctx, runID, opts.InputPath); err != nil {
		return Summary{}, fmt.Errorf("begin run: %w", err)
	}
	logger.Info("batch run started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("posts", len(entries)),
		logging.Int("workers", r.workers),
		logging.Bool("resume", opts.Resume),
	)

	outcomes := make([]Outcome, len(entries))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)
	for i := range entries {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			outcome, err := r.process(groupCtx, runID, entries[i], opts.Resume)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	runErr := group.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	summary := summarize(runID, outcomes, time.Since(started))
	if runErr != nil {
		logging.ErrorWithContext(logger, "batch run aborted", "batch_aborted",
			logging.Error(runErr),
			logging.Int("completed", summary.Total),
		)
		return summary, runErr
	}

	if err := r.results.FinishRun(ctx, runID, summary.Total, summary.Tagged, summary.Resumed); err != nil {
		return summary, fmt.Errorf("finish run: %w", err)
	}
	logger.Info("batch run completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("total", summary.Total),
		logging.Int("tagged", summary.Tagged),
		logging.Int("refusals", summary.Refusals),
		logging.Int("resumed", summary.Resumed),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (r *Runner) process(ctx context.Context, runID string, entry posts.Entry, resume bool) (Outcome, error) {
	outcome := Outcome{PostID: entry.ID}
	if resume {
		exists, err := r.results.Classified(ctx, entry.ID)
		if err != nil {
			return outcome, fmt.Errorf("check %s: %w", entry.ID, err)
		}
		if exists {
			outcome.Resumed = true
			outcome.Tags = []misleading.Tag{}
			return outcome, nil
		}
	}

	outcome.RequestID = uuid.NewString()
	postCtx := services.WithRequestID(services.WithPostID(ctx, entry.ID), outcome.RequestID)
	logger := logging.WithContext(postCtx, r.logger)
	started := time.Now()

	var summary string
	if r.describeImages && len(entry.ImageURLs) > 0 {
		summary = posts.SummarizeImages(postCtx, r.describer, entry.ImageURLs, r.temperature)
	}
	var last *misleading.Attempt
	observed := misleading.ObserveAttempts(postCtx, func(attempt misleading.Attempt) {
		last = &attempt
	})
	outcome.Tags = r.classifier.Classify(observed, entry.Post, summary, entry.Note)
	outcome.Failed = last != nil && last.Err != nil
	outcome.Refusal = strings.HasPrefix(entry.Note, misleading.NoNoteSentinel)
	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	err := r.results.Save(postCtx, store.Result{
		PostID:        entry.ID,
		RunID:         runID,
		PostText:      entry.Text,
		Note:          entry.Note,
		ImagesSummary: summary,
		Tags:          misleading.Strings(outcome.Tags),
		Failed:        outcome.Failed,
	})
	if err != nil {
		return outcome, fmt.Errorf("save %s: %w", entry.ID, err)
	}
	outcome.Duration = time.Since(started)
	logger.Debug("post classified",
		logging.Strings("tags", misleading.Strings(outcome.Tags)),
		logging.Bool("refusal", outcome.Refusal),
		logging.Bool("failed", outcome.Failed),
		logging.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}

func summarize(runID string, outcomes []Outcome, elapsed time.Duration) Summary {
	summary := Summary{
		RunID:     runID,
		TagCounts: make(map[string]int),
		Outcomes:  make([]Outcome, 0, len(outcomes)),
		Duration:  elapsed,
	}
	for _, outcome := range outcomes {
		if outcome.PostID == "" {
			continue
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		summary.Total++
		switch {
		case outcome.Resumed:
			summary.Resumed++
			continue
		case outcome.Failed:
			summary.Failed++
			continue
		case outcome.Refusal:
			summary.Refusals++
		}
		if len(outcome.Tags) == 0 {
			summary.Untagged++
			continue
		}
		summary.Tagged++
		for _, tag := range outcome.Tags {
			summary.TagCounts[string(tag)]++
		}
	}
	return summary
}

// IsRunInProgress reports whether err came from a held run lock.
func IsRunInProgress(err error) bool {
	return errors.Is(err, ErrRunInProgress)
}

var _ ResultStore = (*store.Store)(nil)
