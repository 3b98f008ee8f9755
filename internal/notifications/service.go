package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"notewriter/internal/config"
)

const userAgent = "notewriter/0.1.0"

// BatchReport is the slice of a finished run that notifications describe.
type BatchReport struct {
	RunID     string
	Total     int
	Tagged    int
	Refusals  int
	Resumed   int
	Failed    int
	TagCounts map[string]int
	Duration  time.Duration
}

// Service defines the notification surface exposed to commands.
type Service interface {
	NotifyBatchCompleted(ctx context.Context, report BatchReport) error
	NotifyBatchFailed(ctx context.Context, runLabel string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, report BatchReport) error {
	duration := report.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Classified %d posts in %s: %d tagged", report.Total, duration, report.Tagged)
	if report.Refusals > 0 {
		fmt.Fprintf(&b, ", %d without a note", report.Refusals)
	}
	if report.Resumed > 0 {
		fmt.Fprintf(&b, ", %d resumed", report.Resumed)
	}
	if report.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", report.Failed)
	}
	if line := tagCountsLine(report.TagCounts); line != "" {
		b.WriteString("\n")
		b.WriteString(line)
	}
	if report.RunID != "" {
		fmt.Fprintf(&b, "\nRun: %s", report.RunID)
	}

	return n.send(ctx, payload{
		title:   "notewriter - Batch Complete",
		message: b.String(),
		tags:    []string{"notewriter", "batch", "completed"},
	})
}

func (n *ntfyService) NotifyBatchFailed(ctx context.Context, runLabel string, err error) error {
	var builder strings.Builder
	builder.WriteString("Batch failed")
	if runLabel = strings.TrimSpace(runLabel); runLabel != "" {
		builder.WriteString(" for ")
		builder.WriteString(runLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "notewriter - Batch Failed",
		message:  builder.String(),
		tags:     []string{"notewriter", "batch", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "notewriter - Test",
		message:  "Notification system test",
		tags:     []string{"notewriter", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// tagCountsLine renders counts as "tag=n" pairs, most frequent first.
func tagCountsLine(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = fmt.Sprintf("%s=%d", tag, counts[tag])
	}
	return "Tags: " + strings.Join(parts, ", ")
}

type noopService struct{}

func (noopService) NotifyBatchCompleted(context.Context, BatchReport) error { return nil }
func (noopService) NotifyBatchFailed(context.Context, string, error) error  { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
