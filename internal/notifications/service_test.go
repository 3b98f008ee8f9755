package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notewriter/internal/config"
	"notewriter/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyBatchCompleted(context.Background(), notifications.BatchReport{Total: 1}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop test notification to return nil, got %v", err)
	}
}

func TestNotifyBatchCompletedFormatsReport(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	err := svc.NotifyBatchCompleted(context.Background(), notifications.BatchReport{
		RunID:     "run-9",
		Total:     12,
		Tagged:    5,
		Refusals:  3,
		Failed:    2,
		TagCounts: map[string]int{"other": 1, "factual_error": 4, "manipulated_media": 1},
		Duration:  61 * time.Second,
	})
	if err != nil {
		t.Fatalf("NotifyBatchCompleted returned error: %v", err)
	}
	if len(*captured) != 1 {
		t.Fatalf("expected one request, got %d", len(*captured))
	}
	got := (*captured)[0]
	if got.title != "notewriter - Batch Complete" || got.tags != "notewriter,batch,completed" {
		t.Fatalf("unexpected headers %+v", got)
	}
	want := "Classified 12 posts in 1m1s: 5 tagged, 3 without a note, 2 failed\nTags: factual_error=4, manipulated_media=1, other=1\nRun: run-9"
	if got.body != want {
		t.Fatalf("unexpected body:\n%s\nwant:\n%s", got.body, want)
	}
}

func TestNotifyBatchFailedIsHighPriority(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyBatchFailed(context.Background(), "posts.jsonl", errors.New("disk full")); err != nil {
		t.Fatalf("NotifyBatchFailed returned error: %v", err)
	}
	got := (*captured)[0]
	if got.priority != "high" || got.body != "Batch failed for posts.jsonl: disk full" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestSendReportsErrorStatus(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for forbidden response")
	}
}
