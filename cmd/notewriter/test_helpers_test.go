package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"notewriter/internal/config"
	"notewriter/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	server     *httptest.Server
	calls      atomic.Int32
	// replies maps a substring of the user prompt to the model's reply.
	replies map[string]string
	status  atomic.Int32
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	for _, key := range []string{"ANTHROPIC_API_KEY", "CLAUDE_MODEL_ID", "CLAUDE_VISION_ID", "DISABLE_MISLEADING_TAGS"} {
		t.Setenv(key, "")
	}
	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	env := &cliTestEnv{baseDir: base, replies: map[string]string{}}
	env.status.Store(http.StatusOK)
	env.server = httptest.NewServer(http.HandlerFunc(env.handle))
	t.Cleanup(env.server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(env.server.URL))
	cfg.Logging.Level = "error"
	env.cfg = cfg
	env.configPath = filepath.Join(base, "config.toml")
	writeTestConfig(t, env.configPath, cfg)
	return env
}

func (e *cliTestEnv) handle(w http.ResponseWriter, r *http.Request) {
	e.calls.Add(1)
	if status := int(e.status.Load()); status != http.StatusOK {
		http.Error(w, `{"error":{"type":"overloaded_error","message":"overloaded"}}`, status)
		return
	}
	var payload struct {
		Messages []struct {
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Messages) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	reply := `{"misleading_tags":[]}`
	var prompt string
	if err := json.Unmarshal(payload.Messages[0].Content, &prompt); err != nil {
		reply = "A bar chart with no axis labels."
	} else {
		if strings.Contains(prompt, `{"ok":true}`) {
			reply = `{"ok":true}`
		}
		for key, value := range e.replies {
			if strings.Contains(prompt, key) {
				reply = value
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"content":     []map[string]string{{"type": "text", "text": reply}},
		"stop_reason": "end_turn",
	})
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, "")
}

func runCLIWithInput(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
