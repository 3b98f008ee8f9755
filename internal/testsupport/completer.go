package testsupport

import (
	"context"
	"sync"

	"notewriter/internal/services/llm"
)

// Reply is one scripted completion outcome.
type Reply struct {
	Text string
	Err  error
}

// FakeCompleter replays scripted replies in order and records every request.
// Once the script is exhausted the last reply repeats. It is safe for
// concurrent use.
type FakeCompleter struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
	// Respond, when set, overrides the script.
	Respond func(req llm.Request) (string, error)
}

// NewFakeCompleter scripts the given replies.
func NewFakeCompleter(replies ...Reply) *FakeCompleter {
	return &FakeCompleter{replies: replies}
}

// Texts is shorthand for a script of successful replies.
func Texts(texts ...string) []Reply {
	out := make([]Reply, len(texts))
	for i, text := range texts {
		out[i] = Reply{Text: text}
	}
	return out
}

// Complete implements the classifier's completion dependency.
func (f *FakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	respond := f.Respond
	var reply Reply
	switch {
	case len(f.replies) == 0:
	case idx < len(f.replies):
		reply = f.replies[idx]
	default:
		reply = f.replies[len(f.replies)-1]
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond != nil {
		return respond(req)
	}
	return reply.Text, reply.Err
}

// Calls returns how many completions were requested.
func (f *FakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of the recorded requests.
func (f *FakeCompleter) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.requests))
	copy(out, f.requests)
	return out
}
