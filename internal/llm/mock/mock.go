// Package mock provides a scripted llm.Provider for tests and local runs.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/kumanday/OmniLearn/internal/llm"
)

// ErrNoReply is returned when the script has been used up.
var ErrNoReply = errors.New("mock provider: no scripted reply left")

// Call records one GenerateCompletion invocation.
type Call struct {
	Messages []llm.Message
	JSONMode bool
}

type reply struct {
	text string
	err  error
}

// Provider replays queued replies in order.
type Provider struct {
	mu      sync.Mutex
	replies []reply
	calls   []Call
}

// NewProvider creates a provider that answers with texts in order.
func NewProvider(texts ...string) *Provider {
	p := &Provider{}
	for _, t := range texts {
		p.Reply(t)
	}
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// Reply queues a successful reply.
func (p *Provider) Reply(text string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, reply{text: text})
	return p
}

// Fail queues a failure.
func (p *Provider) Fail(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, reply{err: err})
	return p
}

// GenerateCompletion returns the next queued reply.
func (p *Provider) GenerateCompletion(_ context.Context, messages []llm.Message, jsonMode bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{Messages: append([]llm.Message(nil), messages...), JSONMode: jsonMode})
	if len(p.replies) == 0 {
		return "", ErrNoReply
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r.text, r.err
}

// Calls returns the recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

var _ llm.Provider = (*Provider)(nil)
