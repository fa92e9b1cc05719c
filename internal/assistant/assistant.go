// Package assistant implements the FRJAR construction chat assistant.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/frjar/frjarai/internal/infra"
	"github.com/frjar/frjarai/internal/llm"
)

const (
	// Apology is returned when no provider produced a reply.
	Apology = "FRJAR Assistant: Sorry, I couldn't find the information you requested."
	// EmptyPrompt is returned for blank input without calling the chain.
	EmptyPrompt = "Please enter a message."

	historyLimit = 10
	sessionTTL   = 2 * time.Hour
)

// Chain is the provider-chain capability used by the assistant.
type Chain interface {
	Complete(ctx context.Context, prompt string) (llm.Reply, error)
}

// Message is one chat turn.
type Message struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Assistant answers construction questions for the Saudi market and keeps
// a short rolling history per session.
type Assistant struct {
	chain    Chain
	mu       sync.Mutex
	sessions *infra.Cache[[]Message]
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides the message clock and session expiry clock.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) {
		if now != nil {
			a.now = now
			a.sessions.SetClock(now)
		}
	}
}

// New creates an assistant over chain. Idle sessions expire after two hours.
func New(chain Chain, opts ...Option) *Assistant {
	a := &Assistant{
		chain:    chain,
		sessions: infra.NewCache[[]Message](sessionTTL),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildPrompt wraps a user question with the assistant's scope rules.
// Earlier turns, when given, are included as conversation context.
func BuildPrompt(input string, history []Message) string {
	var b strings.Builder
	b.WriteString(`FRJAR is a one-stop construction platform for Saudi Arabia only.

As the FRJAR AI Assistant you help users with:
- Building materials and product pricing
- Engineering consultancy services
- Equipment rentals and purchases
- Maintenance and repair services
- Real estate listings and home finance

Only provide information relevant to Saudi Arabia. If the user asks about
other countries or unrelated topics, politely reply that FRJAR specializes
in the Saudi construction industry.
`)
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}
	fmt.Fprintf(&b, "\nUser query:\n%q\n", input)
	b.WriteString(`
Your tasks:
1. If the query is about product prices, give a table with Product Name, Unit, Min Price, Max Price, Average Price and Today's Estimated Price.
2. If the query is about forecasts, give a concise price trend for Saudi Arabia.
3. If it is a general construction question, answer clearly and concisely.
4. If it is unrelated to construction or Saudi Arabia, reply politely that FRJAR focuses only on Saudi Arabia's construction industry.
5. Always start the response with: FRJAR:
`)
	return b.String()
}

// Ask answers input within sessionID. Blank input gets EmptyPrompt; an
// exhausted chain gets Apology. Only a cancelled ctx is an error.
func (a *Assistant) Ask(ctx context.Context, sessionID, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return EmptyPrompt, nil
	}

	history := a.History(sessionID)
	reply, err := a.chain.Complete(ctx, BuildPrompt(input, history))
	var text string
	switch {
	case err == nil:
		text = reply.Text
	case ctx.Err() != nil:
		return "", ctx.Err()
	default:
		if !errors.Is(err, llm.ErrNoReply) {
			a.logger.Warn("assistant chain failed", "session", sessionID, "err", err)
		}
		text = Apology
	}

	now := a.now()
	a.append(sessionID,
		Message{Role: "user", Content: input, At: now},
		Message{Role: "assistant", Content: text, At: now},
	)
	return text, nil
}

// History returns a copy of the session's retained messages, oldest first.
func (a *Assistant) History(sessionID string) []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs, _ := a.sessions.Get(sessionID)
	return append([]Message(nil), msgs...)
}

// Reset forgets a session.
func (a *Assistant) Reset(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions.Invalidate(sessionID)
}

func (a *Assistant) append(sessionID string, msgs ...Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, _ := a.sessions.Get(sessionID)
	next := append(append([]Message(nil), cur...), msgs...)
	if len(next) > historyLimit {
		next = next[len(next)-historyLimit:]
	}
	a.sessions.Set(sessionID, next)
}
