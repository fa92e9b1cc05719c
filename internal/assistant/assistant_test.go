package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frjar/frjarai/internal/infra"
	"github.com/frjar/frjarai/internal/llm"
)

type mockChain struct {
	calls      atomic.Int32
	lastPrompt string
	replyFunc  func(prompt string) (string, error)
}

func (m *mockChain) Complete(_ context.Context, prompt string) (llm.Reply, error) {
	m.calls.Add(1)
	m.lastPrompt = prompt
	text, err := m.replyFunc(prompt)
	if err != nil {
		return llm.Reply{}, err
	}
	return llm.Reply{Text: text, Provider: "mock"}, nil
}

func newQuiet(c Chain) *Assistant { return New(c, WithLogger(infra.DiscardLogger())) }

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("price of cement?", nil)
	for _, want := range []string{"Saudi Arabia only", `"price of cement?"`, "Always start the response with: FRJAR:"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, "Conversation so far") {
		t.Fatal("empty history should not add a context block")
	}

	p = BuildPrompt("and steel?", []Message{{Role: "user", Content: "price of cement?"}})
	if !strings.Contains(p, "user: price of cement?") {
		t.Fatalf("history not included:\n%s", p)
	}
}

func TestAskReplies(t *testing.T) {
	c := &mockChain{replyFunc: func(string) (string, error) { return "FRJAR: about 15 SAR per bag.", nil }}
	a := newQuiet(c)

	got, err := a.Ask(context.Background(), "s1", "  cement price?  ")
	if err != nil {
		t.Fatal(err)
	}
	if got != "FRJAR: about 15 SAR per bag." {
		t.Fatalf("reply = %q", got)
	}
	h := a.History("s1")
	if len(h) != 2 || h[0].Content != "cement price?" || h[1].Role != "assistant" {
		t.Fatalf("history = %+v", h)
	}
	if len(a.History("other")) != 0 {
		t.Fatal("sessions must be isolated")
	}
}

func TestAskApologisesWhenChainExhausted(t *testing.T) {
	c := &mockChain{replyFunc: func(string) (string, error) { return "", fmt.Errorf("%w: 4 providers", llm.ErrNoReply) }}
	got, err := newQuiet(c).Ask(context.Background(), "s", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if got != Apology {
		t.Fatalf("reply = %q", got)
	}
}

func TestAskBlankInput(t *testing.T) {
	c := &mockChain{replyFunc: func(string) (string, error) { return "x", nil }}
	a := newQuiet(c)
	got, _ := a.Ask(context.Background(), "s", "   ")
	if got != EmptyPrompt || c.calls.Load() != 0 || len(a.History("s")) != 0 {
		t.Fatalf("got %q calls=%d", got, c.calls.Load())
	}
}

func TestAskCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &mockChain{replyFunc: func(string) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	if _, err := newQuiet(c).Ask(ctx, "s", "hi"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHistoryKeepsLastTen(t *testing.T) {
	c := &mockChain{replyFunc: func(string) (string, error) { return "ok", nil }}
	a := newQuiet(c)
	for i := range 8 {
		if _, err := a.Ask(context.Background(), "s", fmt.Sprintf("q%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	h := a.History("s")
	if len(h) != historyLimit {
		t.Fatalf("history len = %d, want %d", len(h), historyLimit)
	}
	if h[0].Content != "q3" || h[len(h)-2].Content != "q7" {
		t.Fatalf("oldest=%q newest user=%q", h[0].Content, h[len(h)-2].Content)
	}
	if !strings.Contains(c.lastPrompt, "user: q6") {
		t.Fatal("prompt should carry earlier turns")
	}

	a.Reset("s")
	if len(a.History("s")) != 0 {
		t.Fatal("Reset should clear history")
	}
}

func TestSessionsExpire(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	c := &mockChain{replyFunc: func(string) (string, error) { return "ok", nil }}
	a := New(c, WithLogger(infra.DiscardLogger()), WithClock(func() time.Time { return now }))
	if _, err := a.Ask(context.Background(), "s", "hi"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(sessionTTL + time.Minute)
	if len(a.History("s")) != 0 {
		t.Fatal("idle session should expire")
	}
}
