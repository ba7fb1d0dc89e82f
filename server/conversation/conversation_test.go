package conversation

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakePlayer struct {
	id uuid.UUID

	mu   sync.Mutex
	msgs []string
}

func newFakePlayer() *fakePlayer { return &fakePlayer{id: uuid.New()} }

func (p *fakePlayer) UUID() uuid.UUID { return p.id }

func (p *fakePlayer) Message(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, text)
}

func (p *fakePlayer) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return ""
	}
	return p.msgs[len(p.msgs)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ageFlow() Prompt {
	return Ask{
		Text: "What is your name?",
		Then: func(ctx *Context, input string) (Prompt, error) {
			ctx.Set("name", input)
			return Ask{
				Text: "How old are you?",
				Validate: func(input string) (bool, string) {
					if _, err := strconv.Atoi(input); err != nil {
						return false, "Please enter a number."
					}
					return true, ""
				},
				Then: func(ctx *Context, input string) (Prompt, error) {
					n, _ := strconv.Atoi(input)
					if n > 150 {
						return nil, errors.New("Nobody is that old.")
					}
					ctx.Set("age", n)
					return nil, nil
				},
			}, nil
		},
	}
}

func startFlow(p Messenger, conf Config) (*Conversation, chan EndReason) {
	ended := make(chan EndReason, 2)
	conf.Log = discardLogger()
	conf.OnEnd = func(_ *Context, r EndReason) { ended <- r }
	return Start(p, ageFlow(), conf), ended
}

func expectEnd(t *testing.T, ended chan EndReason, want EndReason) {
	t.Helper()
	select {
	case got := <-ended:
		if got != want {
			t.Fatalf("expected conversation to end %v, got %v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("conversation did not end")
	}
	select {
	case got := <-ended:
		t.Fatalf("end callback ran twice, second time with %v", got)
	default:
	}
}

func TestConversationCompletes(t *testing.T) {
	p := newFakePlayer()
	c, ended := startFlow(p, Config{Prefix: "> "})
	if p.last() != "> What is your name?" {
		t.Fatalf("unexpected first question %q", p.last())
	}
	c.Input("Steve")
	c.Input("old")
	if p.last() != "> How old are you?" {
		t.Fatalf("expected the question to be asked again, got %q", p.last())
	}
	c.Input(" 30 ")
	expectEnd(t, ended, Completed)

	if name, _ := c.Context().Get("name"); name != "Steve" {
		t.Fatalf("unexpected name %v", name)
	}
	if age, _ := c.Context().Get("age"); age != 30 {
		t.Fatalf("unexpected age %v", age)
	}
	if c.Input("more") {
		t.Fatalf("ended conversation accepted input")
	}
}

func TestConversationEscapeWord(t *testing.T) {
	c, ended := startFlow(newFakePlayer(), Config{})
	c.Input("CANCEL")
	expectEnd(t, ended, Cancelled)
}

func TestConversationFails(t *testing.T) {
	p := newFakePlayer()
	c, ended := startFlow(p, Config{})
	c.Input("Alex")
	c.Input("200")
	expectEnd(t, ended, Failed)
	if p.last() != "Nobody is that old." {
		t.Fatalf("expected error to be sent, got %q", p.last())
	}
}

func TestConversationTimesOut(t *testing.T) {
	c, ended := startFlow(newFakePlayer(), Config{Timeout: 20 * time.Millisecond})
	expectEnd(t, ended, TimedOut)
	if r, ok := c.Ended(); !ok || r != TimedOut {
		t.Fatalf("expected TimedOut, got %v %v", r, ok)
	}
}

type panicPrompt struct{}

func (panicPrompt) Question(*Context) string { return "?" }
func (panicPrompt) Accept(*Context, string) (Prompt, error) {
	panic("boom")
}

func TestConversationPromptPanic(t *testing.T) {
	ended := make(chan EndReason, 1)
	c := Start(newFakePlayer(), panicPrompt{}, Config{Log: discardLogger(), OnEnd: func(_ *Context, r EndReason) { ended <- r }})
	c.Input("x")
	expectEnd(t, ended, Failed)
}

func TestManagerAbandonsPrevious(t *testing.T) {
	var (
		mu     sync.Mutex
		events []EndEvent
	)
	m := NewManager(discardLogger(), func(e EndEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	p := newFakePlayer()
	first := m.Start(p, ageFlow(), Config{})
	second := m.Start(p, ageFlow(), Config{})
	if r, ok := first.Ended(); !ok || r != Abandoned {
		t.Fatalf("expected first conversation to be abandoned, got %v %v", r, ok)
	}
	if got, _ := m.Conversation(p.id); got != second || m.Len() != 1 {
		t.Fatalf("expected only the second conversation to be active")
	}

	if m.Input(uuid.New(), "hello") {
		t.Fatalf("input of a player without conversation was consumed")
	}
	m.Input(p.id, "exit")
	if m.Len() != 0 {
		t.Fatalf("ended conversation still registered")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0].Reason != Abandoned || events[1].Reason != Cancelled {
		t.Fatalf("unexpected end events %+v", events)
	}
}

// managerPrompt asks a question that inspects the manager it runs under.
type managerPrompt struct {
	m *Manager
}

func (q managerPrompt) Question(ctx *Context) string {
	_, active := q.m.Conversation(ctx.Player.UUID())
	return "Active: " + strconv.FormatBool(active) + ", total: " + strconv.Itoa(q.m.Len())
}

func (managerPrompt) Accept(*Context, string) (Prompt, error) { return nil, nil }

func TestManagerPromptCallsManager(t *testing.T) {
	m := NewManager(discardLogger(), nil)
	p := newFakePlayer()
	done := make(chan *Conversation, 1)
	go func() { done <- m.Start(p, managerPrompt{m: m}, Config{}) }()

	var c *Conversation
	select {
	case c = <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Start blocked while the first prompt used the manager")
	}
	if p.last() != "Active: false, total: 0" {
		t.Fatalf("unexpected question %q", p.last())
	}
	if got, ok := m.Conversation(p.id); !ok || got != c {
		t.Fatalf("conversation not registered after Start")
	}
	m.Input(p.id, "done")
	if m.Len() != 0 {
		t.Fatalf("completed conversation still registered")
	}
}

func TestEndReasonString(t *testing.T) {
	if TimedOut.String() != "timed out" || EndReason(42).String() != "EndReason(42)" {
		t.Fatalf("unexpected end reason names")
	}
}
