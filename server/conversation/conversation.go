// Package conversation implements chat based question and answer flows with
// players.
package conversation

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is how long a conversation waits for an answer.
const DefaultTimeout = 60 * time.Second

// DefaultEscapeWords end a conversation when typed as the answer to a prompt.
var DefaultEscapeWords = []string{"quit", "cancel", "exit"}

// Messenger is a player that conversations are held with.
type Messenger interface {
	UUID() uuid.UUID
	// Message sends a chat message to the player.
	Message(text string)
}

// EndReason is the reason a conversation ended for.
type EndReason uint8

const (
	// Completed means the last prompt accepted its answer.
	Completed EndReason = iota
	// Cancelled means the player typed an escape word or the conversation was
	// cancelled by the server.
	Cancelled
	// TimedOut means the player did not answer in time.
	TimedOut
	// Failed means a prompt returned an error.
	Failed
	// Abandoned means another conversation was started with the same player.
	Abandoned
)

var endReasonNames = [...]string{
	Completed: "completed",
	Cancelled: "cancelled",
	TimedOut:  "timed out",
	Failed:    "failed",
	Abandoned: "abandoned",
}

// String ...
func (r EndReason) String() string {
	if int(r) < len(endReasonNames) {
		return endReasonNames[r]
	}
	return fmt.Sprintf("EndReason(%d)", r)
}

// Prompt is a single question of a conversation.
type Prompt interface {
	// Question returns the text sent to the player when the prompt starts.
	Question(ctx *Context) string
	// Accept handles the answer of the player and returns the next prompt. A
	// nil Prompt completes the conversation.
	Accept(ctx *Context, input string) (Prompt, error)
}

// Validator may be implemented by a Prompt to reject answers before they are
// accepted. The prompt is asked again after a rejected answer.
type Validator interface {
	// Valid reports whether input is acceptable. If not, message is sent to
	// the player.
	Valid(ctx *Context, input string) (ok bool, message string)
}

// Context is shared by all prompts of a conversation.
type Context struct {
	Player Messenger

	mu   sync.Mutex
	data map[string]any
}

// Set stores a value under key for later prompts.
func (c *Context) Set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]any)
	}
	c.data[key] = v
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

// Config holds the settings of a conversation.
type Config struct {
	// Timeout is how long an answer is waited for. Zero means DefaultTimeout.
	Timeout time.Duration
	// EscapeWords cancel the conversation. Nil means DefaultEscapeWords.
	EscapeWords []string
	// Prefix is put before every message sent by the conversation.
	Prefix string
	// OnEnd is called exactly once when the conversation ends.
	OnEnd func(ctx *Context, reason EndReason)
	Log   *slog.Logger
}

// Conversation is an ongoing flow of prompts with a single player.
type Conversation struct {
	conf Config
	ctx  *Context
	log  *slog.Logger

	mu      sync.Mutex
	current Prompt
	step    uint64
	timer   *time.Timer
	ended   bool
	reason  EndReason
}

// Start begins a conversation with p by asking first.
func Start(p Messenger, first Prompt, conf Config) *Conversation {
	if conf.Timeout <= 0 {
		conf.Timeout = DefaultTimeout
	}
	if conf.EscapeWords == nil {
		conf.EscapeWords = DefaultEscapeWords
	}
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	c := &Conversation{
		conf: conf,
		ctx:  &Context{Player: p},
		log:  conf.Log.With("subsystem", "conversation", "player", p.UUID()),
	}
	c.mu.Lock()
	c.ask(first)
	c.mu.Unlock()
	return c
}

// Context returns the context of the conversation.
func (c *Conversation) Context() *Context {
	return c.ctx
}

// ask makes p the current prompt. c.mu must be held.
func (c *Conversation) ask(p Prompt) {
	c.current = p
	c.step++
	c.send(p.Question(c.ctx))
	c.resetTimer()
}

func (c *Conversation) resetTimer() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.conf.Timeout, func() { c.End(TimedOut) })
}

func (c *Conversation) send(text string) {
	if text == "" {
		return
	}
	c.ctx.Player.Message(c.conf.Prefix + text)
}

// Input passes an answer of the player to the current prompt. It returns
// false if the conversation already ended. Prompts are called without any lock
// held, so they may start or end conversations themselves.
func (c *Conversation) Input(text string) bool {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return false
	}
	p, step := c.current, c.step
	c.mu.Unlock()

	input := strings.TrimSpace(text)
	if slices.ContainsFunc(c.conf.EscapeWords, func(w string) bool { return strings.EqualFold(w, input) }) {
		c.End(Cancelled)
		return true
	}
	if v, ok := p.(Validator); ok {
		if valid, msg := v.Valid(c.ctx, input); !valid {
			c.send(msg)
			c.advance(step, p)
			return true
		}
	}
	next, err := c.accept(p, input)
	switch {
	case err != nil:
		c.log.Debug("Prompt failed.", "error", err)
		c.send(err.Error())
		c.End(Failed)
	case next == nil:
		c.End(Completed)
	default:
		c.advance(step, next)
	}
	return true
}

// advance asks next if no other prompt was asked since step.
func (c *Conversation) advance(step uint64, next Prompt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended || c.step != step {
		return
	}
	c.ask(next)
}

func (c *Conversation) accept(p Prompt, input string) (next Prompt, err error) {
	defer func() {
		if v := recover(); v != nil {
			c.log.Error("Prompt panic.", "panic", v, "stack", string(debug.Stack()))
			err = fmt.Errorf("prompt panic: %v", v)
		}
	}()
	return p.Accept(c.ctx, input)
}

// End ends the conversation for reason. Calls after the first have no effect.
func (c *Conversation) End(reason EndReason) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended, c.reason = true, reason
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	if reason == TimedOut {
		c.send("You took too long to answer.")
	}
	c.log.Debug("Conversation ended.", "reason", reason)
	if c.conf.OnEnd != nil {
		c.conf.OnEnd(c.ctx, reason)
	}
}

// Ended reports whether the conversation ended and why.
func (c *Conversation) Ended() (EndReason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.ended
}
