// Package plugin defines the surface command and event code registers
// against the bot: trigger specifications, the compiled registry that
// matches them, and the facade handlers act through.
package plugin

import (
	"errors"
	"time"

	"github.com/kestrel-irc/kestrel/internal/config"
	"github.com/kestrel-irc/kestrel/internal/sched"
	"github.com/kestrel-irc/kestrel/internal/state"
	"github.com/kestrel-irc/kestrel/internal/storage"
)

// Priority orders trigger groups during dispatch: every matching high
// trigger fires before any medium one, medium before low.
type Priority string

const (
	High   Priority = "high"
	Medium Priority = "medium"
	Low    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case High:
		return 0
	case Low:
		return 2
	}
	return 1
}

// NoLimit may be returned by a handler to signal that this firing should
// not count against the trigger's rate limit, typically after refusing or
// ignoring the invocation.
var NoLimit = errors.New("plugin: no limit")

// Handler is invoked when its trigger matches an inbound event.
type Handler func(b Bot, ev *Event) error

// Bot is what a handler sees of the bot: the write path onto the
// connection plus read access to tracked state and configuration.
type Bot interface {
	// Say sends text to a channel or nick.
	Say(target, text string)
	// Reply addresses text to the event's sender: in a channel it is
	// prefixed with their nick, in private it goes straight back.
	Reply(ev *Event, text string)
	// Notice sends a NOTICE to target.
	Notice(target, text string)
	// Write sends a raw command with parameters.
	Write(command string, params ...string)

	// Nick returns the nick the session currently holds.
	Nick() string
	// Channels lists the channels the bot is tracking.
	Channels() []string
	// Members returns a channel's membership keyed by folded nick.
	Members(channel string) map[string]state.Privilege
	// Privilege returns nick's standing in channel; absent means none.
	Privilege(channel, nick string) state.Privilege
	// Whois runs a WHOIS exchange, bounded by the configured timeout.
	// It blocks on server replies, so it must not be called from Inline
	// handlers; those run on the loop that would deliver the answer.
	Whois(nick string) (*state.WhoisInfo, error)

	Config() *config.Config
	IsAdmin(nick string) bool
	IsOwner(nick string) bool

	// Triggers lists every registered trigger, for help surfaces.
	Triggers() []*Trigger

	// Store is the persistent per-nick/per-channel settings store.
	Store() *storage.Store
	// Blocks is the live nick/host blocklist consulted before dispatch.
	Blocks() *storage.Blocklist

	// Schedule runs fn once, at or after delay.
	Schedule(delay time.Duration, fn func()) *sched.Task
	// Every runs fn repeatedly at the given interval until cancelled.
	Every(interval time.Duration, fn func()) *sched.Task

	// Shutdown quits the connection intentionally and ends the process.
	Shutdown(message string)
}

// Spec declares a trigger. Exactly one of Commands, Pattern or Events
// must be set, except that Pattern may combine with Events to run a
// regular expression over matching protocol lines.
type Spec struct {
	// Name identifies the trigger in logs. Defaults to the first command
	// word, event or the pattern itself.
	Name string

	// Commands matches prefix-invoked command words, case-insensitively:
	// "<prefix><word>" optionally followed by argument text.
	Commands []string
	// Pattern is a regular expression matched against message text, or
	// against the whole raw line when Events is also set. The literal
	// $nickname is replaced with the bot's current nick at bind time;
	// $nick additionally swallows the address separator after it.
	Pattern string
	// Events matches command tokens or numeric codes ("JOIN", "433").
	Events []string

	// Priority is high, medium or low; empty means medium.
	Priority Priority

	// Rate is the minimum interval between firings per nick, and
	// ChannelRate per channel. Zero means unlimited. Admins are exempt.
	Rate        time.Duration
	ChannelRate time.Duration

	// Inline runs the handler synchronously on the read loop, so its side
	// effects complete before later triggers see the same line. The
	// default is a goroutine per invocation, which may run concurrently
	// with itself on rapid successive matches.
	Inline bool

	// Help is a one-line usage description for help surfaces.
	Help string

	Handler Handler
}
