package plugin

import (
	"github.com/ergochat/irc-go/ircmsg"
)

// Event is one parsed inbound line plus the capture groups of the trigger
// that matched it. Events are built per line and discarded after dispatch;
// handlers may keep copies.
type Event struct {
	// Message is the parsed wire form.
	Message ircmsg.Message
	// Raw is the line exactly as received, without its terminator.
	Raw string

	// Nick, User and Host decompose the sender prefix. For server-sourced
	// lines Nick holds the server name and User/Host are empty.
	Nick string
	User string
	Host string

	// Target is the first parameter: the channel or nick the line was
	// addressed to, for commands that carry one.
	Target string
	// Text is the trailing body for PRIVMSG/NOTICE style lines.
	Text string

	groups []string
}

// NewEvent derives an Event from a parsed message.
func NewEvent(msg ircmsg.Message, raw string) *Event {
	ev := &Event{Message: msg, Raw: raw}
	if nuh, err := msg.NUH(); err == nil {
		ev.Nick = nuh.Name
		ev.User = nuh.User
		ev.Host = nuh.Host
	}
	if len(msg.Params) > 0 {
		ev.Target = msg.Params[0]
	}
	if len(msg.Params) > 1 {
		ev.Text = msg.Params[len(msg.Params)-1]
	}
	return ev
}

// Command returns the IRC command or numeric of the line.
func (e *Event) Command() string { return e.Message.Command }

// Group returns a capture group from the trigger match. Group 0 is the
// whole match; for command triggers group 1 is the command word as typed
// and group 2 the argument text. Out-of-range groups return "".
func (e *Event) Group(i int) string {
	if i < 0 || i >= len(e.groups) {
		return ""
	}
	return e.groups[i]
}

// Args returns the argument text of a command trigger match.
func (e *Event) Args() string { return e.Group(2) }

// IsChannel reports whether the event was addressed to a channel.
func (e *Event) IsChannel() bool {
	return len(e.Target) > 0 && (e.Target[0] == '#' || e.Target[0] == '&')
}

// ReplyTarget returns where a response belongs: the channel for channel
// events, otherwise the sending nick.
func (e *Event) ReplyTarget() string {
	if e.IsChannel() {
		return e.Target
	}
	return e.Nick
}

// WithGroups returns a copy of the event carrying the given capture
// groups. The dispatcher uses it to hand each matched trigger its own
// groups for the same line.
func (e *Event) WithGroups(groups []string) *Event {
	dup := *e
	dup.groups = groups
	return &dup
}
