package builtin

import (
	"strings"

	"github.com/kestrel-irc/kestrel/internal/plugin"
)

// Admin controls answer only in private, and refuse anyone who is not an
// admin (or the owner, for the commands that change what the bot is).

func adminSpecs() []plugin.Spec {
	return []plugin.Spec{
		{
			Name:     "join",
			Commands: []string{"join"},
			Inline:   true,
			Help:     "join <#channel> [key]: join a channel (admins, in private)",
			Handler:  cmdJoin,
		},
		{
			Name:     "part",
			Commands: []string{"part"},
			Inline:   true,
			Help:     "part <#channel> [message]: leave a channel (admins, in private)",
			Handler:  cmdPart,
		},
		{
			Name:     "msg",
			Commands: []string{"msg"},
			Inline:   true,
			Help:     "msg <target> <text>: speak through the bot (admins, in private)",
			Handler:  cmdMsg,
		},
		{
			Name:     "nick",
			Commands: []string{"nick"},
			Inline:   true,
			Help:     "nick <newnick>: change the bot's nick (owner, in private)",
			Handler:  cmdNick,
		},
		{
			Name:     "quit",
			Commands: []string{"quit"},
			Inline:   true,
			Help:     "quit [message]: disconnect and exit (owner, in private)",
			Handler:  cmdQuit,
		},
	}
}

func refuseUnlessAdmin(b plugin.Bot, ev *plugin.Event) bool {
	if b.IsAdmin(ev.Nick) {
		return false
	}
	b.Reply(ev, "Sorry, you must be an admin to do that.")
	return true
}

func refuseUnlessOwner(b plugin.Bot, ev *plugin.Event) bool {
	if b.IsOwner(ev.Nick) {
		return false
	}
	b.Reply(ev, "Sorry, only my owner can do that.")
	return true
}

func cmdJoin(b plugin.Bot, ev *plugin.Event) error {
	if ev.IsChannel() {
		return plugin.NoLimit
	}
	if refuseUnlessAdmin(b, ev) {
		return plugin.NoLimit
	}

	fields := strings.Fields(ev.Args())
	switch len(fields) {
	case 1:
		b.Write("JOIN", fields[0])
	case 2:
		b.Write("JOIN", fields[0], fields[1])
	default:
		b.Reply(ev, "Usage: join <#channel> [key]")
		return plugin.NoLimit
	}
	return nil
}

func cmdPart(b plugin.Bot, ev *plugin.Event) error {
	if ev.IsChannel() {
		return plugin.NoLimit
	}
	if refuseUnlessAdmin(b, ev) {
		return plugin.NoLimit
	}

	parts := strings.SplitN(strings.TrimSpace(ev.Args()), " ", 2)
	if parts[0] == "" {
		b.Reply(ev, "Usage: part <#channel> [message]")
		return plugin.NoLimit
	}
	if len(parts) == 2 {
		b.Write("PART", parts[0], parts[1])
	} else {
		b.Write("PART", parts[0])
	}
	return nil
}

func cmdMsg(b plugin.Bot, ev *plugin.Event) error {
	if ev.IsChannel() {
		return plugin.NoLimit
	}
	if refuseUnlessAdmin(b, ev) {
		return plugin.NoLimit
	}

	parts := strings.SplitN(strings.TrimSpace(ev.Args()), " ", 2)
	if len(parts) < 2 || parts[0] == "" {
		b.Reply(ev, "Usage: msg <target> <text>")
		return plugin.NoLimit
	}
	b.Say(parts[0], parts[1])
	return nil
}

func cmdNick(b plugin.Bot, ev *plugin.Event) error {
	if ev.IsChannel() {
		return plugin.NoLimit
	}
	if refuseUnlessOwner(b, ev) {
		return plugin.NoLimit
	}

	nick := strings.TrimSpace(ev.Args())
	if nick == "" {
		b.Reply(ev, "Usage: nick <newnick>")
		return plugin.NoLimit
	}
	b.Write("NICK", nick)
	return nil
}

func cmdQuit(b plugin.Bot, ev *plugin.Event) error {
	if ev.IsChannel() {
		return plugin.NoLimit
	}
	if refuseUnlessOwner(b, ev) {
		return plugin.NoLimit
	}

	message := strings.TrimSpace(ev.Args())
	if message == "" {
		message = "Quitting on command from " + ev.Nick
	}
	b.Shutdown(message)
	return nil
}
