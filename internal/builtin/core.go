package builtin

import (
	"strings"

	"github.com/kestrel-irc/kestrel/internal/plugin"
)

func coreSpecs() []plugin.Spec {
	return []plugin.Spec{
		{
			Name:     "startup",
			Events:   []string{"376", "422"},
			Priority: plugin.High,
			Inline:   true,
			Handler:  startup,
		},
		{
			Name:     "names-on-join",
			Events:   []string{"JOIN"},
			Priority: plugin.High,
			Inline:   true,
			Handler:  namesOnJoin,
		},
	}
}

// startup runs once the server ends its MOTD, which is the first safe
// moment to act: identify, set the bot usermode, join the configured
// channels.
func startup(b plugin.Bot, ev *plugin.Event) error {
	cfg := b.Config()
	if cfg.NickservPass != "" {
		b.Say("NickServ", "IDENTIFY "+cfg.NickservPass)
	}
	b.Write("MODE", b.Nick(), "+B")
	for _, channel := range cfg.Channels {
		b.Write("JOIN", channel)
	}
	return nil
}

// namesOnJoin refreshes membership whenever the bot itself enters a
// channel, so privilege queries are warm even if the server's own NAMES
// burst was lost.
func namesOnJoin(b plugin.Bot, ev *plugin.Event) error {
	if ev.Target == "" || !strings.EqualFold(ev.Nick, b.Nick()) {
		return nil
	}
	b.Write("NAMES", ev.Target)
	return nil
}
