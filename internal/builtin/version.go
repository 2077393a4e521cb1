package builtin

import (
	"fmt"

	"github.com/kestrel-irc/kestrel/internal/bot"
	"github.com/kestrel-irc/kestrel/internal/plugin"
)

func versionSpecs() []plugin.Spec {
	return []plugin.Spec{
		{
			Name:     "version",
			Commands: []string{"version"},
			Inline:   true,
			Help:     "version: report the running build",
			Handler:  cmdVersion,
		},
		{
			Name:    "ctcp-version",
			Pattern: "^\x01VERSION\x01$",
			Inline:  true,
			Handler: ctcpVersion,
		},
	}
}

func versionLine() string {
	return fmt.Sprintf("kestrel %s (built %s, commit %s)", bot.Version, bot.BuildDate, bot.GitCommit)
}

func cmdVersion(b plugin.Bot, ev *plugin.Event) error {
	b.Reply(ev, versionLine())
	return nil
}

func ctcpVersion(b plugin.Bot, ev *plugin.Event) error {
	b.Write("NOTICE", ev.Nick, "\x01VERSION "+versionLine()+"\x01")
	return nil
}
