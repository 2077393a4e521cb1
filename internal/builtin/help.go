package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kestrel-irc/kestrel/internal/plugin"
)

func helpSpecs() []plugin.Spec {
	return []plugin.Spec{
		{
			Name:     "help",
			Commands: []string{"help"},
			Inline:   true,
			Help:     "help [command]: describe a command",
			Handler:  cmdHelp,
		},
		{
			Name:     "commands",
			Commands: []string{"commands"},
			Inline:   true,
			Help:     "commands: list every command the bot answers to",
			Handler:  cmdCommands,
		},
	}
}

func cmdHelp(b plugin.Bot, ev *plugin.Event) error {
	prefix := b.Config().Prefix

	word := strings.ToLower(strings.TrimSpace(ev.Args()))
	word = strings.TrimPrefix(word, prefix)
	if word == "" {
		b.Reply(ev, fmt.Sprintf("Say %shelp <command> for help on a command, or %scommands for a list.", prefix, prefix))
		return nil
	}

	for _, t := range b.Triggers() {
		for _, cmd := range t.Commands {
			if strings.EqualFold(cmd, word) {
				if t.Help == "" {
					b.Reply(ev, fmt.Sprintf("%s%s has no description.", prefix, cmd))
				} else {
					b.Reply(ev, t.Help)
				}
				return nil
			}
		}
	}
	b.Reply(ev, fmt.Sprintf("Sorry, I don't know %q.", word))
	return nil
}

func cmdCommands(b plugin.Bot, ev *plugin.Event) error {
	var words []string
	for _, t := range b.Triggers() {
		words = append(words, t.Commands...)
	}
	sort.Strings(words)

	if len(words) == 0 {
		b.Reply(ev, "I have no commands registered.")
		return nil
	}
	if ev.IsChannel() {
		b.Reply(ev, "I am sending you a private message of all my commands!")
	}
	b.Say(ev.Nick, "Commands I recognise: "+strings.Join(words, ", "))
	return nil
}
