package builtin

import (
	"log"
	"strings"

	"github.com/kestrel-irc/kestrel/internal/plugin"
)

func blockSpecs() []plugin.Spec {
	return []plugin.Spec{
		{
			Name:     "blocks",
			Commands: []string{"blocks"},
			Inline:   true,
			Help:     "blocks list|add|del nick|host <pattern>: manage the blocklist (admins)",
			Handler:  cmdBlocks,
		},
	}
}

func cmdBlocks(b plugin.Bot, ev *plugin.Event) error {
	if refuseUnlessAdmin(b, ev) {
		return plugin.NoLimit
	}

	words := strings.Fields(ev.Args())
	if len(words) == 0 {
		b.Reply(ev, "I could not figure out what you wanted to do.")
		return plugin.NoLimit
	}

	switch words[0] {
	case "list":
		if len(words) != 2 {
			b.Reply(ev, "Invalid input for displaying blocks.")
			return plugin.NoLimit
		}
		return listBlocks(b, ev, words[1])
	case "add":
		if len(words) != 3 {
			b.Reply(ev, "Invalid format for adding a block. Try: blocks add nick spammer")
			return plugin.NoLimit
		}
		return addBlock(b, ev, words[1], words[2])
	case "del":
		if len(words) != 3 {
			b.Reply(ev, "Invalid format for deleting a block. Try: blocks del nick spammer")
			return plugin.NoLimit
		}
		return delBlock(b, ev, words[1], words[2])
	default:
		b.Reply(ev, "I could not figure out what you wanted to do.")
		return plugin.NoLimit
	}
}

func listBlocks(b plugin.Bot, ev *plugin.Event, kind string) error {
	var patterns []string
	switch kind {
	case "nick":
		patterns = b.Blocks().Nicks()
	case "host":
		patterns = b.Blocks().Hosts()
	default:
		b.Reply(ev, "Invalid input for displaying blocks.")
		return plugin.NoLimit
	}

	if len(patterns) == 0 {
		b.Say(ev.ReplyTarget(), "No "+kind+"s listed in the blocklist.")
		return nil
	}
	for _, pat := range patterns {
		b.Say(ev.ReplyTarget(), "blocked "+kind+": "+pat)
	}
	return nil
}

func addBlock(b plugin.Bot, ev *plugin.Event, kind, pattern string) error {
	var err error
	switch kind {
	case "nick":
		err = b.Blocks().AddNick(pattern)
	case "host":
		err = b.Blocks().AddHost(pattern)
	default:
		b.Reply(ev, "Invalid format for adding a block. Try: blocks add nick spammer")
		return plugin.NoLimit
	}
	if err != nil {
		b.Reply(ev, "Could not add block: "+err.Error())
		return plugin.NoLimit
	}
	saveBlocks(b, ev)
	b.Reply(ev, "Successfully added block: "+pattern)
	return nil
}

func delBlock(b plugin.Bot, ev *plugin.Event, kind, pattern string) error {
	var removed bool
	switch kind {
	case "nick":
		removed = b.Blocks().RemoveNick(pattern)
	case "host":
		removed = b.Blocks().RemoveHost(pattern)
	default:
		b.Reply(ev, "Invalid format for deleting a block. Try: blocks del nick spammer")
		return plugin.NoLimit
	}
	if !removed {
		b.Reply(ev, "No matching "+kind+" block found for: "+pattern)
		return plugin.NoLimit
	}
	saveBlocks(b, ev)
	b.Reply(ev, "Successfully deleted block: "+pattern)
	return nil
}

func saveBlocks(b plugin.Bot, ev *plugin.Event) {
	if err := b.Blocks().Save(); err != nil {
		log.Printf("Failed to save blocklist: %v", err)
		b.Reply(ev, "Could not save the blocklist to disk.")
	}
}
