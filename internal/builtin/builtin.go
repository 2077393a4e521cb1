// Package builtin carries the handlers every instance ships with:
// connection startup, admin controls, blocklist management, and the help
// and version surfaces. They register through the same plugin API as any
// other handler and double as its reference consumers.
package builtin

import (
	"fmt"

	"github.com/kestrel-irc/kestrel/internal/bot"
	"github.com/kestrel-irc/kestrel/internal/plugin"
)

// RegisterAll installs every built-in trigger on b.
func RegisterAll(b *bot.Bot) error {
	var specs []plugin.Spec
	specs = append(specs, coreSpecs()...)
	specs = append(specs, adminSpecs()...)
	specs = append(specs, blockSpecs()...)
	specs = append(specs, helpSpecs()...)
	specs = append(specs, versionSpecs()...)

	for _, s := range specs {
		if err := b.Register(s); err != nil {
			return fmt.Errorf("failed to register %q: %w", s.Name, err)
		}
	}
	return nil
}
