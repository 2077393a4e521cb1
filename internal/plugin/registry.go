package plugin

import (
	"fmt"
	"regexp"
	"strings"
)

// Trigger is a registered Spec compiled for matching.
type Trigger struct {
	Spec

	re     *regexp.Regexp  // command expression or Pattern
	events map[string]bool // uppercased event tokens
}

// Match pairs a matched trigger with the capture groups it produced.
type Match struct {
	Trigger *Trigger
	Groups  []string
}

// Registry holds every registered trigger. It is populated at startup,
// bound to the session's prefix and nick, and read-only during dispatch:
// Register and Bind must not race Match, which the bot guarantees by
// calling all three from its setup and ingest path.
type Registry struct {
	triggers []*Trigger
	bound    bool
	prefix   string
	nick     string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a trigger. Registration order is preserved within each
// priority group.
func (r *Registry) Register(s Spec) error {
	if s.Handler == nil {
		return fmt.Errorf("trigger %q has no handler", s.Name)
	}
	if len(s.Commands) == 0 && s.Pattern == "" && len(s.Events) == 0 {
		return fmt.Errorf("trigger %q matches nothing", s.Name)
	}
	if len(s.Commands) > 0 && (s.Pattern != "" || len(s.Events) > 0) {
		return fmt.Errorf("trigger %q mixes commands with other matchers", s.Name)
	}
	switch s.Priority {
	case "":
		s.Priority = Medium
	case High, Medium, Low:
	default:
		return fmt.Errorf("trigger %q has unknown priority %q", s.Name, s.Priority)
	}
	if s.Name == "" {
		switch {
		case len(s.Commands) > 0:
			s.Name = s.Commands[0]
		case len(s.Events) > 0:
			s.Name = s.Events[0]
		default:
			s.Name = s.Pattern
		}
	}

	t := &Trigger{Spec: s}
	if r.bound {
		if err := r.compile(t); err != nil {
			return err
		}
	}
	r.triggers = append(r.triggers, t)
	return nil
}

// Bind compiles every trigger against the session's command prefix and
// current nick. The bot calls it at startup and again on registration, so
// $nickname patterns follow the nick the session actually obtained.
func (r *Registry) Bind(prefix, nick string) error {
	r.prefix = prefix
	r.nick = nick
	r.bound = true
	for _, t := range r.triggers {
		if err := r.compile(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) compile(t *Trigger) error {
	t.events = nil
	if len(t.Events) > 0 {
		t.events = make(map[string]bool, len(t.Events))
		for _, ev := range t.Events {
			t.events[strings.ToUpper(ev)] = true
		}
	}

	switch {
	case len(t.Commands) > 0:
		words := make([]string, len(t.Commands))
		for i, w := range t.Commands {
			words[i] = regexp.QuoteMeta(w)
		}
		expr := fmt.Sprintf(`(?i)^%s(%s)(?:\s+(.*))?$`,
			regexp.QuoteMeta(r.prefix), strings.Join(words, "|"))
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("failed to compile trigger %q: %w", t.Name, err)
		}
		t.re = re
	case t.Pattern != "":
		re, err := regexp.Compile(expandPlaceholders(t.Pattern, r.nick))
		if err != nil {
			return fmt.Errorf("failed to compile trigger %q: %w", t.Name, err)
		}
		t.re = re
	default:
		t.re = nil
	}
	return nil
}

// expandPlaceholders substitutes the bot's nick into a stored pattern.
// $nickname becomes the escaped nick; $nick also swallows the address
// separator ("kestrel: " or "kestrel, "). $nickname goes first since
// $nick is its prefix.
func expandPlaceholders(pattern, nick string) string {
	esc := regexp.QuoteMeta(nick)
	pattern = strings.ReplaceAll(pattern, "$nickname", esc)
	pattern = strings.ReplaceAll(pattern, "$nick", esc+`[:,]\s+`)
	return pattern
}

// Match returns the triggers matching ev with their capture groups,
// grouped by priority and in registration order within each group.
func (r *Registry) Match(ev *Event) []Match {
	var out []Match
	for rank := 0; rank < 3; rank++ {
		for _, t := range r.triggers {
			if t.Priority.rank() != rank {
				continue
			}
			if groups, ok := t.match(ev); ok {
				out = append(out, Match{Trigger: t, Groups: groups})
			}
		}
	}
	return out
}

func (t *Trigger) match(ev *Event) ([]string, bool) {
	command := strings.ToUpper(ev.Command())

	switch {
	case len(t.Commands) > 0:
		if command != "PRIVMSG" {
			return nil, false
		}
		groups := t.re.FindStringSubmatch(ev.Text)
		return groups, groups != nil

	case t.events != nil && t.re != nil:
		if !t.events[command] {
			return nil, false
		}
		groups := t.re.FindStringSubmatch(ev.Raw)
		return groups, groups != nil

	case t.re != nil:
		if command != "PRIVMSG" {
			return nil, false
		}
		groups := t.re.FindStringSubmatch(ev.Text)
		return groups, groups != nil

	default:
		return nil, t.events[command]
	}
}

// Triggers returns the registered triggers in registration order, for
// help surfaces.
func (r *Registry) Triggers() []*Trigger {
	out := make([]*Trigger, len(r.triggers))
	copy(out, r.triggers)
	return out
}
