package bot

import (
	"errors"
	"log"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/kestrel-irc/kestrel/internal/plugin"
)

// ingest runs on the connection's read goroutine, once per inbound line.
func (b *Bot) ingest(msg ircmsg.Message, raw string) {
	b.tracker.Handle(msg)

	switch msg.Command {
	case "001":
		if len(msg.Params) > 0 {
			b.tracker.SetSelf(msg.Params[0])
		}
		b.rebind()
	case "NICK":
		// The connection has already adopted the new nick when it is
		// ours; patterns mentioning the bot must follow it.
		if len(msg.Params) > 0 && strings.EqualFold(msg.Params[0], b.conn.CurrentNick()) {
			b.rebind()
		}
	}

	b.dispatch(plugin.NewEvent(msg, raw))
}

func (b *Bot) rebind() {
	if err := b.registry.Bind(b.cfg.Prefix, b.conn.CurrentNick()); err != nil {
		log.Printf("Warning: could not rebind triggers: %v", err)
	}
}

// dispatch runs every matching trigger for one event: high before medium
// before low, registration order within each group. Inline triggers run
// on the read loop, the rest on their own goroutines.
func (b *Bot) dispatch(ev *plugin.Event) {
	matches := b.registry.Match(ev)
	if len(matches) == 0 {
		return
	}

	admin := b.cfg.IsAdmin(ev.Nick)
	if !admin && (b.blocks.BlockedNick(ev.Nick) || b.blocks.BlockedHost(ev.Host)) {
		return
	}

	for _, m := range matches {
		if !admin && !b.rateOK(m.Trigger, ev) {
			continue
		}
		handlerEv := ev.WithGroups(m.Groups)
		if m.Trigger.Inline {
			b.invoke(m.Trigger, handlerEv)
		} else {
			go b.invoke(m.Trigger, handlerEv)
		}
	}
}

func (b *Bot) invoke(t *plugin.Trigger, ev *plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Handler %q panicked on %s from %s: %v",
				t.Name, ev.Command(), ev.Nick, r)
		}
	}()

	if err := t.Handler(b, ev); err != nil {
		if errors.Is(err, plugin.NoLimit) {
			b.forgetRate(t, ev)
			return
		}
		log.Printf("Handler %q failed: %v", t.Name, err)
	}
}

func nickRateKey(name, nick string) string {
	return "n/" + strings.ToLower(nick) + "/" + name
}

func chanRateKey(name, channel string) string {
	return "c/" + strings.ToLower(channel) + "/" + name
}

// rateOK reports whether the trigger may fire for this event, and if so
// stamps the firing. A later NoLimit return lifts the stamp again.
func (b *Bot) rateOK(t *plugin.Trigger, ev *plugin.Event) bool {
	if t.Rate <= 0 && t.ChannelRate <= 0 {
		return true
	}

	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.Rate > 0 {
		if last, ok := b.rates[nickRateKey(t.Name, ev.Nick)]; ok && now.Sub(last) < t.Rate {
			return false
		}
	}
	if t.ChannelRate > 0 && ev.IsChannel() {
		if last, ok := b.rates[chanRateKey(t.Name, ev.Target)]; ok && now.Sub(last) < t.ChannelRate {
			return false
		}
	}

	if t.Rate > 0 {
		b.rates[nickRateKey(t.Name, ev.Nick)] = now
	}
	if t.ChannelRate > 0 && ev.IsChannel() {
		b.rates[chanRateKey(t.Name, ev.Target)] = now
	}
	return true
}

func (b *Bot) forgetRate(t *plugin.Trigger, ev *plugin.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rates, nickRateKey(t.Name, ev.Nick))
	if ev.IsChannel() {
		delete(b.rates, chanRateKey(t.Name, ev.Target))
	}
}
