// Package bot assembles the pieces: it owns the connection, channel
// tracker, trigger registry, scheduler and storage, runs the dispatch
// loop, and implements the facade handlers act through.
package bot

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/kestrel-irc/kestrel/internal/config"
	"github.com/kestrel-irc/kestrel/internal/irc"
	"github.com/kestrel-irc/kestrel/internal/plugin"
	"github.com/kestrel-irc/kestrel/internal/sched"
	"github.com/kestrel-irc/kestrel/internal/state"
	"github.com/kestrel-irc/kestrel/internal/storage"
)

// Version information (set at build time or here)
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Bot is the running instance. It satisfies plugin.Bot for handlers.
type Bot struct {
	cfg      *config.Config
	conn     *irc.Conn
	tracker  *state.Tracker
	registry *plugin.Registry
	sched    *sched.Scheduler
	store    *storage.Store
	blocks   *storage.Blocklist

	// now is the clock rate limiting reads; tests swap it out.
	now func() time.Time

	mu    sync.Mutex
	rates map[string]time.Time
	sent  []string
}

var _ plugin.Bot = (*Bot)(nil)

// New builds a Bot from cfg, opening its data stores.
func New(cfg *config.Config) (*Bot, error) {
	store, err := storage.Open(filepath.Join(cfg.DataDir, "kestrel.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	blocks, err := storage.LoadBlocklist(cfg.DataDir)
	if err != nil {
		log.Printf("Warning: could not load blocklists: %v", err)
	}

	b := &Bot{
		cfg:      cfg,
		tracker:  state.New(),
		registry: plugin.NewRegistry(),
		sched:    sched.New(),
		store:    store,
		blocks:   blocks,
		now:      time.Now,
		rates:    make(map[string]time.Time),
	}
	b.conn = irc.NewConn(irc.Options{
		Server:            cfg.Addr(),
		TLS:               cfg.TLS,
		ServerPass:        cfg.ServerPass,
		Nick:              cfg.Nick,
		AltNicks:          cfg.AltNicks,
		Username:          cfg.Username,
		Realname:          cfg.Realname,
		MessageEvery:      cfg.MessageEvery(),
		MessageBurst:      cfg.MessageBurst,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectBase:     cfg.ReconnectBaseDelay(),
		ReconnectMax:      cfg.ReconnectMaxDelay(),
		PingInterval:      cfg.PingEvery(),
		PingTimeout:       cfg.PingDeadline(),
	})
	return b, nil
}

// Register adds a trigger. Registration happens before Run.
func (b *Bot) Register(spec plugin.Spec) error {
	return b.registry.Register(spec)
}

// Run connects and blocks until the session ends: Shutdown, context
// cancellation, or the reconnect budget running out.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.registry.Bind(b.cfg.Prefix, b.cfg.Nick); err != nil {
		return err
	}
	err := b.conn.Run(ctx, b.ingest)
	b.sched.Stop()
	if cerr := b.store.Close(); cerr != nil {
		log.Printf("Warning: could not close store: %v", cerr)
	}
	return err
}

// Say sends text to a channel or nick.
func (b *Bot) Say(target, text string) {
	text = b.collapse(text)
	if text == "" {
		return
	}
	if err := b.conn.Write("PRIVMSG", target, text); err != nil {
		log.Printf("Failed to send to %s: %v", target, err)
	}
}

// collapse flattens repeated outbound lines. A body already sent five
// times in the recent window degrades to "...", and once even the dots
// have gone out three times the line is dropped entirely.
func (b *Bot) collapse(text string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	window := b.sent
	if len(window) > 8 {
		window = window[len(window)-8:]
	}
	repeats, dots := 0, 0
	for _, prev := range window {
		if prev == text {
			repeats++
		}
		if prev == "..." {
			dots++
		}
	}
	if repeats >= 5 {
		if dots >= 3 {
			return ""
		}
		text = "..."
	}

	b.sent = append(b.sent, text)
	if len(b.sent) > 10 {
		b.sent = b.sent[len(b.sent)-10:]
	}
	return text
}

// Reply addresses text to the event's sender.
func (b *Bot) Reply(ev *plugin.Event, text string) {
	if ev.IsChannel() {
		b.Say(ev.Target, fmt.Sprintf("%s: %s", ev.Nick, text))
		return
	}
	b.Say(ev.Nick, text)
}

// Notice sends a NOTICE to target.
func (b *Bot) Notice(target, text string) {
	if err := b.conn.Write("NOTICE", target, text); err != nil {
		log.Printf("Failed to send notice to %s: %v", target, err)
	}
}

// Write sends a raw command with parameters.
func (b *Bot) Write(command string, params ...string) {
	if err := b.conn.Write(command, params...); err != nil {
		log.Printf("Failed to send %s: %v", command, err)
	}
}

// Nick returns the nick the session currently holds.
func (b *Bot) Nick() string { return b.conn.CurrentNick() }

// Channels lists the channels the bot is in.
func (b *Bot) Channels() []string { return b.tracker.Channels() }

// Members returns a channel's membership keyed by folded nick.
func (b *Bot) Members(channel string) map[string]state.Privilege {
	return b.tracker.Members(channel)
}

// Privilege returns nick's standing in channel.
func (b *Bot) Privilege(channel, nick string) state.Privilege {
	return b.tracker.Privilege(channel, nick)
}

// Whois runs a WHOIS exchange for nick and waits for the reply, bounded
// by the configured timeout. It must not be called from Inline handlers;
// they run on the read loop that would deliver the answer.
func (b *Bot) Whois(nick string) (*state.WhoisInfo, error) {
	b.tracker.ExpectWhois(nick)
	b.Write("WHOIS", nick)
	return b.tracker.AwaitWhois(nick, b.cfg.WhoisWait())
}

// Config returns the loaded configuration.
func (b *Bot) Config() *config.Config { return b.cfg }

// IsAdmin reports whether nick is the owner or an admin.
func (b *Bot) IsAdmin(nick string) bool { return b.cfg.IsAdmin(nick) }

// IsOwner reports whether nick is the owner.
func (b *Bot) IsOwner(nick string) bool { return b.cfg.IsOwner(nick) }

// Triggers lists the registered triggers.
func (b *Bot) Triggers() []*plugin.Trigger { return b.registry.Triggers() }

// Store returns the persistent settings store.
func (b *Bot) Store() *storage.Store { return b.store }

// Blocks returns the live blocklist.
func (b *Bot) Blocks() *storage.Blocklist { return b.blocks }

// Schedule runs fn once, at or after delay.
func (b *Bot) Schedule(delay time.Duration, fn func()) *sched.Task {
	return b.sched.Schedule(delay, fn)
}

// Every runs fn repeatedly at the given interval until cancelled.
func (b *Bot) Every(interval time.Duration, fn func()) *sched.Task {
	return b.sched.Every(interval, fn)
}

// Shutdown quits the connection; Run then returns.
func (b *Bot) Shutdown(message string) {
	b.conn.Quit(message)
}
