package bot

import (
	"os"
	"testing"
	"time"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/kestrel-irc/kestrel/internal/config"
	"github.com/kestrel-irc/kestrel/internal/plugin"
)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "kestrel-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	cfg := &config.Config{
		Server:  "irc.test",
		Nick:    "kestrel",
		Prefix:  ".",
		Owner:   "boss",
		Admins:  []string{"patch"},
		DataDir: tmpDir,
	}
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { b.store.Close() })

	if err := b.registry.Bind(cfg.Prefix, cfg.Nick); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	return b
}

func feed(t *testing.T, b *Bot, line string) {
	t.Helper()
	msg, err := ircmsg.ParseLine(line)
	if err != nil {
		t.Fatalf("Failed to parse %q: %v", line, err)
	}
	b.ingest(msg, line)
}

func mustRegister(t *testing.T, b *Bot, spec plugin.Spec) {
	t.Helper()
	if err := b.Register(spec); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func TestDispatchCommand(t *testing.T) {
	b := newTestBot(t)
	var got []string
	mustRegister(t, b, plugin.Spec{
		Commands: []string{"ping"},
		Inline:   true,
		Handler: func(bot plugin.Bot, ev *plugin.Event) error {
			got = append(got, ev.Args())
			return nil
		},
	})

	feed(t, b, ":alice!a@h PRIVMSG #lab :.ping all systems")
	if len(got) != 1 || got[0] != "all systems" {
		t.Fatalf("Expected one call with args, got %v", got)
	}

	feed(t, b, ":alice!a@h PRIVMSG #lab :nothing to see")
	if len(got) != 1 {
		t.Errorf("Expected no further calls, got %v", got)
	}
}

func TestDispatchPriorityOrder(t *testing.T) {
	b := newTestBot(t)
	var order []string
	record := func(name string) plugin.Handler {
		return func(bot plugin.Bot, ev *plugin.Event) error {
			order = append(order, name)
			return nil
		}
	}
	mustRegister(t, b, plugin.Spec{Name: "low", Pattern: "seq", Priority: plugin.Low, Inline: true, Handler: record("low")})
	mustRegister(t, b, plugin.Spec{Name: "high", Pattern: "seq", Priority: plugin.High, Inline: true, Handler: record("high")})
	mustRegister(t, b, plugin.Spec{Name: "med", Pattern: "seq", Inline: true, Handler: record("med")})

	feed(t, b, ":alice!a@h PRIVMSG #lab :seq")

	want := []string{"high", "med", "low"}
	if len(order) != len(want) {
		t.Fatalf("Expected %d calls, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("Call %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestDispatchRateLimit(t *testing.T) {
	b := newTestBot(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	b.now = func() time.Time { return current }

	count := 0
	mustRegister(t, b, plugin.Spec{
		Commands: []string{"slow"},
		Rate:     30 * time.Second,
		Inline:   true,
		Handler: func(bot plugin.Bot, ev *plugin.Event) error {
			count++
			return nil
		},
	})

	feed(t, b, ":bob!b@h PRIVMSG #lab :.slow")
	if count != 1 {
		t.Fatalf("Expected first call to run, got %d", count)
	}

	current = base.Add(10 * time.Second)
	feed(t, b, ":bob!b@h PRIVMSG #lab :.slow")
	if count != 1 {
		t.Errorf("Expected call inside the window to be dropped, got %d", count)
	}

	current = base.Add(31 * time.Second)
	feed(t, b, ":bob!b@h PRIVMSG #lab :.slow")
	if count != 2 {
		t.Errorf("Expected call after the window to run, got %d", count)
	}

	// The limit is per nick.
	current = base.Add(32 * time.Second)
	feed(t, b, ":carol!c@h PRIVMSG #lab :.slow")
	if count != 3 {
		t.Errorf("Expected another nick to run, got %d", count)
	}

	// Admins are exempt.
	current = base.Add(33 * time.Second)
	feed(t, b, ":patch!p@h PRIVMSG #lab :.slow")
	current = base.Add(34 * time.Second)
	feed(t, b, ":patch!p@h PRIVMSG #lab :.slow")
	if count != 5 {
		t.Errorf("Expected admin calls to run every time, got %d", count)
	}
}

func TestDispatchNoLimit(t *testing.T) {
	b := newTestBot(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	b.now = func() time.Time { return current }

	count := 0
	mustRegister(t, b, plugin.Spec{
		Commands: []string{"refuse"},
		Rate:     30 * time.Second,
		Inline:   true,
		Handler: func(bot plugin.Bot, ev *plugin.Event) error {
			count++
			return plugin.NoLimit
		},
	})

	feed(t, b, ":bob!b@h PRIVMSG #lab :.refuse")
	current = base.Add(time.Second)
	feed(t, b, ":bob!b@h PRIVMSG #lab :.refuse")
	if count != 2 {
		t.Errorf("Expected NoLimit to lift the stamp, got %d calls", count)
	}
}

func TestDispatchChannelRate(t *testing.T) {
	b := newTestBot(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	b.now = func() time.Time { return current }

	count := 0
	mustRegister(t, b, plugin.Spec{
		Commands:    []string{"announce"},
		ChannelRate: 30 * time.Second,
		Inline:      true,
		Handler: func(bot plugin.Bot, ev *plugin.Event) error {
			count++
			return nil
		},
	})

	feed(t, b, ":bob!b@h PRIVMSG #lab :.announce")
	if count != 1 {
		t.Fatalf("Expected first call to run, got %d", count)
	}

	// The limit binds the channel, not the nick.
	current = base.Add(5 * time.Second)
	feed(t, b, ":carol!c@h PRIVMSG #lab :.announce")
	if count != 1 {
		t.Errorf("Expected same-channel call to be dropped, got %d", count)
	}

	current = base.Add(6 * time.Second)
	feed(t, b, ":dave!d@h PRIVMSG #other :.announce")
	if count != 2 {
		t.Errorf("Expected other channel to run, got %d", count)
	}

	// Private messages carry no channel limit.
	current = base.Add(7 * time.Second)
	feed(t, b, ":erin!e@h PRIVMSG kestrel :.announce")
	current = base.Add(8 * time.Second)
	feed(t, b, ":erin!e@h PRIVMSG kestrel :.announce")
	if count != 4 {
		t.Errorf("Expected private calls unlimited, got %d", count)
	}
}

func TestDispatchBlocklist(t *testing.T) {
	b := newTestBot(t)
	if err := b.blocks.AddNick("spam.*"); err != nil {
		t.Fatal(err)
	}
	if err := b.blocks.AddHost(`.*\.bad\.net`); err != nil {
		t.Fatal(err)
	}

	count := 0
	mustRegister(t, b, plugin.Spec{
		Commands: []string{"hi"},
		Inline:   true,
		Handler: func(bot plugin.Bot, ev *plugin.Event) error {
			count++
			return nil
		},
	})

	feed(t, b, ":spammer!s@h PRIVMSG #lab :.hi")
	if count != 0 {
		t.Errorf("Expected blocked nick to be ignored, got %d", count)
	}

	feed(t, b, ":joe!j@relay.bad.net PRIVMSG #lab :.hi")
	if count != 0 {
		t.Errorf("Expected blocked host to be ignored, got %d", count)
	}

	feed(t, b, ":alice!a@h PRIVMSG #lab :.hi")
	if count != 1 {
		t.Errorf("Expected unblocked nick to run, got %d", count)
	}

	// Admins cannot block themselves out.
	if err := b.blocks.AddNick("patch"); err != nil {
		t.Fatal(err)
	}
	feed(t, b, ":patch!p@h PRIVMSG #lab :.hi")
	if count != 2 {
		t.Errorf("Expected admin to bypass the blocklist, got %d", count)
	}
}

func TestDispatchPanicIsolation(t *testing.T) {
	b := newTestBot(t)
	count := 0
	mustRegister(t, b, plugin.Spec{
		Commands: []string{"boom"},
		Inline:   true,
		Handler: func(bot plugin.Bot, ev *plugin.Event) error {
			panic("kaput")
		},
	})
	mustRegister(t, b, plugin.Spec{
		Commands: []string{"after"},
		Inline:   true,
		Handler: func(bot plugin.Bot, ev *plugin.Event) error {
			count++
			return nil
		},
	})

	feed(t, b, ":alice!a@h PRIVMSG #lab :.boom")
	feed(t, b, ":alice!a@h PRIVMSG #lab :.after")
	if count != 1 {
		t.Errorf("Expected dispatch to survive the panic, got %d", count)
	}
}

func TestDispatchThreaded(t *testing.T) {
	b := newTestBot(t)
	done := make(chan string, 1)
	mustRegister(t, b, plugin.Spec{
		Commands: []string{"bg"},
		Handler: func(bot plugin.Bot, ev *plugin.Event) error {
			done <- ev.Args()
			return nil
		},
	})

	feed(t, b, ":alice!a@h PRIVMSG #lab :.bg payload")
	select {
	case args := <-done:
		if args != "payload" {
			t.Errorf("Expected payload, got %q", args)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Threaded handler never ran")
	}
}

func TestCollapseRepeats(t *testing.T) {
	b := newTestBot(t)
	want := []string{"hi", "hi", "hi", "hi", "hi", "...", "...", "...", "", ""}
	for i, w := range want {
		if got := b.collapse("hi"); got != w {
			t.Errorf("Send %d: expected %q, got %q", i, w, got)
		}
	}

	// Other bodies still flow.
	if got := b.collapse("fresh"); got != "fresh" {
		t.Errorf("Expected fresh to pass, got %q", got)
	}
}

func TestCollapseWindowSlides(t *testing.T) {
	b := newTestBot(t)
	for i := 0; i < 5; i++ {
		b.collapse("hi")
	}
	for _, text := range []string{"a", "b", "c", "d"} {
		b.collapse(text)
	}

	// Only four of the five early repeats are still in the window.
	if got := b.collapse("hi"); got != "hi" {
		t.Errorf("Expected hi to pass once the window slid, got %q", got)
	}
}
