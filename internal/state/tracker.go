// Package state maintains the live channel membership and privilege model
// derived from server events: who is in which channel, at what standing,
// and what the bot itself is joined to.
package state

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
)

// Privilege is a member's standing in a channel. Values are ordered, so
// comparisons like p >= HalfOp work.
type Privilege int

const (
	None Privilege = iota
	Voice
	HalfOp
	Op
)

func (p Privilege) String() string {
	switch p {
	case Voice:
		return "voice"
	case HalfOp:
		return "half-op"
	case Op:
		return "op"
	}
	return "none"
}

// ErrWhoisTimeout is returned when a WHOIS exchange never receives its end
// marker within the allowed wait.
var ErrWhoisTimeout = errors.New("whois: no response from server")

// fold normalizes nicks and channel names for use as map keys. ASCII
// case-insensitivity is the minimum every network guarantees.
func fold(s string) string { return strings.ToLower(s) }

func isChannel(name string) bool {
	return len(name) > 0 && (name[0] == '#' || name[0] == '&')
}

// channel is the tracked membership of one channel.
type channel struct {
	name    string
	synced  bool // full NAMES reply has arrived
	members map[string]Privilege
}

// WhoisInfo is the buffered result of a WHOIS exchange.
type WhoisInfo struct {
	Nick     string
	User     string
	Host     string
	Realname string
	Channels []string
}

type whoisPending struct {
	info WhoisInfo
	done chan struct{}
}

// Tracker folds server events into membership state. Handle must be called
// from a single goroutine (the connection's read loop) so mutations apply
// in wire order; accessors take consistent snapshots and are safe from any
// goroutine.
type Tracker struct {
	mu       sync.RWMutex
	self     string
	channels map[string]*channel
	pending  map[string]map[string]Privilege // NAMES accumulation

	whoisMu sync.Mutex
	whois   map[string]*whoisPending
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		channels: make(map[string]*channel),
		pending:  make(map[string]map[string]Privilege),
		whois:    make(map[string]*whoisPending),
	}
}

// SetSelf records the bot's own nick so the tracker can recognize its own
// joins and parts.
func (t *Tracker) SetSelf(nick string) {
	t.mu.Lock()
	t.self = nick
	t.mu.Unlock()
}

// Self returns the nick the tracker considers its own.
func (t *Tracker) Self() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.self
}

// Handle folds one server message into the tracked state.
func (t *Tracker) Handle(msg ircmsg.Message) {
	switch msg.Command {
	case "JOIN":
		t.onJoin(msg)
	case "PART":
		t.onPart(msg)
	case "KICK":
		t.onKick(msg)
	case "QUIT":
		t.onQuit(msg)
	case "NICK":
		t.onNick(msg)
	case "MODE":
		t.onMode(msg)
	case "353":
		t.onNames(msg)
	case "366":
		t.onNamesEnd(msg)
	case "311", "319", "318":
		t.onWhois(msg)
	}
}

// getChannel returns the tracked channel, creating it when an event
// references one we have not seen yet.
func (t *Tracker) getChannel(name string) *channel {
	key := fold(name)
	ch, ok := t.channels[key]
	if !ok {
		ch = &channel{name: name, members: make(map[string]Privilege)}
		t.channels[key] = ch
	}
	return ch
}

func (t *Tracker) onJoin(msg ircmsg.Message) {
	if len(msg.Params) < 1 {
		return
	}
	nick := msg.Nick()
	name := msg.Params[0]

	t.mu.Lock()
	defer t.mu.Unlock()
	if strings.EqualFold(nick, t.self) {
		// Fresh membership; the NAMES reply that follows fills it in.
		t.channels[fold(name)] = &channel{name: name, members: make(map[string]Privilege)}
		return
	}
	ch := t.getChannel(name)
	if _, ok := ch.members[fold(nick)]; !ok {
		ch.members[fold(nick)] = None
	}
}

func (t *Tracker) onPart(msg ircmsg.Message) {
	if len(msg.Params) < 1 {
		return
	}
	nick := msg.Nick()
	name := msg.Params[0]

	t.mu.Lock()
	defer t.mu.Unlock()
	if strings.EqualFold(nick, t.self) {
		delete(t.channels, fold(name))
		return
	}
	if ch, ok := t.channels[fold(name)]; ok {
		delete(ch.members, fold(nick))
	}
}

func (t *Tracker) onKick(msg ircmsg.Message) {
	if len(msg.Params) < 2 {
		return
	}
	name := msg.Params[0]
	victim := msg.Params[1]

	t.mu.Lock()
	defer t.mu.Unlock()
	if strings.EqualFold(victim, t.self) {
		delete(t.channels, fold(name))
		return
	}
	if ch, ok := t.channels[fold(name)]; ok {
		delete(ch.members, fold(victim))
	}
}

func (t *Tracker) onQuit(msg ircmsg.Message) {
	nick := fold(msg.Nick())
	if nick == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.channels {
		delete(ch.members, nick)
	}
}

// onNick relabels a nick everywhere, carrying privileges over.
func (t *Tracker) onNick(msg ircmsg.Message) {
	if len(msg.Params) < 1 {
		return
	}
	oldNick := fold(msg.Nick())
	newNick := msg.Params[0]

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.channels {
		if p, ok := ch.members[oldNick]; ok {
			delete(ch.members, oldNick)
			ch.members[fold(newNick)] = p
		}
	}
	if strings.EqualFold(msg.Nick(), t.self) {
		t.self = newNick
	}
}

// privModes maps privilege-granting mode letters to their level. Owner and
// admin modes count as op, the highest level we model.
var privModes = map[byte]Privilege{
	'v': Voice,
	'h': HalfOp,
	'o': Op,
	'q': Op,
	'a': Op,
}

// onMode applies privilege deltas: each privilege letter pairs with the
// next positional nick argument, in order; other letters are ignored.
func (t *Tracker) onMode(msg ircmsg.Message) {
	if len(msg.Params) < 2 || !isChannel(msg.Params[0]) {
		return
	}
	name := msg.Params[0]
	modes := msg.Params[1]
	args := msg.Params[2:]

	t.mu.Lock()
	defer t.mu.Unlock()
	ch := t.getChannel(name)

	adding := true
	next := 0
	for i := 0; i < len(modes); i++ {
		switch modes[i] {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			level, ok := privModes[modes[i]]
			if !ok {
				continue
			}
			if next >= len(args) {
				return
			}
			nick := fold(args[next])
			next++
			if adding {
				ch.members[nick] = level
			} else if ch.members[nick] == level {
				ch.members[nick] = None
			}
		}
	}
}

// namesPrefix translates one NAMES symbol to a privilege level.
func namesPrefix(c byte) (Privilege, bool) {
	switch c {
	case '@', '~', '&':
		return Op, true
	case '%':
		return HalfOp, true
	case '+':
		return Voice, true
	}
	return None, false
}

// onNames accumulates one RPL_NAMREPLY (353) batch for its channel.
func (t *Tracker) onNames(msg ircmsg.Message) {
	// <me> <symbol> <channel> :nick nick ...  (the symbol is optional on
	// old servers, so take the last two parameters)
	if len(msg.Params) < 2 {
		return
	}
	name := msg.Params[len(msg.Params)-2]
	list := msg.Params[len(msg.Params)-1]
	if !isChannel(name) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	acc := t.pending[fold(name)]
	if acc == nil {
		acc = make(map[string]Privilege)
		t.pending[fold(name)] = acc
	}
	for _, entry := range strings.Fields(list) {
		priv := None
		for len(entry) > 0 {
			p, ok := namesPrefix(entry[0])
			if !ok {
				break
			}
			if p > priv {
				priv = p
			}
			entry = entry[1:]
		}
		if entry != "" {
			acc[fold(entry)] = priv
		}
	}
}

// onNamesEnd commits the accumulated NAMES batch on RPL_ENDOFNAMES (366).
func (t *Tracker) onNamesEnd(msg ircmsg.Message) {
	if len(msg.Params) < 2 {
		return
	}
	name := msg.Params[1]

	t.mu.Lock()
	defer t.mu.Unlock()
	acc := t.pending[fold(name)]
	delete(t.pending, fold(name))
	if acc == nil {
		acc = make(map[string]Privilege)
	}
	ch := t.getChannel(name)
	ch.members = acc
	ch.synced = true
}

// Channels returns the names of every tracked channel.
func (t *Tracker) Channels() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.channels))
	for _, ch := range t.channels {
		out = append(out, ch.name)
	}
	return out
}

// Members returns a copy of a channel's membership, keyed by folded nick.
func (t *Tracker) Members(name string) map[string]Privilege {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.channels[fold(name)]
	if !ok {
		return nil
	}
	out := make(map[string]Privilege, len(ch.members))
	for n, p := range ch.members {
		out[n] = p
	}
	return out
}

// Privilege returns nick's standing in a channel. Absent members are None.
func (t *Tracker) Privilege(name, nick string) Privilege {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.channels[fold(name)]
	if !ok {
		return None
	}
	return ch.members[fold(nick)]
}

// Synced reports whether the channel has received its full NAMES reply.
func (t *Tracker) Synced(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.channels[fold(name)]
	return ok && ch.synced
}

// ExpectWhois registers interest in WHOIS replies for nick. Call it before
// sending the WHOIS command so an early reply cannot slip past.
func (t *Tracker) ExpectWhois(nick string) {
	key := fold(nick)
	t.whoisMu.Lock()
	defer t.whoisMu.Unlock()
	if _, ok := t.whois[key]; ok {
		return
	}
	p := &whoisPending{done: make(chan struct{})}
	p.info.Nick = nick
	t.whois[key] = p
}

// AwaitWhois blocks until the WHOIS exchange for nick completes or the
// timeout passes, whichever comes first. On timeout the pending request is
// dropped and ErrWhoisTimeout returned; late replies are then discarded.
func (t *Tracker) AwaitWhois(nick string, timeout time.Duration) (*WhoisInfo, error) {
	key := fold(nick)
	t.whoisMu.Lock()
	p, ok := t.whois[key]
	if !ok {
		p = &whoisPending{done: make(chan struct{})}
		p.info.Nick = nick
		t.whois[key] = p
	}
	t.whoisMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		t.whoisMu.Lock()
		info := p.info
		t.whoisMu.Unlock()
		return &info, nil
	case <-timer.C:
		t.whoisMu.Lock()
		delete(t.whois, key)
		t.whoisMu.Unlock()
		return nil, ErrWhoisTimeout
	}
}

// onWhois buffers 311/319 into the matching pending request and releases
// it on 318. Replies nobody asked for are discarded.
func (t *Tracker) onWhois(msg ircmsg.Message) {
	if len(msg.Params) < 2 {
		return
	}
	key := fold(msg.Params[1])

	t.whoisMu.Lock()
	defer t.whoisMu.Unlock()
	p, ok := t.whois[key]
	if !ok {
		return
	}

	switch msg.Command {
	case "311":
		// <me> <nick> <user> <host> * :<realname>
		if len(msg.Params) >= 4 {
			p.info.Nick = msg.Params[1]
			p.info.User = msg.Params[2]
			p.info.Host = msg.Params[3]
		}
		if len(msg.Params) >= 6 {
			p.info.Realname = msg.Params[5]
		}
	case "319":
		// <me> <nick> :<channels>
		if len(msg.Params) >= 3 {
			p.info.Channels = append(p.info.Channels, strings.Fields(msg.Params[2])...)
		}
	case "318":
		delete(t.whois, key)
		close(p.done)
	}
}
