// Package irc maintains the server connection: dialing, registration,
// nick negotiation, ping supervision, paced writes and reconnection.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/kestrel-irc/kestrel/internal/wire"
)

// ConnState is the lifecycle phase of the connection.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Registering
	Ready
)

// maxUnderscores bounds the fallback nicks tried after the alternates run
// out: base nick plus one to three trailing underscores.
const maxUnderscores = 3

// Options configures a Conn.
type Options struct {
	// Server is the host:port to connect to.
	Server     string
	TLS        bool
	ServerPass string

	Nick     string
	AltNicks []string
	Username string
	Realname string

	// MessageEvery and MessageBurst shape outbound pacing; see Writer.
	MessageEvery time.Duration
	MessageBurst int

	// ReconnectAttempts caps consecutive failed connection attempts
	// before Run gives up; <= 0 keeps trying. The counter resets every
	// time a connection reaches Ready.
	ReconnectAttempts int
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration

	// PingInterval is how often to ping the server; PingTimeout is the
	// longest silence tolerated before the connection is declared dead.
	// Zero disables the respective side.
	PingInterval time.Duration
	PingTimeout  time.Duration

	// Dial overrides how the socket is established. Tests use it to hand
	// the Conn an in-memory pipe.
	Dial func(ctx context.Context) (net.Conn, error)
}

// Conn is one logical IRC session across reconnects. Run drives it; the
// other methods may be called from any goroutine.
type Conn struct {
	opts Options

	mu          sync.Mutex
	sock        net.Conn
	writer      *Writer
	currentNick string
	nickAttempt int

	state    atomic.Int32
	quitting atomic.Bool
	quit     chan struct{}
}

// NewConn returns an unconnected Conn with the given options.
func NewConn(opts Options) *Conn {
	return &Conn{opts: opts, quit: make(chan struct{})}
}

// State returns the current lifecycle phase.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Conn) setState(s ConnState) {
	c.state.Store(int32(s))
}

// CurrentNick returns the nick the session holds right now.
func (c *Conn) CurrentNick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentNick
}

func (c *Conn) setNick(nick string) {
	c.mu.Lock()
	c.currentNick = nick
	c.mu.Unlock()
}

// Write encodes and queues one outbound command. The line goes out in
// order, paced by the writer.
func (c *Conn) Write(command string, params ...string) error {
	line, err := wire.Encode(command, params...)
	if err != nil {
		return err
	}
	c.mu.Lock()
	writer := c.writer
	c.mu.Unlock()
	if writer == nil {
		return ErrNotConnected
	}
	return writer.Enqueue(line)
}

// Quit sends QUIT and marks the shutdown intentional, so Run returns
// instead of reconnecting; a pending reconnect wait is abandoned. The
// socket is forced closed shortly after in case the server never hangs
// up.
func (c *Conn) Quit(message string) {
	if !c.quitting.CompareAndSwap(false, true) {
		return
	}
	close(c.quit)
	if message == "" {
		message = "Shutting down"
	}
	if err := c.Write("QUIT", message); err != nil {
		c.closeSocket()
		return
	}
	time.AfterFunc(2*time.Second, c.closeSocket)
}

func (c *Conn) closeSocket() {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
}

// Run connects and keeps the session alive until Quit is called, the
// context ends, or the reconnect budget is spent. Every inbound line is
// handed to sink on the read goroutine, protocol duties (PONG, nick
// negotiation) already done. Run must be called at most once per Conn.
func (c *Conn) Run(ctx context.Context, sink func(msg ircmsg.Message, raw string)) error {
	base := c.opts.ReconnectBase
	if base <= 0 {
		base = 2 * time.Second
	}
	delay := base
	failures := 0

	for {
		if c.quitting.Load() {
			return nil
		}
		ready, err := c.runOnce(ctx, sink)
		c.setState(Disconnected)

		if c.quitting.Load() {
			log.Println("Disconnected after quit")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if ready {
			failures = 0
			delay = base
		}
		failures++
		if c.opts.ReconnectAttempts > 0 && failures >= c.opts.ReconnectAttempts {
			return fmt.Errorf("giving up after %d failed connection attempts: %w",
				failures, err)
		}

		log.Printf("Disconnected: %v; reconnecting in %s", err, delay)
		select {
		case <-time.After(delay):
		case <-c.quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if c.opts.ReconnectMax > 0 && delay > c.opts.ReconnectMax {
			delay = c.opts.ReconnectMax
		}
	}
}

// runOnce performs a single connection attempt. It reports whether the
// session reached Ready before ending, and why it ended.
func (c *Conn) runOnce(ctx context.Context, sink func(msg ircmsg.Message, raw string)) (bool, error) {
	c.setState(Connecting)
	sock, err := c.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to connect to %s: %w", c.opts.Server, err)
	}
	log.Printf("Connected to %s", c.opts.Server)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock the read loop when the attempt is torn down.
	go func() {
		<-connCtx.Done()
		sock.Close()
	}()

	writer := NewWriter(connCtx, sock, c.opts.MessageEvery, c.opts.MessageBurst)
	defer writer.Close()

	c.mu.Lock()
	c.sock = sock
	c.writer = writer
	c.currentNick = c.opts.Nick
	c.nickAttempt = 0
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sock = nil
		c.writer = nil
		c.mu.Unlock()
	}()

	c.setState(Registering)
	if c.opts.ServerPass != "" {
		c.Write("PASS", c.opts.ServerPass)
	}
	c.Write("NICK", c.opts.Nick)
	c.Write("USER", c.opts.Username, "0", "*", c.opts.Realname)

	if c.opts.PingInterval > 0 {
		go c.pingLoop(connCtx)
	}

	reader := wire.NewDecoder(sock)
	ready := false
	for {
		if c.opts.PingTimeout > 0 {
			sock.SetReadDeadline(time.Now().Add(c.opts.PingTimeout))
		}
		line, err := reader.ReadLine()
		if err != nil {
			return ready, fmt.Errorf("failed to read from server: %w", err)
		}
		msg, err := wire.Parse(line)
		if err != nil {
			log.Printf("Warning: dropping line: %v", err)
			continue
		}

		switch msg.Command {
		case "PING":
			c.Write("PONG", msg.Params...)
		case "001":
			ready = true
			if len(msg.Params) > 0 {
				c.setNick(msg.Params[0])
			}
			c.setState(Ready)
			log.Printf("Registered as %s", c.CurrentNick())
		case "004", "005":
			// Registration numerics past the welcome; a server that
			// skipped 001 still counts as registered here.
			if !ready {
				ready = true
				c.setState(Ready)
				log.Printf("Registered as %s", c.CurrentNick())
			}
		case "432", "433":
			if !ready {
				next, err := c.nextNick()
				if err != nil {
					return false, err
				}
				log.Printf("Nick %s unavailable, trying %s", c.CurrentNick(), next)
				c.setNick(next)
				c.Write("NICK", next)
			}
		case "NICK":
			if strings.EqualFold(msg.Nick(), c.CurrentNick()) && len(msg.Params) > 0 {
				c.setNick(msg.Params[0])
			}
		}

		if sink != nil {
			sink(msg, line)
		}
	}
}

// nextNick walks the alternate list, then the base nick with trailing
// underscores, giving up when both are exhausted.
func (c *Conn) nextNick() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nickAttempt++
	if c.nickAttempt <= len(c.opts.AltNicks) {
		return c.opts.AltNicks[c.nickAttempt-1], nil
	}
	n := c.nickAttempt - len(c.opts.AltNicks)
	if n > maxUnderscores {
		return "", errors.New("no usable nick: all alternates taken")
	}
	return c.opts.Nick + strings.Repeat("_", n), nil
}

func (c *Conn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Write("PING", strconv.FormatInt(time.Now().Unix(), 10))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) dial(ctx context.Context) (net.Conn, error) {
	if c.opts.Dial != nil {
		return c.opts.Dial(ctx)
	}
	dialer := net.Dialer{Timeout: 30 * time.Second}
	if c.opts.TLS {
		tlsDialer := tls.Dialer{NetDialer: &dialer}
		return tlsDialer.DialContext(ctx, "tcp", c.opts.Server)
	}
	return dialer.DialContext(ctx, "tcp", c.opts.Server)
}
