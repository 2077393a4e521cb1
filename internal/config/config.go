package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all bot configuration
type Config struct {
	Server     string `yaml:"server"`
	Port       int    `yaml:"port"`
	TLS        bool   `yaml:"tls"`
	ServerPass string `yaml:"server_pass"`

	Nick     string   `yaml:"nick"`
	AltNicks []string `yaml:"alt_nicks"`
	Username string   `yaml:"username"`
	Realname string   `yaml:"realname"`

	NickservPass string   `yaml:"nickserv_pass"`
	Channels     []string `yaml:"channels"`

	// Prefix is the command prefix, matched case-insensitively at the
	// start of a message. It is a literal string, not a pattern.
	Prefix string `yaml:"prefix"`

	Owner  string   `yaml:"owner"`
	Admins []string `yaml:"admins"`

	DataDir string `yaml:"data_dir"`

	// MessageRate is the minimum spacing between outbound messages in
	// seconds; MessageBurst is how many may go out back to back first.
	MessageRate  float64 `yaml:"message_rate"`
	MessageBurst int     `yaml:"message_burst"`

	// ReconnectAttempts bounds consecutive failed connections before the
	// process gives up. Backoff doubles from ReconnectBase up to
	// ReconnectMax, both in seconds.
	ReconnectAttempts int     `yaml:"reconnect_attempts"`
	ReconnectBase     float64 `yaml:"reconnect_base"`
	ReconnectMax      float64 `yaml:"reconnect_max"`

	WhoisTimeout float64 `yaml:"whois_timeout"`
	PingInterval float64 `yaml:"ping_interval"`
	PingTimeout  float64 `yaml:"ping_timeout"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		if c.TLS {
			c.Port = 6697
		} else {
			c.Port = 6667
		}
	}
	if c.Username == "" {
		c.Username = c.Nick
	}
	if c.Realname == "" {
		c.Realname = c.Nick
	}
	if c.Prefix == "" {
		c.Prefix = "."
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.MessageRate == 0 {
		c.MessageRate = 0.75
	}
	if c.MessageBurst == 0 {
		c.MessageBurst = 4
	}
	if c.ReconnectAttempts == 0 {
		c.ReconnectAttempts = 8
	}
	if c.ReconnectBase == 0 {
		c.ReconnectBase = 2
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = 300
	}
	if c.WhoisTimeout == 0 {
		c.WhoisTimeout = 10
	}
	if c.PingInterval == 0 {
		c.PingInterval = 120
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 300
	}
}

func (c *Config) validate() error {
	if c.Server == "" {
		return fmt.Errorf("config: server is required")
	}
	if c.Nick == "" {
		return fmt.Errorf("config: nick is required")
	}
	if c.MessageRate < 0 || c.MessageBurst < 0 {
		return fmt.Errorf("config: message_rate and message_burst must not be negative")
	}
	return nil
}

// Addr returns the server address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// IsOwner reports whether nick is the configured owner.
func (c *Config) IsOwner(nick string) bool {
	return c.Owner != "" && strings.EqualFold(nick, c.Owner)
}

// IsAdmin reports whether nick is the owner or one of the configured
// admins. Comparison is ASCII case-insensitive, like nicks on the wire.
func (c *Config) IsAdmin(nick string) bool {
	if c.IsOwner(nick) {
		return true
	}
	for _, a := range c.Admins {
		if strings.EqualFold(nick, a) {
			return true
		}
	}
	return false
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// MessageEvery returns the pacing interval for outbound messages.
func (c *Config) MessageEvery() time.Duration { return seconds(c.MessageRate) }

// ReconnectBaseDelay returns the first reconnect backoff delay.
func (c *Config) ReconnectBaseDelay() time.Duration { return seconds(c.ReconnectBase) }

// ReconnectMaxDelay returns the backoff ceiling.
func (c *Config) ReconnectMaxDelay() time.Duration { return seconds(c.ReconnectMax) }

// WhoisWait returns how long a WHOIS exchange may block.
func (c *Config) WhoisWait() time.Duration { return seconds(c.WhoisTimeout) }

// PingEvery returns the keepalive PING interval.
func (c *Config) PingEvery() time.Duration { return seconds(c.PingInterval) }

// PingDeadline returns how long the link may stay silent before it is
// considered dead.
func (c *Config) PingDeadline() time.Duration { return seconds(c.PingTimeout) }
