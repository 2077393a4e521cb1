package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

const (
	nickBlocksFile = "nick_blocks.txt"
	hostBlocksFile = "host_blocks.txt"
)

// Blocklist holds the nick and host patterns the bot refuses to serve.
// Entries are regular expressions matched case-insensitively against the
// whole nick or host. The list is safe for concurrent use.
type Blocklist struct {
	mu    sync.RWMutex
	dir   string
	nicks []string
	hosts []string

	nickRe *regexp.Regexp
	hostRe *regexp.Regexp
}

// NewBlocklist returns an empty blocklist persisted under dir.
func NewBlocklist(dir string) *Blocklist {
	return &Blocklist{dir: dir}
}

// LoadBlocklist reads the block files under dir. Missing files mean empty
// lists. The returned blocklist is usable even when err is non-nil: bad
// patterns are dropped and reported, good ones are kept.
func LoadBlocklist(dir string) (*Blocklist, error) {
	b := NewBlocklist(dir)
	var errs []error

	nicks, err := readPatterns(filepath.Join(dir, nickBlocksFile))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to read nick blocks: %w", err))
	}
	hosts, err := readPatterns(filepath.Join(dir, hostBlocksFile))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to read host blocks: %w", err))
	}

	for _, p := range nicks {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("bad nick pattern %q: %w", p, err))
			continue
		}
		b.nicks = append(b.nicks, p)
	}
	for _, p := range hosts {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("bad host pattern %q: %w", p, err))
			continue
		}
		b.hosts = append(b.hosts, p)
	}

	b.nickRe = compilePatterns(b.nicks)
	b.hostRe = compilePatterns(b.hosts)
	return b, errors.Join(errs...)
}

// compilePatterns builds the anchored alternation for a pattern list.
// Every entry has already passed regexp.Compile on its own, so joining
// them inside a group cannot fail.
func compilePatterns(patterns []string) *regexp.Regexp {
	if len(patterns) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)^(?:` + strings.Join(patterns, "|") + `)$`)
}

// BlockedNick reports whether nick matches a blocked nick pattern.
func (b *Blocklist) BlockedNick(nick string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nickRe != nil && b.nickRe.MatchString(nick)
}

// BlockedHost reports whether host matches a blocked host pattern.
func (b *Blocklist) BlockedHost(host string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hostRe != nil && b.hostRe.MatchString(host)
}

// Nicks returns a copy of the nick patterns.
func (b *Blocklist) Nicks() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.nicks...)
}

// Hosts returns a copy of the host patterns.
func (b *Blocklist) Hosts() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.hosts...)
}

// AddNick adds a nick pattern. Adding an existing pattern is a no-op.
func (b *Blocklist) AddNick(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.nicks {
		if p == pattern {
			return nil
		}
	}
	b.nicks = append(b.nicks, pattern)
	b.nickRe = compilePatterns(b.nicks)
	return nil
}

// AddHost adds a host pattern. Adding an existing pattern is a no-op.
func (b *Blocklist) AddHost(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.hosts {
		if p == pattern {
			return nil
		}
	}
	b.hosts = append(b.hosts, pattern)
	b.hostRe = compilePatterns(b.hosts)
	return nil
}

// RemoveNick deletes a nick pattern, reporting whether it was present.
func (b *Blocklist) RemoveNick(pattern string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.nicks {
		if p == pattern {
			b.nicks = append(b.nicks[:i], b.nicks[i+1:]...)
			b.nickRe = compilePatterns(b.nicks)
			return true
		}
	}
	return false
}

// RemoveHost deletes a host pattern, reporting whether it was present.
func (b *Blocklist) RemoveHost(pattern string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.hosts {
		if p == pattern {
			b.hosts = append(b.hosts[:i], b.hosts[i+1:]...)
			b.hostRe = compilePatterns(b.hosts)
			return true
		}
	}
	return false
}

// Save writes both block files under the blocklist's directory.
func (b *Blocklist) Save() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.dir == "" {
		return errors.New("blocklist has no directory")
	}
	if err := writeLines(filepath.Join(b.dir, nickBlocksFile), b.nicks); err != nil {
		return fmt.Errorf("failed to write nick blocks: %w", err)
	}
	if err := writeLines(filepath.Join(b.dir, hostBlocksFile), b.hosts); err != nil {
		return fmt.Errorf("failed to write host blocks: %w", err)
	}
	return nil
}

// readPatterns reads one pattern per line, skipping blanks. A missing
// file yields an empty list.
func readPatterns(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, line := range lines {
		if _, err := fmt.Fprintln(file, line); err != nil {
			return err
		}
	}
	return nil
}
