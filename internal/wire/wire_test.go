package wire

import (
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		command string
		params  []string
	}{
		{":alice!a@h PRIVMSG #test :hello there", "PRIVMSG", []string{"#test", "hello there"}},
		{"PING :irc.example.org", "PING", []string{"irc.example.org"}},
		{":irc.example.org 001 kestrel :Welcome to IRC", "001", []string{"kestrel", "Welcome to IRC"}},
		{"JOIN #test", "JOIN", []string{"#test"}},
		{"MODE #test +o alice", "MODE", []string{"#test", "+o", "alice"}},
		{":alice!a@h QUIT", "QUIT", nil},
	}

	for _, tt := range tests {
		msg, err := Parse(tt.line)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tt.line, err)
			continue
		}
		if msg.Command != tt.command {
			t.Errorf("Parse(%q) command: expected %q, got %q", tt.line, tt.command, msg.Command)
		}
		if len(msg.Params) != len(tt.params) {
			t.Errorf("Parse(%q) params: expected %v, got %v", tt.line, tt.params, msg.Params)
			continue
		}
		for i := range tt.params {
			if msg.Params[i] != tt.params[i] {
				t.Errorf("Parse(%q) param %d: expected %q, got %q", tt.line, i, tt.params[i], msg.Params[i])
			}
		}
	}
}

func TestParseSender(t *testing.T) {
	msg, err := Parse(":alice!ali@host.example PRIVMSG #test :hi")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if msg.Nick() != "alice" {
		t.Errorf("Expected nick alice, got %q", msg.Nick())
	}
	nuh, err := msg.NUH()
	if err != nil {
		t.Fatalf("NUH failed: %v", err)
	}
	if nuh.User != "ali" || nuh.Host != "host.example" {
		t.Errorf("Unexpected user/host: %q/%q", nuh.User, nuh.Host)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, line := range []string{"", ":prefix.only", "   "} {
		if _, err := Parse(line); err == nil {
			t.Errorf("Parse(%q) should have failed", line)
		}
	}
}

// Encoding a parsed line and parsing it again must preserve the command
// and parameters, whatever the original colon placement was.
func TestParseEncodeRoundTrip(t *testing.T) {
	lines := []string{
		":alice!a@h PRIVMSG #test :hello there",
		"PRIVMSG #test :no spaces",
		"PING token",
		":irc.example.org 353 me = #test :@alice +bob carol",
		"KICK #test bob :bye now",
		"NICK newnick",
	}

	for _, line := range lines {
		first, err := Parse(line)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", line, err)
		}
		encoded, err := Encode(first.Command, first.Params...)
		if err != nil {
			t.Fatalf("Encode of %q failed: %v", line, err)
		}
		if !strings.HasSuffix(string(encoded), "\r\n") {
			t.Errorf("Encoded %q does not end with CRLF", encoded)
		}
		second, err := Parse(strings.TrimSuffix(string(encoded), "\r\n"))
		if err != nil {
			t.Fatalf("Reparse of %q failed: %v", encoded, err)
		}
		if second.Command != first.Command {
			t.Errorf("Round trip of %q changed command: %q -> %q", line, first.Command, second.Command)
		}
		if !reflect.DeepEqual(second.Params, first.Params) {
			t.Errorf("Round trip of %q changed params: %v -> %v", line, first.Params, second.Params)
		}
	}
}

func TestEncodeTruncates(t *testing.T) {
	long := strings.Repeat("a", 600)
	line, err := Encode("PRIVMSG", "#test", long)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(line) > MaxLineLen {
		t.Errorf("Expected at most %d bytes, got %d", MaxLineLen, len(line))
	}
	if !strings.HasSuffix(string(line), "\r\n") {
		t.Error("Truncated line must still end with CRLF")
	}
	// The trailing parameter has no spaces, so it goes out without a
	// colon; either way the body must survive the truncation.
	if !strings.HasPrefix(string(line), "PRIVMSG #test aaa") {
		t.Errorf("Truncation damaged the line start: %q", line[:20])
	}
}

func TestDecoder(t *testing.T) {
	input := "PING :one\r\nNOTICE me :two\n\r\n:a!b@c PRIVMSG #t :three\r\n"
	d := NewDecoder(strings.NewReader(input))

	want := []string{"PING :one", "NOTICE me :two", ":a!b@c PRIVMSG #t :three"}
	for i, w := range want {
		line, err := d.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine %d failed: %v", i, err)
		}
		if line != w {
			t.Errorf("Line %d: expected %q, got %q", i, w, line)
		}
	}
	if _, err := d.ReadLine(); err != io.EOF {
		t.Errorf("Expected EOF at end of stream, got %v", err)
	}
}

func TestDecoderTruncatesLongLines(t *testing.T) {
	long := "PRIVMSG #test :" + strings.Repeat("x", 700)
	d := NewDecoder(strings.NewReader(long + "\r\nPING :after\r\n"))

	line, err := d.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if len(line) != MaxLineLen-2 {
		t.Errorf("Expected truncation to %d bytes, got %d", MaxLineLen-2, len(line))
	}

	// The stream stays usable after an overlong line.
	line, err = d.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine after long line failed: %v", err)
	}
	if line != "PING :after" {
		t.Errorf("Expected following line intact, got %q", line)
	}
}
