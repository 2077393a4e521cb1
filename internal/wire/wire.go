// Package wire frames and parses the IRC line protocol: CRLF-delimited
// lines of at most 512 bytes, each carrying an optional prefix, a command
// and its parameters.
package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/ergochat/irc-go/ircreader"
)

const (
	// MaxLineLen is the longest line allowed on the wire, including the
	// trailing CRLF.
	MaxLineLen = 512

	// maxReadBuf bounds how much of a misbehaving server's overlong line
	// is buffered before the connection is considered broken.
	maxReadBuf = 8192
)

// Decoder turns a byte stream into discrete IRC lines. It tolerates bare
// LF terminators, skips empty lines and truncates overlong lines to the
// protocol limit.
type Decoder struct {
	r ircreader.Reader
}

// NewDecoder returns a Decoder reading from conn.
func NewDecoder(conn io.Reader) *Decoder {
	d := &Decoder{}
	d.r.Initialize(conn, MaxLineLen, maxReadBuf)
	return d
}

// ReadLine returns the next non-empty line without its terminator.
func (d *Decoder) ReadLine() (string, error) {
	for {
		line, err := d.r.ReadLine()
		if err != nil {
			return "", err
		}
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			continue
		}
		if len(line) > MaxLineLen-2 {
			line = line[:MaxLineLen-2]
		}
		return string(line), nil
	}
}

// Parse decomposes a raw line into {prefix, command, params} per the
// RFC 1459 grammar. A line without a command token is a parse error;
// callers skip such lines rather than failing the stream.
func Parse(line string) (ircmsg.Message, error) {
	msg, err := ircmsg.ParseLine(line)
	if err != nil {
		return msg, fmt.Errorf("failed to parse line %q: %w", line, err)
	}
	return msg, nil
}

// Encode builds the wire form of a command: CRLF-terminated and truncated
// to the protocol limit. Truncation is not an error.
func Encode(command string, params ...string) ([]byte, error) {
	msg := ircmsg.MakeMessage(nil, "", command, params...)
	line, err := msg.LineBytesStrict(true, MaxLineLen)
	if err == ircmsg.ErrorBodyTooLong {
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", command, err)
	}
	return line, nil
}
