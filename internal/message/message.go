// Package message parses and normalizes the RFC 5322 byte sequences that
// travel between the delivery facade, the Maildir spool, and the SMTP
// transport.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"
)

// ErrMalformedMessage is returned when a caller-supplied Message-Id header
// is present but not bracketed in "<local@domain>" form.
var ErrMalformedMessage = errors.New("message: Message-Id header is not bracketed")

const headerName = "Message-Id"

// LineSep returns the line separator used by msg, inferred from the first
// newline: CRLF if preceded by a carriage return, LF otherwise. An empty or
// newline-free message defaults to LF.
func LineSep(msg []byte) []byte {
	idx := bytes.IndexByte(msg, '\n')
	if idx < 1 || msg[idx-1] != '\r' {
		return []byte("\n")
	}
	return []byte("\r\n")
}

// HeaderBlock returns the header block of msg: everything before the first
// blank line (double line separator), using the line separator inferred by
// LineSep.
func HeaderBlock(msg []byte) []byte {
	sep := LineSep(msg)
	parts := bytes.SplitN(msg, append(sep, sep...), 2)
	return parts[0]
}

// ExtractMessageID scans the header block of msg for a Message-Id header.
// It returns the bracketed value with brackets stripped, and true, if
// present. If the header is present but not bracketed, it returns
// ErrMalformedMessage.
func ExtractMessageID(msg []byte) (id string, present bool, err error) {
	header := HeaderBlock(msg)
	sep := LineSep(msg)
	for _, line := range bytes.Split(header, sep) {
		name, value, ok := splitHeaderLine(line)
		if !ok || !equalFoldASCII(name, headerName) {
			continue
		}
		value = bytes.TrimSpace(value)
		if len(value) < 2 || value[0] != '<' || value[len(value)-1] != '>' {
			return "", true, ErrMalformedMessage
		}
		return string(value[1 : len(value)-1]), true, nil
	}
	return "", false, nil
}

// splitHeaderLine splits a single unfolded header line into name/value at
// the first colon. RFC 5322 header lines may be folded across multiple
// physical lines; this package only needs to recognize the common
// unfolded Message-Id line emitted by the facade and compliant MUAs, so
// folding is not handled here.
func splitHeaderLine(line []byte) (name, value []byte, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return nil, nil, false
	}
	return line[:idx], line[idx+1:], true
}

func equalFoldASCII(a []byte, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Normalize ensures msg carries exactly one Message-Id header, generating
// one and prepending it if absent. It returns the (possibly rewritten)
// message bytes and the bare message id (no brackets).
func Normalize(msg []byte, hostname string) ([]byte, string, error) {
	id, present, err := ExtractMessageID(msg)
	if err != nil {
		return nil, "", err
	}
	if present {
		return msg, id, nil
	}

	id = newMessageID(hostname)
	sep := LineSep(msg)
	prefix := append([]byte(fmt.Sprintf("%s: <%s>", headerName, id)), sep...)
	out := make([]byte, 0, len(prefix)+len(msg))
	out = append(out, prefix...)
	out = append(out, msg...)
	return out, id, nil
}

// newMessageID generates "<ymdhms>.<pid>.<rand>@<hostname>", matching the
// format required by spec.md's round-trip property:
// ^[0-9]{14}\.[0-9]+\.[0-9]+@.+$
func newMessageID(hostname string) string {
	if hostname == "" {
		if h, err := os.Hostname(); err == nil {
			hostname = h
		} else {
			hostname = "localhost"
		}
	}
	stamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s.%d.%d@%s", stamp, os.Getpid(), rand.Int31(), hostname)
}
