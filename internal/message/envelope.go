package message

import (
	"bytes"
	"fmt"
	"strings"
)

// Envelope is the (sender, recipients, message bytes) triple that the
// delivery facade hands to either the SMTP transport or the Maildir spool.
// Recipients are passed through to SMTP in the order given; duplicates are
// not deduplicated.
type Envelope struct {
	Sender     string
	Recipients []string
	Message    []byte
}

const (
	fromHeader = "X-Zope-From"
	toHeader   = "X-Zope-To"
)

// EncodeQueued renders the envelope-restoration protocol used by the
// Maildir spool: two synthetic header lines ("X-Zope-From", "X-Zope-To")
// followed by the message bytes, exactly as written to the spool file.
func (e Envelope) EncodeQueued() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %s\n", fromHeader, e.Sender)
	fmt.Fprintf(&buf, "%s: %s\n", toHeader, strings.Join(e.Recipients, ", "))
	buf.Write(e.Message)
	return buf.Bytes()
}

// DecodeQueued reverses EncodeQueued: it strips the two synthetic envelope
// headers from the front of raw and returns the reconstructed envelope.
// raw must begin with the two synthetic lines in order; any other leading
// content is an error.
func DecodeQueued(raw []byte) (Envelope, error) {
	fromLine, rest, ok := cutLine(raw)
	if !ok {
		return Envelope{}, fmt.Errorf("message: queued file missing %s header", fromHeader)
	}
	sender, ok := stripPrefix(fromLine, fromHeader+": ")
	if !ok {
		return Envelope{}, fmt.Errorf("message: queued file first line is not %s", fromHeader)
	}

	toLine, body, ok := cutLine(rest)
	if !ok {
		return Envelope{}, fmt.Errorf("message: queued file missing %s header", toHeader)
	}
	toList, ok := stripPrefix(toLine, toHeader+": ")
	if !ok {
		return Envelope{}, fmt.Errorf("message: queued file second line is not %s", toHeader)
	}

	var recipients []string
	if toList != "" {
		recipients = strings.Split(toList, ", ")
	}

	return Envelope{
		Sender:     sender,
		Recipients: recipients,
		Message:    body,
	}, nil
}

func cutLine(b []byte) (line string, rest []byte, ok bool) {
	idx := bytes.IndexByte(b, '\n')
	if idx < 0 {
		return "", nil, false
	}
	return string(b[:idx]), b[idx+1:], true
}

func stripPrefix(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimPrefix(line, prefix), true
}
