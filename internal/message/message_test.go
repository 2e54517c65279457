package message

import (
	"regexp"
	"testing"
)

var messageIDPattern = regexp.MustCompile(`^[0-9]{14}\.[0-9]+\.[0-9]+@.+$`)

func TestNormalizeGeneratesMessageID(t *testing.T) {
	raw := []byte("Subject: hi\n\nbody\n")

	out, id, err := Normalize(raw, "example.org")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !messageIDPattern.MatchString(id) {
		t.Fatalf("generated id %q does not match expected pattern", id)
	}

	n, _, err := ExtractMessageID(out)
	if err != nil {
		t.Fatalf("ExtractMessageID on normalized output: %v", err)
	}
	if n != id {
		t.Fatalf("round-tripped id %q != generated id %q", n, id)
	}
}

func TestNormalizePreservesBracketedID(t *testing.T) {
	raw := []byte("Message-Id: <abc123@example.org>\nSubject: hi\n\nbody\n")

	out, id, err := Normalize(raw, "example.org")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if id != "abc123@example.org" {
		t.Fatalf("expected preserved id, got %q", id)
	}
	if string(out) != string(raw) {
		t.Fatalf("message with existing Message-Id must not be rewritten")
	}
}

func TestExtractMessageIDRejectsUnbracketed(t *testing.T) {
	raw := []byte("Message-Id: abc123@example.org\nSubject: hi\n\nbody\n")

	if _, _, err := ExtractMessageID(raw); err != ErrMalformedMessage {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestLineSepDetectsCRLF(t *testing.T) {
	if string(LineSep([]byte("a\r\nb"))) != "\r\n" {
		t.Fatalf("expected CRLF detection")
	}
	if string(LineSep([]byte("a\nb"))) != "\n" {
		t.Fatalf("expected LF default")
	}
	if string(LineSep(nil)) != "\n" {
		t.Fatalf("expected LF default for empty message")
	}
}
