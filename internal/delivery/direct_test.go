package delivery

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/infodancer/sendmail/internal/txn"
)

type recordedSend struct {
	sender     string
	recipients []string
	message    []byte
}

type stubTransport struct {
	mu      sync.Mutex
	sends   []recordedSend
	aborted int
}

func (s *stubTransport) Send(ctx context.Context, sender string, recipients []string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, recordedSend{sender, append([]string(nil), recipients...), append([]byte(nil), message...)})
	return nil
}

func (s *stubTransport) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted++
}

func TestDirectSuccessSendsExactlyOnceOnCommit(t *testing.T) {
	stub := &stubTransport{}
	d := &Direct{NewTransport: func() Transport { return stub }, Hostname: "mx.example.com"}
	tx := txn.New()

	id, err := d.Send(tx, "jim@example.com", []string{"a@x", "b@x"}, []byte("Subject: hi\n\nbody\n"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty message id")
	}

	if len(stub.sends) != 0 {
		t.Fatalf("expected no SMTP I/O before commit, got %d sends", len(stub.sends))
	}

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(stub.sends) != 1 {
		t.Fatalf("expected exactly one send after commit, got %d", len(stub.sends))
	}
	got := stub.sends[0]
	if !bytes.HasPrefix(got.message, []byte("Message-Id: <")) {
		t.Fatalf("expected message to begin with an injected Message-Id, got %q", got.message[:min(40, len(got.message))])
	}
	if !bytes.HasSuffix(got.message, []byte("body\n")) {
		t.Fatalf("expected message to end with the original body, got %q", got.message)
	}
}

func TestDirectAbortProducesNoSendAndInvokesAbort(t *testing.T) {
	stub := &stubTransport{}
	d := &Direct{NewTransport: func() Transport { return stub }, Hostname: "mx.example.com"}
	tx := txn.New()

	if _, err := d.Send(tx, "jim@example.com", []string{"a@x", "b@x"}, []byte("Subject: hi\n\nbody\n")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	tx.Abort()

	if len(stub.sends) != 0 {
		t.Fatalf("expected no SMTP I/O on abort, got %d sends", len(stub.sends))
	}
	if stub.aborted != 1 {
		t.Fatalf("expected Abort invoked exactly once, got %d", stub.aborted)
	}
}

func TestDirectSavepointRollbackElidesMiddleSend(t *testing.T) {
	stub := &stubTransport{}
	d := &Direct{NewTransport: func() Transport { return stub }, Hostname: "mx.example.com"}
	tx := txn.New()

	if _, err := d.Send(tx, "a@example.com", nil, []byte("Subject: a\n\nA\n")); err != nil {
		t.Fatal(err)
	}

	sp := tx.Savepoint()

	if _, err := d.Send(tx, "b@example.com", nil, []byte("Subject: b\n\nB\n")); err != nil {
		t.Fatal(err)
	}

	sp.Rollback()

	if _, err := d.Send(tx, "c@example.com", nil, []byte("Subject: c\n\nC\n")); err != nil {
		t.Fatal(err)
	}

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if len(stub.sends) != 2 {
		t.Fatalf("expected exactly 2 sends (A and C), got %d", len(stub.sends))
	}
	senders := map[string]bool{stub.sends[0].sender: true, stub.sends[1].sender: true}
	if !senders["a@example.com"] || !senders["c@example.com"] {
		t.Fatalf("expected senders a and c, got %v", stub.sends)
	}
	if senders["b@example.com"] {
		t.Fatalf("expected rolled-back send b to be elided, got %v", stub.sends)
	}
}
