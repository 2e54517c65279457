package txn

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Transaction is a minimal standalone host transaction: it collects the
// Managers joined to it and drives them through vote/finish on Commit, or
// Abort on abort. It exists so this package is independently testable per
// spec.md §9's note that a host transaction manager can be substituted or
// embedded; a real integration would instead register a *Manager with
// whatever transaction framework the surrounding application already uses.
type Transaction struct {
	mu       sync.Mutex
	managers []*Manager
}

// New returns an empty, freshly begun transaction.
func New() *Transaction {
	return &Transaction{}
}

// Join registers m with the transaction. A transaction that later commits
// invokes m's deferred action exactly once; a transaction that aborts
// invokes m's onAbort exactly once.
func (t *Transaction) Join(m *Manager) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := m.Begin(); err != nil {
		return err
	}
	t.managers = append(t.managers, m)
	return nil
}

// savepointMark is the savepoint handle returned by Transaction's own
// Savepoint, distinct from a single Manager's no-op Savepoint: rolling it back
// retracts every Manager joined after the mark was taken, implementing
// spec.md's invariant that savepoint rollback elides post-savepoint sends
// while leaving pre-savepoint sends intact.
type savepointMark struct {
	txn *Transaction
	n   int
}

func (s savepointMark) Rollback() {
	s.txn.mu.Lock()
	defer s.txn.mu.Unlock()

	for _, m := range s.txn.managers[s.n:] {
		m.Abort()
	}
	s.txn.managers = s.txn.managers[:s.n]
}

// Savepoint captures the current join point. Rolling back the returned
// handle aborts (and un-joins) every Manager joined since.
func (t *Transaction) Savepoint() Savepoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return savepointMark{txn: t, n: len(t.managers)}
}

// Commit runs the two-phase protocol across every joined Manager, ordered
// by SortKey: vote on all of them, and only if every vote succeeds, finish
// all of them. If any vote fails, every Manager (including those that
// already voted) is aborted and the vote error is returned.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	managers := append([]*Manager(nil), t.managers...)
	t.mu.Unlock()

	sort.Slice(managers, func(i, j int) bool {
		return managers[i].SortKey() < managers[j].SortKey()
	})

	for _, m := range managers {
		if err := m.Vote(ctx); err != nil {
			for _, abortee := range managers {
				abortee.Abort()
			}
			return fmt.Errorf("txn: commit aborted on vote: %w", err)
		}
	}

	for _, m := range managers {
		m.Finish(ctx)
	}
	return nil
}

// Abort invokes onAbort on every joined Manager exactly once, producing no
// SMTP I/O and no spool file for any of them.
func (t *Transaction) Abort() {
	t.mu.Lock()
	managers := append([]*Manager(nil), t.managers...)
	t.managers = nil
	t.mu.Unlock()

	for _, m := range managers {
		m.Abort()
	}
}
