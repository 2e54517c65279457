package txn

import (
	"errors"
	"fmt"
)

var (
	errAlreadyBegun = errors.New("txn: manager has already begun voting")
	errBadState     = errors.New("txn: vote called from an unexpected state")
)

func sortKey(m *Manager) string {
	return fmt.Sprintf("%p", m)
}
