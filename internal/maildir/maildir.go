// Package maildir implements a crash-safe, Maildir-convention message spool:
// tmp/ for messages being written, new/ for delivered-but-unprocessed
// messages, cur/ for messages visible to the queue processor. Writers
// commit by renaming tmp -> new; the queue processor claims exclusive
// delivery rights with a hard-link under the reserved ".sending-" prefix.
package maildir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dirTmp = "tmp"
	dirNew = "new"
	dirCur = "cur"

	sendingPrefix  = ".sending-"
	rejectedPrefix = ".rejected-"

	maxKeyAttempts = 1000
)

// Spool is a single Maildir folder rooted at Path.
type Spool struct {
	Path string
}

// Open verifies (and optionally creates) the tmp/new/cur layout at path.
// If create is false and the layout is missing, Open returns
// ErrNotAMaildir.
func Open(path string, create bool) (*Spool, error) {
	sub := func(name string) string { return filepath.Join(path, name) }

	exists := func(p string) bool {
		fi, err := os.Stat(p)
		return err == nil && fi.IsDir()
	}

	complete := exists(sub(dirTmp)) && exists(sub(dirNew)) && exists(sub(dirCur))

	if !complete {
		if !create {
			return nil, ErrNotAMaildir
		}
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return nil, ErrNotAMaildir
		}
		for _, name := range []string{"", dirTmp, dirNew, dirCur} {
			if err := os.MkdirAll(sub(name), 0o700); err != nil {
				return nil, fmt.Errorf("maildir: create %s: %w", sub(name), err)
			}
		}
	}

	return &Spool{Path: path}, nil
}

// TmpDir, NewDir, and CurDir return the three spool subdirectories.
func (s *Spool) TmpDir() string { return filepath.Join(s.Path, dirTmp) }
func (s *Spool) NewDir() string { return filepath.Join(s.Path, dirNew) }
func (s *Spool) CurDir() string { return filepath.Join(s.Path, dirCur) }

// Iterate lists the absolute paths of every message under new/ and cur/,
// skipping any base name starting with ".". Ordering is unspecified but
// stable within a single call.
func (s *Spool) Iterate() ([]string, error) {
	var out []string
	for _, dir := range []string{s.NewDir(), s.CurDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("maildir: list %s: %w", dir, err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// NewMessage mints a fresh unique key and returns a Writer bound to
// tmp/<key>, to be committed into new/<key>.
func (s *Spool) NewMessage() (*Writer, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key := uniqueKey()
		tmpPath := filepath.Join(s.TmpDir(), key)

		f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return &Writer{
				file:    f,
				tmpPath: tmpPath,
				newPath: filepath.Join(s.NewDir(), key),
			}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("maildir: open %s: %w", tmpPath, err)
		}
		time.Sleep(time.Second)
	}
	return nil, ErrResourceExhausted
}

// SendingLockPath returns the ".sending-" lock path for a message file.
func SendingLockPath(msgPath string) string {
	dir, base := filepath.Split(msgPath)
	return filepath.Join(dir, sendingPrefix+base)
}

// RejectedPath returns the ".rejected-" quarantine path for a message file.
func RejectedPath(msgPath string) string {
	dir, base := filepath.Split(msgPath)
	return filepath.Join(dir, rejectedPrefix+base)
}

// uniqueKey produces the qmail Maildir unique key <unixtime>.<pid>.<hostname>.
func uniqueKey() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%d.%d.%s", time.Now().Unix(), os.Getpid(), host)
}
