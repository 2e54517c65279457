package maildir

import "errors"

// ErrNotAMaildir is returned by Open when path is a file, or lacks the
// tmp/new/cur subdirectories and create was not requested.
var ErrNotAMaildir = errors.New("maildir: not a maildir folder")

// ErrResourceExhausted is returned by NewMessage when a unique key could
// not be minted after 1000 attempts.
var ErrResourceExhausted = errors.New("maildir: could not allocate a unique message key")

// ErrWriterMisuse is returned by Commit after Abort has already run.
var ErrWriterMisuse = errors.New("maildir: commit called after abort")
