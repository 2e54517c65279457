package queueprocessor

import "errors"

// errLockHeld names the condition of a message already claimed by another
// worker. processOne does not return it: that case is reported as
// resultSkipped and the file is skipped for this tick.
var errLockHeld = errors.New("queueprocessor: message is locked by another worker")

// errRetry names the condition of a transient failure that ends the
// current list scan. processOne does not return it: that case is reported
// as resultTransient, and Run stops the scan on that result.
var errRetry = errors.New("queueprocessor: transient failure, retry next tick")
