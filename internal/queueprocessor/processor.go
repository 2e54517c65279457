// Package queueprocessor drains a Maildir-convention spool: it lists
// pending message files, claims each one with a hard-link lock so
// concurrent workers (in this process or another) never send the same
// message twice, hands it to an SMTP transport, and routes the outcome to
// unlink-on-success, retry-on-transient, or quarantine-on-permanent.
package queueprocessor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/infodancer/sendmail/internal/maildir"
	"github.com/infodancer/sendmail/internal/message"
	"github.com/infodancer/sendmail/internal/smtptransport"
)

// defaultMaxSendTime is the age past which a ".sending-" lock is presumed
// to belong to a worker that died mid-send, per spec's documented
// duplicate-delivery risk window; it is a policy knob, not a correctness
// bound (see Config.MaxSendTime).
const defaultMaxSendTime = 3 * time.Hour

// Transport is the capability this package needs from an SMTP mailer. It
// is satisfied by *smtptransport.Mailer; tests substitute a recording or
// failing double.
type Transport interface {
	Send(ctx context.Context, sender string, recipients []string, message []byte) error
}

// Metrics is the narrow counter surface the processor increments after
// every delivery attempt. NoopMetrics satisfies it with no-ops.
type Metrics interface {
	DeliveryAttempt(result string)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) DeliveryAttempt(string) {}

// StatsPublisher is the narrow surface a per-tick cross-host summary cache
// needs. It is optional: a nil Config.Stats simply means no tick summary
// is published anywhere.
type StatsPublisher interface {
	PublishTickCounts(ctx context.Context, spoolPath string, success, transient, permanent, skipped int) error
}

// Config configures a single worker loop. NewMailer is called once per
// delivery attempt so each attempt gets its own connection state — the
// SMTP transport's connection must never be shared across concurrent
// sends (spec.md §4.A, "thread-local" connection state). RunWorkers hands
// the same Config to every worker, so a Mailer held in the Config itself
// would be shared between them.
type Config struct {
	SpoolPath             string
	Interval              time.Duration
	RetryInterval         time.Duration
	MaxSendTime           time.Duration
	CleanLockLinksOnStart bool

	NewMailer func() Transport

	Logger  *slog.Logger
	Metrics Metrics
	Stats   StatsPublisher
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) metrics() Metrics {
	if c.Metrics != nil {
		return c.Metrics
	}
	return NoopMetrics{}
}

func (c Config) maxSendTime() time.Duration {
	if c.MaxSendTime > 0 {
		return c.MaxSendTime
	}
	return defaultMaxSendTime
}

// Processor runs the drain loop against a single spool.
type Processor struct {
	cfg    Config
	spool  *maildir.Spool
	notify <-chan struct{}
}

// New opens (creating if necessary) the spool at cfg.SpoolPath and returns
// a Processor ready to Run.
func New(cfg Config) (*Processor, error) {
	spool, err := maildir.Open(cfg.SpoolPath, true)
	if err != nil {
		return nil, fmt.Errorf("queueprocessor: open spool: %w", err)
	}
	return &Processor{cfg: cfg, spool: spool}, nil
}

// Run drains the spool until ctx is cancelled. It never returns an error
// for a single message's delivery failure — only ctx cancellation ends
// the loop — matching the requirement that the processor thread must
// never die from an unanticipated per-message exception.
func (p *Processor) Run(ctx context.Context) error {
	logger := p.cfg.logger()

	if p.cfg.CleanLockLinksOnStart {
		if err := p.sweepLockLinks(); err != nil {
			logger.Warn("queueprocessor: startup lock sweep failed", "error", err)
		}
	}

	p.notify = maildir.Watch(ctx, p.spool, logger)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		files, err := p.spool.Iterate()
		if err != nil {
			logger.Error("queueprocessor: list spool failed", "error", err)
		}

		var tick tickCounts

		for _, f := range files {
			if ctx.Err() != nil {
				return nil
			}

			outcome := p.processOne(ctx, f)
			p.cfg.metrics().DeliveryAttempt(outcome.result)
			tick.record(outcome.result)

			if outcome.result == resultTransient {
				// Retry freshly on the next tick rather than continuing the
				// current scan with a stale file list.
				if !p.sleepStoppable(ctx, p.cfg.RetryInterval) {
					return nil
				}
				break
			}
		}

		p.publishTick(ctx, tick)

		if !p.sleepStoppable(ctx, p.cfg.Interval) {
			return nil
		}
	}
}

// RunOnce performs a single drain pass over the spool and returns,
// instead of looping until ctx is cancelled. It is what the CLI runs
// when invoked without --daemon: one scan, one delivery attempt per
// message found, then exit, leaving any transient failures for the
// next invocation (typically cron-driven) to retry.
func (p *Processor) RunOnce(ctx context.Context) error {
	logger := p.cfg.logger()

	if p.cfg.CleanLockLinksOnStart {
		if err := p.sweepLockLinks(); err != nil {
			logger.Warn("queueprocessor: startup lock sweep failed", "error", err)
		}
	}

	files, err := p.spool.Iterate()
	if err != nil {
		return fmt.Errorf("queueprocessor: list spool failed: %w", err)
	}

	var tick tickCounts
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		outcome := p.processOne(ctx, f)
		p.cfg.metrics().DeliveryAttempt(outcome.result)
		tick.record(outcome.result)
	}

	p.publishTick(ctx, tick)
	return nil
}

// sleepStoppable sleeps for d in interval-sized slices, checking ctx at
// each slice boundary so shutdown latency is bounded by the slice size
// rather than the full sleep duration. A signal on p.notify (new mail
// landing in new/, per maildir.Watch) cuts the sleep short so a freshly
// submitted message does not wait out a potentially long Interval; the
// slicing itself remains the only mechanism shutdown relies on. It
// returns false if ctx was cancelled before the sleep completed.
func (p *Processor) sleepStoppable(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = p.cfg.Interval
	}
	slice := p.cfg.Interval
	if slice <= 0 || slice > d {
		slice = d
	}

	timer := time.NewTimer(slice)
	defer timer.Stop()

	remaining := d
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-p.notify:
			return true
		case <-timer.C:
			remaining -= slice
			if remaining <= 0 {
				return true
			}
			next := slice
			if remaining < next {
				next = remaining
			}
			timer.Reset(next)
		}
	}
	return true
}

// sweepLockLinks removes every ".sending-" lock under new/ and cur/,
// compensating for an unclean shutdown that would otherwise leave those
// messages stalled until MaxSendTime elapses.
func (p *Processor) sweepLockLinks() error {
	files, err := p.spool.Iterate()
	if err != nil {
		return err
	}
	for _, f := range files {
		lock := maildir.SendingLockPath(f)
		if err := os.Remove(lock); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("queueprocessor: remove stale lock %s: %w", lock, err)
		}
	}
	return nil
}

// tickCounts accumulates one scan's outcome counts for the optional
// cross-host stats cache.
type tickCounts struct {
	success, transient, permanent, skipped int
}

func (t *tickCounts) record(r result) {
	switch r {
	case resultSuccess:
		t.success++
	case resultTransient:
		t.transient++
	case resultPermanent:
		t.permanent++
	case resultSkipped:
		t.skipped++
	}
}

// publishTick reports tick to the configured StatsPublisher, if any. A
// publish failure is logged and otherwise ignored: the cache is an
// accelerator, never a dependency of the drain loop.
func (p *Processor) publishTick(ctx context.Context, tick tickCounts) {
	if p.cfg.Stats == nil {
		return
	}
	if err := p.cfg.Stats.PublishTickCounts(ctx, p.cfg.SpoolPath, tick.success, tick.transient, tick.permanent, tick.skipped); err != nil {
		p.cfg.logger().Warn("queueprocessor: publishing tick summary failed", "error", err)
	}
}

type result string

const (
	resultSuccess   result = "success"
	resultTransient result = "transient"
	resultPermanent result = "permanent"
	resultSkipped   result = "skipped"
	resultError     result = "error"
)

type outcome struct {
	result result
	err    error
}

// processOne runs the lock-link protocol and delivery attempt for a single
// message file. It never panics and never returns an error the caller
// must act on beyond inspecting outcome.result; every failure mode is
// logged here with the message id.
func (p *Processor) processOne(ctx context.Context, f string) outcome {
	logger := p.cfg.logger().With("file", f)

	lock := maildir.SendingLockPath(f)

	switch held, err := p.tryAcquireLock(f, lock); {
	case err != nil:
		logger.Error("queueprocessor: lock acquisition failed", "error", err)
		return outcome{result: resultError, err: err}
	case !held:
		return outcome{result: resultSkipped}
	}

	env, err := p.readEnvelope(f)
	if err != nil {
		logger.Error("queueprocessor: failed to parse queued envelope, quarantining", "error", err)
		p.quarantine(f, lock)
		return outcome{result: resultPermanent, err: err}
	}

	mailer := p.cfg.NewMailer()
	sendErr := mailer.Send(ctx, env.Sender, env.Recipients, env.Message)

	switch {
	case sendErr == nil:
		p.unlink(f)
		p.unlink(lock)
		return outcome{result: resultSuccess}

	case errors.Is(sendErr, smtptransport.ErrPerRecipient):
		logger.Warn("queueprocessor: partial recipient rejection, remainder delivered", "error", sendErr)
		p.unlink(f)
		p.unlink(lock)
		return outcome{result: resultSuccess, err: sendErr}

	case errors.Is(sendErr, smtptransport.ErrTransient):
		logger.Warn("queueprocessor: transient delivery failure, will retry", "error", sendErr)
		p.unlink(lock)
		return outcome{result: resultTransient, err: sendErr}

	case errors.Is(sendErr, smtptransport.ErrPermanent):
		logger.Error("queueprocessor: permanent delivery failure, quarantining", "error", sendErr)
		p.quarantine(f, lock)
		return outcome{result: resultPermanent, err: sendErr}

	default:
		// An unclassified error is treated as transient: better to retry a
		// message than to silently drop one this package cannot classify.
		logger.Error("queueprocessor: unclassified delivery failure, treating as transient", "error", sendErr)
		p.unlink(lock)
		return outcome{result: resultTransient, err: sendErr}
	}
}

// tryAcquireLock implements steps 1-4 of the lock-link protocol: it
// inspects any existing lock, reclaims one abandoned past MaxSendTime,
// refreshes F's mtime, and hard-links F to the lock path. held is false
// whenever this worker should skip f this tick (already locked by another
// worker, or f/ the lock disappeared out from under it).
func (p *Processor) tryAcquireLock(f, lock string) (held bool, err error) {
	if fi, statErr := os.Stat(lock); statErr == nil {
		if time.Since(fi.ModTime()) < p.cfg.maxSendTime() {
			return false, nil
		}
		if err := os.Remove(lock); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("remove stale lock: %w", err)
		}
	} else if !os.IsNotExist(statErr) {
		return false, fmt.Errorf("stat lock: %w", statErr)
	}

	now := time.Now()
	if err := os.Chtimes(f, now, now); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("refresh mtime: %w", err)
	}

	if err := os.Link(f, lock); err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return true, nil
}

func (p *Processor) readEnvelope(f string) (message.Envelope, error) {
	raw, err := os.ReadFile(f)
	if err != nil {
		return message.Envelope{}, fmt.Errorf("read %s: %w", f, err)
	}
	return message.DecodeQueued(raw)
}

func (p *Processor) unlink(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.cfg.logger().Warn("queueprocessor: unlink failed", "path", path, "error", err)
	}
}

// quarantine hard-links f to its ".rejected-" path before unlinking both
// the original file and its lock, following the same link-then-unlink
// discipline the lock protocol uses so a crash mid-quarantine never loses
// the message outright.
func (p *Processor) quarantine(f, lock string) {
	rejected := maildir.RejectedPath(f)
	if err := os.Link(f, rejected); err != nil && !os.IsExist(err) {
		p.cfg.logger().Error("queueprocessor: failed to quarantine message", "file", f, "error", err)
	}
	p.unlink(f)
	p.unlink(lock)
}
