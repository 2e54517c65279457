package smtptransport

import (
	"errors"
	"fmt"
	"net"

	"github.com/emersion/go-smtp"
)

// classify reduces an error returned by the go-smtp client into either
// ErrTransient or ErrPermanent, following the reply-code table: 2xx/3xx are
// not errors at all (a reply error carrying one is treated as permanent),
// 4xx and network-level failures are transient, 5xx is permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		switch {
		case smtpErr.Code >= 500:
			return fmt.Errorf("%w: %s", ErrPermanent, smtpErr.Message)
		case smtpErr.Code >= 400:
			return fmt.Errorf("%w: %s", ErrTransient, smtpErr.Message)
		default:
			return fmt.Errorf("%w: unexpected reply code %d", ErrPermanent, smtpErr.Code)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	// Anything else (connection reset, EOF mid-session, dial failure not
	// wrapped as net.Error) is treated as transient: the server may simply
	// be temporarily unreachable.
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// recipientFailure records one refused recipient. go-smtp's Client does
// not itself batch RCPT errors (each Rcpt call returns immediately), so
// per-recipient refusal in this transport is detected by the caller
// accumulating failures from individual Rcpt calls rather than by
// inspecting a single returned error; this type gives that accumulation
// point one vocabulary to report through.
type recipientFailure struct {
	Recipient string
	Code      int // raw SMTP reply code, 0 if the failure wasn't an *smtp.SMTPError
	Err       error
}

func joinPerRecipient(failures []recipientFailure) error {
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failures)+1)
	errs = append(errs, ErrPerRecipient)
	for _, f := range failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Recipient, f.Err))
	}
	return errors.Join(errs...)
}

// smtpCode extracts the raw reply code from err if it is an
// *smtp.SMTPError, reporting ok=false for anything else (a network-level
// failure go-smtp never wrapped as a reply).
func smtpCode(err error) (code int, ok bool) {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return smtpErr.Code, true
	}
	return 0, false
}

// classifyAllRefused implements the "recipients refused" aggregate rule:
// reduce the per-recipient reply codes to the most frequent one and
// classify the send by that code, rather than by whichever recipient
// happened to fail first or last. It is only called when every recipient
// was refused, so unlike the partial case this is a whole-message
// transient or permanent failure, never ErrPerRecipient.
func classifyAllRefused(failures []recipientFailure) error {
	counts := make(map[int]int, len(failures))
	order := make([]int, 0, len(failures))
	for _, f := range failures {
		if f.Code == 0 {
			continue
		}
		if counts[f.Code] == 0 {
			order = append(order, f.Code)
		}
		counts[f.Code]++
	}

	var mostFrequent, mostFrequentCount int
	for _, code := range order {
		if counts[code] > mostFrequentCount {
			mostFrequent, mostFrequentCount = code, counts[code]
		}
	}

	if mostFrequentCount == 0 {
		// None of the failures carried a reply code (refused at the network
		// level); fall back to whatever the first failure classified as.
		return fmt.Errorf("all recipients refused: %w", failures[0].Err)
	}

	if mostFrequent >= 500 {
		return fmt.Errorf("%w: all recipients refused, most common reply %d", ErrPermanent, mostFrequent)
	}
	return fmt.Errorf("%w: all recipients refused, most common reply %d", ErrTransient, mostFrequent)
}
