// Package notify decides whether a classification warrants an alert and
// delivers it through a pluggable transport.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/street-inspector-go/internal/classifier"
	"github.com/anime-shed/street-inspector-go/internal/logger"
)

const (
	Subject         = "Garbage Detected!"
	DefaultLocation = "Unknown Location"
	DefaultTimeout  = 5 * time.Second
)

// ErrDisabled is returned by the notifier used when no transport is configured.
var ErrDisabled = errors.New("notifications are disabled")

// Notifier delivers a subject and body to an operator. A nil error means delivered.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// Status is the notification state of one analysis.
type Status int

const (
	NotAttempted Status = iota
	Sent
	Failed
)

func (s Status) String() string {
	switch s {
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return "not_attempted"
	}
}

// Outcome records what happened to the notification of one analysis.
type Outcome struct {
	Status Status
	Reason string
}

func failed(reason string) Outcome {
	return Outcome{Status: Failed, Reason: reason}
}

// Attempted reports whether a send was tried.
func (o Outcome) Attempted() bool {
	return o.Status != NotAttempted
}

// Delivered returns nil when no attempt was made, otherwise whether the send succeeded.
func (o Outcome) Delivered() *bool {
	if !o.Attempted() {
		return nil
	}
	ok := o.Status == Sent
	return &ok
}

func (o Outcome) String() string {
	if o.Status == Failed && o.Reason != "" {
		return fmt.Sprintf("failed(%s)", o.Reason)
	}
	return o.Status.String()
}

// Message builds the alert for a garbage detection.
func Message(location string, confidence float64) (subject, body string) {
	if location == "" {
		location = DefaultLocation
	}
	return Subject, fmt.Sprintf("Street - %s is found to be unclean with confidence %.2f.", location, confidence)
}

// Gate sends an alert for every Garbage result and nothing else.
type Gate struct {
	notifier Notifier
	location string
	timeout  time.Duration
}

// NewGate creates a gate. An empty location uses DefaultLocation; a non-positive
// timeout uses DefaultTimeout.
func NewGate(n Notifier, location string, timeout time.Duration) *Gate {
	if location == "" {
		location = DefaultLocation
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{notifier: n, location: location, timeout: timeout}
}

// Location is the tag used in alert bodies.
func (g *Gate) Location() string {
	return g.location
}

// MaybeNotify alerts on Garbage regardless of confidence. Delivery errors,
// timeouts and panics come back as Failed; they are never returned as errors.
func (g *Gate) MaybeNotify(ctx context.Context, res classifier.Result) Outcome {
	if !res.IsGarbage() {
		return Outcome{Status: NotAttempted}
	}
	log := logger.WithFields(logrus.Fields{
		"class_label": res.Label,
		"confidence":  res.Confidence,
		"location":    g.location,
	})
	if g.notifier == nil {
		outcome := failed(ErrDisabled.Error())
		log.WithFields(logrus.Fields{
			"notification": outcome.Status.String(),
			"reason":       outcome.Reason,
		}).Warn("Garbage notification failed")
		return outcome
	}

	subject, body := Message(g.location, res.Confidence)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("notifier panic: %v", r)
			}
		}()
		errCh <- g.notifier.Send(ctx, subject, body)
	}()

	var outcome Outcome
	select {
	case err := <-errCh:
		if err != nil {
			outcome = failed(err.Error())
		} else {
			outcome = Outcome{Status: Sent}
		}
	case <-ctx.Done():
		outcome = failed(fmt.Sprintf("timeout after %s: %v", g.timeout, ctx.Err()))
	}

	log = log.WithFields(logrus.Fields{
		"notification": outcome.Status.String(),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	if outcome.Status == Failed {
		log.WithField("reason", outcome.Reason).Warn("Garbage notification failed")
	} else {
		log.Info("Garbage notification sent")
	}
	return outcome
}

// Disabled is the notifier for NOTIFIER=none.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string) error {
	return ErrDisabled
}
