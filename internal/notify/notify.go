// Package notify sends desktop notifications.
package notify

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Sender delivers a notification.
type Sender func(title, message string) error

// Desktop sends through the OS notification service.
func Desktop(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Notifier sends notifications when enabled. Delivery errors are logged and
// otherwise ignored.
type Notifier struct {
	enabled bool
	send    Sender
	logger  *slog.Logger
}

// New creates a Notifier. A nil send uses Desktop.
func New(enabled bool, send Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if send == nil {
		send = Desktop
	}
	return &Notifier{enabled: enabled, send: send, logger: logger}
}

// BatchDone announces the result of a write.
func (n *Notifier) BatchDone(succeeded, failed int) {
	if n == nil || !n.enabled {
		return
	}
	title := "shiftcal"
	msg := fmt.Sprintf("Added %d shift(s) to your calendar", succeeded)
	if failed > 0 {
		msg = fmt.Sprintf("Added %d shift(s), %d failed", succeeded, failed)
	}
	if err := n.send(title, msg); err != nil {
		n.logger.Debug("desktop notification failed", "error", err)
	}
}
