// Package notifier delivers registration codes to branch administrators.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kiosk/internal/otp/models"
	"kiosk/pkg/email"
)

// ErrNoRecipients is returned when a branch has no administrators configured.
var ErrNoRecipients = errors.New("branch has no admin recipients")

// LogNotifier writes each delivery to the structured log. It stands in for a
// real mail or SMS transport.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Deliver(ctx context.Context, recipients []string, code string, info models.Notification) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	for _, to := range recipients {
		n.logger.InfoContext(ctx, "otp code delivered",
			"to", to,
			"subject", Subject(info),
			"body", Body(to, code, info),
		)
	}
	return nil
}

func Subject(info models.Notification) string {
	return fmt.Sprintf("Kiosk registration code for %s", info.BranchName)
}

func Body(to, code string, info models.Notification) string {
	device := info.DeviceName
	if device == "" {
		device = "an unrecognized kiosk"
	}
	body := fmt.Sprintf("Hi %s,\n\n%s (%s) is asking to be registered at %s.\nCode: %s\nExpires: %s\n",
		email.GreetingName(to), device, info.DeviceType, info.BranchName, code,
		info.ExpiresAt.Format("15:04 MST"))
	if info.Location != nil {
		body += fmt.Sprintf("Reported location: %.5f, %.5f\n", info.Location.Lat, info.Location.Lon)
	}
	return body
}
