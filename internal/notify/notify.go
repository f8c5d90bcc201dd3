// Package notify provides cross-platform desktop notifications for job
// outcomes. It uses github.com/gen2brain/beeep for cross-platform
// notification support.
package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/logging"
)

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	mu      sync.RWMutex
	enabled bool
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent.
	Enabled bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{Enabled: true}
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Notifier{logger: logger, enabled: cfg.Enabled}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// PreprocessComplete announces a finished cleaning run.
func (n *Notifier) PreprocessComplete(rowsAfter, issuesResolved int) {
	if !n.IsEnabled() {
		return
	}
	message := fmt.Sprintf("Preprocessing finished: %d rows, %d issues resolved.", rowsAfter, issuesResolved)
	if err := n.send("Preprocessing Complete", message); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send preprocessing notification")
	}
}

// TrainingComplete announces a finished training run.
func (n *Notifier) TrainingComplete(bestModel string, testScore float64) {
	if !n.IsEnabled() {
		return
	}
	message := fmt.Sprintf("Best model %s scored %.3f on the test set.", truncate(bestModel, 40), testScore)
	if err := n.send("Training Complete", message); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send training notification")
	}
}

// JobFailed announces a failed run of either job kind.
func (n *Notifier) JobFailed(jobName, errorMsg string) {
	if !n.IsEnabled() {
		return
	}
	title := fmt.Sprintf("%s Failed", jobName)
	if err := n.send(title, truncate(errorMsg, 100)); err != nil {
		n.logger.Warn().Err(err).Str("job", jobName).Msg("Failed to send failure notification")
	}
}

// Alert sends a prominent notification for critical issues, such as the
// engine process dying.
func (n *Notifier) Alert(message string) {
	if !n.IsEnabled() {
		return
	}
	title := constants.AppName + " Alert"
	if err := beeep.Alert(title, message, ""); err != nil {
		// Fall back to a regular notification
		if err := n.send(title, message); err != nil {
			n.logger.Error().Err(err).Str("message", message).Msg("Failed to send alert notification")
		}
	}
}

// Beep plays an audible beep without a visual notification.
func (n *Notifier) Beep() {
	if !n.IsEnabled() {
		return
	}
	_ = beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
}

// send is the internal method that actually sends the notification.
// beeep.Notify is cross-platform:
// - Windows: toast notifications
// - macOS: NSUserNotificationCenter
// - Linux: D-Bus notifications
func (n *Notifier) send(title, message string) error {
	return beeep.Notify(title, message, "")
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
