// Package notifier posts optimizer actions to a Slack channel.
package notifier

import (
	"log/slog"

	"github.com/slack-go/slack"
)

// SlackNotifier posts messages to a single channel. A nil *SlackNotifier is a
// valid no-op notifier, so callers don't need to guard for a missing token.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	logger  *slog.Logger
}

// New returns a SlackNotifier, or nil when no token is configured.
func New(token, channel string, logger *slog.Logger) *SlackNotifier {
	if token == "" || channel == "" {
		return nil
	}
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
		logger:  logger,
	}
}

// Notify posts the message. Failures are logged, never returned: notification
// is best-effort and must not fail the optimization run.
func (n *SlackNotifier) Notify(message string) {
	if n == nil {
		return
	}
	if _, _, err := n.client.PostMessage(n.channel, slack.MsgOptionText(message, false)); err != nil {
		n.logger.Error("failed to post notification", slog.Any("err", err))
	}
}
