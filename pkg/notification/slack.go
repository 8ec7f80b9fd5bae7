package notification

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts one message per terminal run transition to a fixed
// channel, via the slack-go web API client.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(token), channel: channel}
}

func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	text := formatMessage(event)
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notification: posting to slack: %w", err)
	}
	return nil
}

func formatMessage(event Event) string {
	msg := fmt.Sprintf("[%s] run %s (%s) → *%s*", event.RepoURL, event.RunID, event.RunKey, event.Status)
	if event.PRURL != "" {
		msg += fmt.Sprintf(" — %s", event.PRURL)
	}
	if event.Reason != "" {
		msg += fmt.Sprintf(" (%s)", event.Reason)
	}
	return msg
}
