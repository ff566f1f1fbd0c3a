// Package notify posts project lifecycle notifications to Slack.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/moseshope/scraping-admin-dashboard/internal/project"
)

// Notifier is the notification surface the reconciler depends on. Failures
// must be swallowed by implementations; a dead notifier never blocks a sweep.
type Notifier interface {
	ProjectFinished(ctx context.Context, p *project.Project)
}

// SlackAPI is the minimal Slack API surface needed here.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts to a fixed channel via the Slack Web API.
type Slack struct {
	api     SlackAPI
	channel string
	logger  zerolog.Logger
}

// NewSlack creates a Slack notifier posting to channel.
func NewSlack(api SlackAPI, channel string, logger zerolog.Logger) *Slack {
	return &Slack{
		api:     api,
		channel: channel,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// ProjectFinished announces a project reaching a terminal status. Errors are
// logged, not returned.
func (s *Slack) ProjectFinished(ctx context.Context, p *project.Project) {
	var icon string
	switch p.Status {
	case project.StatusCompleted:
		icon = ":white_check_mark:"
	case project.StatusFailed:
		icon = ":x:"
	default:
		return
	}

	text := fmt.Sprintf("%s Scraping project *%s* finished with status *%s* (%d ids across %d tasks).",
		icon, p.Name, p.Status, p.QueryCount, len(p.Tasks))

	_, _, err := s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	if err != nil {
		s.logger.Error().Err(err).Str("project", p.ID).Msg("slack notification failed")
		return
	}
	s.logger.Debug().Str("project", p.ID).Str("status", string(p.Status)).Msg("slack notification sent")
}

// Noop is a Notifier that does nothing, used when Slack is not configured.
type Noop struct{}

func (Noop) ProjectFinished(ctx context.Context, p *project.Project) {}
