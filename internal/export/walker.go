package export

import (
	"context"
	"fmt"
	"time"

	"github.com/optiononetech/teams-chat-export/internal/metrics"
	"github.com/optiononetech/teams-chat-export/internal/models"
	"github.com/optiononetech/teams-chat-export/internal/privacy"
	"github.com/optiononetech/teams-chat-export/internal/progress"
	"github.com/optiononetech/teams-chat-export/pkg/graph"
	"github.com/optiononetech/teams-chat-export/pkg/graph/types"

	"github.com/sirupsen/logrus"
)

// Walker pages through a chat's messages inside a time window and
// renders each one, publishing progress as it goes.
type Walker struct {
	client   graph.Client
	renderer *Renderer
	tracker  *progress.Tracker
	logger   *logrus.Logger
}

func NewWalker(client graph.Client, renderer *Renderer, tracker *progress.Tracker, logger *logrus.Logger) *Walker {
	return &Walker{
		client:   client,
		renderer: renderer,
		tracker:  tracker,
		logger:   logger,
	}
}

// windowFilter builds the listing filter for a window. The lower bound
// is exclusive and the upper bound, normalized to the end of its day,
// is again exclusive, which makes the caller's until date inclusive.
func windowFilter(since, until time.Time) (string, time.Time) {
	end := endOfDay(until)
	filter := fmt.Sprintf("lastModifiedDateTime gt %s and lastModifiedDateTime lt %s",
		since.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	return filter, end
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, t.Location())
}

func inWindow(msg types.ChatMessage, since, end time.Time) bool {
	ts := msg.CreatedDateTime
	if msg.LastModifiedDateTime != nil {
		ts = *msg.LastModifiedDateTime
	}
	return ts.After(since) && ts.Before(end)
}

// Walk renders every message of the chat inside the window, preserving
// upstream page order. Every page is filtered in full: the listing
// order is an upstream implementation detail that is not relied on.
func (w *Walker) Walk(ctx context.Context, token, chatID string, since, until time.Time) ([]models.RenderedMessage, error) {
	filter, end := windowFilter(since, until)

	w.logger.WithFields(logrus.Fields{
		"chat_id": privacy.MaskChatID(chatID),
		"since":   since.Format(time.RFC3339),
		"until":   end.Format(time.RFC3339),
	}).Info("Walking chat messages")

	var rendered []models.RenderedMessage
	nextLink := ""
	page := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w.tracker.SetPhase(token, progress.PhaseFetching)

		start := time.Now()
		msgs, err := w.client.ListChatMessages(ctx, chatID, filter, nextLink)
		if err != nil {
			return nil, err
		}
		page++
		metrics.IncrementCounter("export_pages_walked_total", nil, "Message pages fetched")
		metrics.RecordTimer("export_page_fetch_duration", time.Since(start), nil, "Message page fetch duration")

		w.tracker.SetPhase(token, progress.PhaseRendering)

		for i := range msgs.Value {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			msg := &msgs.Value[i]
			if !inWindow(msgs.Value[i], since, end) {
				continue
			}

			html, err := w.renderer.RenderMessage(ctx, chatID, msg)
			if err != nil {
				return nil, fmt.Errorf("failed to render message %s: %w", msg.ID, err)
			}

			rm := models.RenderedMessage{
				ID:        msg.ID,
				From:      senderName(msg),
				FromID:    senderID(msg),
				CreatedAt: msg.CreatedDateTime,
				EditedAt:  editedAt(msg),
				Kind:      msg.MessageType,
				HTML:      html,
			}
			rendered = append(rendered, rm)
			w.tracker.Publish(token, rm)
		}

		if msgs.NextLink == "" {
			break
		}
		nextLink = msgs.NextLink
	}

	w.logger.WithFields(logrus.Fields{
		"chat_id":  privacy.MaskChatID(chatID),
		"pages":    page,
		"messages": len(rendered),
	}).Info("Chat walk completed")

	return rendered, nil
}
