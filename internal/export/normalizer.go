package export

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/optiononetech/teams-chat-export/internal/constants"
	apperrors "github.com/optiononetech/teams-chat-export/internal/errors"
	"github.com/optiononetech/teams-chat-export/internal/metrics"
	"github.com/optiononetech/teams-chat-export/pkg/assets"
	"github.com/optiononetech/teams-chat-export/pkg/graph"
	"github.com/optiononetech/teams-chat-export/pkg/graph/types"

	"github.com/sirupsen/logrus"
)

const attachmentTypeReference = "messageReference"

// Renderer turns chat messages into self-contained HTML. Remote asset
// references in message bodies are rewritten to files persisted under
// the export's asset store, and referenced messages are spliced in as
// nested reply blocks.
type Renderer struct {
	client      graph.Client
	store       assets.Store
	resolver    *attachmentResolver
	baseURL     string
	principalID string
	maxDepth    int
	logger      *logrus.Logger
}

func NewRenderer(client graph.Client, store assets.Store, resolver *attachmentResolver, baseURL, principalID string, maxDepth int, logger *logrus.Logger) *Renderer {
	if maxDepth <= 0 {
		maxDepth = constants.DefaultMaxReplyDepth
	}
	if baseURL == "" {
		baseURL = constants.DefaultGraphAPIBaseURL
	}
	return &Renderer{
		client:      client,
		store:       store,
		resolver:    resolver,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		principalID: principalID,
		maxDepth:    maxDepth,
		logger:      logger,
	}
}

// RenderMessage renders one message as a top-level entry. Messages sent
// by the principal carry a distinguishing class.
func (r *Renderer) RenderMessage(ctx context.Context, chatID string, msg *types.ChatMessage) (string, error) {
	class := "message"
	if r.principalID != "" && senderID(msg) == r.principalID {
		class = "message mine"
	}
	return r.render(ctx, chatID, msg, class, map[string]bool{}, 0)
}

// render tracks the reply chain being expanded in visited. Only
// ancestors stay marked: a message may be referenced from sibling
// branches, so the entry is removed once its subtree is done.
func (r *Renderer) render(ctx context.Context, chatID string, msg *types.ChatMessage, class string, visited map[string]bool, depth int) (string, error) {
	visited[msg.ID] = true
	defer delete(visited, msg.ID)

	body, err := r.normalizeBody(ctx, chatID, msg, visited, depth)
	if err != nil {
		return "", err
	}
	return renderMessageHTML(msg, class, body), nil
}

// normalizeBody rewrites the message body for offline viewing. Hosted
// content is handled before attachments: reply splicing can introduce
// placeholders into content that was just rewritten.
func (r *Renderer) normalizeBody(ctx context.Context, chatID string, msg *types.ChatMessage, visited map[string]bool, depth int) (string, error) {
	content := msg.Body.Content

	content, err := r.rewriteHostedContent(ctx, chatID, msg.ID, content)
	if err != nil {
		return "", err
	}

	for _, att := range msg.Attachments {
		switch {
		case att.ContentType == attachmentTypeReference:
			content, err = r.spliceReply(ctx, chatID, content, att, visited, depth)
		case att.ContentURL != nil && *att.ContentURL != "":
			content, err = r.spliceFile(ctx, msg, content, att)
		default:
			err = apperrors.New(apperrors.ErrCodeUnsupportedAttachment,
				fmt.Sprintf("attachment %s has unsupported shape (contentType=%q, no content URL)", att.ID, att.ContentType))
		}
		if err != nil {
			return "", err
		}
	}

	return content, nil
}

// hostedContentsPrefix matches against the API base the body URLs were
// issued for, which follows the configured client base URL.
func (r *Renderer) hostedContentsPrefix(chatID, messageID string) string {
	return fmt.Sprintf("%s/chats/%s/messages/%s/hostedContents", r.baseURL, chatID, messageID)
}

func (r *Renderer) rewriteHostedContent(ctx context.Context, chatID, messageID, content string) (string, error) {
	prefix := r.hostedContentsPrefix(chatID, messageID)
	if !strings.Contains(content, prefix) {
		return content, nil
	}

	items, err := r.client.ListHostedContents(ctx, chatID, messageID)
	if err != nil {
		return "", err
	}

	for _, item := range items {
		itemURL := prefix + "/" + item.ID

		idx := strings.Index(content, itemURL)
		if idx < 0 {
			r.logger.WithFields(logrus.Fields{
				"message_id": messageID,
				"content_id": item.ID,
			}).Debug("Hosted content not referenced in body")
			continue
		}

		tag := precedingTag(content[:idx])
		name, err := r.store.HostedContentName(item.ID, tag)
		if err != nil {
			return "", err
		}

		if !r.store.Exists(name) {
			data, err := r.client.GetHostedContent(ctx, chatID, messageID, item.ID)
			if err != nil {
				return "", apperrors.Wrap(err, apperrors.ErrCodeAssetDownload,
					fmt.Sprintf("failed to download hosted content %s", item.ID))
			}
			if err := r.store.Write(name, data); err != nil {
				return "", err
			}
			metrics.IncrementCounter("export_assets_persisted_total", map[string]string{"kind": "hosted_content"}, "Assets persisted")
		}

		content = strings.ReplaceAll(content, itemURL+"/$value", r.store.RelativeHref(name))
	}

	return content, nil
}

// precedingTag extracts the name of the HTML element whose attribute
// value contains the URL found right after head.
func precedingTag(head string) string {
	open := strings.LastIndex(head, "<")
	if open < 0 {
		return ""
	}
	tag := head[open+1:]
	if end := strings.IndexAny(tag, " \t\n>"); end >= 0 {
		tag = tag[:end]
	}
	return tag
}

func (r *Renderer) spliceReply(ctx context.Context, chatID, content string, att types.Attachment, visited map[string]bool, depth int) (string, error) {
	if att.Content == nil {
		return "", apperrors.New(apperrors.ErrCodeUnsupportedAttachment,
			fmt.Sprintf("message reference %s has no payload", att.ID))
	}

	var ref types.MessageReferenceContent
	if err := json.Unmarshal([]byte(*att.Content), &ref); err != nil {
		return "", fmt.Errorf("failed to decode message reference %s: %w", att.ID, err)
	}

	if visited[ref.MessageID] {
		return "", apperrors.NewCyclicReferenceError(ref.MessageID)
	}
	if depth >= r.maxDepth {
		return "", apperrors.NewCyclicReferenceError(ref.MessageID)
	}

	reply, err := r.client.GetChatMessage(ctx, chatID, ref.MessageID)
	if err != nil {
		return "", err
	}

	rendered, err := r.render(ctx, chatID, reply, "reply", visited, depth+1)
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(content, attachmentPlaceholder(att.ID), rendered), nil
}

func (r *Renderer) spliceFile(ctx context.Context, msg *types.ChatMessage, content string, att types.Attachment) (string, error) {
	fileName := att.ID
	if att.Name != nil && *att.Name != "" {
		fileName = *att.Name
	}
	name := r.store.AttachmentName(att.ID, fileName)

	if !r.store.Exists(name) {
		data, err := r.resolver.Resolve(ctx, msg, att)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeAssetDownload,
				fmt.Sprintf("failed to download attachment %s", att.ID))
		}
		if data == nil {
			missing := fmt.Sprintf(`<a href="#">*MISSING* %s</a>`, html.EscapeString(fileName))
			return strings.ReplaceAll(content, attachmentPlaceholder(att.ID), missing), nil
		}
		if err := r.store.Write(name, data); err != nil {
			return "", err
		}
		metrics.IncrementCounter("export_assets_persisted_total", map[string]string{"kind": "attachment"}, "Assets persisted")
	}

	href := r.store.RelativeHref(name)
	var replacement string
	if assets.IsImage(name) {
		replacement = fmt.Sprintf(`<img src="%s" alt="%s"/>`, href, html.EscapeString(fileName))
	} else {
		replacement = fmt.Sprintf(`<a href="%s">%s</a>`, href, html.EscapeString(fileName))
	}

	return strings.ReplaceAll(content, attachmentPlaceholder(att.ID), replacement), nil
}

func attachmentPlaceholder(id string) string {
	return fmt.Sprintf(`<attachment id="%s"></attachment>`, id)
}
