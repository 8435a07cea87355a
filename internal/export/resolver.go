package export

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/optiononetech/teams-chat-export/internal/constants"
	"github.com/optiononetech/teams-chat-export/pkg/graph"
	"github.com/optiononetech/teams-chat-export/pkg/graph/types"

	"github.com/sirupsen/logrus"
)

// attachmentResolver fetches attachment bytes from the drive that holds
// them. Files the principal uploaded live in their own drive; everything
// else has to be located through the shared-with-me listing.
type attachmentResolver struct {
	client graph.Client
	logger *logrus.Logger

	mu        sync.Mutex
	principal *types.User
}

func newAttachmentResolver(client graph.Client, logger *logrus.Logger) *attachmentResolver {
	return &attachmentResolver{
		client: client,
		logger: logger,
	}
}

func (r *attachmentResolver) me(ctx context.Context) (*types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.principal != nil {
		return r.principal, nil
	}
	user, err := r.client.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}
	r.principal = user
	return user, nil
}

// Resolve returns the attachment's bytes, or (nil, nil) when the file
// cannot be located in any drive visible to the principal.
func (r *attachmentResolver) Resolve(ctx context.Context, msg *types.ChatMessage, att types.Attachment) ([]byte, error) {
	me, err := r.me(ctx)
	if err != nil {
		return nil, err
	}

	if msg.From != nil && msg.From.User != nil && msg.From.User.ID == me.ID {
		return r.resolveOwn(ctx, att)
	}
	return r.resolveShared(ctx, att)
}

// resolveOwn fetches a file the principal uploaded. The content URL
// carries a fixed site/drive prefix before the path that is addressable
// relative to the drive root.
func (r *attachmentResolver) resolveOwn(ctx context.Context, att types.Attachment) ([]byte, error) {
	if att.ContentURL == nil {
		return nil, fmt.Errorf("attachment %s has no content URL", att.ID)
	}

	parsed, err := url.Parse(*att.ContentURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse attachment URL: %w", err)
	}

	segments := strings.Split(strings.TrimPrefix(parsed.Path, "/"), "/")
	if len(segments) <= constants.DriveURLPrefixSegments {
		return nil, fmt.Errorf("attachment URL %q has no drive-relative path", *att.ContentURL)
	}
	relPath := strings.Join(segments[constants.DriveURLPrefixSegments:], "/")

	r.logger.WithFields(logrus.Fields{
		"attachment_id": att.ID,
		"path":          relPath,
	}).Debug("Fetching attachment from own drive")

	return r.client.GetMyDriveItemContentByPath(ctx, relPath)
}

// resolveShared locates a file shared by another participant. Shared
// item web URLs embed the attachment ID in braces, but the exact shape
// varies, so matching falls through three tiers from strict to loose.
func (r *attachmentResolver) resolveShared(ctx context.Context, att types.Attachment) ([]byte, error) {
	shared, err := r.client.ListSharedWithMe(ctx)
	if err != nil {
		return nil, err
	}

	needle := "{" + strings.ToUpper(att.ID) + "}"
	tiers := []func(string) bool{
		func(webURL string) bool { return webURL == needle },
		func(webURL string) bool { return strings.Contains(webURL, needle) },
		func(webURL string) bool { return strings.HasPrefix(webURL, needle) },
	}

	var match *types.DriveItem
	for _, tier := range tiers {
		for i := range shared {
			decoded, err := url.QueryUnescape(shared[i].WebURL)
			if err != nil {
				decoded = shared[i].WebURL
			}
			if tier(strings.ToUpper(decoded)) {
				match = &shared[i]
				break
			}
		}
		if match != nil {
			break
		}
	}

	if match == nil {
		r.logger.WithField("attachment_id", att.ID).Warn("Attachment not found in shared items")
		return nil, nil
	}

	if match.RemoteItem == nil || match.RemoteItem.SharePointIds == nil || match.RemoteItem.SharePointIds.SiteID == "" {
		r.logger.WithField("attachment_id", att.ID).Warn("Shared item has no site reference")
		return nil, nil
	}

	return r.client.GetSiteDriveItemContent(ctx, match.RemoteItem.SharePointIds.SiteID, match.ID)
}
