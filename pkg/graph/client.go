package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/optiononetech/teams-chat-export/internal/errors"
	"github.com/optiononetech/teams-chat-export/internal/retry"
	"github.com/optiononetech/teams-chat-export/pkg/circuitbreaker"
	"github.com/optiononetech/teams-chat-export/pkg/graph/types"

	"github.com/sirupsen/logrus"
)

// Client is the Microsoft Graph surface the export pipeline needs.
type Client interface {
	GetMe(ctx context.Context) (*types.User, error)
	ListChats(ctx context.Context) ([]types.Chat, error)
	GetChat(ctx context.Context, chatID string) (*types.Chat, error)
	ListChatMembers(ctx context.Context, chatID string) ([]types.ChatMember, error)
	ListChatMessages(ctx context.Context, chatID, filter, nextLink string) (*types.MessagesPage, error)
	GetChatMessage(ctx context.Context, chatID, messageID string) (*types.ChatMessage, error)
	ListHostedContents(ctx context.Context, chatID, messageID string) ([]types.HostedContent, error)
	GetHostedContent(ctx context.Context, chatID, messageID, contentID string) ([]byte, error)
	GetMyDriveItemContentByPath(ctx context.Context, itemPath string) ([]byte, error)
	ListSharedWithMe(ctx context.Context) ([]types.DriveItem, error)
	GetSiteDriveItemContent(ctx context.Context, siteID, itemID string) ([]byte, error)
}

type GraphClient struct {
	baseURL     string
	accessToken string
	pageSize    int
	client      *http.Client
	backoff     *retry.Backoff
	breaker     *circuitbreaker.CircuitBreaker
	logger      *logrus.Logger
}

type Options struct {
	BaseURL            string
	AccessToken        string
	PageSize           int
	HTTPClient         *http.Client
	Backoff            retry.BackoffConfig
	BreakerMaxFailures uint32
	BreakerCooldown    time.Duration
	Logger             *logrus.Logger
}

func NewClient(opts Options) Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetLevel(logrus.WarnLevel)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Backoff.MaxAttempts <= 0 {
		opts.Backoff = retry.DefaultBackoffConfig()
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	return &GraphClient{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		accessToken: opts.AccessToken,
		pageSize:    opts.PageSize,
		client:      opts.HTTPClient,
		backoff:     retry.NewBackoff(opts.Backoff),
		breaker:     circuitbreaker.New("graph-api", opts.BreakerMaxFailures, opts.BreakerCooldown, opts.Logger),
		logger:      opts.Logger,
	}
}

func (c *GraphClient) GetMe(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.getJSON(ctx, c.baseURL+"/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *GraphClient) ListChats(ctx context.Context) ([]types.Chat, error) {
	endpoint := fmt.Sprintf("%s/me/chats?$top=%d", c.baseURL, c.pageSize)

	var chats []types.Chat
	for endpoint != "" {
		var page types.ChatsPage
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		chats = append(chats, page.Value...)
		endpoint = page.NextLink
	}
	return chats, nil
}

func (c *GraphClient) GetChat(ctx context.Context, chatID string) (*types.Chat, error) {
	endpoint := fmt.Sprintf("%s/chats/%s", c.baseURL, url.PathEscape(chatID))

	var chat types.Chat
	if err := c.getJSON(ctx, endpoint, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *GraphClient) ListChatMembers(ctx context.Context, chatID string) ([]types.ChatMember, error) {
	endpoint := fmt.Sprintf("%s/chats/%s/members", c.baseURL, url.PathEscape(chatID))

	var members []types.ChatMember
	for endpoint != "" {
		var page types.MembersPage
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		members = append(members, page.Value...)
		endpoint = page.NextLink
	}
	return members, nil
}

// ListChatMessages fetches one page of messages. When nextLink is set it
// is followed verbatim; otherwise a fresh listing is started with the
// optional OData filter applied.
func (c *GraphClient) ListChatMessages(ctx context.Context, chatID, filter, nextLink string) (*types.MessagesPage, error) {
	endpoint := nextLink
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/chats/%s/messages?$top=%d", c.baseURL, url.PathEscape(chatID), c.pageSize)
		if filter != "" {
			endpoint += "&$filter=" + url.QueryEscape(filter)
		}
	}

	var page types.MessagesPage
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *GraphClient) GetChatMessage(ctx context.Context, chatID, messageID string) (*types.ChatMessage, error) {
	endpoint := fmt.Sprintf("%s/chats/%s/messages/%s", c.baseURL, url.PathEscape(chatID), url.PathEscape(messageID))

	var msg types.ChatMessage
	if err := c.getJSON(ctx, endpoint, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *GraphClient) ListHostedContents(ctx context.Context, chatID, messageID string) ([]types.HostedContent, error) {
	endpoint := fmt.Sprintf("%s/chats/%s/messages/%s/hostedContents",
		c.baseURL, url.PathEscape(chatID), url.PathEscape(messageID))

	var contents []types.HostedContent
	for endpoint != "" {
		var page types.HostedContentsPage
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		contents = append(contents, page.Value...)
		endpoint = page.NextLink
	}
	return contents, nil
}

func (c *GraphClient) GetHostedContent(ctx context.Context, chatID, messageID, contentID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/chats/%s/messages/%s/hostedContents/%s/$value",
		c.baseURL, url.PathEscape(chatID), url.PathEscape(messageID), url.PathEscape(contentID))
	return c.getBytes(ctx, endpoint)
}

// GetMyDriveItemContentByPath downloads a file from the signed-in user's
// own drive, addressed by its path relative to the drive root.
func (c *GraphClient) GetMyDriveItemContentByPath(ctx context.Context, itemPath string) ([]byte, error) {
	itemPath = strings.TrimPrefix(itemPath, "/")
	escaped := (&url.URL{Path: itemPath}).EscapedPath()
	endpoint := fmt.Sprintf("%s/me/drive/root:/%s:/content", c.baseURL, escaped)
	return c.getBytes(ctx, endpoint)
}

func (c *GraphClient) ListSharedWithMe(ctx context.Context) ([]types.DriveItem, error) {
	endpoint := c.baseURL + "/me/drive/sharedWithMe"

	var items []types.DriveItem
	for endpoint != "" {
		var page types.DriveItemsPage
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Value...)
		endpoint = page.NextLink
	}
	return items, nil
}

// GetSiteDriveItemContent downloads a file shared from another site's
// drive, addressed by the owning site and the shared item identifier.
func (c *GraphClient) GetSiteDriveItemContent(ctx context.Context, siteID, itemID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/sites/%s/drive/items/%s/content",
		c.baseURL, url.PathEscape(siteID), url.PathEscape(itemID))
	return c.getBytes(ctx, endpoint)
}

func (c *GraphClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	body, err := c.getBytes(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *GraphClient) getBytes(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte

	attempt := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return apperrors.WrapRetryable(err, apperrors.ErrCodeGraphAPI, "graph request failed")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return apperrors.WrapRetryable(err, apperrors.ErrCodeGraphAPI, "failed to read response body")
		}

		// Redirects to pre-authenticated download URLs are followed by
		// the transport, so anything outside 2xx is an API error.
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"status":   resp.StatusCode,
			}).Warn("Graph API returned error status")
			return apperrors.NewGraphError(endpoint, resp.StatusCode,
				fmt.Errorf("graph API error: status %d, body: %s", resp.StatusCode, truncate(string(data), 512)))
		}

		body = data
		return nil
	}

	// Each attempt runs through the breaker. A rejected call is not an
	// AppError, so IsRetryable stops the backoff loop immediately.
	operation := func() error {
		return c.breaker.Execute(ctx, attempt)
	}

	if err := c.backoff.RetryWithPredicate(ctx, operation, apperrors.IsRetryable); err != nil {
		return nil, err
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
