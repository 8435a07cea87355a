package graph

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/optiononetech/teams-chat-export/internal/retry"
	"github.com/optiononetech/teams-chat-export/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client := NewClient(Options{
		BaseURL:     server.URL,
		AccessToken: "test-token",
		PageSize:    2,
		Backoff: retry.BackoffConfig{
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
			MaxAttempts:  3,
		},
		Logger: logger,
	})
	return client, server
}

func TestGetMe(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"u1","displayName":"Ada Lovelace"}`))
	}))

	user, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Ada Lovelace", user.DisplayName)
}

func TestListChats_FollowsNextLink(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/me/chats", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(`{"value":[{"id":"chat-3","chatType":"group"}]}`))
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("$top"))
		_, _ = w.Write([]byte(`{
			"value":[{"id":"chat-1","chatType":"oneOnOne"},{"id":"chat-2","chatType":"group"}],
			"@odata.nextLink":"` + server.URL + `/me/chats?page=2"
		}`))
	})
	client, srv := newTestClient(t, mux)
	server = srv

	chats, err := client.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, "chat-1", chats[0].ID)
	assert.Equal(t, "chat-3", chats[2].ID)
}

func TestListChatMessages_FilterAndCursor(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/chat-1/messages", r.URL.Path)
		assert.Equal(t, "lastModifiedDateTime gt 2024-01-01T00:00:00Z", r.URL.Query().Get("$filter"))
		_, _ = w.Write([]byte(`{
			"value":[{"id":"m1","messageType":"message","createdDateTime":"2024-01-02T10:00:00Z","body":{"contentType":"html","content":"<p>hi</p>"}}],
			"@odata.nextLink":"https://next.example/cursor"
		}`))
	}))
	_ = server

	page, err := client.ListChatMessages(context.Background(), "chat-1", "lastModifiedDateTime gt 2024-01-01T00:00:00Z", "")
	require.NoError(t, err)
	require.Len(t, page.Value, 1)
	assert.Equal(t, "m1", page.Value[0].ID)
	assert.Equal(t, "https://next.example/cursor", page.NextLink)
}

func TestListChatMessages_NextLinkUsedVerbatim(t *testing.T) {
	var gotPath string
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))

	_, err := client.ListChatMessages(context.Background(), "chat-1", "ignored", server.URL+"/chats/chat-1/messages?$skiptoken=abc")
	require.NoError(t, err)
	assert.Equal(t, "/chats/chat-1/messages?$skiptoken=abc", gotPath)
}

func TestGetHostedContent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/chat-1/messages/m1/hostedContents/hc1/$value", r.URL.Path)
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))

	data, err := client.GetHostedContent(context.Background(), "chat-1", "m1", "hc1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data)
}

func TestGetMyDriveItemContentByPath(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/drive/root:/Microsoft Teams Chat Files/photo.png:/content", r.URL.Path)
		_, _ = w.Write([]byte("png-bytes"))
	}))

	data, err := client.GetMyDriveItemContentByPath(context.Background(), "Microsoft Teams Chat Files/photo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestGetSiteDriveItemContent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/site-1/drive/items/i1/content", r.URL.Path)
		_, _ = w.Write([]byte("shared-bytes"))
	}))

	data, err := client.GetSiteDriveItemContent(context.Background(), "site-1", "i1")
	require.NoError(t, err)
	assert.Equal(t, []byte("shared-bytes"), data)
}

func TestListHostedContents(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/chat-1/messages/m1/hostedContents", r.URL.Path)
		_, _ = w.Write([]byte(`{"value":[{"id":"hc1"},{"id":"hc2"}]}`))
	}))

	contents, err := client.ListHostedContents(context.Background(), "chat-1", "m1")
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, "hc1", contents[0].ID)
}

func TestRetry_ServerErrorThenSuccess(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "throttled", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","displayName":"Ada"}`))
	}))

	user, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))

	_, err := client.GetChat(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBreaker_OpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "throttled", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client := NewClient(Options{
		BaseURL:     server.URL,
		AccessToken: "test-token",
		Backoff: retry.BackoffConfig{
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
			MaxAttempts:  3,
		},
		BreakerMaxFailures: 2,
		BreakerCooldown:    time.Minute,
		Logger:             logger,
	})

	_, err := client.GetMe(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	_, err = client.GetMe(context.Background())
	require.Error(t, err)
	assert.True(t, circuitbreaker.IsOpenError(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestListChatMembers(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chats/chat-1/members", r.URL.Path)
		_, _ = w.Write([]byte(`{"value":[
			{"id":"mem1","displayName":"Ada Lovelace","roles":["owner"]},
			{"id":"mem2","displayName":"Grace Hopper"}
		]}`))
	}))

	members, err := client.ListChatMembers(context.Background(), "chat-1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Ada Lovelace", members[0].DisplayName)
}
