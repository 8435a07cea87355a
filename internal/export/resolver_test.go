package export

import (
	"context"
	"io"
	"testing"

	"github.com/optiononetech/teams-chat-export/pkg/graph/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(s string) *string { return &s }

func msgFrom(userID string) *types.ChatMessage {
	return &types.ChatMessage{
		ID:   "msg-1",
		From: &types.IdentitySet{User: &types.Identity{ID: userID, DisplayName: "Someone"}},
	}
}

func TestResolve_OwnDriveStripsPrefix(t *testing.T) {
	client := &mockGraphClient{}
	client.On("GetMe", mock.Anything).Return(&types.User{ID: "me"}, nil)
	client.On("GetMyDriveItemContentByPath", mock.Anything, "Microsoft Teams Chat Files/photo.png").
		Return([]byte("bytes"), nil)

	r := newAttachmentResolver(client, testLogger())
	att := types.Attachment{
		ID:         "att-1",
		ContentURL: strPtr("https://contoso-my.sharepoint.com/personal/me_contoso_com/Documents/Microsoft%20Teams%20Chat%20Files/photo.png"),
	}

	data, err := r.Resolve(context.Background(), msgFrom("me"), att)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), data)
	client.AssertExpectations(t)
}

func TestResolve_OwnDriveNoRelativePath(t *testing.T) {
	client := &mockGraphClient{}
	client.On("GetMe", mock.Anything).Return(&types.User{ID: "me"}, nil)

	r := newAttachmentResolver(client, testLogger())
	att := types.Attachment{
		ID:         "att-1",
		ContentURL: strPtr("https://contoso-my.sharepoint.com/personal/me_contoso_com"),
	}

	_, err := r.Resolve(context.Background(), msgFrom("me"), att)
	assert.Error(t, err)
}

func sharedItem(id, webURL, siteID string) types.DriveItem {
	item := types.DriveItem{ID: id, WebURL: webURL}
	if siteID != "" {
		item.RemoteItem = &types.RemoteItem{
			ID:            "remote-" + id,
			SharePointIds: &types.SharePointIds{SiteID: siteID},
		}
	}
	return item
}

func TestResolve_SharedExactMatch(t *testing.T) {
	client := &mockGraphClient{}
	client.On("GetMe", mock.Anything).Return(&types.User{ID: "me"}, nil)
	client.On("ListSharedWithMe", mock.Anything).Return([]types.DriveItem{
		sharedItem("item-1", "{ATT-1}", "site-1"),
	}, nil)
	client.On("GetSiteDriveItemContent", mock.Anything, "site-1", "item-1").Return([]byte("shared"), nil)

	r := newAttachmentResolver(client, testLogger())
	att := types.Attachment{ID: "att-1"}

	data, err := r.Resolve(context.Background(), msgFrom("other"), att)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), data)
}

func TestResolve_SharedContainsMatch(t *testing.T) {
	client := &mockGraphClient{}
	client.On("GetMe", mock.Anything).Return(&types.User{ID: "me"}, nil)
	client.On("ListSharedWithMe", mock.Anything).Return([]types.DriveItem{
		sharedItem("other-item", "https://contoso.sharepoint.com/no-match", "site-9"),
		sharedItem("item-2", "https://contoso.sharepoint.com/sites/x/Shared%20Documents/%7Batt-2%7D/report.pdf", "site-2"),
	}, nil)
	client.On("GetSiteDriveItemContent", mock.Anything, "site-2", "item-2").Return([]byte("pdf"), nil)

	r := newAttachmentResolver(client, testLogger())
	att := types.Attachment{ID: "ATT-2"}

	data, err := r.Resolve(context.Background(), msgFrom("other"), att)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), data)
}

func TestResolve_SharedPrefixMatch(t *testing.T) {
	client := &mockGraphClient{}
	client.On("GetMe", mock.Anything).Return(&types.User{ID: "me"}, nil)
	client.On("ListSharedWithMe", mock.Anything).Return([]types.DriveItem{
		sharedItem("item-3", "{att-3}-suffix", "site-3"),
	}, nil)
	client.On("GetSiteDriveItemContent", mock.Anything, "site-3", "item-3").Return([]byte("doc"), nil)

	r := newAttachmentResolver(client, testLogger())
	att := types.Attachment{ID: "att-3"}

	data, err := r.Resolve(context.Background(), msgFrom("other"), att)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc"), data)
}

func TestResolve_SharedNoMatchIsAbsent(t *testing.T) {
	client := &mockGraphClient{}
	client.On("GetMe", mock.Anything).Return(&types.User{ID: "me"}, nil)
	client.On("ListSharedWithMe", mock.Anything).Return([]types.DriveItem{
		sharedItem("item-1", "https://contoso.sharepoint.com/unrelated", "site-1"),
	}, nil)

	r := newAttachmentResolver(client, testLogger())
	att := types.Attachment{ID: "att-404"}

	data, err := r.Resolve(context.Background(), msgFrom("other"), att)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestResolve_SharedMatchWithoutSiteIsAbsent(t *testing.T) {
	client := &mockGraphClient{}
	client.On("GetMe", mock.Anything).Return(&types.User{ID: "me"}, nil)
	client.On("ListSharedWithMe", mock.Anything).Return([]types.DriveItem{
		sharedItem("item-1", "{ATT-1}", ""),
	}, nil)

	r := newAttachmentResolver(client, testLogger())
	att := types.Attachment{ID: "att-1"}

	data, err := r.Resolve(context.Background(), msgFrom("other"), att)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestResolve_PrincipalCached(t *testing.T) {
	client := &mockGraphClient{}
	client.On("GetMe", mock.Anything).Return(&types.User{ID: "me"}, nil).Once()
	client.On("ListSharedWithMe", mock.Anything).Return([]types.DriveItem{}, nil)

	r := newAttachmentResolver(client, testLogger())
	att := types.Attachment{ID: "att-1"}

	_, err := r.Resolve(context.Background(), msgFrom("other"), att)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), msgFrom("other"), att)
	require.NoError(t, err)
	client.AssertExpectations(t)
}
