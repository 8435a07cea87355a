package export

import (
	"context"

	"github.com/optiononetech/teams-chat-export/pkg/graph/types"

	"github.com/stretchr/testify/mock"
)

type mockGraphClient struct {
	mock.Mock
}

func (m *mockGraphClient) GetMe(ctx context.Context) (*types.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *mockGraphClient) ListChats(ctx context.Context) ([]types.Chat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Chat), args.Error(1)
}

func (m *mockGraphClient) GetChat(ctx context.Context, chatID string) (*types.Chat, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Chat), args.Error(1)
}

func (m *mockGraphClient) ListChatMembers(ctx context.Context, chatID string) ([]types.ChatMember, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ChatMember), args.Error(1)
}

func (m *mockGraphClient) ListChatMessages(ctx context.Context, chatID, filter, nextLink string) (*types.MessagesPage, error) {
	args := m.Called(ctx, chatID, filter, nextLink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.MessagesPage), args.Error(1)
}

func (m *mockGraphClient) GetChatMessage(ctx context.Context, chatID, messageID string) (*types.ChatMessage, error) {
	args := m.Called(ctx, chatID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ChatMessage), args.Error(1)
}

func (m *mockGraphClient) ListHostedContents(ctx context.Context, chatID, messageID string) ([]types.HostedContent, error) {
	args := m.Called(ctx, chatID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.HostedContent), args.Error(1)
}

func (m *mockGraphClient) GetHostedContent(ctx context.Context, chatID, messageID, contentID string) ([]byte, error) {
	args := m.Called(ctx, chatID, messageID, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockGraphClient) GetMyDriveItemContentByPath(ctx context.Context, itemPath string) ([]byte, error) {
	args := m.Called(ctx, itemPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockGraphClient) ListSharedWithMe(ctx context.Context) ([]types.DriveItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.DriveItem), args.Error(1)
}

func (m *mockGraphClient) GetSiteDriveItemContent(ctx context.Context, siteID, itemID string) ([]byte, error) {
	args := m.Called(ctx, siteID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
