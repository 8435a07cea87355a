package types

import "time"

// Identity describes a single actor (user or application).
type Identity struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// IdentitySet groups the possible identities behind an action.
type IdentitySet struct {
	User        *Identity `json:"user,omitempty"`
	Application *Identity `json:"application,omitempty"`
}

// Chat is a Teams chat thread.
type Chat struct {
	ID                  string     `json:"id"`
	Topic               *string    `json:"topic"`
	ChatType            string     `json:"chatType"`
	CreatedDateTime     *time.Time `json:"createdDateTime,omitempty"`
	LastUpdatedDateTime *time.Time `json:"lastUpdatedDateTime,omitempty"`
}

// ChatMember is a participant of a chat thread.
type ChatMember struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	UserID      string   `json:"userId,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// ItemBody carries message content together with its format.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Attachment is a file, link or referenced message attached to a chat
// message. Content holds provider-specific JSON for reference shapes.
type Attachment struct {
	ID          string  `json:"id"`
	ContentType string  `json:"contentType"`
	ContentURL  *string `json:"contentUrl"`
	Content     *string `json:"content"`
	Name        *string `json:"name"`
}

// ChatMessage is a single message in a chat thread.
type ChatMessage struct {
	ID                   string       `json:"id"`
	MessageType          string       `json:"messageType"`
	CreatedDateTime      time.Time    `json:"createdDateTime"`
	LastModifiedDateTime *time.Time   `json:"lastModifiedDateTime,omitempty"`
	LastEditedDateTime   *time.Time   `json:"lastEditedDateTime,omitempty"`
	DeletedDateTime      *time.Time   `json:"deletedDateTime,omitempty"`
	From                 *IdentitySet `json:"from"`
	Body                 ItemBody     `json:"body"`
	Attachments          []Attachment `json:"attachments,omitempty"`
}

// HostedContent is inline media embedded in a message body.
type HostedContent struct {
	ID           string `json:"id"`
	ContentType  string `json:"contentType,omitempty"`
	ContentBytes string `json:"contentBytes,omitempty"`
}

// MessageReferenceContent is the payload of a messageReference
// attachment: the quoted message a reply points back to.
type MessageReferenceContent struct {
	MessageID      string       `json:"messageId"`
	MessagePreview string       `json:"messagePreview"`
	MessageSender  *IdentitySet `json:"messageSender,omitempty"`
}

// User is the signed-in account profile.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
}

// SharePointIds addresses a drive item within its SharePoint site.
type SharePointIds struct {
	SiteID     string `json:"siteId,omitempty"`
	SiteURL    string `json:"siteUrl,omitempty"`
	ListItemID string `json:"listItemId,omitempty"`
	WebID      string `json:"webId,omitempty"`
}

// RemoteItem points at a drive item that lives in another drive.
type RemoteItem struct {
	ID            string         `json:"id,omitempty"`
	WebURL        string         `json:"webUrl,omitempty"`
	SharePointIds *SharePointIds `json:"sharepointIds,omitempty"`
}

// DriveItem is a file or folder in a OneDrive/SharePoint drive.
type DriveItem struct {
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	WebURL     string      `json:"webUrl,omitempty"`
	Size       int64       `json:"size,omitempty"`
	RemoteItem *RemoteItem `json:"remoteItem,omitempty"`
}

// ChatsPage is one page of a chat listing.
type ChatsPage struct {
	Value    []Chat `json:"value"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// MembersPage is one page of a chat member listing.
type MembersPage struct {
	Value    []ChatMember `json:"value"`
	NextLink string       `json:"@odata.nextLink,omitempty"`
}

// MessagesPage is one page of a chat message listing.
type MessagesPage struct {
	Value    []ChatMessage `json:"value"`
	NextLink string        `json:"@odata.nextLink,omitempty"`
}

// HostedContentsPage is one page of a hosted content listing.
type HostedContentsPage struct {
	Value    []HostedContent `json:"value"`
	NextLink string          `json:"@odata.nextLink,omitempty"`
}

// DriveItemsPage is one page of a drive item listing.
type DriveItemsPage struct {
	Value    []DriveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink,omitempty"`
}

// Title returns a human readable name for the chat. One-on-one chats
// have no topic, so they fall back to a fixed label the way the Teams
// client shows them.
func (c Chat) Title() string {
	if c.Topic != nil && *c.Topic != "" {
		return *c.Topic
	}
	return "Private Chat"
}
