package export

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/optiononetech/teams-chat-export/pkg/graph/types"
)

const documentStyle = `
    .messages {
        background-color: rgb(245, 245, 245);
    }

    .message {
        background-color: white;
    }
    .message.mine {
        background-color: rgb(232, 240, 254);
    }
    .message, .reply {
        display: inline-block;
        padding: 10px;
        margin: 10px;
    }
    .from {
        font-weight: bold;
    }

    .date {
        color: gray;
    }
    .reply {
        background-color: rgb(250, 249, 248);
        border: 1px solid silver;
    }
`

const timestampLayout = "Monday, January 2, 2006 3:04:05 PM"

func writeDocumentHeader(w io.Writer, chatID, title string, members []types.ChatMember) error {
	var b strings.Builder
	b.WriteString("<!doctype HTML>\n<html>\n<head>\n")
	fmt.Fprintf(&b, "<title>%s - %s</title>\n", html.EscapeString(chatID), html.EscapeString(title))
	b.WriteString("<style>")
	b.WriteString(documentStyle)
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<h2>Members</h2>\n")
	for _, member := range members {
		fmt.Fprintf(&b, "<h4>%s</h4>\n", html.EscapeString(member.DisplayName))
	}

	b.WriteString("<h2>Messages</h2>\n<div class='messages'>\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeDocumentFooter(w io.Writer) error {
	_, err := io.WriteString(w, "</div>\n</body>\n</html>\n")
	return err
}

// renderMessageHTML wraps an already normalized message body in the
// message markup: sender, timestamps, content and, for system events,
// the event type together with the raw message for reference.
func renderMessageHTML(msg *types.ChatMessage, class, body string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<div class='%s' data-id=%s>\n", class, msg.ID)

	b.WriteString("<span class='from'>")
	b.WriteString(html.EscapeString(senderName(msg)))
	b.WriteString("</span>\n")

	b.WriteString("<span class='date'>")
	b.WriteString(msg.CreatedDateTime.Format(timestampLayout))
	b.WriteString("</span>\n")

	if msg.LastEditedDateTime != nil && !msg.LastEditedDateTime.Equal(msg.CreatedDateTime) {
		b.WriteString("<span class='date'> Edit at: ")
		b.WriteString(msg.LastEditedDateTime.Format(timestampLayout))
		b.WriteString("</span>\n")
	}

	b.WriteString("<div class='content'>")
	b.WriteString(body)
	b.WriteString("</div>\n")

	if msg.MessageType != "" && msg.MessageType != "message" {
		b.WriteString("<span class='type'>")
		b.WriteString(html.EscapeString(msg.MessageType))
		b.WriteString("</span>\n")

		b.WriteString("<span class='summary'>")
		if raw, err := json.Marshal(msg); err == nil {
			b.WriteString(html.EscapeString(string(raw)))
		}
		b.WriteString("</span>\n")
	}

	b.WriteString("</div>\n<br/>\n")
	return b.String()
}

func senderName(msg *types.ChatMessage) string {
	if msg.From != nil && msg.From.User != nil {
		return msg.From.User.DisplayName
	}
	if msg.From != nil && msg.From.Application != nil {
		return msg.From.Application.DisplayName
	}
	return ""
}

func senderID(msg *types.ChatMessage) string {
	if msg.From != nil && msg.From.User != nil {
		return msg.From.User.ID
	}
	return ""
}

func editedAt(msg *types.ChatMessage) *time.Time {
	if msg.LastEditedDateTime != nil && !msg.LastEditedDateTime.Equal(msg.CreatedDateTime) {
		return msg.LastEditedDateTime
	}
	return nil
}
