package privacy

import "strings"

const (
	maskedValue  = "***"
	visibleRunes = 4
)

// MaskChatID redacts the opaque middle of a Teams chat identifier such
// as "19:abc...@thread.v2", keeping the type prefix, a short leading
// hint, and the domain suffix so log lines stay correlatable.
func MaskChatID(chatID string) string {
	if chatID == "" {
		return ""
	}

	body := chatID
	prefix := ""
	if idx := strings.Index(chatID, ":"); idx >= 0 {
		prefix = chatID[:idx+1]
		body = chatID[idx+1:]
	}

	suffix := ""
	if idx := strings.LastIndex(body, "@"); idx >= 0 {
		suffix = body[idx:]
		body = body[:idx]
	}

	return prefix + maskTail(body) + suffix
}

// MaskUserID redacts a directory object ID, keeping a short leading
// hint. GUIDs from the same user mask to the same value.
func MaskUserID(userID string) string {
	if userID == "" {
		return ""
	}
	return maskTail(userID)
}

// MaskEmail hides the local part of an address, keeping the domain.
func MaskEmail(email string) string {
	idx := strings.Index(email, "@")
	if idx < 0 {
		return maskTail(email)
	}
	return maskTail(email[:idx]) + email[idx:]
}

func maskTail(s string) string {
	runes := []rune(s)
	if len(runes) <= visibleRunes {
		return maskedValue
	}
	return string(runes[:visibleRunes]) + maskedValue
}
