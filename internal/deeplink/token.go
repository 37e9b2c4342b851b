// Package deeplink encodes the compact start-payload tokens that bind an
// inbound user to a specific published post. Tokens only use characters
// Telegram accepts in a start parameter (letters, digits, "_" and "-").
package deeplink

import (
	"strconv"
	"strings"
)

const (
	sep = "-"

	// negMarker/posMarker carry the channel id sign explicitly; a minus
	// character is not deep-link safe.
	negMarker = "n"
	posMarker = "p"

	messageMarker = "m"

	// postSuffix tags a post-attribution token and versions the grammar.
	// A future layout bumps the suffix, old tokens keep decoding.
	postSuffix = "pst1"

	// contentPrefix is the legacy bare-content payload: "F<contentId>".
	contentPrefix = "F"
)

// PostToken is the decoded (content, channel, message) binding.
type PostToken struct {
	ContentID string
	ChannelID int64
	MessageID int
}

// EncodePost builds a post-attribution token:
// <contentId>-<n|p><abs(channelId)>-m<messageId>-pst1
func EncodePost(contentID string, channelID int64, messageID int) string {
	sign := posMarker
	abs := channelID
	if channelID < 0 {
		sign = negMarker
		abs = -channelID
	}
	var b strings.Builder
	b.WriteString(contentID)
	b.WriteString(sep)
	b.WriteString(sign)
	b.WriteString(strconv.FormatInt(abs, 10))
	b.WriteString(sep)
	b.WriteString(messageMarker)
	b.WriteString(strconv.Itoa(messageID))
	b.WriteString(sep)
	b.WriteString(postSuffix)
	return b.String()
}

// EncodeContent builds the simpler content-only entry payload.
func EncodeContent(contentID string) string {
	return contentPrefix + contentID
}

// DecodePost parses a post-attribution token. It is total: any malformed
// input reports ok=false and never panics. Content ids may themselves
// contain the separator, so parsing anchors on the right-hand fields.
func DecodePost(token string) (PostToken, bool) {
	parts := strings.Split(token, sep)
	if len(parts) < 4 {
		return PostToken{}, false
	}
	if parts[len(parts)-1] != postSuffix {
		return PostToken{}, false
	}

	messagePart := parts[len(parts)-2]
	if !strings.HasPrefix(messagePart, messageMarker) {
		return PostToken{}, false
	}
	messageID, err := strconv.Atoi(messagePart[len(messageMarker):])
	if err != nil || messageID < 0 {
		return PostToken{}, false
	}

	channelPart := parts[len(parts)-3]
	if len(channelPart) < 2 {
		return PostToken{}, false
	}
	sign := channelPart[:1]
	if sign != negMarker && sign != posMarker {
		return PostToken{}, false
	}
	abs, err := strconv.ParseInt(channelPart[1:], 10, 64)
	if err != nil || abs < 0 {
		return PostToken{}, false
	}
	channelID := abs
	if sign == negMarker {
		channelID = -abs
	}

	contentID := strings.Join(parts[:len(parts)-3], sep)
	if contentID == "" {
		return PostToken{}, false
	}

	return PostToken{ContentID: contentID, ChannelID: channelID, MessageID: messageID}, true
}

// ResolveEntryToken maps any raw start payload to the content id it refers
// to. Post tokens yield their embedded content id; "F<id>" payloads and
// plain slugs fall back to the raw id.
func ResolveEntryToken(raw string) string {
	if token, ok := DecodePost(raw); ok {
		return token.ContentID
	}
	if strings.HasPrefix(raw, contentPrefix) && len(raw) > len(contentPrefix) {
		return raw[len(contentPrefix):]
	}
	return raw
}
