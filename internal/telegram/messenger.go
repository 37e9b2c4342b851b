// Package telegram is the platform edge: the Messenger capability the rest
// of the system sends through, and its Bot API implementation.
package telegram

import (
	"context"
	"errors"

	"github.com/boxup/media-gate-bot/internal/domain"
)

// ErrUnsupported reports a capability the configured transport cannot
// provide; callers treat it as "no data", not a failure.
var ErrUnsupported = errors.New("capability not supported by transport")

// Button is one inline keyboard button: either a callback (Data) or a
// link (URL).
type Button struct {
	Label string
	Data  string
	URL   string
}

// Keyboard is an inline keyboard layout.
type Keyboard struct {
	Rows [][]Button
}

func NewKeyboard(rows ...[]Button) *Keyboard {
	return &Keyboard{Rows: rows}
}

func Row(buttons ...Button) []Button {
	return buttons
}

// Messenger is the outbound messaging capability. Implementations return
// the platform message id for sends so callers can track posts.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileRef, caption string, kb *Keyboard) (int, error)
	SendFile(ctx context.Context, chatID int64, kind domain.MediaKind, fileRef, caption string) (int, error)
	SendDocumentBytes(ctx context.Context, chatID int64, name string, data []byte, caption string) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error
	EditKeyboard(ctx context.Context, chatID int64, messageID int, kb *Keyboard) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// ReportedViews returns the platform's view counters for the given
	// posts; transports without access return ErrUnsupported.
	ReportedViews(ctx context.Context, chatID int64, messageIDs []int) (map[int]int64, error)

	IsMember(ctx context.Context, channel string, userID int64) (bool, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
