// Package publish is the single path a content item takes into a channel,
// shared by the immediate flow and the scheduler.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/boxup/media-gate-bot/internal/deeplink"
	"github.com/boxup/media-gate-bot/internal/domain"
	"github.com/boxup/media-gate-bot/internal/engagement"
	"github.com/boxup/media-gate-bot/internal/repository"
	"github.com/boxup/media-gate-bot/internal/telegram"
)

// Publisher sends a content item's cover post into a distribution channel
// and wires up its engagement ledger entry and counter keyboard.
type Publisher struct {
	content     repository.ContentRepository
	ledger      *engagement.Ledger
	messenger   telegram.Messenger
	botUsername string
	logger      *log.Logger
}

func NewPublisher(
	content repository.ContentRepository,
	ledger *engagement.Ledger,
	messenger telegram.Messenger,
	botUsername string,
	logger *log.Logger,
) *Publisher {
	return &Publisher{
		content:     content,
		ledger:      ledger,
		messenger:   messenger,
		botUsername: botUsername,
		logger:      logger,
	}
}

// Publish sends the post, records the PostReference and initializes the
// engagement record with a best-effort initial view count. The keyboard
// attach is allowed to fail; the post stands without it.
func (p *Publisher) Publish(ctx context.Context, contentID string, channelID int64) (*domain.PostReference, error) {
	item, err := p.content.Get(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("load content %s: %w", contentID, err)
	}

	caption := ComposeCaption(item, p.botUsername)

	var messageID int
	if item.CoverRef != "" {
		messageID, err = p.messenger.SendPhoto(ctx, channelID, item.CoverRef, caption, nil)
	} else {
		messageID, err = p.messenger.SendText(ctx, channelID, caption, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("send post: %w", err)
	}

	initialViews := p.initialViews(ctx, channelID, messageID)

	ref := &domain.PostReference{
		ContentID: contentID,
		ChannelID: channelID,
		MessageID: messageID,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.ledger.CreatePostReference(ctx, ref); err != nil {
		return nil, err
	}

	key := domain.PostKey{ContentID: contentID, ChannelID: channelID, MessageID: messageID}
	if err := p.ledger.InitializePost(ctx, key, initialViews); err != nil {
		return nil, err
	}

	kb, err := p.ledger.Keyboard(ctx, channelID, messageID)
	if err == nil {
		err = p.messenger.EditKeyboard(ctx, channelID, messageID, kb)
	}
	if err != nil && p.logger != nil {
		p.logger.Printf("keyboard attach failed post=%d/%d: %v", channelID, messageID, err)
	}

	return ref, nil
}

func (p *Publisher) initialViews(ctx context.Context, channelID int64, messageID int) int64 {
	views, err := p.messenger.ReportedViews(ctx, channelID, []int{messageID})
	if err != nil {
		if !errors.Is(err, telegram.ErrUnsupported) && p.logger != nil {
			p.logger.Printf("initial views lookup failed post=%d/%d: %v", channelID, messageID, err)
		}
		return 0
	}
	return views[messageID]
}

// ComposeCaption builds the channel post caption with the content entry
// deep link.
func ComposeCaption(item *domain.ContentItem, botUsername string) string {
	link := "https://t.me/" + botUsername + "?start=" + deeplink.EncodeContent(item.ID)

	lines := []string{"🎬 <b>" + item.Title + "</b>"}
	if item.Genre != "" {
		lines = append(lines, "🎭 Genre: "+item.Genre)
	}
	if item.Year != "" {
		lines = append(lines, "📆 Year: "+item.Year)
	}
	lines = append(lines, "", "🧩 Bot and files: "+link)
	return strings.Join(lines, "\n")
}
