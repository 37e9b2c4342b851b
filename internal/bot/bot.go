// Package bot routes inbound platform updates: entry deep links and the
// membership gate for end users, commands and workflow input for operators,
// and the callback surface of the admin panel.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/boxup/media-gate-bot/internal/config"
	"github.com/boxup/media-gate-bot/internal/conversation"
	"github.com/boxup/media-gate-bot/internal/deeplink"
	"github.com/boxup/media-gate-bot/internal/domain"
	"github.com/boxup/media-gate-bot/internal/engagement"
	"github.com/boxup/media-gate-bot/internal/publish"
	"github.com/boxup/media-gate-bot/internal/repository"
	"github.com/boxup/media-gate-bot/internal/scheduler"
	"github.com/boxup/media-gate-bot/internal/telegram"
)

// updateSource is what the run loop consumes; *telegram.Client satisfies it.
type updateSource interface {
	Updates(offset, timeout int) tgbotapi.UpdatesChannel
	StopUpdates()
}

// Bot wires one platform account to the content, engagement and
// scheduling subsystems.
type Bot struct {
	cfg       *config.Config
	messenger telegram.Messenger
	content   repository.ContentRepository
	engine    *conversation.Engine
	ledger    *engagement.Ledger
	publisher *publish.Publisher
	scheduler *scheduler.Scheduler
	logger    *log.Logger

	// pendingTokens stashes an end user's entry token while the
	// membership gate is open. Transient by design.
	mu            sync.Mutex
	pendingTokens map[int64]string
}

func New(
	cfg *config.Config,
	messenger telegram.Messenger,
	content repository.ContentRepository,
	engine *conversation.Engine,
	ledger *engagement.Ledger,
	publisher *publish.Publisher,
	sched *scheduler.Scheduler,
	logger *log.Logger,
) *Bot {
	return &Bot{
		cfg:           cfg,
		messenger:     messenger,
		content:       content,
		engine:        engine,
		ledger:        ledger,
		publisher:     publisher,
		scheduler:     sched,
		logger:        logger,
		pendingTokens: make(map[int64]string),
	}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context, source updateSource) {
	updates := source.Updates(0, 30)
	for {
		select {
		case <-ctx.Done():
			source.StopUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.Dispatch(ctx, &update)
		}
	}
}

// Dispatch routes one update. Errors are logged, never fatal: a single bad
// input must not take the process down.
func (b *Bot) Dispatch(ctx context.Context, update *tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.Printf("callback %q: %v", update.CallbackQuery.Data, err)
		}
	case update.Message != nil:
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Printf("message from %d: %v", update.Message.From.ID, err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || !msg.Chat.IsPrivate() {
		return nil
	}
	userID := msg.From.ID

	if msg.IsCommand() {
		return b.handleCommand(ctx, msg)
	}

	if media, ok := extractMedia(msg); ok {
		reply, err := b.engine.HandleMedia(ctx, userID, media)
		if err != nil {
			return fmt.Errorf("conversation media: %w", err)
		}
		return b.sendReply(ctx, userID, reply)
	}

	if msg.Text != "" {
		reply, err := b.engine.HandleText(ctx, userID, msg.Text)
		if err != nil {
			return fmt.Errorf("conversation text: %w", err)
		}
		return b.sendReply(ctx, userID, reply)
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, userID, strings.TrimSpace(msg.CommandArguments()))
	case "cancel":
		if err := b.engine.Cancel(ctx, userID); err != nil {
			return err
		}
		_, err := b.messenger.SendText(ctx, userID, "⛔️ Cancelled.", nil)
		return err
	case "upload":
		if !b.requireAdmin(ctx, userID) {
			return nil
		}
		reply, err := b.engine.BeginUpload(ctx, userID)
		if err != nil {
			return err
		}
		return b.sendReply(ctx, userID, reply)
	case "admin":
		if !b.requireAdmin(ctx, userID) {
			return nil
		}
		return b.sendAdminHome(ctx, userID)
	case "stats":
		if !b.requireAdmin(ctx, userID) {
			return nil
		}
		return b.sendStats(ctx, userID)
	}
	return nil
}

// handleStart serves the entry point: bare /start greets, a token routes
// to the membership gate and, once it passes, gated delivery.
func (b *Bot) handleStart(ctx context.Context, userID int64, payload string) error {
	if payload == "" {
		return b.sendWelcome(ctx, userID)
	}

	ok, err := b.isMemberOfAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		b.stashToken(userID, payload)
		return b.sendGatePrompt(ctx, userID)
	}
	return b.deliver(ctx, userID, payload)
}

// deliver sends every file variant of the resolved content item, counts
// the download once delivery actually happened, and schedules cleanup of
// the sent copies.
func (b *Bot) deliver(ctx context.Context, userID int64, rawToken string) error {
	contentID := deeplink.ResolveEntryToken(rawToken)
	item, err := b.content.Get(ctx, contentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_, sendErr := b.messenger.SendText(ctx, userID, "❌ This content is no longer available.", nil)
			return sendErr
		}
		return fmt.Errorf("load content %q: %w", contentID, err)
	}

	if len(item.Files) == 0 {
		_, err := b.messenger.SendText(ctx, userID, "⚠️ No files attached to this title yet.", nil)
		return err
	}

	var sent []int
	for _, file := range item.Files {
		kind := file.Kind
		if kind == "" {
			kind = domain.MediaKindDocument
		}
		caption := deliveryCaption(item, file)
		messageID, err := b.messenger.SendFile(ctx, userID, kind, file.FileRef, caption)
		if err != nil {
			b.logger.Printf("deliver %s to %d: %v", item.ID, userID, err)
			continue
		}
		sent = append(sent, messageID)
	}
	if len(sent) == 0 {
		_, err := b.messenger.SendText(ctx, userID, "❌ Delivery failed, try again later.", nil)
		return err
	}

	if token, ok := deeplink.DecodePost(rawToken); ok {
		key := domain.PostKey{ContentID: token.ContentID, ChannelID: token.ChannelID, MessageID: token.MessageID}
		if err := b.ledger.CountDownload(ctx, key); err != nil {
			b.logger.Printf("count download %s: %v", rawToken, err)
		}
	}

	if delay := b.cfg.DeleteDelay(); delay > 0 {
		notice := fmt.Sprintf("⏳ The files will be removed in %d seconds. Save them now.", int(delay.Seconds()))
		if _, err := b.messenger.SendText(ctx, userID, notice, nil); err != nil {
			b.logger.Printf("delete notice to %d: %v", userID, err)
		}
		go b.deleteLater(userID, sent, delay)
	}
	return nil
}

func (b *Bot) deleteLater(chatID int64, messageIDs []int, delay time.Duration) {
	time.Sleep(delay)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, id := range messageIDs {
		if err := b.messenger.DeleteMessage(ctx, chatID, id); err != nil {
			b.logger.Printf("delete message %d in %d: %v", id, chatID, err)
		}
	}
}

func deliveryCaption(item *domain.ContentItem, file domain.FileVariant) string {
	var sb strings.Builder
	sb.WriteString("🎬 " + item.Title)
	if file.Quality != "" {
		sb.WriteString(" | " + file.Quality)
	}
	if file.Caption != "" {
		sb.WriteString("\n" + file.Caption)
	}
	return sb.String()
}

// ---- membership gate ----

func (b *Bot) isMemberOfAll(ctx context.Context, userID int64) (bool, error) {
	for _, channel := range b.cfg.RequiredChannels {
		member, err := b.messenger.IsMember(ctx, channel, userID)
		if err != nil {
			return false, fmt.Errorf("check %s: %w", channel, err)
		}
		if !member {
			return false, nil
		}
	}
	return true, nil
}

func (b *Bot) sendGatePrompt(ctx context.Context, userID int64) error {
	rows := make([][]telegram.Button, 0, len(b.cfg.RequiredChannels)+1)
	for _, channel := range b.cfg.RequiredChannels {
		rows = append(rows, telegram.Row(telegram.Button{
			Label: "📢 Join " + channel,
			URL:   "https://t.me/" + strings.TrimPrefix(channel, "@"),
		}))
	}
	rows = append(rows, telegram.Row(telegram.Button{Label: "✅ I've joined", Data: "check_subscription"}))
	kb := &telegram.Keyboard{Rows: rows}

	text := "🔒 Join the channel(s) below first, then tap the button."
	if b.cfg.ConfirmImage != "" {
		_, err := b.messenger.SendPhoto(ctx, userID, b.cfg.ConfirmImage, text, kb)
		return err
	}
	_, err := b.messenger.SendText(ctx, userID, text, kb)
	return err
}

func (b *Bot) sendWelcome(ctx context.Context, userID int64) error {
	text := "👋 Welcome! Open a post in one of our channels and tap its file button to receive the content here."
	if b.cfg.WelcomeImage != "" {
		_, err := b.messenger.SendPhoto(ctx, userID, b.cfg.WelcomeImage, text, nil)
		return err
	}
	_, err := b.messenger.SendText(ctx, userID, text, nil)
	return err
}

func (b *Bot) stashToken(userID int64, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingTokens[userID] = token
}

func (b *Bot) popToken(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	token, ok := b.pendingTokens[userID]
	if ok {
		delete(b.pendingTokens, userID)
	}
	return token, ok
}

// ---- helpers ----

func (b *Bot) requireAdmin(ctx context.Context, userID int64) bool {
	if b.cfg.IsAdmin(userID) {
		return true
	}
	if _, err := b.messenger.SendText(ctx, userID, "⛔️ This command is for operators only.", nil); err != nil {
		b.logger.Printf("deny notice to %d: %v", userID, err)
	}
	return false
}

func (b *Bot) sendReply(ctx context.Context, chatID int64, reply *conversation.Reply) error {
	if reply == nil {
		return nil
	}
	_, err := b.messenger.SendText(ctx, chatID, reply.Text, reply.Keyboard)
	return err
}

func extractMedia(msg *tgbotapi.Message) (conversation.Media, bool) {
	switch {
	case len(msg.Photo) > 0:
		best := msg.Photo[len(msg.Photo)-1]
		return conversation.Media{Kind: domain.MediaKindPhoto, FileRef: best.FileID}, true
	case msg.Video != nil:
		return conversation.Media{Kind: domain.MediaKindVideo, FileRef: msg.Video.FileID}, true
	case msg.Document != nil:
		return conversation.Media{Kind: domain.MediaKindDocument, FileRef: msg.Document.FileID}, true
	case msg.Audio != nil:
		return conversation.Media{Kind: domain.MediaKindAudio, FileRef: msg.Audio.FileID}, true
	}
	return conversation.Media{}, false
}
