package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/boxup/media-gate-bot/internal/domain"
)

// Client implements Messenger over the Telegram Bot API.
type Client struct {
	bot    *tgbotapi.BotAPI
	gate   *sendGate
	logger *log.Logger
}

type ClientConfig struct {
	Token          string
	Debug          bool
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *log.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}
	bot.Debug = cfg.Debug
	return &Client{
		bot:    bot,
		gate:   newSendGate(cfg.RateLimitRPS, cfg.RateLimitBurst),
		logger: cfg.Logger,
	}, nil
}

// Updates starts the long-poll loop and returns the update channel.
func (c *Client) Updates(offset, timeout int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(offset)
	u.Timeout = timeout
	return c.bot.GetUpdatesChan(u)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

func markup(kb *Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}

// send runs one Bot API call through the gate and converts retry-after
// backpressure into a global pause.
func (c *Client) send(ctx context.Context, chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := c.gate.wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}

	message, err := c.bot.Send(chattable)
	if err != nil {
		c.notePause(err)
		return tgbotapi.Message{}, err
	}
	return message, nil
}

func (c *Client) request(ctx context.Context, chattable tgbotapi.Chattable) error {
	if err := c.gate.wait(ctx); err != nil {
		return err
	}
	if _, err := c.bot.Request(chattable); err != nil {
		c.notePause(err)
		return err
	}
	return nil
}

func (c *Client) notePause(err error) {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return
	}
	if apiErr.RetryAfter <= 0 {
		return
	}
	pause := time.Duration(apiErr.RetryAfter) * time.Second
	c.gate.pause(pause)
	if c.logger != nil {
		c.logger.Printf("rate limited by platform, pausing sends for %s", pause)
	}
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	sent, err := c.send(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("send text: %w", err)
	}
	return sent.MessageID, nil
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileRef, caption string, kb *Keyboard) (int, error) {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileRef))
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeHTML
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	sent, err := c.send(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("send photo: %w", err)
	}
	return sent.MessageID, nil
}

func (c *Client) SendFile(ctx context.Context, chatID int64, kind domain.MediaKind, fileRef, caption string) (int, error) {
	var chattable tgbotapi.Chattable
	switch kind {
	case domain.MediaKindVideo:
		msg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileRef))
		msg.Caption = caption
		chattable = msg
	case domain.MediaKindAudio:
		msg := tgbotapi.NewAudio(chatID, tgbotapi.FileID(fileRef))
		msg.Caption = caption
		chattable = msg
	default:
		msg := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileRef))
		msg.Caption = caption
		chattable = msg
	}
	sent, err := c.send(ctx, chattable)
	if err != nil {
		return 0, fmt.Errorf("send file: %w", err)
	}
	return sent.MessageID, nil
}

func (c *Client) SendDocumentBytes(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	msg.Caption = caption
	if _, err := c.send(ctx, msg); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = m
	}
	if err := c.request(ctx, msg); err != nil {
		return fmt.Errorf("edit text: %w", err)
	}
	return nil
}

func (c *Client) EditKeyboard(ctx context.Context, chatID int64, messageID int, kb *Keyboard) error {
	m := markup(kb)
	if m == nil {
		return nil
	}
	msg := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, *m)
	if err := c.request(ctx, msg); err != nil {
		return fmt.Errorf("edit keyboard: %w", err)
	}
	return nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := c.request(ctx, tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ReportedViews is not available through the Bot API; the resync sweep
// degrades to a no-op on this transport.
func (c *Client) ReportedViews(context.Context, int64, []int) (map[int]int64, error) {
	return nil, ErrUnsupported
}

func (c *Client) IsMember(ctx context.Context, channel string, userID int64) (bool, error) {
	if err := c.gate.wait(ctx); err != nil {
		return false, err
	}
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: "@" + channel,
			UserID:             userID,
		},
	})
	if err != nil {
		c.notePause(err)
		return false, fmt.Errorf("get chat member: %w", err)
	}
	switch member.Status {
	case "left", "kicked":
		return false, nil
	}
	return true, nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	callback.ShowAlert = alert
	if err := c.request(ctx, callback); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
