package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/boxup/media-gate-bot/internal/domain"
	"github.com/boxup/media-gate-bot/internal/engagement"
	"github.com/boxup/media-gate-bot/internal/session"
)

// handleCallback routes callback-button presses. The data grammar is
// "action" or "action::arg1[::arg2...]" with "::" as the separator.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil {
		return nil
	}
	userID := cb.From.ID
	action, args := splitCallback(cb.Data)

	// Public surface: gate re-check and post engagement.
	switch action {
	case "noop":
		return b.messenger.AnswerCallback(ctx, cb.ID, "", false)
	case "check_subscription":
		return b.recheckMembership(ctx, cb)
	case "react":
		return b.reactCallback(ctx, cb, args)
	case "share":
		return b.shareCallback(ctx, cb, args)
	}

	// Everything below is the operator panel.
	if !b.cfg.IsAdmin(userID) {
		return b.messenger.AnswerCallback(ctx, cb.ID, "⛔️ Operators only.", true)
	}
	if err := b.messenger.AnswerCallback(ctx, cb.ID, "", false); err != nil {
		b.logger.Printf("answer callback: %v", err)
	}

	switch action {
	case "more_yes", "more_no":
		reply, err := b.engine.ConfirmMore(ctx, userID, action == "more_yes")
		if err != nil {
			return err
		}
		return b.sendReply(ctx, userID, reply)

	case "sched_yes":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			reply, err := b.engine.BeginSchedule(ctx, userID, args[0])
			if err != nil {
				return err
			}
			return b.sendReply(ctx, userID, reply)
		})
	case "sched_no":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			return b.sendPublishChannelPick(ctx, userID, args[0])
		})
	case "sched_ch":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			channelID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse channel id %q: %w", args[0], err)
			}
			reply, err := b.engine.ScheduleChannelChosen(ctx, userID, channelID)
			if err != nil {
				return err
			}
			return b.sendReply(ctx, userID, reply)
		})
	case "sched_cancel":
		reply, err := b.engine.CancelSchedule(ctx, userID)
		if err != nil {
			return err
		}
		return b.sendReply(ctx, userID, reply)

	case "pub_go":
		return b.expectArgs(ctx, userID, args, 2, func() error {
			channelID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parse channel id %q: %w", args[1], err)
			}
			return b.publishNow(ctx, userID, args[0], channelID)
		})

	case "admin_home":
		return b.editAdminHome(ctx, cb)
	case "admin_films":
		page := 1
		if len(args) == 1 {
			page, _ = strconv.Atoi(args[0])
		}
		return b.editFilmList(ctx, cb, page)
	case "admin_search":
		reply, err := b.engine.BeginSearch(ctx, userID)
		if err != nil {
			return err
		}
		return b.sendReply(ctx, userID, reply)
	case "admin_sched":
		page := 1
		if len(args) == 1 {
			page, _ = strconv.Atoi(args[0])
		}
		return b.editSchedulePanel(ctx, cb, page)
	case "admin_sched_del":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			return b.cancelScheduledJob(ctx, cb, args[0])
		})
	case "admin_export":
		return b.exportCatalog(ctx, userID)

	case "film_open":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			return b.editFilmCard(ctx, cb, args[0])
		})
	case "film_edit":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			return b.editFilmEditMenu(ctx, cb, args[0])
		})
	case "film_edit_title", "film_edit_genre", "film_edit_year", "film_edit_cover":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			reply, err := b.engine.BeginEdit(ctx, userID, args[0], editStepFor(action))
			if err != nil {
				return err
			}
			return b.sendReply(ctx, userID, reply)
		})

	case "film_files":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			return b.editFileList(ctx, cb, args[0])
		})
	case "film_file":
		return b.withFileArgs(ctx, userID, args, func(contentID string, index int) error {
			return b.editFileMenu(ctx, cb, contentID, index)
		})
	case "film_file_cap", "film_file_qual", "film_file_replace":
		return b.withFileArgs(ctx, userID, args, func(contentID string, index int) error {
			reply, err := b.engine.BeginFileEdit(ctx, userID, contentID, index, fileStepFor(action))
			if err != nil {
				return err
			}
			return b.sendReply(ctx, userID, reply)
		})
	case "film_file_add":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			reply, err := b.engine.BeginFileAdd(ctx, userID, args[0])
			if err != nil {
				return err
			}
			return b.sendReply(ctx, userID, reply)
		})
	case "film_file_del":
		return b.withFileArgs(ctx, userID, args, func(contentID string, index int) error {
			return b.removeFile(ctx, cb, contentID, index)
		})
	case "film_file_up", "film_file_down":
		return b.withFileArgs(ctx, userID, args, func(contentID string, index int) error {
			return b.moveFile(ctx, cb, contentID, index, action == "film_file_up")
		})

	case "film_del":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			return b.editDeleteConfirm(ctx, cb, args[0])
		})
	case "film_del_yes":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			return b.deleteFilm(ctx, cb, args[0])
		})

	case "film_pub":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			return b.sendPublishChannelPick(ctx, userID, args[0])
		})
	case "film_sched":
		return b.expectArgs(ctx, userID, args, 1, func() error {
			reply, err := b.engine.BeginSchedule(ctx, userID, args[0])
			if err != nil {
				return err
			}
			return b.sendReply(ctx, userID, reply)
		})
	}
	return nil
}

func (b *Bot) recheckMembership(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	userID := cb.From.ID
	member, err := b.isMemberOfAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("membership recheck: %w", err)
	}
	if !member {
		return b.messenger.AnswerCallback(ctx, cb.ID, "❌ You haven't joined yet.", true)
	}
	if err := b.messenger.AnswerCallback(ctx, cb.ID, "✅ Thanks!", false); err != nil {
		b.logger.Printf("answer callback: %v", err)
	}

	token, ok := b.popToken(userID)
	if !ok {
		_, err := b.messenger.SendText(ctx, userID, "✅ You're in. Open a post link again to receive files.", nil)
		return err
	}
	return b.deliver(ctx, userID, token)
}

// reactCallback handles "react::<kind>::<channelId>::<messageId>" pressed
// under a channel post.
func (b *Bot) reactCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, args []string) error {
	if len(args) != 3 {
		return b.messenger.AnswerCallback(ctx, cb.ID, "", false)
	}
	kind := domain.ReactionKind(args[0])
	channelID, err1 := strconv.ParseInt(args[1], 10, 64)
	messageID, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil || !domain.ValidReactionKind(kind) {
		return b.messenger.AnswerCallback(ctx, cb.ID, "", false)
	}

	err := b.ledger.ToggleReaction(ctx, channelID, messageID, cb.From.ID, kind)
	switch {
	case errors.Is(err, engagement.ErrAlreadyReacted):
		return b.messenger.AnswerCallback(ctx, cb.ID, "You already picked this one.", false)
	case err != nil:
		b.logger.Printf("reaction %s on %d/%d: %v", kind, channelID, messageID, err)
		return b.messenger.AnswerCallback(ctx, cb.ID, "Try again later.", false)
	}
	return b.messenger.AnswerCallback(ctx, cb.ID, "Counted ✔", false)
}

func (b *Bot) shareCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, args []string) error {
	if len(args) != 2 {
		return b.messenger.AnswerCallback(ctx, cb.ID, "", false)
	}
	channelID, err1 := strconv.ParseInt(args[0], 10, 64)
	messageID, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return b.messenger.AnswerCallback(ctx, cb.ID, "", false)
	}

	if err := b.ledger.CountShare(ctx, channelID, messageID); err != nil {
		b.logger.Printf("share on %d/%d: %v", channelID, messageID, err)
		return b.messenger.AnswerCallback(ctx, cb.ID, "Try again later.", false)
	}
	return b.messenger.AnswerCallback(ctx, cb.ID, "🔁 Counted. Forward the post to spread it!", false)
}

func (b *Bot) expectArgs(ctx context.Context, userID int64, args []string, n int, fn func() error) error {
	if len(args) != n {
		_, err := b.messenger.SendText(ctx, userID, "⚠️ Stale button, open the panel again: /admin", nil)
		return err
	}
	return fn()
}

func (b *Bot) withFileArgs(ctx context.Context, userID int64, args []string, fn func(string, int) error) error {
	return b.expectArgs(ctx, userID, args, 2, func() error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("parse file index %q: %w", args[1], err)
		}
		return fn(args[0], index)
	})
}

func splitCallback(data string) (string, []string) {
	parts := strings.Split(data, "::")
	return parts[0], parts[1:]
}

func editStepFor(action string) session.Step {
	switch action {
	case "film_edit_title":
		return session.StepEditTitle
	case "film_edit_genre":
		return session.StepEditGenre
	case "film_edit_year":
		return session.StepEditYear
	}
	return session.StepReplaceCover
}

func fileStepFor(action string) session.Step {
	switch action {
	case "film_file_cap":
		return session.StepFileEditCaption
	case "film_file_qual":
		return session.StepFileEditQuality
	}
	return session.StepFileReplace
}
