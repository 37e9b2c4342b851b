package bot

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/boxup/media-gate-bot/internal/domain"
	"github.com/boxup/media-gate-bot/internal/repository"
	"github.com/boxup/media-gate-bot/internal/telegram"
)

const filmsPerPage = 10

func adminHomeKeyboard() *telegram.Keyboard {
	return telegram.NewKeyboard(
		telegram.Row(telegram.Button{Label: "📋 Film list", Data: "admin_films::1"}),
		telegram.Row(telegram.Button{Label: "🔎 Search", Data: "admin_search"}),
		telegram.Row(telegram.Button{Label: "🗓 Scheduled posts", Data: "admin_sched::1"}),
		telegram.Row(telegram.Button{Label: "📤 Export CSV", Data: "admin_export"}),
	)
}

func (b *Bot) sendAdminHome(ctx context.Context, chatID int64) error {
	_, err := b.messenger.SendText(ctx, chatID, "🛠 <b>Admin panel</b>", adminHomeKeyboard())
	return err
}

func (b *Bot) editAdminHome(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	return b.editOrSend(ctx, cb, "🛠 <b>Admin panel</b>", adminHomeKeyboard())
}

// editOrSend replaces the panel message in place when the callback carries
// one, otherwise falls back to a fresh message.
func (b *Bot) editOrSend(ctx context.Context, cb *tgbotapi.CallbackQuery, text string, kb *telegram.Keyboard) error {
	if cb.Message != nil {
		err := b.messenger.EditText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, text, kb)
		if err == nil {
			return nil
		}
		b.logger.Printf("edit panel message: %v", err)
	}
	_, err := b.messenger.SendText(ctx, cb.From.ID, text, kb)
	return err
}

// ---- film list / card ----

func (b *Bot) editFilmList(ctx context.Context, cb *tgbotapi.CallbackQuery, page int) error {
	if page < 1 {
		page = 1
	}
	items, total, err := b.content.List(ctx, domain.ContentListFilter{Page: page, PageSize: filmsPerPage})
	if err != nil {
		return fmt.Errorf("list films: %w", err)
	}

	rows := make([][]telegram.Button, 0, len(items)+2)
	for _, item := range items {
		label := item.Title
		if item.Year != "" {
			label += " (" + item.Year + ")"
		}
		rows = append(rows, telegram.Row(telegram.Button{Label: label, Data: "film_open::" + item.ID}))
	}

	var nav []telegram.Button
	if page > 1 {
		nav = append(nav, telegram.Button{Label: "⬅️", Data: "admin_films::" + strconv.Itoa(page-1)})
	}
	if page*filmsPerPage < total {
		nav = append(nav, telegram.Button{Label: "➡️", Data: "admin_films::" + strconv.Itoa(page+1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, telegram.Row(telegram.Button{Label: "🏠 Main menu", Data: "admin_home"}))

	text := fmt.Sprintf("📋 <b>Films</b> (%d total, page %d)", total, page)
	if total == 0 {
		text = "📋 No films yet. Use /upload to add one."
	}
	return b.editOrSend(ctx, cb, text, &telegram.Keyboard{Rows: rows})
}

func (b *Bot) editFilmCard(ctx context.Context, cb *tgbotapi.CallbackQuery, contentID string) error {
	item, err := b.content.Get(ctx, contentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return b.editOrSend(ctx, cb, "⚠️ This film no longer exists.", adminHomeKeyboard())
		}
		return fmt.Errorf("load film %q: %w", contentID, err)
	}

	text := filmCardText(item)
	if totals, err := b.ledger.Totals(ctx, contentID); err == nil && totals.Posts > 0 {
		text += fmt.Sprintf("\n\n📊 %d post(s) | 👁 %d | ⬇️ %d | 🔁 %d",
			totals.Posts, totals.Views, totals.Downloads, totals.Shares)
	}

	kb := telegram.NewKeyboard(
		telegram.Row(
			telegram.Button{Label: "✏️ Edit", Data: "film_edit::" + item.ID},
			telegram.Button{Label: "📂 Files", Data: "film_files::" + item.ID},
		),
		telegram.Row(
			telegram.Button{Label: "📣 Publish", Data: "film_pub::" + item.ID},
			telegram.Button{Label: "⏰ Schedule", Data: "film_sched::" + item.ID},
		),
		telegram.Row(telegram.Button{Label: "🗑 Delete", Data: "film_del::" + item.ID}),
		telegram.Row(telegram.Button{Label: "↩️ Back to list", Data: "admin_films::1"}),
	)
	return b.editOrSend(ctx, cb, text, kb)
}

func filmCardText(item *domain.ContentItem) string {
	text := "🎬 <b>" + item.Title + "</b>"
	if item.Genre != "" {
		text += "\n🎭 " + item.Genre
	}
	if item.Year != "" {
		text += "\n📆 " + item.Year
	}
	text += fmt.Sprintf("\n📂 Files: %d\n🆔 <code>%s</code>", len(item.Files), item.ID)
	return text
}

func (b *Bot) editFilmEditMenu(ctx context.Context, cb *tgbotapi.CallbackQuery, contentID string) error {
	kb := telegram.NewKeyboard(
		telegram.Row(telegram.Button{Label: "🖊 Title", Data: "film_edit_title::" + contentID}),
		telegram.Row(telegram.Button{Label: "🎭 Genre", Data: "film_edit_genre::" + contentID}),
		telegram.Row(telegram.Button{Label: "📆 Year", Data: "film_edit_year::" + contentID}),
		telegram.Row(telegram.Button{Label: "🖼 Cover", Data: "film_edit_cover::" + contentID}),
		telegram.Row(telegram.Button{Label: "↩️ Back", Data: "film_open::" + contentID}),
	)
	return b.editOrSend(ctx, cb, "✏️ What do you want to change?", kb)
}

// ---- file management ----

func (b *Bot) editFileList(ctx context.Context, cb *tgbotapi.CallbackQuery, contentID string) error {
	item, err := b.content.Get(ctx, contentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return b.editOrSend(ctx, cb, "⚠️ This film no longer exists.", adminHomeKeyboard())
		}
		return fmt.Errorf("load film %q: %w", contentID, err)
	}

	rows := make([][]telegram.Button, 0, len(item.Files)+2)
	for i, file := range item.Files {
		label := fmt.Sprintf("%d. %s", i+1, file.Quality)
		if file.Quality == "" {
			label = fmt.Sprintf("%d. (no quality)", i+1)
		}
		rows = append(rows, telegram.Row(telegram.Button{
			Label: label,
			Data:  fmt.Sprintf("film_file::%s::%d", contentID, i),
		}))
	}
	rows = append(rows,
		telegram.Row(telegram.Button{Label: "➕ Add file", Data: "film_file_add::" + contentID}),
		telegram.Row(telegram.Button{Label: "↩️ Back", Data: "film_open::" + contentID}),
	)

	return b.editOrSend(ctx, cb, fmt.Sprintf("📂 Files of <b>%s</b>:", item.Title), &telegram.Keyboard{Rows: rows})
}

func (b *Bot) editFileMenu(ctx context.Context, cb *tgbotapi.CallbackQuery, contentID string, index int) error {
	item, err := b.content.Get(ctx, contentID)
	if err != nil || index < 0 || index >= len(item.Files) {
		return b.editFileList(ctx, cb, contentID)
	}
	file := item.Files[index]

	suffix := fmt.Sprintf("::%s::%d", contentID, index)
	kb := telegram.NewKeyboard(
		telegram.Row(
			telegram.Button{Label: "📝 Caption", Data: "film_file_cap" + suffix},
			telegram.Button{Label: "🎞 Quality", Data: "film_file_qual" + suffix},
		),
		telegram.Row(
			telegram.Button{Label: "🔁 Replace", Data: "film_file_replace" + suffix},
			telegram.Button{Label: "🗑 Remove", Data: "film_file_del" + suffix},
		),
		telegram.Row(
			telegram.Button{Label: "⬆️ Move up", Data: "film_file_up" + suffix},
			telegram.Button{Label: "⬇️ Move down", Data: "film_file_down" + suffix},
		),
		telegram.Row(telegram.Button{Label: "↩️ Back", Data: "film_files::" + contentID}),
	)

	text := fmt.Sprintf("📄 File %d of <b>%s</b>\n🎞 %s", index+1, item.Title, file.Quality)
	if file.Caption != "" {
		text += "\n📝 " + file.Caption
	}
	return b.editOrSend(ctx, cb, text, kb)
}

func (b *Bot) removeFile(ctx context.Context, cb *tgbotapi.CallbackQuery, contentID string, index int) error {
	err := b.content.RemoveFile(ctx, contentID, index)
	if err != nil && !errors.Is(err, repository.ErrFileIndex) && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("remove file: %w", err)
	}
	return b.editFileList(ctx, cb, contentID)
}

// moveFile swaps a variant with its neighbor. The swap is conditioned on
// the just-read version, so a concurrent reorder shows up as a conflict
// notice instead of silently losing an edit.
func (b *Bot) moveFile(ctx context.Context, cb *tgbotapi.CallbackQuery, contentID string, index int, up bool) error {
	item, err := b.content.Get(ctx, contentID)
	if err != nil {
		return b.editFileList(ctx, cb, contentID)
	}

	target := index + 1
	if up {
		target = index - 1
	}
	if target < 0 || target >= len(item.Files) {
		return b.editFileMenu(ctx, cb, contentID, index)
	}

	err = b.content.SwapFiles(ctx, contentID, index, target, item.Version)
	if errors.Is(err, repository.ErrVersionConflict) {
		if _, sendErr := b.messenger.SendText(ctx, cb.From.ID, "⚠️ The list changed under you. Try again.", nil); sendErr != nil {
			b.logger.Printf("conflict notice: %v", sendErr)
		}
		return b.editFileList(ctx, cb, contentID)
	}
	if err != nil && !errors.Is(err, repository.ErrFileIndex) {
		return fmt.Errorf("reorder files: %w", err)
	}
	return b.editFileList(ctx, cb, contentID)
}

// ---- delete ----

func (b *Bot) editDeleteConfirm(ctx context.Context, cb *tgbotapi.CallbackQuery, contentID string) error {
	kb := telegram.NewKeyboard(telegram.Row(
		telegram.Button{Label: "✅ Yes, delete", Data: "film_del_yes::" + contentID},
		telegram.Button{Label: "↩️ No", Data: "film_open::" + contentID},
	))
	return b.editOrSend(ctx, cb, "🗑 Delete this film and all its files?", kb)
}

func (b *Bot) deleteFilm(ctx context.Context, cb *tgbotapi.CallbackQuery, contentID string) error {
	if err := b.content.Delete(ctx, contentID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete film: %w", err)
	}
	return b.editOrSend(ctx, cb, "🗑 Deleted.", adminHomeKeyboard())
}

// ---- publish ----

func (b *Bot) sendPublishChannelPick(ctx context.Context, chatID int64, contentID string) error {
	if len(b.cfg.TargetChannels) == 0 {
		_, err := b.messenger.SendText(ctx, chatID, "⚠️ No target channels configured.", nil)
		return err
	}
	rows := make([][]telegram.Button, 0, len(b.cfg.TargetChannels)+1)
	for _, ch := range b.cfg.TargetChannels {
		rows = append(rows, telegram.Row(telegram.Button{
			Label: ch.Title,
			Data:  fmt.Sprintf("pub_go::%s::%d", contentID, ch.ID),
		}))
	}
	rows = append(rows, telegram.Row(telegram.Button{Label: "↩️ Back", Data: "film_open::" + contentID}))

	_, err := b.messenger.SendText(ctx, chatID, "🎯 Publish to which channel?", &telegram.Keyboard{Rows: rows})
	return err
}

func (b *Bot) publishNow(ctx context.Context, operatorID int64, contentID string, channelID int64) error {
	if _, err := b.publisher.Publish(ctx, contentID, channelID); err != nil {
		b.logger.Printf("publish %s to %d: %v", contentID, channelID, err)
		_, sendErr := b.messenger.SendText(ctx, operatorID, "❌ Publish failed: "+err.Error(), nil)
		return sendErr
	}
	_, err := b.messenger.SendText(ctx, operatorID,
		"📣 Published to "+b.cfg.TargetChannelTitle(channelID)+".", nil)
	return err
}

// ---- schedule panel ----

func (b *Bot) editSchedulePanel(ctx context.Context, cb *tgbotapi.CallbackQuery, page int) error {
	if page < 1 {
		page = 1
	}
	jobs, total, err := b.scheduler.List(ctx, page, filmsPerPage)
	if err != nil {
		return fmt.Errorf("list scheduled jobs: %w", err)
	}

	rows := make([][]telegram.Button, 0, len(jobs)+2)
	for _, job := range jobs {
		label := fmt.Sprintf("%s · %s · %s", job.Title, b.scheduler.LocalTime(job.FireAt), statusBadge(job.Status))
		rows = append(rows, telegram.Row(
			telegram.Button{Label: label, Data: "noop"},
			telegram.Button{Label: "❌", Data: "admin_sched_del::" + job.ID},
		))
	}

	var nav []telegram.Button
	if page > 1 {
		nav = append(nav, telegram.Button{Label: "⬅️", Data: "admin_sched::" + strconv.Itoa(page-1)})
	}
	if page*filmsPerPage < total {
		nav = append(nav, telegram.Button{Label: "➡️", Data: "admin_sched::" + strconv.Itoa(page+1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, telegram.Row(telegram.Button{Label: "🏠 Main menu", Data: "admin_home"}))

	text := fmt.Sprintf("🗓 <b>Scheduled posts</b> (%d)", total)
	if total == 0 {
		text = "🗓 Nothing scheduled."
	}
	return b.editOrSend(ctx, cb, text, &telegram.Keyboard{Rows: rows})
}

func statusBadge(status domain.JobStatus) string {
	switch status {
	case domain.JobStatusSent:
		return "✅"
	case domain.JobStatusFailed:
		return "⚠️"
	}
	return "⏳"
}

func (b *Bot) cancelScheduledJob(ctx context.Context, cb *tgbotapi.CallbackQuery, jobID string) error {
	if err := b.scheduler.Cancel(ctx, jobID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("cancel job %q: %w", jobID, err)
	}
	return b.editSchedulePanel(ctx, cb, 1)
}

// ---- stats & export ----

func (b *Bot) sendStats(ctx context.Context, chatID int64) error {
	items, total, err := b.content.List(ctx, domain.ContentListFilter{PageSize: 200})
	if err != nil {
		return fmt.Errorf("list content for stats: %w", err)
	}

	var views, downloads, shares int64
	lines := make([]string, 0, len(items))
	for _, item := range items {
		totals, err := b.ledger.Totals(ctx, item.ID)
		if err != nil {
			b.logger.Printf("totals for %s: %v", item.ID, err)
			continue
		}
		views += totals.Views
		downloads += totals.Downloads
		shares += totals.Shares
		if totals.Posts > 0 {
			lines = append(lines, fmt.Sprintf("• %s · 👁 %d ⬇️ %d 🔁 %d",
				item.Title, totals.Views, totals.Downloads, totals.Shares))
		}
	}

	text := fmt.Sprintf("📊 <b>Stats</b>\n🎬 Films: %d\n👁 Views: %d\n⬇️ Downloads: %d\n🔁 Shares: %d",
		total, views, downloads, shares)
	for _, line := range lines {
		text += "\n" + line
	}
	_, err = b.messenger.SendText(ctx, chatID, text, nil)
	return err
}

func (b *Bot) exportCatalog(ctx context.Context, chatID int64) error {
	items, _, err := b.content.List(ctx, domain.ContentListFilter{PageSize: 1000})
	if err != nil {
		return fmt.Errorf("list content for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"id", "title", "genre", "year", "files", "views", "downloads", "shares", "created_at"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range items {
		var views, downloads, shares int64
		if totals, err := b.ledger.Totals(ctx, item.ID); err == nil {
			views, downloads, shares = totals.Views, totals.Downloads, totals.Shares
		}
		record := []string{
			item.ID,
			item.Title,
			item.Genre,
			item.Year,
			strconv.Itoa(len(item.Files)),
			strconv.FormatInt(views, 10),
			strconv.FormatInt(downloads, 10),
			strconv.FormatInt(shares, 10),
			item.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	name := "catalog-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	return b.messenger.SendDocumentBytes(ctx, chatID, name, buf.Bytes(), "📤 Catalog export")
}
