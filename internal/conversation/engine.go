// Package conversation drives the multi-step operator workflows: upload,
// field edit, file management, search and scheduling. Behavior is purely a
// function of (mode, step, input); invalid input re-prompts the same step.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/boxup/media-gate-bot/internal/config"
	"github.com/boxup/media-gate-bot/internal/deeplink"
	"github.com/boxup/media-gate-bot/internal/domain"
	"github.com/boxup/media-gate-bot/internal/repository"
	"github.com/boxup/media-gate-bot/internal/scheduler"
	"github.com/boxup/media-gate-bot/internal/session"
	"github.com/boxup/media-gate-bot/internal/telegram"
)

// Media is an inbound media object handed to the engine.
type Media struct {
	Kind    domain.MediaKind
	FileRef string
}

// Reply is what the engine wants shown to the operator after one input.
type Reply struct {
	Text     string
	Keyboard *telegram.Keyboard
}

func reply(text string) *Reply {
	return &Reply{Text: text}
}

// Engine advances one operator's session per input. Sessions are keyed by
// operator id, so starting any workflow replaces the previous one.
type Engine struct {
	sessions    session.Store
	content     repository.ContentRepository
	scheduler   *scheduler.Scheduler
	channels    []config.TargetChannel
	botUsername string
}

func NewEngine(
	sessions session.Store,
	content repository.ContentRepository,
	sched *scheduler.Scheduler,
	channels []config.TargetChannel,
	botUsername string,
) *Engine {
	return &Engine{
		sessions:    sessions,
		content:     content,
		scheduler:   sched,
		channels:    channels,
		botUsername: botUsername,
	}
}

// Active reports whether the operator has a workflow in flight.
func (e *Engine) Active(ctx context.Context, operatorID int64) bool {
	_, err := e.sessions.Get(ctx, operatorID)
	return err == nil
}

// Cancel discards any in-flight workflow.
func (e *Engine) Cancel(ctx context.Context, operatorID int64) error {
	return e.sessions.Delete(ctx, operatorID)
}

// BeginUpload starts the upload workflow at the title step.
func (e *Engine) BeginUpload(ctx context.Context, operatorID int64) (*Reply, error) {
	s := &session.Session{
		Mode:   session.ModeUpload,
		Step:   session.StepTitle,
		Upload: &session.UploadBuffer{},
	}
	if err := e.sessions.Put(ctx, operatorID, s); err != nil {
		return nil, err
	}
	return reply("🎬 Send the <b>title</b> (e.g. Avatar 2)."), nil
}

// BeginEdit starts an item-level field edit.
func (e *Engine) BeginEdit(ctx context.Context, operatorID int64, contentID string, step session.Step) (*Reply, error) {
	s := &session.Session{
		Mode: session.ModeEdit,
		Step: step,
		Edit: &session.EditTarget{ContentID: contentID, FileIndex: -1},
	}
	if err := e.sessions.Put(ctx, operatorID, s); err != nil {
		return nil, err
	}
	switch step {
	case session.StepEditTitle:
		return reply("🖊 Send the new title:"), nil
	case session.StepEditGenre:
		return reply("🎭 Send the new genre:"), nil
	case session.StepEditYear:
		return reply("📆 Send the new year (e.g. 2024):"), nil
	case session.StepReplaceCover:
		return reply("🖼 Send the new cover photo:"), nil
	}
	return nil, fmt.Errorf("begin edit: unsupported step %s", step)
}

// BeginFileEdit starts a file-scoped edit on one variant.
func (e *Engine) BeginFileEdit(ctx context.Context, operatorID int64, contentID string, index int, step session.Step) (*Reply, error) {
	s := &session.Session{
		Mode: session.ModeFileManage,
		Step: step,
		Edit: &session.EditTarget{ContentID: contentID, FileIndex: index},
	}
	if err := e.sessions.Put(ctx, operatorID, s); err != nil {
		return nil, err
	}
	switch step {
	case session.StepFileEditCaption:
		return reply("📝 Send the new caption:"), nil
	case session.StepFileEditQuality:
		return reply("🎞 Send the new quality (e.g. 1080p):"), nil
	case session.StepFileReplace:
		return reply("📤 Send the replacement file (video/document/audio):"), nil
	}
	return nil, fmt.Errorf("begin file edit: unsupported step %s", step)
}

// BeginFileAdd starts the add-variant sub-flow: file, caption, quality.
func (e *Engine) BeginFileAdd(ctx context.Context, operatorID int64, contentID string) (*Reply, error) {
	s := &session.Session{
		Mode: session.ModeFileManage,
		Step: session.StepFileAddPick,
		Edit: &session.EditTarget{ContentID: contentID, FileIndex: -1},
	}
	if err := e.sessions.Put(ctx, operatorID, s); err != nil {
		return nil, err
	}
	return reply("📤 Send the new file (video/document/audio):"), nil
}

// BeginSearch arms the stepless search mode: the next text is the query.
func (e *Engine) BeginSearch(ctx context.Context, operatorID int64) (*Reply, error) {
	s := &session.Session{Mode: session.ModeSearch, Step: session.StepSearchQuery}
	if err := e.sessions.Put(ctx, operatorID, s); err != nil {
		return nil, err
	}
	return reply("🔎 Send the search text (title/genre/year/id)..."), nil
}

// BeginSchedule starts the scheduling workflow for a content item.
func (e *Engine) BeginSchedule(ctx context.Context, operatorID int64, contentID string) (*Reply, error) {
	s := &session.Session{
		Mode:     session.ModeSchedule,
		Step:     session.StepScheduleDate,
		Schedule: &session.ScheduleDraft{ContentID: contentID},
	}
	if err := e.sessions.Put(ctx, operatorID, s); err != nil {
		return nil, err
	}
	return reply("📅 Send the publish date (YYYY-MM-DD):"), nil
}

// HandleText advances the session with a free-text input. A nil reply
// means no workflow is in flight for the operator.
func (e *Engine) HandleText(ctx context.Context, operatorID int64, text string) (*Reply, error) {
	s, err := e.sessions.Get(ctx, operatorID)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, nil
		}
		return nil, err
	}

	text = strings.TrimSpace(text)

	switch s.Mode {
	case session.ModeUpload:
		return e.uploadText(ctx, operatorID, s, text)
	case session.ModeEdit:
		return e.editText(ctx, operatorID, s, text)
	case session.ModeFileManage:
		return e.fileManageText(ctx, operatorID, s, text)
	case session.ModeSearch:
		return e.searchText(ctx, operatorID, text)
	case session.ModeSchedule:
		return e.scheduleText(ctx, operatorID, s, text)
	}
	return nil, nil
}

// HandleMedia advances the session with an inbound media object.
func (e *Engine) HandleMedia(ctx context.Context, operatorID int64, media Media) (*Reply, error) {
	s, err := e.sessions.Get(ctx, operatorID)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, nil
		}
		return nil, err
	}

	switch s.Mode {
	case session.ModeUpload:
		return e.uploadMedia(ctx, operatorID, s, media)
	case session.ModeEdit:
		return e.editMedia(ctx, operatorID, s, media)
	case session.ModeFileManage:
		return e.fileManageMedia(ctx, operatorID, s, media)
	}
	return nil, nil
}

// ---- upload mode ----

func (e *Engine) uploadText(ctx context.Context, operatorID int64, s *session.Session, text string) (*Reply, error) {
	buffer := s.Upload
	if buffer == nil {
		_ = e.sessions.Delete(ctx, operatorID)
		return reply("⚠️ Upload context lost. Start again with /upload."), nil
	}

	switch s.Step {
	case session.StepTitle:
		if text == "" {
			return reply("⚠️ The title is empty. Send it again."), nil
		}
		contentID, err := repository.UniqueContentID(ctx, e.content, text)
		if err != nil {
			return nil, fmt.Errorf("derive content id: %w", err)
		}
		buffer.Title = text
		buffer.ContentID = contentID
		s.Step = session.StepGenre
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("🎭 Send the <b>genre</b> (e.g. Action, Drama):"), nil

	case session.StepGenre:
		buffer.Genre = text
		s.Step = session.StepYear
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("📅 Send the <b>year</b> (e.g. <code>2023</code>):"), nil

	case session.StepYear:
		if !validYear(text) {
			return reply("⚠️ The year must be a number."), nil
		}
		buffer.Year = text
		s.Step = session.StepCover
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("🖼 Send the <b>cover</b> photo (just once)."), nil

	case session.StepCover:
		return reply("⚠️ Send the <b>cover</b> as a photo."), nil

	case session.StepFirstFile, session.StepNextFile:
		return reply("⚠️ Send a file (video/document/audio)."), nil

	case session.StepCaption:
		if buffer.PendingFileRef == "" {
			s.Step = fileIntakeStep(buffer)
			if err := e.sessions.Put(ctx, operatorID, s); err != nil {
				return nil, err
			}
			return reply("⚠️ Send the file first."), nil
		}
		buffer.PendingCaption = text
		s.Step = session.StepQuality
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("📽 Send the <b>quality</b> of this file (e.g. <code>720p</code>):"), nil

	case session.StepQuality:
		if text == "" {
			return reply("⚠️ The quality is empty. Send it again."), nil
		}
		if buffer.PendingFileRef == "" {
			s.Step = fileIntakeStep(buffer)
			if err := e.sessions.Put(ctx, operatorID, s); err != nil {
				return nil, err
			}
			return reply("⚠️ Send the file first."), nil
		}
		buffer.Files = append(buffer.Files, domain.FileVariant{
			FileRef: buffer.PendingFileRef,
			Kind:    buffer.PendingKind,
			Quality: text,
			Caption: buffer.PendingCaption,
		})
		buffer.PendingFileRef = ""
		buffer.PendingKind = ""
		buffer.PendingCaption = ""
		s.Step = session.StepConfirmMore
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return &Reply{
			Text: fmt.Sprintf("✅ File added.\n🎬 Title: %s\n📽 Quality: %s\n\nDo you have <b>another file</b> for this title?",
				buffer.Title, text),
			Keyboard: telegram.NewKeyboard(telegram.Row(
				telegram.Button{Label: "✅ Yes", Data: "more_yes"},
				telegram.Button{Label: "❌ No", Data: "more_no"},
			)),
		}, nil

	case session.StepConfirmMore:
		return reply("❔ Use the buttons: another file, yes or no?"), nil
	}
	return nil, nil
}

func (e *Engine) uploadMedia(ctx context.Context, operatorID int64, s *session.Session, media Media) (*Reply, error) {
	buffer := s.Upload
	if buffer == nil {
		_ = e.sessions.Delete(ctx, operatorID)
		return reply("⚠️ Upload context lost. Start again with /upload."), nil
	}

	switch s.Step {
	case session.StepCover:
		if media.Kind != domain.MediaKindPhoto {
			return reply("⚠️ Send the <b>cover</b> as a photo."), nil
		}
		buffer.CoverRef = media.FileRef
		s.Step = session.StepFirstFile
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("📤 Cover saved. Now send the <b>first file</b> (video/document/audio)."), nil

	case session.StepFirstFile, session.StepNextFile:
		if !deliverableKind(media.Kind) {
			return reply("⚠️ Only video/document/audio is accepted. Send it again."), nil
		}
		buffer.PendingFileRef = media.FileRef
		buffer.PendingKind = media.Kind
		s.Step = session.StepCaption
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("📝 Send the <b>caption</b> for this file:"), nil
	}
	return reply("⚠️ Not expecting media right now."), nil
}

// ConfirmMore resolves the yes/no branch after a file variant lands. No
// finalizes: the buffer becomes a content item and the session ends.
func (e *Engine) ConfirmMore(ctx context.Context, operatorID int64, more bool) (*Reply, error) {
	s, err := e.sessions.Get(ctx, operatorID)
	if err != nil || s.Mode != session.ModeUpload || s.Upload == nil {
		return reply("⚠️ Upload context lost. Start again with /upload."), nil
	}
	buffer := s.Upload

	if more {
		buffer.PendingFileRef = ""
		buffer.PendingKind = ""
		buffer.PendingCaption = ""
		s.Step = session.StepNextFile
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("📤 Send the next file."), nil
	}

	item := &domain.ContentItem{
		ID:        buffer.ContentID,
		OwnerID:   operatorID,
		Title:     buffer.Title,
		Genre:     buffer.Genre,
		Year:      buffer.Year,
		CoverRef:  buffer.CoverRef,
		Files:     buffer.Files,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.content.Upsert(ctx, item); err != nil {
		return nil, fmt.Errorf("save content: %w", err)
	}
	if err := e.sessions.Delete(ctx, operatorID); err != nil {
		return nil, err
	}

	link := "https://t.me/" + e.botUsername + "?start=" + deeplink.EncodeContent(item.ID)
	return &Reply{
		Text: fmt.Sprintf("✅ Saved.\n\n🎬 Title: %s\n📂 Files: %d\n🔗 Bot link: %s\n\n🕓 Choose:",
			item.Title, len(item.Files), link),
		Keyboard: telegram.NewKeyboard(
			telegram.Row(telegram.Button{Label: "⏰ Schedule", Data: "sched_yes::" + item.ID}),
			telegram.Row(telegram.Button{Label: "📣 Send now", Data: "sched_no::" + item.ID}),
		),
	}, nil
}

// ---- edit mode ----

func (e *Engine) editText(ctx context.Context, operatorID int64, s *session.Session, text string) (*Reply, error) {
	target := s.Edit
	if target == nil || target.ContentID == "" {
		_ = e.sessions.Delete(ctx, operatorID)
		return reply("⚠️ Edit context lost. Try again."), nil
	}

	backToItem := backKeyboard("film_open::" + target.ContentID)

	switch s.Step {
	case session.StepEditTitle:
		if text == "" {
			return reply("⚠️ The title is empty. Send it again."), nil
		}
		if err := e.applyEdit(ctx, operatorID, e.content.SetTitle(ctx, target.ContentID, text)); err != nil {
			return e.editFailed(ctx, operatorID, err)
		}
		return &Reply{Text: "✅ Title saved.", Keyboard: backToItem}, nil

	case session.StepEditGenre:
		if err := e.applyEdit(ctx, operatorID, e.content.SetGenre(ctx, target.ContentID, text)); err != nil {
			return e.editFailed(ctx, operatorID, err)
		}
		return &Reply{Text: "✅ Genre saved.", Keyboard: backToItem}, nil

	case session.StepEditYear:
		if !validYear(text) {
			return reply("⚠️ The year must be a number."), nil
		}
		if err := e.applyEdit(ctx, operatorID, e.content.SetYear(ctx, target.ContentID, text)); err != nil {
			return e.editFailed(ctx, operatorID, err)
		}
		return &Reply{Text: "✅ Year saved.", Keyboard: backToItem}, nil

	case session.StepReplaceCover:
		return reply("⚠️ Send the cover as a photo."), nil
	}
	return nil, nil
}

func (e *Engine) editMedia(ctx context.Context, operatorID int64, s *session.Session, media Media) (*Reply, error) {
	target := s.Edit
	if target == nil || target.ContentID == "" {
		_ = e.sessions.Delete(ctx, operatorID)
		return reply("⚠️ Edit context lost. Try again."), nil
	}

	if s.Step == session.StepReplaceCover {
		if media.Kind != domain.MediaKindPhoto {
			return reply("⚠️ Send the cover as a photo."), nil
		}
		if err := e.applyEdit(ctx, operatorID, e.content.SetCover(ctx, target.ContentID, media.FileRef)); err != nil {
			return e.editFailed(ctx, operatorID, err)
		}
		return &Reply{Text: "✅ Cover replaced.", Keyboard: backKeyboard("film_open::" + target.ContentID)}, nil
	}
	return reply("⚠️ Not expecting media right now."), nil
}

// ---- file-manage mode ----

func (e *Engine) fileManageText(ctx context.Context, operatorID int64, s *session.Session, text string) (*Reply, error) {
	target := s.Edit
	if target == nil || target.ContentID == "" {
		_ = e.sessions.Delete(ctx, operatorID)
		return reply("⚠️ Edit context lost. Try again."), nil
	}

	backToFiles := backKeyboard("film_files::" + target.ContentID)

	switch s.Step {
	case session.StepFileEditCaption:
		if err := e.applyEdit(ctx, operatorID, e.content.UpdateFileCaption(ctx, target.ContentID, target.FileIndex, text)); err != nil {
			return e.editFailed(ctx, operatorID, err)
		}
		return &Reply{Text: "✅ File caption saved.", Keyboard: backToFiles}, nil

	case session.StepFileEditQuality:
		if err := e.applyEdit(ctx, operatorID, e.content.UpdateFileQuality(ctx, target.ContentID, target.FileIndex, text)); err != nil {
			return e.editFailed(ctx, operatorID, err)
		}
		return &Reply{Text: "✅ File quality saved.", Keyboard: backToFiles}, nil

	case session.StepFileAddCaption:
		target.PendingCaption = text
		s.Step = session.StepFileAddQuality
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("📽 Send the quality of the new file (e.g. 720p):"), nil

	case session.StepFileAddQuality:
		if target.PendingFileRef == "" {
			_ = e.sessions.Delete(ctx, operatorID)
			return reply("⚠️ Send the media file first."), nil
		}
		file := domain.FileVariant{
			FileRef: target.PendingFileRef,
			Kind:    target.PendingKind,
			Quality: text,
			Caption: target.PendingCaption,
		}
		if err := e.applyEdit(ctx, operatorID, e.content.AppendFile(ctx, target.ContentID, file)); err != nil {
			return e.editFailed(ctx, operatorID, err)
		}
		return &Reply{Text: "✅ New file added.", Keyboard: backToFiles}, nil

	case session.StepFileReplace, session.StepFileAddPick:
		return reply("⚠️ Send a file (video/document/audio)."), nil
	}
	return nil, nil
}

func (e *Engine) fileManageMedia(ctx context.Context, operatorID int64, s *session.Session, media Media) (*Reply, error) {
	target := s.Edit
	if target == nil || target.ContentID == "" {
		_ = e.sessions.Delete(ctx, operatorID)
		return reply("⚠️ Edit context lost. Try again."), nil
	}

	switch s.Step {
	case session.StepFileReplace:
		if !deliverableKind(media.Kind) {
			return reply("⚠️ Only video/document/audio can replace a file."), nil
		}
		if err := e.applyEdit(ctx, operatorID, e.content.UpdateFileRef(ctx, target.ContentID, target.FileIndex, media.FileRef, media.Kind)); err != nil {
			return e.editFailed(ctx, operatorID, err)
		}
		return &Reply{Text: "✅ File replaced.", Keyboard: backKeyboard("film_files::" + target.ContentID)}, nil

	case session.StepFileAddPick:
		if !deliverableKind(media.Kind) {
			return reply("⚠️ Only video/document/audio is accepted."), nil
		}
		target.PendingFileRef = media.FileRef
		target.PendingKind = media.Kind
		s.Step = session.StepFileAddCaption
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("📝 Send the caption for the new file:"), nil
	}
	return reply("⚠️ Not expecting media right now."), nil
}

// ---- search mode ----

func (e *Engine) searchText(ctx context.Context, operatorID int64, query string) (*Reply, error) {
	if err := e.sessions.Delete(ctx, operatorID); err != nil {
		return nil, err
	}

	items, _, err := e.content.List(ctx, domain.ContentListFilter{Query: query, PageSize: 50})
	if err != nil {
		return nil, fmt.Errorf("search content: %w", err)
	}
	if len(items) == 0 {
		return reply("❌ Nothing found. /admin"), nil
	}

	rows := make([][]telegram.Button, 0, len(items)+1)
	for _, item := range items {
		label := item.Title
		if item.Year != "" {
			label += " (" + item.Year + ")"
		}
		rows = append(rows, telegram.Row(telegram.Button{Label: label, Data: "film_open::" + item.ID}))
	}
	rows = append(rows, telegram.Row(telegram.Button{Label: "🏠 Main menu", Data: "admin_home"}))

	return &Reply{Text: "🔎 Search results:", Keyboard: &telegram.Keyboard{Rows: rows}}, nil
}

// ---- schedule mode ----

func (e *Engine) scheduleText(ctx context.Context, operatorID int64, s *session.Session, text string) (*Reply, error) {
	draft := s.Schedule
	if draft == nil || draft.ContentID == "" {
		_ = e.sessions.Delete(ctx, operatorID)
		return reply("⚠️ Scheduling context lost. Try again."), nil
	}

	switch s.Step {
	case session.StepScheduleDate:
		if _, err := time.Parse("2006-01-02", text); err != nil {
			return reply("⚠️ Invalid date. Use YYYY-MM-DD:"), nil
		}
		draft.Date = text
		s.Step = session.StepScheduleTime
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return reply("🕒 Send the publish time (HH:MM):"), nil

	case session.StepScheduleTime:
		if _, err := time.Parse("15:04", text); err != nil {
			return reply("⚠️ Invalid time. Use HH:MM:"), nil
		}
		draft.Time = text
		s.Step = session.StepScheduleChannel
		if err := e.sessions.Put(ctx, operatorID, s); err != nil {
			return nil, err
		}
		return &Reply{Text: "🎯 Pick the target channel:", Keyboard: e.channelKeyboard("sched_ch", true)}, nil

	case session.StepScheduleChannel:
		return reply("❔ Pick a channel with the buttons."), nil
	}
	return nil, nil
}

// ScheduleChannelChosen finishes the scheduling workflow with the picked
// channel. An invalid date/time combination re-prompts from the date step.
func (e *Engine) ScheduleChannelChosen(ctx context.Context, operatorID int64, channelID int64) (*Reply, error) {
	s, err := e.sessions.Get(ctx, operatorID)
	if err != nil || s.Mode != session.ModeSchedule || s.Schedule == nil {
		return reply("⚠️ Scheduling context lost. Try again."), nil
	}
	draft := s.Schedule

	job, err := e.scheduler.Schedule(ctx, draft.ContentID, channelID, draft.Date, draft.Time)
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidTime) {
			s.Step = session.StepScheduleDate
			draft.Date = ""
			draft.Time = ""
			if putErr := e.sessions.Put(ctx, operatorID, s); putErr != nil {
				return nil, putErr
			}
			return reply("❌ Invalid date/time. Send the publish date again (YYYY-MM-DD):"), nil
		}
		return nil, err
	}

	if err := e.sessions.Delete(ctx, operatorID); err != nil {
		return nil, err
	}
	return reply("✅ Scheduled for " + e.scheduler.LocalTime(job.FireAt) + "."), nil
}

// CancelSchedule discards the scheduling draft.
func (e *Engine) CancelSchedule(ctx context.Context, operatorID int64) (*Reply, error) {
	if err := e.sessions.Delete(ctx, operatorID); err != nil {
		return nil, err
	}
	return reply("⛔️ Scheduling cancelled."), nil
}

func (e *Engine) channelKeyboard(action string, withCancel bool) *telegram.Keyboard {
	rows := make([][]telegram.Button, 0, len(e.channels)+1)
	for _, ch := range e.channels {
		rows = append(rows, telegram.Row(telegram.Button{
			Label: ch.Title,
			Data:  action + "::" + strconv.FormatInt(ch.ID, 10),
		}))
	}
	if withCancel {
		rows = append(rows, telegram.Row(telegram.Button{Label: "❌ Cancel", Data: "sched_cancel"}))
	}
	return &telegram.Keyboard{Rows: rows}
}

// ---- helpers ----

// applyEdit clears the session after a field write, matching the
// one-shot shape of edit steps.
func (e *Engine) applyEdit(ctx context.Context, operatorID int64, writeErr error) error {
	if writeErr != nil {
		return writeErr
	}
	return e.sessions.Delete(ctx, operatorID)
}

func (e *Engine) editFailed(ctx context.Context, operatorID int64, err error) (*Reply, error) {
	_ = e.sessions.Delete(ctx, operatorID)
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrFileIndex) {
		return reply("⚠️ The item or file no longer exists. /admin"), nil
	}
	return nil, err
}

func fileIntakeStep(buffer *session.UploadBuffer) session.Step {
	if len(buffer.Files) == 0 {
		return session.StepFirstFile
	}
	return session.StepNextFile
}

func validYear(year string) bool {
	if year == "" {
		return true
	}
	for _, r := range year {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func deliverableKind(kind domain.MediaKind) bool {
	switch kind {
	case domain.MediaKindVideo, domain.MediaKindDocument, domain.MediaKindAudio:
		return true
	}
	return false
}

func backKeyboard(data string) *telegram.Keyboard {
	return telegram.NewKeyboard(telegram.Row(telegram.Button{Label: "↩️ Back", Data: data}))
}
