package conversation

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/boxup/media-gate-bot/internal/config"
	"github.com/boxup/media-gate-bot/internal/domain"
	"github.com/boxup/media-gate-bot/internal/repository"
	"github.com/boxup/media-gate-bot/internal/scheduler"
	"github.com/boxup/media-gate-bot/internal/session"
)

type noopPublisher struct{}

func (noopPublisher) Publish(_ context.Context, _ string, _ int64) (*domain.PostReference, error) {
	return &domain.PostReference{}, nil
}

func newTestEngine(t *testing.T) (*Engine, repository.ContentRepository, session.Store) {
	t.Helper()

	content := repository.NewMemoryContentRepository()
	jobs := repository.NewMemoryJobsRepository()
	store := session.NewMemoryStore(session.DefaultTTL)
	t.Cleanup(store.Close)

	logger := log.New(io.Discard, "", 0)
	sched, err := scheduler.New(jobs, content, noopPublisher{}, "UTC", time.Minute, logger)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	channels := []config.TargetChannel{{Title: "Main", ID: -1001234567890}}
	return NewEngine(store, content, sched, channels, "gatebot"), content, store
}

func TestUploadFlowSingleFile(t *testing.T) {
	engine, content, _ := newTestEngine(t)
	ctx := context.Background()
	const operator = int64(7)

	if _, err := engine.BeginUpload(ctx, operator); err != nil {
		t.Fatalf("begin upload: %v", err)
	}

	steps := []struct {
		text  string
		media *Media
		want  string
	}{
		{text: "Title X", want: "genre"},
		{text: "Action", want: "year"},
		{text: "2024", want: "cover"},
		{media: &Media{Kind: domain.MediaKindPhoto, FileRef: "cover-1"}, want: "first file"},
		{media: &Media{Kind: domain.MediaKindVideo, FileRef: "file-1"}, want: "caption"},
		{text: "HDR rip", want: "quality"},
		{text: "720p", want: "another file"},
	}
	for i, step := range steps {
		var (
			r   *Reply
			err error
		)
		if step.media != nil {
			r, err = engine.HandleMedia(ctx, operator, *step.media)
		} else {
			r, err = engine.HandleText(ctx, operator, step.text)
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if r == nil || !strings.Contains(strings.ToLower(r.Text), step.want) {
			t.Fatalf("step %d: reply %+v does not mention %q", i, r, step.want)
		}
	}

	r, err := engine.ConfirmMore(ctx, operator, false)
	if err != nil {
		t.Fatalf("confirm no: %v", err)
	}
	if !strings.Contains(r.Text, "Saved") {
		t.Fatalf("finalize reply = %q", r.Text)
	}
	if r.Keyboard == nil || len(r.Keyboard.Rows) != 2 {
		t.Fatalf("finalize keyboard = %+v", r.Keyboard)
	}

	item, err := content.Get(ctx, "title_x")
	if err != nil {
		t.Fatalf("get saved item: %v", err)
	}
	if item.Title != "Title X" || item.Genre != "Action" || item.Year != "2024" {
		t.Fatalf("saved item fields = %+v", item)
	}
	if item.CoverRef != "cover-1" {
		t.Fatalf("cover = %q", item.CoverRef)
	}
	if len(item.Files) != 1 || item.Files[0].FileRef != "file-1" || item.Files[0].Quality != "720p" || item.Files[0].Caption != "HDR rip" {
		t.Fatalf("files = %+v", item.Files)
	}
	if item.OwnerID != operator {
		t.Fatalf("owner = %d", item.OwnerID)
	}
}

func TestUploadFlowMultipleFiles(t *testing.T) {
	engine, content, _ := newTestEngine(t)
	ctx := context.Background()
	const operator = int64(8)

	mustText := func(text string) {
		t.Helper()
		if _, err := engine.HandleText(ctx, operator, text); err != nil {
			t.Fatalf("text %q: %v", text, err)
		}
	}
	mustMedia := func(m Media) {
		t.Helper()
		if _, err := engine.HandleMedia(ctx, operator, m); err != nil {
			t.Fatalf("media %q: %v", m.FileRef, err)
		}
	}

	if _, err := engine.BeginUpload(ctx, operator); err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	mustText("Saga")
	mustText("Drama")
	mustText("2020")
	mustMedia(Media{Kind: domain.MediaKindPhoto, FileRef: "c"})
	mustMedia(Media{Kind: domain.MediaKindVideo, FileRef: "f1"})
	mustText("part one")
	mustText("480p")

	if _, err := engine.ConfirmMore(ctx, operator, true); err != nil {
		t.Fatalf("confirm yes: %v", err)
	}
	mustMedia(Media{Kind: domain.MediaKindDocument, FileRef: "f2"})
	mustText("part two")
	mustText("1080p")
	if _, err := engine.ConfirmMore(ctx, operator, false); err != nil {
		t.Fatalf("confirm no: %v", err)
	}

	item, err := content.Get(ctx, "saga")
	if err != nil {
		t.Fatalf("get saved item: %v", err)
	}
	if len(item.Files) != 2 {
		t.Fatalf("files = %+v", item.Files)
	}
	if item.Files[1].FileRef != "f2" || item.Files[1].Quality != "1080p" {
		t.Fatalf("second file = %+v", item.Files[1])
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	engine, _, store := newTestEngine(t)
	ctx := context.Background()
	const operator = int64(9)

	if _, err := engine.BeginUpload(ctx, operator); err != nil {
		t.Fatalf("begin upload: %v", err)
	}

	// Empty title re-prompts without advancing.
	r, err := engine.HandleText(ctx, operator, "   ")
	if err != nil {
		t.Fatalf("empty title: %v", err)
	}
	if !strings.Contains(r.Text, "title") {
		t.Fatalf("reply = %q", r.Text)
	}
	s, _ := store.Get(ctx, operator)
	if s.Step != session.StepTitle {
		t.Fatalf("step after empty title = %s", s.Step)
	}

	if _, err := engine.HandleText(ctx, operator, "Film"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.HandleText(ctx, operator, "Sci-fi"); err != nil {
		t.Fatal(err)
	}

	// Non-numeric year re-prompts.
	r, err = engine.HandleText(ctx, operator, "soon")
	if err != nil {
		t.Fatalf("bad year: %v", err)
	}
	if !strings.Contains(r.Text, "number") {
		t.Fatalf("reply = %q", r.Text)
	}
	// Empty year is allowed.
	if _, err := engine.HandleText(ctx, operator, ""); err != nil {
		t.Fatal(err)
	}

	// A video at the cover step is rejected.
	r, err = engine.HandleMedia(ctx, operator, Media{Kind: domain.MediaKindVideo, FileRef: "v"})
	if err != nil {
		t.Fatalf("video as cover: %v", err)
	}
	if !strings.Contains(r.Text, "photo") {
		t.Fatalf("reply = %q", r.Text)
	}
	if _, err := engine.HandleMedia(ctx, operator, Media{Kind: domain.MediaKindPhoto, FileRef: "c"}); err != nil {
		t.Fatal(err)
	}

	// A photo is not a deliverable file.
	r, err = engine.HandleMedia(ctx, operator, Media{Kind: domain.MediaKindPhoto, FileRef: "p"})
	if err != nil {
		t.Fatalf("photo as file: %v", err)
	}
	if !strings.Contains(r.Text, "video/document/audio") {
		t.Fatalf("reply = %q", r.Text)
	}
}

func TestUploadTitleCollisionGetsSuffix(t *testing.T) {
	engine, content, _ := newTestEngine(t)
	ctx := context.Background()

	if err := content.Upsert(ctx, &domain.ContentItem{ID: "avatar", Title: "Avatar"}); err != nil {
		t.Fatal(err)
	}

	const operator = int64(10)
	if _, err := engine.BeginUpload(ctx, operator); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"Avatar", "Fantasy", "2009"} {
		if _, err := engine.HandleText(ctx, operator, text); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := engine.HandleMedia(ctx, operator, Media{Kind: domain.MediaKindPhoto, FileRef: "c"}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.HandleMedia(ctx, operator, Media{Kind: domain.MediaKindVideo, FileRef: "f"}); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"cap", "720p"} {
		if _, err := engine.HandleText(ctx, operator, text); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := engine.ConfirmMore(ctx, operator, false); err != nil {
		t.Fatal(err)
	}

	if _, err := content.Get(ctx, "avatar_2"); err != nil {
		t.Fatalf("expected avatar_2 saved: %v", err)
	}
}

func TestEditFlows(t *testing.T) {
	engine, content, _ := newTestEngine(t)
	ctx := context.Background()
	const operator = int64(11)

	item := &domain.ContentItem{
		ID:    "thing",
		Title: "Thing",
		Files: []domain.FileVariant{{FileRef: "f1", Quality: "480p", Caption: "old"}},
	}
	if err := content.Upsert(ctx, item); err != nil {
		t.Fatal(err)
	}

	// Title edit.
	if _, err := engine.BeginEdit(ctx, operator, "thing", session.StepEditTitle); err != nil {
		t.Fatal(err)
	}
	r, err := engine.HandleText(ctx, operator, "The Thing")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.Text, "Title saved") {
		t.Fatalf("reply = %q", r.Text)
	}
	got, _ := content.Get(ctx, "thing")
	if got.Title != "The Thing" {
		t.Fatalf("title = %q", got.Title)
	}

	// Edit is one-shot: session gone afterwards.
	if engine.Active(ctx, operator) {
		t.Fatal("session still active after edit")
	}

	// Cover replacement requires a photo.
	if _, err := engine.BeginEdit(ctx, operator, "thing", session.StepReplaceCover); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.HandleMedia(ctx, operator, Media{Kind: domain.MediaKindPhoto, FileRef: "c2"}); err != nil {
		t.Fatal(err)
	}
	got, _ = content.Get(ctx, "thing")
	if got.CoverRef != "c2" {
		t.Fatalf("cover = %q", got.CoverRef)
	}

	// File-scoped caption edit.
	if _, err := engine.BeginFileEdit(ctx, operator, "thing", 0, session.StepFileEditCaption); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.HandleText(ctx, operator, "new cap"); err != nil {
		t.Fatal(err)
	}
	got, _ = content.Get(ctx, "thing")
	if got.Files[0].Caption != "new cap" {
		t.Fatalf("caption = %q", got.Files[0].Caption)
	}

	// File-add sub-flow.
	if _, err := engine.BeginFileAdd(ctx, operator, "thing"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.HandleMedia(ctx, operator, Media{Kind: domain.MediaKindAudio, FileRef: "f2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.HandleText(ctx, operator, "bonus"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.HandleText(ctx, operator, "320kbps"); err != nil {
		t.Fatal(err)
	}
	got, _ = content.Get(ctx, "thing")
	if len(got.Files) != 2 || got.Files[1].FileRef != "f2" || got.Files[1].Quality != "320kbps" {
		t.Fatalf("files = %+v", got.Files)
	}
}

func TestEditOnDeletedItemReportsAndClears(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	const operator = int64(12)

	if _, err := engine.BeginEdit(ctx, operator, "gone", session.StepEditTitle); err != nil {
		t.Fatal(err)
	}
	r, err := engine.HandleText(ctx, operator, "New")
	if err != nil {
		t.Fatalf("edit deleted item: %v", err)
	}
	if !strings.Contains(r.Text, "no longer exists") {
		t.Fatalf("reply = %q", r.Text)
	}
	if engine.Active(ctx, operator) {
		t.Fatal("session survived missing item")
	}
}

func TestSearchFlow(t *testing.T) {
	engine, content, _ := newTestEngine(t)
	ctx := context.Background()
	const operator = int64(13)

	if err := content.Upsert(ctx, &domain.ContentItem{ID: "dune", Title: "Dune", Year: "2021"}); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.BeginSearch(ctx, operator); err != nil {
		t.Fatal(err)
	}
	r, err := engine.HandleText(ctx, operator, "dun")
	if err != nil {
		t.Fatal(err)
	}
	if r.Keyboard == nil || len(r.Keyboard.Rows) != 2 {
		t.Fatalf("keyboard = %+v", r.Keyboard)
	}
	if r.Keyboard.Rows[0][0].Data != "film_open::dune" {
		t.Fatalf("first row = %+v", r.Keyboard.Rows[0])
	}
	if engine.Active(ctx, operator) {
		t.Fatal("search session should clear after query")
	}

	// Miss.
	if _, err := engine.BeginSearch(ctx, operator); err != nil {
		t.Fatal(err)
	}
	r, err = engine.HandleText(ctx, operator, "zzz")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.Text, "Nothing found") {
		t.Fatalf("reply = %q", r.Text)
	}
}

func TestScheduleFlow(t *testing.T) {
	engine, content, _ := newTestEngine(t)
	ctx := context.Background()
	const operator = int64(14)

	if err := content.Upsert(ctx, &domain.ContentItem{ID: "dune", Title: "Dune"}); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.BeginSchedule(ctx, operator, "dune"); err != nil {
		t.Fatal(err)
	}

	r, err := engine.HandleText(ctx, operator, "not-a-date")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.Text, "Invalid date") {
		t.Fatalf("reply = %q", r.Text)
	}

	if _, err := engine.HandleText(ctx, operator, "2099-05-01"); err != nil {
		t.Fatal(err)
	}

	r, err = engine.HandleText(ctx, operator, "25:99")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.Text, "Invalid time") {
		t.Fatalf("reply = %q", r.Text)
	}

	r, err = engine.HandleText(ctx, operator, "09:30")
	if err != nil {
		t.Fatal(err)
	}
	if r.Keyboard == nil || len(r.Keyboard.Rows) != 2 {
		t.Fatalf("channel keyboard = %+v", r.Keyboard)
	}

	r, err = engine.ScheduleChannelChosen(ctx, operator, -1001234567890)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.Text, "Scheduled") {
		t.Fatalf("reply = %q", r.Text)
	}
	if engine.Active(ctx, operator) {
		t.Fatal("schedule session should clear after channel pick")
	}
}

func TestScheduleCancel(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	const operator = int64(15)

	if _, err := engine.BeginSchedule(ctx, operator, "dune"); err != nil {
		t.Fatal(err)
	}
	r, err := engine.CancelSchedule(ctx, operator)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.Text, "cancelled") {
		t.Fatalf("reply = %q", r.Text)
	}
	if engine.Active(ctx, operator) {
		t.Fatal("session survived cancel")
	}
}

func TestNoSessionTextIsIgnored(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	r, err := engine.HandleText(context.Background(), 99, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Fatalf("expected nil reply, got %+v", r)
	}
}
