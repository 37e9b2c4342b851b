package engagement

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/boxup/media-gate-bot/internal/domain"
	"github.com/boxup/media-gate-bot/internal/repository"
	"github.com/boxup/media-gate-bot/internal/telegram"
)

// fakeMessenger records keyboard edits and serves canned view counts.
type fakeMessenger struct {
	keyboardEdits int
	lastKeyboard  *telegram.Keyboard
	views         map[int]int64
	viewsErr      error
}

func (f *fakeMessenger) SendText(context.Context, int64, string, *telegram.Keyboard) (int, error) {
	return 1, nil
}

func (f *fakeMessenger) SendPhoto(context.Context, int64, string, string, *telegram.Keyboard) (int, error) {
	return 1, nil
}

func (f *fakeMessenger) SendFile(context.Context, int64, domain.MediaKind, string, string) (int, error) {
	return 1, nil
}

func (f *fakeMessenger) SendDocumentBytes(context.Context, int64, string, []byte, string) error {
	return nil
}

func (f *fakeMessenger) EditText(context.Context, int64, int, string, *telegram.Keyboard) error {
	return nil
}

func (f *fakeMessenger) EditKeyboard(_ context.Context, _ int64, _ int, kb *telegram.Keyboard) error {
	f.keyboardEdits++
	f.lastKeyboard = kb
	return nil
}

func (f *fakeMessenger) DeleteMessage(context.Context, int64, int) error { return nil }

func (f *fakeMessenger) ReportedViews(context.Context, int64, []int) (map[int]int64, error) {
	if f.viewsErr != nil {
		return nil, f.viewsErr
	}
	return f.views, nil
}

func (f *fakeMessenger) IsMember(context.Context, string, int64) (bool, error) { return true, nil }

func (f *fakeMessenger) AnswerCallback(context.Context, string, string, bool) error { return nil }

func newTestLedger() (*Ledger, *fakeMessenger, repository.EngagementRepository) {
	repo := repository.NewMemoryEngagementRepository()
	messenger := &fakeMessenger{}
	ledger := NewLedger(repo, messenger, "gatebot", log.New(io.Discard, "", 0))
	return ledger, messenger, repo
}

var testKey = domain.PostKey{ContentID: "dune", ChannelID: -1001234567890, MessageID: 42}

func TestInitializePostIsIdempotent(t *testing.T) {
	ledger, _, repo := newTestLedger()
	ctx := context.Background()

	if err := ledger.InitializePost(ctx, testKey, 7); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := ledger.CountDownload(ctx, testKey); err != nil {
		t.Fatalf("download: %v", err)
	}
	// A duplicate publish attempt must not reset live counters.
	if err := ledger.InitializePost(ctx, testKey, 0); err != nil {
		t.Fatalf("re-initialize: %v", err)
	}

	record, err := repo.Get(ctx, testKey.ChannelID, testKey.MessageID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Downloads != 1 {
		t.Fatalf("downloads = %d, want 1", record.Downloads)
	}
	if record.Views != 7 {
		t.Fatalf("views = %d, want 7", record.Views)
	}
}

func TestCounterMonotonicity(t *testing.T) {
	ledger, _, repo := newTestLedger()
	ctx := context.Background()

	if err := ledger.InitializePost(ctx, testKey, 0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := ledger.CountDownload(ctx, testKey); err != nil {
			t.Fatalf("download %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := ledger.CountShare(ctx, testKey.ChannelID, testKey.MessageID); err != nil {
			t.Fatalf("share %d: %v", i, err)
		}
	}

	record, err := repo.Get(ctx, testKey.ChannelID, testKey.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if record.Downloads != 5 {
		t.Fatalf("downloads = %d, want 5", record.Downloads)
	}
	if record.Shares != 3 {
		t.Fatalf("shares = %d, want 3", record.Shares)
	}
}

func TestToggleReactionIdempotencyAndSwitch(t *testing.T) {
	ledger, _, repo := newTestLedger()
	ctx := context.Background()
	const user = int64(55)

	if err := ledger.InitializePost(ctx, testKey, 0); err != nil {
		t.Fatal(err)
	}

	if err := ledger.ToggleReaction(ctx, testKey.ChannelID, testKey.MessageID, user, domain.ReactionLike); err != nil {
		t.Fatalf("first like: %v", err)
	}
	err := ledger.ToggleReaction(ctx, testKey.ChannelID, testKey.MessageID, user, domain.ReactionLike)
	if !errors.Is(err, ErrAlreadyReacted) {
		t.Fatalf("repeat like err = %v, want ErrAlreadyReacted", err)
	}

	record, _ := repo.Get(ctx, testKey.ChannelID, testKey.MessageID)
	if record.Reactions[domain.ReactionLike] != 1 {
		t.Fatalf("like tally = %d, want 1", record.Reactions[domain.ReactionLike])
	}

	// Switching kinds moves one unit between tallies.
	if err := ledger.ToggleReaction(ctx, testKey.ChannelID, testKey.MessageID, user, domain.ReactionHeart); err != nil {
		t.Fatalf("switch to heart: %v", err)
	}
	record, _ = repo.Get(ctx, testKey.ChannelID, testKey.MessageID)
	if record.Reactions[domain.ReactionLike] != 0 {
		t.Fatalf("like tally after switch = %d, want 0", record.Reactions[domain.ReactionLike])
	}
	if record.Reactions[domain.ReactionHeart] != 1 {
		t.Fatalf("heart tally after switch = %d, want 1", record.Reactions[domain.ReactionHeart])
	}
}

func TestToggleReactionRejectsUnknownKind(t *testing.T) {
	ledger, _, _ := newTestLedger()
	ctx := context.Background()

	if err := ledger.InitializePost(ctx, testKey, 0); err != nil {
		t.Fatal(err)
	}
	if err := ledger.ToggleReaction(ctx, testKey.ChannelID, testKey.MessageID, 1, "sparkle"); err == nil {
		t.Fatal("expected error for unknown reaction kind")
	}
}

func TestMutationsRefreshKeyboard(t *testing.T) {
	ledger, messenger, _ := newTestLedger()
	ctx := context.Background()

	if err := ledger.InitializePost(ctx, testKey, 0); err != nil {
		t.Fatal(err)
	}
	if err := ledger.CountDownload(ctx, testKey); err != nil {
		t.Fatal(err)
	}
	if messenger.keyboardEdits != 1 {
		t.Fatalf("keyboard edits = %d, want 1", messenger.keyboardEdits)
	}
	if messenger.lastKeyboard == nil || len(messenger.lastKeyboard.Rows) != 3 {
		t.Fatalf("refreshed keyboard = %+v", messenger.lastKeyboard)
	}
}

func TestSetViewsOverwrites(t *testing.T) {
	ledger, _, repo := newTestLedger()
	ctx := context.Background()

	if err := ledger.InitializePost(ctx, testKey, 100); err != nil {
		t.Fatal(err)
	}
	if err := ledger.SetViews(ctx, testKey, 42); err != nil {
		t.Fatal(err)
	}
	record, _ := repo.Get(ctx, testKey.ChannelID, testKey.MessageID)
	if record.Views != 42 {
		t.Fatalf("views = %d, want 42", record.Views)
	}
}

func TestResyncViewsUpdatesFromTransport(t *testing.T) {
	ledger, messenger, repo := newTestLedger()
	ctx := context.Background()

	if err := ledger.InitializePost(ctx, testKey, 10); err != nil {
		t.Fatal(err)
	}
	messenger.views = map[int]int64{testKey.MessageID: 250}

	if err := ledger.ResyncViews(ctx, 48*time.Hour); err != nil {
		t.Fatalf("resync: %v", err)
	}
	record, _ := repo.Get(ctx, testKey.ChannelID, testKey.MessageID)
	if record.Views != 250 {
		t.Fatalf("views = %d, want 250", record.Views)
	}
}

func TestResyncViewsToleratesUnsupportedTransport(t *testing.T) {
	ledger, messenger, _ := newTestLedger()
	ctx := context.Background()

	if err := ledger.InitializePost(ctx, testKey, 10); err != nil {
		t.Fatal(err)
	}
	messenger.viewsErr = telegram.ErrUnsupported

	if err := ledger.ResyncViews(ctx, 48*time.Hour); err != nil {
		t.Fatalf("resync with unsupported transport: %v", err)
	}
}

func TestRenderKeyboardCarriesPostToken(t *testing.T) {
	record := &domain.EngagementRecord{
		ContentID: "dune",
		ChannelID: -1001234567890,
		MessageID: 42,
		Views:     5,
		Downloads: 2,
		Shares:    1,
		Reactions: map[domain.ReactionKind]int64{domain.ReactionLike: 3},
	}

	kb := RenderKeyboard(record, "gatebot")
	if len(kb.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(kb.Rows))
	}

	counters := kb.Rows[0]
	if counters[0].Label != "👁 5" || counters[1].Label != "⬇️ 2" || counters[2].Label != "🔁 1" {
		t.Fatalf("counter row = %+v", counters)
	}
	if counters[2].Data != "share::-1001234567890::42" {
		t.Fatalf("share data = %q", counters[2].Data)
	}

	reactions := kb.Rows[1]
	if reactions[0].Data != "react::like::-1001234567890::42" {
		t.Fatalf("like data = %q", reactions[0].Data)
	}
	if !strings.HasPrefix(reactions[0].Label, "👍 3") {
		t.Fatalf("like label = %q", reactions[0].Label)
	}

	links := kb.Rows[2]
	if !strings.Contains(links[0].URL, "t.me/gatebot?start=dune-n1001234567890-m42-pst1") {
		t.Fatalf("files link = %q", links[0].URL)
	}
	if links[1].URL != "https://t.me/c/1234567890/42?comment=1" {
		t.Fatalf("comment link = %q", links[1].URL)
	}
}
