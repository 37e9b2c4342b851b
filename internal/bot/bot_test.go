package bot

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
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
	"github.com/boxup/media-gate-bot/internal/session"
	"github.com/boxup/media-gate-bot/internal/telegram"
)

type sentMessage struct {
	chatID   int64
	text     string
	keyboard *telegram.Keyboard
}

type sentFile struct {
	chatID  int64
	kind    domain.MediaKind
	fileRef string
}

// scriptedMessenger records outbound traffic and answers membership
// checks from a switch.
type scriptedMessenger struct {
	member   bool
	texts    []sentMessage
	files    []sentFile
	answers  []string
	nextID   int
	deletes  int
	docNames []string
}

func (m *scriptedMessenger) allocID() int {
	m.nextID++
	return m.nextID
}

func (m *scriptedMessenger) SendText(_ context.Context, chatID int64, text string, kb *telegram.Keyboard) (int, error) {
	m.texts = append(m.texts, sentMessage{chatID: chatID, text: text, keyboard: kb})
	return m.allocID(), nil
}

func (m *scriptedMessenger) SendPhoto(_ context.Context, chatID int64, _ string, caption string, kb *telegram.Keyboard) (int, error) {
	m.texts = append(m.texts, sentMessage{chatID: chatID, text: caption, keyboard: kb})
	return m.allocID(), nil
}

func (m *scriptedMessenger) SendFile(_ context.Context, chatID int64, kind domain.MediaKind, fileRef, _ string) (int, error) {
	m.files = append(m.files, sentFile{chatID: chatID, kind: kind, fileRef: fileRef})
	return m.allocID(), nil
}

func (m *scriptedMessenger) SendDocumentBytes(_ context.Context, _ int64, name string, _ []byte, _ string) error {
	m.docNames = append(m.docNames, name)
	return nil
}

func (m *scriptedMessenger) EditText(context.Context, int64, int, string, *telegram.Keyboard) error {
	return nil
}

func (m *scriptedMessenger) EditKeyboard(context.Context, int64, int, *telegram.Keyboard) error {
	return nil
}

func (m *scriptedMessenger) DeleteMessage(context.Context, int64, int) error {
	m.deletes++
	return nil
}

func (m *scriptedMessenger) ReportedViews(context.Context, int64, []int) (map[int]int64, error) {
	return nil, telegram.ErrUnsupported
}

func (m *scriptedMessenger) IsMember(context.Context, string, int64) (bool, error) {
	return m.member, nil
}

func (m *scriptedMessenger) AnswerCallback(_ context.Context, _ string, text string, _ bool) error {
	m.answers = append(m.answers, text)
	return nil
}

func (m *scriptedMessenger) lastText() string {
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1].text
}

type fixture struct {
	bot        *Bot
	messenger  *scriptedMessenger
	content    repository.ContentRepository
	engagement repository.EngagementRepository
	ledger     *engagement.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Config{
		BotUsername:        "gatebot",
		AdminIDs:           []int64{100},
		RequiredChannels:   []string{"@gatechannel"},
		TargetChannels:     []config.TargetChannel{{Title: "Main", ID: -100}},
		DeleteDelaySeconds: 0,
	}

	logger := log.New(io.Discard, "", 0)
	messenger := &scriptedMessenger{}
	content := repository.NewMemoryContentRepository()
	jobs := repository.NewMemoryJobsRepository()
	engagementRepo := repository.NewMemoryEngagementRepository()
	store := session.NewMemoryStore(session.DefaultTTL)
	t.Cleanup(store.Close)

	ledger := engagement.NewLedger(engagementRepo, messenger, cfg.BotUsername, logger)
	publisher := publish.NewPublisher(content, ledger, messenger, cfg.BotUsername, logger)
	sched, err := scheduler.New(jobs, content, publisher, "UTC", time.Minute, logger)
	if err != nil {
		t.Fatal(err)
	}
	engine := conversation.NewEngine(store, content, sched, cfg.TargetChannels, cfg.BotUsername)

	return &fixture{
		bot:        New(&cfg, messenger, content, engine, ledger, publisher, sched, logger),
		messenger:  messenger,
		content:    content,
		engagement: engagementRepo,
		ledger:     ledger,
	}
}

func privateMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		length := len(text)
		if space := strings.Index(text, " "); space > 0 {
			length = space
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	return msg
}

func seedPublishedPost(t *testing.T, f *fixture) domain.PostKey {
	t.Helper()
	ctx := context.Background()

	item := &domain.ContentItem{
		ID:    "dune",
		Title: "Dune",
		Files: []domain.FileVariant{{FileRef: "f1", Kind: domain.MediaKindVideo, Quality: "720p"}},
	}
	if err := f.content.Upsert(ctx, item); err != nil {
		t.Fatal(err)
	}

	key := domain.PostKey{ContentID: "dune", ChannelID: -100, MessageID: 9}
	if err := f.engagement.InitializePost(ctx, key, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.engagement.CreatePostReference(ctx, &domain.PostReference{
		ContentID: key.ContentID, ChannelID: key.ChannelID, MessageID: key.MessageID, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	return key
}

func TestStartWithTokenGatesNonMembers(t *testing.T) {
	f := newFixture(t)
	key := seedPublishedPost(t, f)
	f.messenger.member = false
	ctx := context.Background()

	token := deeplink.EncodePost(key.ContentID, key.ChannelID, key.MessageID)
	if err := f.bot.handleMessage(ctx, privateMessage(500, "/start "+token)); err != nil {
		t.Fatal(err)
	}

	if len(f.messenger.files) != 0 {
		t.Fatalf("files delivered through closed gate: %+v", f.messenger.files)
	}
	last := f.messenger.texts[len(f.messenger.texts)-1]
	if !strings.Contains(last.text, "Join") {
		t.Fatalf("gate prompt = %q", last.text)
	}
	if last.keyboard == nil || len(last.keyboard.Rows) != 2 {
		t.Fatalf("gate keyboard = %+v", last.keyboard)
	}
}

func TestMembershipConfirmDeliversAndCountsDownload(t *testing.T) {
	f := newFixture(t)
	key := seedPublishedPost(t, f)
	f.messenger.member = false
	ctx := context.Background()

	token := deeplink.EncodePost(key.ContentID, key.ChannelID, key.MessageID)
	if err := f.bot.handleMessage(ctx, privateMessage(500, "/start "+token)); err != nil {
		t.Fatal(err)
	}

	f.messenger.member = true
	cb := &tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 500},
		Data: "check_subscription",
	}
	if err := f.bot.handleCallback(ctx, cb); err != nil {
		t.Fatal(err)
	}

	if len(f.messenger.files) != 1 {
		t.Fatalf("delivered files = %+v", f.messenger.files)
	}
	if f.messenger.files[0].kind != domain.MediaKindVideo || f.messenger.files[0].fileRef != "f1" {
		t.Fatalf("delivered file = %+v", f.messenger.files[0])
	}

	record, err := f.engagement.Get(ctx, key.ChannelID, key.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if record.Downloads != 1 {
		t.Fatalf("downloads = %d, want 1", record.Downloads)
	}
}

func TestStartWithBareContentLinkSkipsDownloadCount(t *testing.T) {
	f := newFixture(t)
	key := seedPublishedPost(t, f)
	f.messenger.member = true
	ctx := context.Background()

	if err := f.bot.handleMessage(ctx, privateMessage(500, "/start "+deeplink.EncodeContent("dune"))); err != nil {
		t.Fatal(err)
	}

	if len(f.messenger.files) != 1 {
		t.Fatalf("delivered files = %+v", f.messenger.files)
	}
	record, err := f.engagement.Get(ctx, key.ChannelID, key.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if record.Downloads != 0 {
		t.Fatalf("downloads = %d, want 0 for unattributed entry", record.Downloads)
	}
}

func TestBareStartSendsWelcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.bot.handleMessage(ctx, privateMessage(500, "/start")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.messenger.lastText(), "Welcome") {
		t.Fatalf("welcome = %q", f.messenger.lastText())
	}
}

func TestOperatorCommandsAreAdminGated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.bot.handleMessage(ctx, privateMessage(500, "/upload")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.messenger.lastText(), "operators only") {
		t.Fatalf("deny notice = %q", f.messenger.lastText())
	}

	if err := f.bot.handleMessage(ctx, privateMessage(100, "/upload")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.messenger.lastText(), "title") {
		t.Fatalf("upload prompt = %q", f.messenger.lastText())
	}
}

func TestReactionCallbackCountsOncePerUser(t *testing.T) {
	f := newFixture(t)
	key := seedPublishedPost(t, f)
	ctx := context.Background()

	data := "react::like::-100::9"
	cb := func(user int64) *tgbotapi.CallbackQuery {
		return &tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: user}, Data: data}
	}

	if err := f.bot.handleCallback(ctx, cb(500)); err != nil {
		t.Fatal(err)
	}
	if err := f.bot.handleCallback(ctx, cb(500)); err != nil {
		t.Fatal(err)
	}

	record, err := f.engagement.Get(ctx, key.ChannelID, key.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if record.Reactions[domain.ReactionLike] != 1 {
		t.Fatalf("like tally = %d, want 1", record.Reactions[domain.ReactionLike])
	}

	last := f.messenger.answers[len(f.messenger.answers)-1]
	if !strings.Contains(last, "already") {
		t.Fatalf("repeat answer = %q", last)
	}
}

func TestShareCallbackCounts(t *testing.T) {
	f := newFixture(t)
	key := seedPublishedPost(t, f)
	ctx := context.Background()

	cb := &tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: 500}, Data: "share::-100::9"}
	if err := f.bot.handleCallback(ctx, cb); err != nil {
		t.Fatal(err)
	}

	record, err := f.engagement.Get(ctx, key.ChannelID, key.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if record.Shares != 1 {
		t.Fatalf("shares = %d, want 1", record.Shares)
	}
}

func TestAdminCallbackRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cb := &tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: 500}, Data: "admin_home"}
	if err := f.bot.handleCallback(ctx, cb); err != nil {
		t.Fatal(err)
	}
	if len(f.messenger.answers) == 0 || !strings.Contains(f.messenger.answers[0], "Operators only") {
		t.Fatalf("answers = %v", f.messenger.answers)
	}
}

func TestPublishNowCallback(t *testing.T) {
	f := newFixture(t)
	seedPublishedPost(t, f)
	ctx := context.Background()

	cb := &tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: 100}, Data: "pub_go::dune::-100"}
	if err := f.bot.handleCallback(ctx, cb); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.messenger.lastText(), "Published to Main") {
		t.Fatalf("publish confirmation = %q", f.messenger.lastText())
	}
}

func TestExportCallbackSendsCSV(t *testing.T) {
	f := newFixture(t)
	seedPublishedPost(t, f)
	ctx := context.Background()

	cb := &tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: 100}, Data: "admin_export"}
	if err := f.bot.handleCallback(ctx, cb); err != nil {
		t.Fatal(err)
	}
	if len(f.messenger.docNames) != 1 || !strings.HasSuffix(f.messenger.docNames[0], ".csv") {
		t.Fatalf("exported docs = %v", f.messenger.docNames)
	}
}
