// Package engagement owns the live counters attached to published posts:
// downloads, shares, platform-reported views and the reaction tally, plus
// the in-place refresh of the post's counter keyboard.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/boxup/media-gate-bot/internal/deeplink"
	"github.com/boxup/media-gate-bot/internal/domain"
	"github.com/boxup/media-gate-bot/internal/repository"
	"github.com/boxup/media-gate-bot/internal/telegram"
)

// ErrAlreadyReacted reports a repeat reaction of the same kind. It is a
// benign rejection surfaced as a notice, not a failure.
var ErrAlreadyReacted = errors.New("already reacted with this kind")

const viewsBatchSize = 50

// Ledger mutates engagement state and keeps the visible counter keyboard
// in sync. Keyboard refresh failures are swallowed: the data stays
// correct even when the rendered control goes stale.
type Ledger struct {
	repo        repository.EngagementRepository
	messenger   telegram.Messenger
	botUsername string
	logger      *log.Logger
}

func NewLedger(repo repository.EngagementRepository, messenger telegram.Messenger, botUsername string, logger *log.Logger) *Ledger {
	return &Ledger{repo: repo, messenger: messenger, botUsername: botUsername, logger: logger}
}

// InitializePost creates the zeroed record for a fresh post. Idempotent:
// a duplicate publish attempt never resets live counters.
func (l *Ledger) InitializePost(ctx context.Context, key domain.PostKey, initialViews int64) error {
	if err := l.repo.InitializePost(ctx, key, initialViews); err != nil {
		return fmt.Errorf("initialize post ledger: %w", err)
	}
	return nil
}

// CountDownload registers one confirmed content delivery attributed to the
// post and refreshes its keyboard.
func (l *Ledger) CountDownload(ctx context.Context, key domain.PostKey) error {
	if err := l.repo.IncrementDownloads(ctx, key); err != nil {
		return fmt.Errorf("count download: %w", err)
	}
	l.refresh(ctx, key.ChannelID, key.MessageID)
	return nil
}

// CountShare registers one share interaction on the post.
func (l *Ledger) CountShare(ctx context.Context, channelID int64, messageID int) error {
	record, err := l.repo.Get(ctx, channelID, messageID)
	if err != nil {
		return fmt.Errorf("load post for share: %w", err)
	}
	if err := l.repo.IncrementShares(ctx, record.Key()); err != nil {
		return fmt.Errorf("count share: %w", err)
	}
	l.refresh(ctx, channelID, messageID)
	return nil
}

// ToggleReaction applies the at-most-one-active-reaction rule: first
// reaction counts, a repeat of the same kind returns ErrAlreadyReacted,
// a different kind swaps the tallies.
func (l *Ledger) ToggleReaction(
	ctx context.Context,
	channelID int64,
	messageID int,
	userID int64,
	kind domain.ReactionKind,
) error {
	if !domain.ValidReactionKind(kind) {
		return fmt.Errorf("invalid reaction kind: %s", kind)
	}
	record, err := l.repo.Get(ctx, channelID, messageID)
	if err != nil {
		return fmt.Errorf("load post for reaction: %w", err)
	}

	outcome, err := l.repo.ApplyReaction(ctx, record.Key(), userID, kind)
	if err != nil {
		return fmt.Errorf("apply reaction: %w", err)
	}
	if !outcome.Applied {
		return ErrAlreadyReacted
	}

	l.refresh(ctx, channelID, messageID)
	return nil
}

// SetViews resyncs the platform-reported view count. Absolute overwrite
// only; increments would lose updates under concurrent sweeps.
func (l *Ledger) SetViews(ctx context.Context, key domain.PostKey, views int64) error {
	if err := l.repo.SetViews(ctx, key, views); err != nil {
		return fmt.Errorf("set views: %w", err)
	}
	return nil
}

// ResyncViews refreshes reported views for posts created inside the window
// and re-renders the ones that changed. Transports without view access
// make this a no-op.
func (l *Ledger) ResyncViews(ctx context.Context, window time.Duration) error {
	since := time.Now().UTC().Add(-window)
	records, err := l.repo.RecentPosts(ctx, since)
	if err != nil {
		return fmt.Errorf("load recent posts: %w", err)
	}

	byChannel := make(map[int64][]*domain.EngagementRecord)
	for _, record := range records {
		byChannel[record.ChannelID] = append(byChannel[record.ChannelID], record)
	}

	for channelID, posts := range byChannel {
		for start := 0; start < len(posts); start += viewsBatchSize {
			end := start + viewsBatchSize
			if end > len(posts) {
				end = len(posts)
			}
			chunk := posts[start:end]

			ids := make([]int, 0, len(chunk))
			for _, post := range chunk {
				ids = append(ids, post.MessageID)
			}

			views, err := l.messenger.ReportedViews(ctx, channelID, ids)
			if err != nil {
				if errors.Is(err, telegram.ErrUnsupported) {
					return nil
				}
				if l.logger != nil {
					l.logger.Printf("views batch failed channel=%d: %v", channelID, err)
				}
				continue
			}

			for _, post := range chunk {
				reported, ok := views[post.MessageID]
				if !ok || reported == post.Views {
					continue
				}
				if err := l.repo.SetViews(ctx, post.Key(), reported); err != nil {
					if l.logger != nil {
						l.logger.Printf("views resync failed post=%d/%d: %v", channelID, post.MessageID, err)
					}
					continue
				}
				l.refresh(ctx, channelID, post.MessageID)
			}
		}
	}
	return nil
}

// FindPost resolves the (channel, message) pair of a post back to its
// content binding.
func (l *Ledger) FindPost(ctx context.Context, channelID int64, messageID int) (*domain.PostReference, error) {
	return l.repo.FindPostReference(ctx, channelID, messageID)
}

// CreatePostReference records the binding created at publish time.
func (l *Ledger) CreatePostReference(ctx context.Context, ref *domain.PostReference) error {
	if err := l.repo.CreatePostReference(ctx, ref); err != nil {
		return fmt.Errorf("create post reference: %w", err)
	}
	return nil
}

// Totals aggregates engagement across every post of a content item.
func (l *Ledger) Totals(ctx context.Context, contentID string) (*domain.EngagementTotals, error) {
	return l.repo.TotalsByContent(ctx, contentID)
}

// Keyboard renders the counter control for a post from its current record.
func (l *Ledger) Keyboard(ctx context.Context, channelID int64, messageID int) (*telegram.Keyboard, error) {
	record, err := l.repo.Get(ctx, channelID, messageID)
	if err != nil {
		return nil, err
	}
	return RenderKeyboard(record, l.botUsername), nil
}

// refresh re-renders the counter keyboard in place. Failures (post deleted,
// transient edit error) are logged and swallowed.
func (l *Ledger) refresh(ctx context.Context, channelID int64, messageID int) {
	record, err := l.repo.Get(ctx, channelID, messageID)
	if err != nil {
		if l.logger != nil {
			l.logger.Printf("keyboard refresh load failed post=%d/%d: %v", channelID, messageID, err)
		}
		return
	}
	if err := l.messenger.EditKeyboard(ctx, channelID, messageID, RenderKeyboard(record, l.botUsername)); err != nil {
		if l.logger != nil {
			l.logger.Printf("keyboard refresh failed post=%d/%d: %v", channelID, messageID, err)
		}
	}
}

// RenderKeyboard builds the counter rows, the gated-delivery entry link
// and the comment link. The entry link carries the post-attribution token
// so downloads land on this exact post.
func RenderKeyboard(record *domain.EngagementRecord, botUsername string) *telegram.Keyboard {
	channel := strconv.FormatInt(record.ChannelID, 10)
	message := strconv.Itoa(record.MessageID)
	token := deeplink.EncodePost(record.ContentID, record.ChannelID, record.MessageID)

	return telegram.NewKeyboard(
		telegram.Row(
			telegram.Button{Label: "👁 " + formatCount(record.Views), Data: "noop"},
			telegram.Button{Label: "⬇️ " + formatCount(record.Downloads), Data: "noop"},
			telegram.Button{Label: "🔁 " + formatCount(record.Shares), Data: "share::" + channel + "::" + message},
		),
		telegram.Row(
			reactionButton("👍", domain.ReactionLike, record, channel, message),
			reactionButton("❤️", domain.ReactionHeart, record, channel, message),
			reactionButton("💔", domain.ReactionBroken, record, channel, message),
			reactionButton("👎", domain.ReactionDislike, record, channel, message),
		),
		telegram.Row(
			telegram.Button{Label: "🧩 Files", URL: "https://t.me/" + botUsername + "?start=" + token},
			telegram.Button{Label: "💬 Discuss", URL: CommentLink(record.ChannelID, record.MessageID)},
		),
	)
}

func reactionButton(icon string, kind domain.ReactionKind, record *domain.EngagementRecord, channel, message string) telegram.Button {
	return telegram.Button{
		Label: icon + " " + formatCount(record.Reactions[kind]),
		Data:  "react::" + string(kind) + "::" + channel + "::" + message,
	}
}

func formatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}

// CommentLink builds the t.me deep link into a post's discussion thread.
func CommentLink(channelID int64, messageID int) string {
	id := strconv.FormatInt(channelID, 10)
	if strings.HasPrefix(id, "-100") {
		id = strings.TrimPrefix(id, "-100")
	} else if channelID < 0 {
		id = strconv.FormatInt(-channelID, 10)
	}
	return "https://t.me/c/" + id + "/" + strconv.Itoa(messageID) + "?comment=1"
}
