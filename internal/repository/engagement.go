package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/boxup/media-gate-bot/internal/domain"
)

// ReactionOutcome reports what ApplyReaction did.
type ReactionOutcome struct {
	// Applied is false when the user already held a reaction of the same
	// kind; nothing changed.
	Applied bool
	// Switched carries the previous kind when the user changed reaction.
	Switched bool
	Previous domain.ReactionKind
}

// EngagementRepository abstracts the per-post counter store, the
// one-active-reaction-per-user ledger, and post references. Counter
// mutations are atomic single-row operations.
type EngagementRepository interface {
	// InitializePost inserts a zeroed record; it never clobbers an
	// existing one, so duplicate publish attempts are harmless.
	InitializePost(ctx context.Context, key domain.PostKey, initialViews int64) error
	Get(ctx context.Context, channelID int64, messageID int) (*domain.EngagementRecord, error)
	IncrementDownloads(ctx context.Context, key domain.PostKey) error
	IncrementShares(ctx context.Context, key domain.PostKey) error
	// SetViews overwrites the platform-reported view count; it is never
	// used for increments.
	SetViews(ctx context.Context, key domain.PostKey, views int64) error
	RecentPosts(ctx context.Context, since time.Time) ([]*domain.EngagementRecord, error)

	// ApplyReaction enforces at-most-one-active-reaction-per-user: first
	// reaction inserts and increments, a repeat of the same kind is a
	// no-op, a different kind swaps the tallies.
	ApplyReaction(ctx context.Context, key domain.PostKey, userID int64, kind domain.ReactionKind) (ReactionOutcome, error)

	CreatePostReference(ctx context.Context, ref *domain.PostReference) error
	FindPostReference(ctx context.Context, channelID int64, messageID int) (*domain.PostReference, error)

	TotalsByContent(ctx context.Context, contentID string) (*domain.EngagementTotals, error)
}

type reactionRow struct {
	contentID string
	userID    int64
}

// MemoryEngagementRepository keeps engagement state in memory for local
// development and tests. The reaction swap happens under one lock, so the
// tallies never drift from the reaction rows.
type MemoryEngagementRepository struct {
	mu        sync.RWMutex
	records   map[domain.PostKey]*domain.EngagementRecord
	reactions map[reactionRow]domain.ReactionKind
	refs      map[domain.PostKey]*domain.PostReference
}

func NewMemoryEngagementRepository() *MemoryEngagementRepository {
	return &MemoryEngagementRepository{
		records:   make(map[domain.PostKey]*domain.EngagementRecord),
		reactions: make(map[reactionRow]domain.ReactionKind),
		refs:      make(map[domain.PostKey]*domain.PostReference),
	}
}

func (r *MemoryEngagementRepository) InitializePost(_ context.Context, key domain.PostKey, initialViews int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; ok {
		return nil
	}
	now := time.Now().UTC()
	r.records[key] = &domain.EngagementRecord{
		ContentID: key.ContentID,
		ChannelID: key.ChannelID,
		MessageID: key.MessageID,
		Views:     initialViews,
		Reactions: zeroTally(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (r *MemoryEngagementRepository) Get(_ context.Context, channelID int64, messageID int) (*domain.EngagementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record := r.findLocked(channelID, messageID)
	if record == nil {
		return nil, ErrNotFound
	}
	return cloneRecord(record), nil
}

func (r *MemoryEngagementRepository) IncrementDownloads(_ context.Context, key domain.PostKey) error {
	return r.mutate(key, func(record *domain.EngagementRecord) { record.Downloads++ })
}

func (r *MemoryEngagementRepository) IncrementShares(_ context.Context, key domain.PostKey) error {
	return r.mutate(key, func(record *domain.EngagementRecord) { record.Shares++ })
}

func (r *MemoryEngagementRepository) SetViews(_ context.Context, key domain.PostKey, views int64) error {
	return r.mutate(key, func(record *domain.EngagementRecord) { record.Views = views })
}

func (r *MemoryEngagementRepository) RecentPosts(_ context.Context, since time.Time) ([]*domain.EngagementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.EngagementRecord, 0)
	for _, record := range r.records {
		if record.CreatedAt.Before(since) {
			continue
		}
		out = append(out, cloneRecord(record))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryEngagementRepository) ApplyReaction(
	_ context.Context,
	key domain.PostKey,
	userID int64,
	kind domain.ReactionKind,
) (ReactionOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		return ReactionOutcome{}, ErrNotFound
	}

	row := reactionRow{contentID: key.ContentID, userID: userID}
	previous, reacted := r.reactions[row]
	if reacted && previous == kind {
		return ReactionOutcome{}, nil
	}

	if reacted {
		if record.Reactions[previous] > 0 {
			record.Reactions[previous]--
		}
	}
	r.reactions[row] = kind
	record.Reactions[kind]++
	record.UpdatedAt = time.Now().UTC()

	return ReactionOutcome{Applied: true, Switched: reacted, Previous: previous}, nil
}

func (r *MemoryEngagementRepository) CreatePostReference(_ context.Context, ref *domain.PostReference) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.PostKey{ContentID: ref.ContentID, ChannelID: ref.ChannelID, MessageID: ref.MessageID}
	clone := *ref
	r.refs[key] = &clone
	return nil
}

func (r *MemoryEngagementRepository) FindPostReference(_ context.Context, channelID int64, messageID int) (*domain.PostReference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ref := range r.refs {
		if ref.ChannelID == channelID && ref.MessageID == messageID {
			clone := *ref
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryEngagementRepository) TotalsByContent(_ context.Context, contentID string) (*domain.EngagementTotals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	totals := &domain.EngagementTotals{ContentID: contentID, Reactions: zeroTally()}
	for _, record := range r.records {
		if record.ContentID != contentID {
			continue
		}
		totals.Posts++
		totals.Views += record.Views
		totals.Downloads += record.Downloads
		totals.Shares += record.Shares
		for kind, count := range record.Reactions {
			totals.Reactions[kind] += count
		}
	}
	if totals.Posts == 0 {
		return nil, ErrNotFound
	}
	return totals, nil
}

func (r *MemoryEngagementRepository) mutate(key domain.PostKey, apply func(*domain.EngagementRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		return ErrNotFound
	}
	apply(record)
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryEngagementRepository) findLocked(channelID int64, messageID int) *domain.EngagementRecord {
	for _, record := range r.records {
		if record.ChannelID == channelID && record.MessageID == messageID {
			return record
		}
	}
	return nil
}

func zeroTally() map[domain.ReactionKind]int64 {
	tally := make(map[domain.ReactionKind]int64, len(domain.ReactionKinds))
	for _, kind := range domain.ReactionKinds {
		tally[kind] = 0
	}
	return tally
}

func cloneRecord(record *domain.EngagementRecord) *domain.EngagementRecord {
	if record == nil {
		return nil
	}
	clone := *record
	clone.Reactions = make(map[domain.ReactionKind]int64, len(record.Reactions))
	for kind, count := range record.Reactions {
		clone.Reactions[kind] = count
	}
	return &clone
}
