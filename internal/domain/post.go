package domain

import "time"

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusSent    JobStatus = "sent"
	JobStatusFailed  JobStatus = "failed"
)

// ScheduledJob is one deferred publication: content into a channel at an
// absolute UTC instant. Failed attempts are retried until MaxPublishAttempts.
type ScheduledJob struct {
	ID        string
	ContentID string
	Title     string
	ChannelID int64
	FireAt    time.Time
	Status    JobStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// MaxPublishAttempts bounds retries of a failed scheduled publish before the
// job is abandoned as failed.
const MaxPublishAttempts = 3

// PostKey identifies one concrete post instance of a content item.
type PostKey struct {
	ContentID string
	ChannelID int64
	MessageID int
}

// PostReference binds a logical content item to one published post. A
// content item published to several channels has several references.
type PostReference struct {
	ContentID string
	ChannelID int64
	MessageID int
	CreatedAt time.Time
}

type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionHeart   ReactionKind = "heart"
	ReactionBroken  ReactionKind = "broken"
	ReactionDislike ReactionKind = "dislike"
)

// ReactionKinds lists the kinds in keyboard order.
var ReactionKinds = []ReactionKind{ReactionLike, ReactionHeart, ReactionBroken, ReactionDislike}

func ValidReactionKind(kind ReactionKind) bool {
	switch kind {
	case ReactionLike, ReactionHeart, ReactionBroken, ReactionDislike:
		return true
	}
	return false
}

// EngagementRecord carries the live counters attached to one published
// post. Views hold the last value reported by the platform; the other
// counters are owned by this system and only ever incremented.
type EngagementRecord struct {
	ContentID string
	ChannelID int64
	MessageID int
	Views     int64
	Downloads int64
	Shares    int64
	Reactions map[ReactionKind]int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *EngagementRecord) Key() PostKey {
	return PostKey{ContentID: r.ContentID, ChannelID: r.ChannelID, MessageID: r.MessageID}
}

// UserReaction records the single active reaction a user holds on a
// content item. At most one row per (ContentID, UserID).
type UserReaction struct {
	ContentID string
	UserID    int64
	Kind      ReactionKind
	At        time.Time
}

// EngagementTotals aggregates engagement across every post of one content
// item, for the operator stats command.
type EngagementTotals struct {
	ContentID string
	Posts     int
	Views     int64
	Downloads int64
	Shares    int64
	Reactions map[ReactionKind]int64
}
