package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boxup/media-gate-bot/internal/domain"
)

// PostgresEngagementRepository keeps counters as dedicated columns so every
// increment is one atomic statement. The reaction swap adjusts both tallies
// inside a single transaction with the reaction row locked.
type PostgresEngagementRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresEngagementRepository(pool *pgxpool.Pool) *PostgresEngagementRepository {
	return &PostgresEngagementRepository{pool: pool}
}

// tallyColumn whitelists the reaction columns; kinds arrive as typed
// constants but never reach SQL unchecked.
func tallyColumn(kind domain.ReactionKind) (string, error) {
	switch kind {
	case domain.ReactionLike:
		return "like_count", nil
	case domain.ReactionHeart:
		return "heart_count", nil
	case domain.ReactionBroken:
		return "broken_count", nil
	case domain.ReactionDislike:
		return "dislike_count", nil
	}
	return "", fmt.Errorf("unknown reaction kind: %s", kind)
}

func (r *PostgresEngagementRepository) InitializePost(ctx context.Context, key domain.PostKey, initialViews int64) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO engagement_records
			(content_id, channel_id, message_id, views, downloads, shares,
			 like_count, heart_count, broken_count, dislike_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,0,0,0,0,0,0,$5,$5)
		ON CONFLICT (channel_id, message_id) DO NOTHING
	`, key.ContentID, key.ChannelID, key.MessageID, initialViews, now)
	if err != nil {
		return fmt.Errorf("initialize engagement record: %w", err)
	}
	return nil
}

func (r *PostgresEngagementRepository) Get(ctx context.Context, channelID int64, messageID int) (*domain.EngagementRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT content_id, channel_id, message_id, views, downloads, shares,
		       like_count, heart_count, broken_count, dislike_count, created_at, updated_at
		FROM engagement_records
		WHERE channel_id = $1 AND message_id = $2
	`, channelID, messageID)
	return scanEngagement(row)
}

func (r *PostgresEngagementRepository) IncrementDownloads(ctx context.Context, key domain.PostKey) error {
	return r.increment(ctx, key, "downloads")
}

func (r *PostgresEngagementRepository) IncrementShares(ctx context.Context, key domain.PostKey) error {
	return r.increment(ctx, key, "shares")
}

func (r *PostgresEngagementRepository) increment(ctx context.Context, key domain.PostKey, column string) error {
	command, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE engagement_records
		SET %s = %s + 1, updated_at = NOW()
		WHERE channel_id = $1 AND message_id = $2
	`, column, column), key.ChannelID, key.MessageID)
	if err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresEngagementRepository) SetViews(ctx context.Context, key domain.PostKey, views int64) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE engagement_records
		SET views = $3, updated_at = NOW()
		WHERE channel_id = $1 AND message_id = $2
	`, key.ChannelID, key.MessageID, views)
	if err != nil {
		return fmt.Errorf("set views: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresEngagementRepository) RecentPosts(ctx context.Context, since time.Time) ([]*domain.EngagementRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT content_id, channel_id, message_id, views, downloads, shares,
		       like_count, heart_count, broken_count, dislike_count, created_at, updated_at
		FROM engagement_records
		WHERE created_at >= $1
		ORDER BY created_at DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.EngagementRecord, 0)
	for rows.Next() {
		record, err := scanEngagement(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *PostgresEngagementRepository) ApplyReaction(
	ctx context.Context,
	key domain.PostKey,
	userID int64,
	kind domain.ReactionKind,
) (ReactionOutcome, error) {
	newColumn, err := tallyColumn(kind)
	if err != nil {
		return ReactionOutcome{}, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ReactionOutcome{}, fmt.Errorf("begin reaction tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous string
	err = tx.QueryRow(ctx, `
		SELECT kind FROM user_reactions
		WHERE content_id = $1 AND user_id = $2
		FOR UPDATE
	`, key.ContentID, userID).Scan(&previous)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// first reaction
		_, err = tx.Exec(ctx, `
			INSERT INTO user_reactions (content_id, user_id, kind, reacted_at)
			VALUES ($1,$2,$3,NOW())
		`, key.ContentID, userID, string(kind))
		if err != nil {
			return ReactionOutcome{}, fmt.Errorf("insert reaction: %w", err)
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`
			UPDATE engagement_records SET %s = %s + 1, updated_at = NOW()
			WHERE channel_id = $1 AND message_id = $2
		`, newColumn, newColumn), key.ChannelID, key.MessageID)
		if err != nil {
			return ReactionOutcome{}, fmt.Errorf("increment reaction tally: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return ReactionOutcome{}, fmt.Errorf("commit reaction: %w", err)
		}
		return ReactionOutcome{Applied: true}, nil

	case err != nil:
		return ReactionOutcome{}, fmt.Errorf("load reaction: %w", err)
	}

	if domain.ReactionKind(previous) == kind {
		return ReactionOutcome{}, nil
	}

	oldColumn, err := tallyColumn(domain.ReactionKind(previous))
	if err != nil {
		return ReactionOutcome{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_reactions SET kind = $3, reacted_at = NOW()
		WHERE content_id = $1 AND user_id = $2
	`, key.ContentID, userID, string(kind))
	if err != nil {
		return ReactionOutcome{}, fmt.Errorf("switch reaction: %w", err)
	}

	// both tallies move in one statement so a crash cannot leave them
	// half-adjusted
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		UPDATE engagement_records
		SET %s = GREATEST(%s - 1, 0), %s = %s + 1, updated_at = NOW()
		WHERE channel_id = $1 AND message_id = $2
	`, oldColumn, oldColumn, newColumn, newColumn), key.ChannelID, key.MessageID)
	if err != nil {
		return ReactionOutcome{}, fmt.Errorf("swap reaction tallies: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ReactionOutcome{}, fmt.Errorf("commit reaction switch: %w", err)
	}
	return ReactionOutcome{Applied: true, Switched: true, Previous: domain.ReactionKind(previous)}, nil
}

func (r *PostgresEngagementRepository) CreatePostReference(ctx context.Context, ref *domain.PostReference) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO post_references (content_id, channel_id, message_id, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (channel_id, message_id) DO NOTHING
	`, ref.ContentID, ref.ChannelID, ref.MessageID, ref.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert post reference: %w", err)
	}
	return nil
}

func (r *PostgresEngagementRepository) FindPostReference(ctx context.Context, channelID int64, messageID int) (*domain.PostReference, error) {
	var ref domain.PostReference
	err := r.pool.QueryRow(ctx, `
		SELECT content_id, channel_id, message_id, created_at
		FROM post_references
		WHERE channel_id = $1 AND message_id = $2
	`, channelID, messageID).Scan(&ref.ContentID, &ref.ChannelID, &ref.MessageID, &ref.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find post reference: %w", err)
	}
	ref.CreatedAt = ref.CreatedAt.UTC()
	return &ref, nil
}

func (r *PostgresEngagementRepository) TotalsByContent(ctx context.Context, contentID string) (*domain.EngagementTotals, error) {
	totals := &domain.EngagementTotals{ContentID: contentID, Reactions: zeroTally()}
	var like, heart, broken, dislike int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(views),0), COALESCE(SUM(downloads),0), COALESCE(SUM(shares),0),
		       COALESCE(SUM(like_count),0), COALESCE(SUM(heart_count),0),
		       COALESCE(SUM(broken_count),0), COALESCE(SUM(dislike_count),0)
		FROM engagement_records
		WHERE content_id = $1
	`, contentID).Scan(
		&totals.Posts, &totals.Views, &totals.Downloads, &totals.Shares,
		&like, &heart, &broken, &dislike,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate engagement: %w", err)
	}
	if totals.Posts == 0 {
		return nil, ErrNotFound
	}
	totals.Reactions[domain.ReactionLike] = like
	totals.Reactions[domain.ReactionHeart] = heart
	totals.Reactions[domain.ReactionBroken] = broken
	totals.Reactions[domain.ReactionDislike] = dislike
	return totals, nil
}

func scanEngagement(row rowScanner) (*domain.EngagementRecord, error) {
	record := &domain.EngagementRecord{Reactions: zeroTally()}
	var like, heart, broken, dislike int64
	err := row.Scan(&record.ContentID, &record.ChannelID, &record.MessageID,
		&record.Views, &record.Downloads, &record.Shares,
		&like, &heart, &broken, &dislike, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan engagement record: %w", err)
	}
	record.Reactions[domain.ReactionLike] = like
	record.Reactions[domain.ReactionHeart] = heart
	record.Reactions[domain.ReactionBroken] = broken
	record.Reactions[domain.ReactionDislike] = dislike
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}
