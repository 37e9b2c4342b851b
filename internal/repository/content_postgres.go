package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boxup/media-gate-bot/internal/domain"
)

// PostgresContentRepository persists content items with the file variants
// as a jsonb column. Field edits are single-statement updates; reordering
// is guarded by the version column.
type PostgresContentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresContentRepository(pool *pgxpool.Pool) *PostgresContentRepository {
	return &PostgresContentRepository{pool: pool}
}

type fileVariantRow struct {
	FileRef string           `json:"file_ref"`
	Kind    domain.MediaKind `json:"kind"`
	Quality string           `json:"quality"`
	Caption string           `json:"caption"`
}

func encodeFiles(files []domain.FileVariant) ([]byte, error) {
	rows := make([]fileVariantRow, 0, len(files))
	for _, f := range files {
		rows = append(rows, fileVariantRow(f))
	}
	encoded, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode files: %w", err)
	}
	return encoded, nil
}

func decodeFiles(raw []byte) ([]domain.FileVariant, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []fileVariantRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}
	files := make([]domain.FileVariant, 0, len(rows))
	for _, r := range rows {
		files = append(files, domain.FileVariant(r))
	}
	return files, nil
}

func (r *PostgresContentRepository) Upsert(ctx context.Context, item *domain.ContentItem) error {
	files, err := encodeFiles(item.Files)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO content_items (id, owner_id, title, genre, year, cover_ref, files, version, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			title = EXCLUDED.title,
			genre = EXCLUDED.genre,
			year = EXCLUDED.year,
			cover_ref = EXCLUDED.cover_ref,
			files = EXCLUDED.files,
			version = content_items.version + 1
	`, item.ID, item.OwnerID, item.Title, item.Genre, item.Year, item.CoverRef, files, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	return nil
}

func (r *PostgresContentRepository) Get(ctx context.Context, contentID string) (*domain.ContentItem, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, genre, year, cover_ref, files, version, created_at
		FROM content_items
		WHERE id = $1
	`, contentID)
	return scanContent(row)
}

func (r *PostgresContentRepository) Exists(ctx context.Context, contentID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM content_items WHERE id = $1)
	`, contentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe content id: %w", err)
	}
	return exists, nil
}

func (r *PostgresContentRepository) Delete(ctx context.Context, contentID string) error {
	command, err := r.pool.Exec(ctx, `DELETE FROM content_items WHERE id = $1`, contentID)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresContentRepository) List(
	ctx context.Context,
	filter domain.ContentListFilter,
) ([]*domain.ContentItem, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}

	where := ""
	args := []any{}
	if filter.Query != "" {
		where = `WHERE title ILIKE '%' || $1 || '%'
			OR genre ILIKE '%' || $1 || '%'
			OR year ILIKE '%' || $1 || '%'
			OR id ILIKE '%' || $1 || '%'`
		args = append(args, filter.Query)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM content_items `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count content: %w", err)
	}

	limitPos := len(args) + 1
	offsetPos := len(args) + 2
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, owner_id, title, genre, year, cover_ref, files, version, created_at
		FROM content_items %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, where, limitPos, offsetPos), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.ContentItem, 0)
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *PostgresContentRepository) SetTitle(ctx context.Context, contentID, title string) error {
	return r.setColumn(ctx, contentID, "title", title)
}

func (r *PostgresContentRepository) SetGenre(ctx context.Context, contentID, genre string) error {
	return r.setColumn(ctx, contentID, "genre", genre)
}

func (r *PostgresContentRepository) SetYear(ctx context.Context, contentID, year string) error {
	return r.setColumn(ctx, contentID, "year", year)
}

func (r *PostgresContentRepository) SetCover(ctx context.Context, contentID, coverRef string) error {
	return r.setColumn(ctx, contentID, "cover_ref", coverRef)
}

func (r *PostgresContentRepository) AppendFile(ctx context.Context, contentID string, file domain.FileVariant) error {
	encoded, err := json.Marshal(fileVariantRow(file))
	if err != nil {
		return fmt.Errorf("encode file: %w", err)
	}
	command, err := r.pool.Exec(ctx, `
		UPDATE content_items
		SET files = files || $2::jsonb, version = version + 1
		WHERE id = $1
	`, contentID, encoded)
	if err != nil {
		return fmt.Errorf("append file: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresContentRepository) UpdateFileCaption(ctx context.Context, contentID string, index int, caption string) error {
	return r.setFileField(ctx, contentID, index, "caption", caption)
}

func (r *PostgresContentRepository) UpdateFileQuality(ctx context.Context, contentID string, index int, quality string) error {
	return r.setFileField(ctx, contentID, index, "quality", quality)
}

func (r *PostgresContentRepository) UpdateFileRef(ctx context.Context, contentID string, index int, fileRef string, kind domain.MediaKind) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE content_items
		SET files = jsonb_set(
				jsonb_set(files, ARRAY[$2::text, 'file_ref'], to_jsonb($3::text)),
				ARRAY[$2::text, 'kind'], to_jsonb($4::text)),
			version = version + 1
		WHERE id = $1 AND jsonb_array_length(files) > $2 AND $2 >= 0
	`, contentID, index, fileRef, string(kind))
	if err != nil {
		return fmt.Errorf("update file ref: %w", err)
	}
	if command.RowsAffected() == 0 {
		return r.missingOrBadIndex(ctx, contentID)
	}
	return nil
}

func (r *PostgresContentRepository) RemoveFile(ctx context.Context, contentID string, index int) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE content_items
		SET files = files - $2::int, version = version + 1
		WHERE id = $1 AND jsonb_array_length(files) > $2 AND $2 >= 0
	`, contentID, index)
	if err != nil {
		return fmt.Errorf("remove file: %w", err)
	}
	if command.RowsAffected() == 0 {
		return r.missingOrBadIndex(ctx, contentID)
	}
	return nil
}

// SwapFiles reorders two variants. The whole-array write is conditioned on
// the version read by the caller, so a concurrent edit loses no data; it
// surfaces as ErrVersionConflict instead.
func (r *PostgresContentRepository) SwapFiles(ctx context.Context, contentID string, i, j int, version int64) error {
	item, err := r.Get(ctx, contentID)
	if err != nil {
		return err
	}
	if item.Version != version {
		return ErrVersionConflict
	}
	if i < 0 || j < 0 || i >= len(item.Files) || j >= len(item.Files) {
		return ErrFileIndex
	}
	item.Files[i], item.Files[j] = item.Files[j], item.Files[i]
	files, err := encodeFiles(item.Files)
	if err != nil {
		return err
	}

	command, err := r.pool.Exec(ctx, `
		UPDATE content_items
		SET files = $2, version = version + 1
		WHERE id = $1 AND version = $3
	`, contentID, files, version)
	if err != nil {
		return fmt.Errorf("swap files: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *PostgresContentRepository) setColumn(ctx context.Context, contentID, column, value string) error {
	command, err := r.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE content_items SET %s = $2, version = version + 1 WHERE id = $1
	`, column), contentID, value)
	if err != nil {
		return fmt.Errorf("update content %s: %w", column, err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresContentRepository) setFileField(ctx context.Context, contentID string, index int, field, value string) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE content_items
		SET files = jsonb_set(files, ARRAY[$2::text, $3], to_jsonb($4::text)), version = version + 1
		WHERE id = $1 AND jsonb_array_length(files) > $2 AND $2 >= 0
	`, contentID, index, field, value)
	if err != nil {
		return fmt.Errorf("update file %s: %w", field, err)
	}
	if command.RowsAffected() == 0 {
		return r.missingOrBadIndex(ctx, contentID)
	}
	return nil
}

func (r *PostgresContentRepository) missingOrBadIndex(ctx context.Context, contentID string) error {
	exists, err := r.Exists(ctx, contentID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrFileIndex
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*domain.ContentItem, error) {
	var (
		item      domain.ContentItem
		files     []byte
		createdAt time.Time
	)
	err := row.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Genre, &item.Year,
		&item.CoverRef, &files, &item.Version, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan content: %w", err)
	}
	item.CreatedAt = createdAt.UTC()
	item.Files, err = decodeFiles(files)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
