package repository

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/boxup/media-gate-bot/internal/domain"
)

var (
	ErrNotFound = errors.New("resource not found")

	// ErrVersionConflict reports a lost optimistic-concurrency race on a
	// versioned update; the caller re-reads and retries.
	ErrVersionConflict = errors.New("version conflict")

	ErrFileIndex = errors.New("file index out of range")
)

// ContentRepository abstracts persistence of content items and their file
// variants. File mutations are field-scoped so concurrent edits of
// different fields never clobber each other; reordering is version-checked.
type ContentRepository interface {
	Upsert(ctx context.Context, item *domain.ContentItem) error
	Get(ctx context.Context, contentID string) (*domain.ContentItem, error)
	Exists(ctx context.Context, contentID string) (bool, error)
	Delete(ctx context.Context, contentID string) error
	List(ctx context.Context, filter domain.ContentListFilter) ([]*domain.ContentItem, int, error)

	SetTitle(ctx context.Context, contentID, title string) error
	SetGenre(ctx context.Context, contentID, genre string) error
	SetYear(ctx context.Context, contentID, year string) error
	SetCover(ctx context.Context, contentID, coverRef string) error

	AppendFile(ctx context.Context, contentID string, file domain.FileVariant) error
	UpdateFileCaption(ctx context.Context, contentID string, index int, caption string) error
	UpdateFileQuality(ctx context.Context, contentID string, index int, quality string) error
	UpdateFileRef(ctx context.Context, contentID string, index int, fileRef string, kind domain.MediaKind) error
	RemoveFile(ctx context.Context, contentID string, index int) error
	SwapFiles(ctx context.Context, contentID string, i, j int, version int64) error
}

var slugStrip = regexp.MustCompile(`[^\pL\pN\s_-]`)
var slugSpaces = regexp.MustCompile(`\s+`)
var slugRepeat = regexp.MustCompile(`_+`)

// Slugify derives a deep-link-safe content id candidate from a title.
func Slugify(title string) string {
	s := slugStrip.ReplaceAllString(title, "")
	s = slugSpaces.ReplaceAllString(strings.TrimSpace(s), "_")
	s = slugRepeat.ReplaceAllString(s, "_")
	s = strings.ToLower(s)
	if len(s) > 64 {
		s = s[:64]
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// UniqueContentID probes the repository and suffixes the slug on collision:
// "avatar", "avatar_2", "avatar_3", ...
func UniqueContentID(ctx context.Context, repo ContentRepository, title string) (string, error) {
	base := Slugify(title)
	candidate := base
	for i := 2; ; i++ {
		exists, err := repo.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + "_" + strconv.Itoa(i)
	}
}

// MemoryContentRepository stores content items in memory for local
// development and tests.
type MemoryContentRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.ContentItem
}

func NewMemoryContentRepository() *MemoryContentRepository {
	return &MemoryContentRepository{items: make(map[string]*domain.ContentItem)}
}

func (r *MemoryContentRepository) Upsert(_ context.Context, item *domain.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := cloneContent(item)
	if existing, ok := r.items[item.ID]; ok {
		clone.Version = existing.Version + 1
	}
	r.items[item.ID] = clone
	return nil
}

func (r *MemoryContentRepository) Get(_ context.Context, contentID string) (*domain.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[contentID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneContent(item), nil
}

func (r *MemoryContentRepository) Exists(_ context.Context, contentID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[contentID]
	return ok, nil
}

func (r *MemoryContentRepository) Delete(_ context.Context, contentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[contentID]; !ok {
		return ErrNotFound
	}
	delete(r.items, contentID)
	return nil
}

func (r *MemoryContentRepository) List(
	_ context.Context,
	filter domain.ContentListFilter,
) ([]*domain.ContentItem, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}

	items := make([]*domain.ContentItem, 0, len(r.items))
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	for _, item := range r.items {
		if query != "" && !contentMatches(item, query) {
			continue
		}
		items = append(items, cloneContent(item))
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := len(items)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []*domain.ContentItem{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func contentMatches(item *domain.ContentItem, query string) bool {
	return strings.Contains(strings.ToLower(item.Title), query) ||
		strings.Contains(strings.ToLower(item.Genre), query) ||
		strings.Contains(strings.ToLower(item.Year), query) ||
		strings.Contains(strings.ToLower(item.ID), query)
}

func (r *MemoryContentRepository) SetTitle(ctx context.Context, contentID, title string) error {
	return r.setField(contentID, func(item *domain.ContentItem) { item.Title = title })
}

func (r *MemoryContentRepository) SetGenre(ctx context.Context, contentID, genre string) error {
	return r.setField(contentID, func(item *domain.ContentItem) { item.Genre = genre })
}

func (r *MemoryContentRepository) SetYear(ctx context.Context, contentID, year string) error {
	return r.setField(contentID, func(item *domain.ContentItem) { item.Year = year })
}

func (r *MemoryContentRepository) SetCover(ctx context.Context, contentID, coverRef string) error {
	return r.setField(contentID, func(item *domain.ContentItem) { item.CoverRef = coverRef })
}

func (r *MemoryContentRepository) AppendFile(_ context.Context, contentID string, file domain.FileVariant) error {
	return r.setField(contentID, func(item *domain.ContentItem) {
		item.Files = append(item.Files, file)
	})
}

func (r *MemoryContentRepository) UpdateFileCaption(_ context.Context, contentID string, index int, caption string) error {
	return r.setFile(contentID, index, func(f *domain.FileVariant) { f.Caption = caption })
}

func (r *MemoryContentRepository) UpdateFileQuality(_ context.Context, contentID string, index int, quality string) error {
	return r.setFile(contentID, index, func(f *domain.FileVariant) { f.Quality = quality })
}

func (r *MemoryContentRepository) UpdateFileRef(_ context.Context, contentID string, index int, fileRef string, kind domain.MediaKind) error {
	return r.setFile(contentID, index, func(f *domain.FileVariant) {
		f.FileRef = fileRef
		f.Kind = kind
	})
}

func (r *MemoryContentRepository) RemoveFile(_ context.Context, contentID string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[contentID]
	if !ok {
		return ErrNotFound
	}
	if index < 0 || index >= len(item.Files) {
		return ErrFileIndex
	}
	item.Files = append(item.Files[:index], item.Files[index+1:]...)
	item.Version++
	return nil
}

func (r *MemoryContentRepository) SwapFiles(_ context.Context, contentID string, i, j int, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[contentID]
	if !ok {
		return ErrNotFound
	}
	if item.Version != version {
		return ErrVersionConflict
	}
	if i < 0 || j < 0 || i >= len(item.Files) || j >= len(item.Files) {
		return ErrFileIndex
	}
	item.Files[i], item.Files[j] = item.Files[j], item.Files[i]
	item.Version++
	return nil
}

func (r *MemoryContentRepository) setField(contentID string, mutate func(*domain.ContentItem)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[contentID]
	if !ok {
		return ErrNotFound
	}
	mutate(item)
	item.Version++
	return nil
}

func (r *MemoryContentRepository) setFile(contentID string, index int, mutate func(*domain.FileVariant)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[contentID]
	if !ok {
		return ErrNotFound
	}
	if index < 0 || index >= len(item.Files) {
		return ErrFileIndex
	}
	mutate(&item.Files[index])
	item.Version++
	return nil
}

func cloneContent(item *domain.ContentItem) *domain.ContentItem {
	if item == nil {
		return nil
	}
	clone := *item
	clone.Files = append([]domain.FileVariant(nil), item.Files...)
	return &clone
}
