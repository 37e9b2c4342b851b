// Package session holds the transient per-operator state driving the
// multi-step workflows, behind a pluggable store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/boxup/media-gate-bot/internal/domain"
)

var ErrNoSession = errors.New("no active session")

type Mode string

const (
	ModeUpload     Mode = "upload"
	ModeEdit       Mode = "edit"
	ModeFileManage Mode = "file-manage"
	ModeSearch     Mode = "search"
	ModeSchedule   Mode = "schedule"
)

type Step string

const (
	StepTitle       Step = "awaiting_title"
	StepGenre       Step = "awaiting_genre"
	StepYear        Step = "awaiting_year"
	StepCover       Step = "awaiting_cover"
	StepFirstFile   Step = "awaiting_first_file"
	StepNextFile    Step = "awaiting_next_file"
	StepCaption     Step = "awaiting_caption"
	StepQuality     Step = "awaiting_quality"
	StepConfirmMore Step = "confirm_more_files"

	StepEditTitle    Step = "edit_title"
	StepEditGenre    Step = "edit_genre"
	StepEditYear     Step = "edit_year"
	StepReplaceCover Step = "replace_cover"

	StepFileEditCaption Step = "file_edit_caption"
	StepFileEditQuality Step = "file_edit_quality"
	StepFileReplace     Step = "file_replace"
	StepFileAddPick     Step = "file_add_pickfile"
	StepFileAddCaption  Step = "file_add_caption"
	StepFileAddQuality  Step = "file_add_quality"

	StepSearchQuery Step = "search_query"

	StepScheduleDate    Step = "schedule_date"
	StepScheduleTime    Step = "schedule_time"
	StepScheduleChannel Step = "schedule_channel"
)

// UploadBuffer is the partially built content item of an upload workflow.
type UploadBuffer struct {
	ContentID      string               `json:"content_id"`
	Title          string               `json:"title"`
	Genre          string               `json:"genre"`
	Year           string               `json:"year"`
	CoverRef       string               `json:"cover_ref"`
	Files          []domain.FileVariant `json:"files"`
	PendingFileRef string               `json:"pending_file_ref"`
	PendingKind    domain.MediaKind     `json:"pending_kind"`
	PendingCaption string               `json:"pending_caption"`
}

// EditTarget names the content item (and optionally a file variant) an edit
// workflow operates on. FileIndex is -1 for item-level edits.
type EditTarget struct {
	ContentID string `json:"content_id"`
	FileIndex int    `json:"file_index"`

	// PendingFileRef/PendingKind/PendingCaption stage the file-add sub-flow.
	PendingFileRef string           `json:"pending_file_ref"`
	PendingKind    domain.MediaKind `json:"pending_kind"`
	PendingCaption string           `json:"pending_caption"`
}

// ScheduleDraft is the in-progress scheduling request.
type ScheduleDraft struct {
	ContentID string `json:"content_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

// Session is keyed by operator id; starting a new workflow overwrites any
// previous one, so an operator never has two live sessions.
type Session struct {
	Mode     Mode           `json:"mode"`
	Step     Step           `json:"step"`
	Upload   *UploadBuffer  `json:"upload,omitempty"`
	Edit     *EditTarget    `json:"edit,omitempty"`
	Schedule *ScheduleDraft `json:"schedule,omitempty"`
}

// Store abstracts session persistence. Backings must treat sessions as
// whole values: Get returns a copy, mutations are written back with Put.
type Store interface {
	Get(ctx context.Context, operatorID int64) (*Session, error)
	Put(ctx context.Context, operatorID int64, s *Session) error
	Delete(ctx context.Context, operatorID int64) error
}

// TTL policy shared by the backings; an abandoned conversation evicts
// instead of living until restart.
const DefaultTTL = 2 * time.Hour
