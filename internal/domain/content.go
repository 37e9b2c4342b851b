package domain

import "time"

type MediaKind string

const (
	MediaKindPhoto    MediaKind = "photo"
	MediaKindVideo    MediaKind = "video"
	MediaKindDocument MediaKind = "document"
	MediaKindAudio    MediaKind = "audio"
)

// FileVariant is one deliverable file belonging to a content item,
// typically one quality of the same work.
type FileVariant struct {
	FileRef string
	Kind    MediaKind
	Quality string
	Caption string
}

// ContentItem is a logical titled work with an ordered list of file
// variants. Version guards read-modify-write operations on Files.
type ContentItem struct {
	ID        string
	OwnerID   int64
	Title     string
	Genre     string
	Year      string
	CoverRef  string
	Files     []FileVariant
	Version   int64
	CreatedAt time.Time
}

type ContentListFilter struct {
	Page     int
	PageSize int
	Query    string
}
