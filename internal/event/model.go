// Package event provides the typed event record and repositories for the
// event catalog and attendee sets.
package event

import "time"

// Event is a typed event record. Events are created by the offline
// ingestion pipeline; this service only reads them and mutates the
// attendee set.
type Event struct {
	ID string `json:"id"`

	// ExternalID is the numeric catalog identifier assigned at ingestion.
	ExternalID int `json:"external_id"`

	Name string `json:"name"`

	// TimeText is the display time string as ingested. It is compared
	// lexicographically for range filters, which works when the catalog
	// stores ISO-like timestamps.
	TimeText string `json:"time"`

	Host       string   `json:"host"`
	Venue      string   `json:"venue"`
	Address    string   `json:"address"`
	CleanedURL string   `json:"cleaned_url"`
	ImageURL   string   `json:"image_url"`
	MapURL     string   `json:"map_url"`
	Tags       []string `json:"tags"`

	Attendees []string `json:"attendees"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAttendee reports whether personID is in the attendee set.
func (e *Event) HasAttendee(personID string) bool {
	for _, id := range e.Attendees {
		if id == personID {
			return true
		}
	}
	return false
}

// Catalog listing defaults and bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Sort directions for catalog listing.
const (
	DirectionAsc  = "asc"
	DirectionDesc = "desc"
)

// allowedSortKeys whitelists the catalog sort fields.
var allowedSortKeys = map[string]bool{
	"time":  true,
	"name":  true,
	"host":  true,
	"venue": true,
	"id":    true,
}

// Filter describes a catalog listing query. Zero values mean "no
// constraint". Substring filters are case-insensitive.
type Filter struct {
	ExternalID *int

	Name  string
	Host  string
	Venue string
	Tag   string

	TimeExact    string
	TimeContains string
	TimeFrom     string // inclusive lexicographic lower bound
	TimeTo       string // exclusive lexicographic upper bound

	SortBy    string // one of time, name, host, venue, id; default time
	Direction string // asc or desc; default asc

	Page     int // 1-based; default 1
	PageSize int // default DefaultPageSize, capped at MaxPageSize
}

// Normalize clamps pagination and falls back to the default sort for
// unknown keys. Returns a copy; the receiver is unchanged.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if !allowedSortKeys[f.SortBy] {
		f.SortBy = "time"
	}
	if f.Direction != DirectionDesc {
		f.Direction = DirectionAsc
	}
	return f
}
