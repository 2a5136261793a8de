package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vidforge/vidforge/internal/media"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Status string

const (
	StatusProcessed  Status = "processed"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	// StatusAll is only meaningful as a filter.
	StatusAll Status = "all"
)

var (
	ErrNotFound      = errors.New("video not found")
	ErrInvalidStatus = errors.New("invalid status filter")
)

func (s Status) Valid() bool {
	switch s {
	case StatusProcessed, StatusProcessing, StatusFailed:
		return true
	}
	return false
}

// Label is the capitalised form shown on status badges.
func (s Status) Label() string {
	return cases.Title(language.English).String(string(s))
}

// ParseStatusFilter accepts a record status or "all"; empty means "all".
func ParseStatusFilter(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st == "" || st == StatusAll {
		return StatusAll, nil
	}
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

type Record struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail"`
	Duration     string `json:"duration"`
	Status       Status `json:"status"`
	Resolution   string `json:"resolution"`
	Size         string `json:"size"`
	Created      string `json:"createdAt"`
}

func (r Record) DownloadURL() string { return r.URL }
func (r Record) ShareURL() string    { return r.URL }

// Source supplies the catalog once; the sequence is finite and read only.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}

type Filter struct {
	Query  string
	Status Status
}

func (f Filter) Match(r Record) bool {
	if f.Status != "" && f.Status != StatusAll && r.Status != f.Status {
		return false
	}
	if f.Query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Title), strings.ToLower(f.Query))
}

// Apply keeps the source order.
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// View holds the loaded records and derives the filtered list on demand.
type View struct {
	mu       sync.RWMutex
	records  []Record
	filter   Filter
	selected *Record
}

func NewView(ctx context.Context, src Source) (*View, error) {
	records, err := src.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return &View{records: records, filter: Filter{Status: StatusAll}}, nil
}

func (v *View) SetQuery(q string) {
	v.mu.Lock()
	v.filter.Query = q
	v.mu.Unlock()
}

func (v *View) SetStatus(s Status) {
	v.mu.Lock()
	v.filter.Status = s
	v.mu.Unlock()
}

func (v *View) Filter() Filter {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.filter
}

func (v *View) Results() []Record {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.filter.Apply(v.records)
}

func (v *View) Lookup(id string) (Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, r := range v.records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// Select opens the detail view for id.
func (v *View) Select(id string) (Record, error) {
	r, err := v.Lookup(id)
	if err != nil {
		return Record{}, err
	}
	v.mu.Lock()
	v.selected = &r
	v.mu.Unlock()
	return r, nil
}

func (v *View) Selected() (Record, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.selected == nil {
		return Record{}, false
	}
	return *v.selected, true
}

// Back leaves the detail view; the filter is kept.
func (v *View) Back() {
	v.mu.Lock()
	v.selected = nil
	v.mu.Unlock()
}

// Detail is what the detail page renders: the record and its embedded player.
type Detail struct {
	Record
	StatusLabel         string           `json:"statusLabel"`
	DownloadURL         string           `json:"downloadUrl"`
	ShareURL            string           `json:"shareUrl"`
	Player              media.PlayerView `json:"player"`
	FullscreenSupported bool             `json:"fullscreenSupported"`
}

// OpenDetail loads r into p and returns the page model.
func OpenDetail(r Record, p *media.Player, userAgent string) Detail {
	p.Load(r.URL, r.ThumbnailURL)
	return Detail{
		Record:              r,
		StatusLabel:         r.Status.Label(),
		DownloadURL:         r.DownloadURL(),
		ShareURL:            r.ShareURL(),
		Player:              p.View(),
		FullscreenSupported: media.FullscreenSupported(userAgent),
	}
}
