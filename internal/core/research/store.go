package research

import (
	"context"
	"fmt"
	"time"

	"boatresearch/internal/core/listing"
	"boatresearch/internal/core/specs"
)

// RecordStatus is the persisted outcome of the last research run.
type RecordStatus string

const (
	RecordRunning  RecordStatus = "running"
	RecordComplete RecordStatus = "complete"
	RecordFailed   RecordStatus = "failed"
)

// ListingResearch is the per-listing research record.
type ListingResearch struct {
	ListingID      int64        `json:"listing_id"`
	Status         RecordStatus `json:"status"`
	ErrorMessage   *string      `json:"error_message"`
	ListingSummary *string      `json:"listing_summary"`
	ResearchedAt   *time.Time   `json:"researched_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// RecordUpdate describes an upsert of a ListingResearch. Nil pointers leave
// the stored field alone; an empty Summary clears it.
type RecordUpdate struct {
	Status       RecordStatus
	ErrorMessage *string
	ClearError   bool
	Summary      *string
	ResearchedAt *time.Time
}

// Apply folds u into r.
func (r *ListingResearch) Apply(u RecordUpdate, now time.Time) {
	r.Status = u.Status
	switch {
	case u.ClearError:
		r.ErrorMessage = nil
	case u.ErrorMessage != nil:
		msg := *u.ErrorMessage
		r.ErrorMessage = &msg
	}
	if u.Summary != nil {
		if *u.Summary == "" {
			r.ListingSummary = nil
		} else {
			s := *u.Summary
			r.ListingSummary = &s
		}
	}
	if u.ResearchedAt != nil {
		t := *u.ResearchedAt
		r.ResearchedAt = &t
	}
	r.UpdatedAt = now
}

// ModelKey identifies a model across listings. Missing years are 0.
type ModelKey struct {
	Manufacturer string `json:"manufacturer"`
	BoatClass    string `json:"boat_class"`
	YearMin      int    `json:"year_min"`
	YearMax      int    `json:"year_max"`
}

func (k ModelKey) String() string {
	return fmt.Sprintf("%s|%s|%d|%d", k.Manufacturer, k.BoatClass, k.YearMin, k.YearMax)
}

// ModelResearch is research shared by every listing of one model.
type ModelResearch struct {
	ID           string         `json:"id"`
	Manufacturer string         `json:"manufacturer"`
	BoatClass    string         `json:"boat_class"`
	YearMin      *int           `json:"year_min"`
	YearMax      *int           `json:"year_max"`
	Specs        *specs.Specs   `json:"specs"`
	Reviews      []ReviewResult `json:"reviews"`
	Forums       []ForumResult  `json:"forums"`
	ResearchedAt *time.Time     `json:"researched_at"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Key returns the dedupe key of m.
func (m ModelResearch) Key() ModelKey {
	k := ModelKey{Manufacturer: m.Manufacturer, BoatClass: m.BoatClass}
	if m.YearMin != nil {
		k.YearMin = *m.YearMin
	}
	if m.YearMax != nil {
		k.YearMax = *m.YearMax
	}
	return k
}

// ModelUpdate finishes a model row. Empty result lists are stored as null.
type ModelUpdate struct {
	Reviews      []ReviewResult
	Forums       []ForumResult
	ResearchedAt time.Time
}

// Apply folds u into m.
func (m *ModelResearch) Apply(u ModelUpdate) {
	m.Reviews, m.Forums = nil, nil
	if len(u.Reviews) > 0 {
		m.Reviews = u.Reviews
	}
	if len(u.Forums) > 0 {
		m.Forums = u.Forums
	}
	t := u.ResearchedAt
	m.ResearchedAt = &t
}

// SearchKeyMapping caches the human's answer for a specs search keyword. A
// nil Slug records that nothing matched.
type SearchKeyMapping struct {
	SearchKey string    `json:"search_key"`
	Slug      *string   `json:"slug"`
	ModelName *string   `json:"model_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence the pipeline needs. Find methods return nil, nil
// when nothing matches. Create methods are constraint-backed: they report
// false, together with the row that won, when the key already exists.
type Store interface {
	GetListing(ctx context.Context, id int64) (*listing.Listing, error)

	GetResearchRecord(ctx context.Context, listingID int64) (*ListingResearch, error)
	UpsertResearchRecord(ctx context.Context, listingID int64, u RecordUpdate) error

	FindModelResearch(ctx context.Context, key ModelKey) (*ModelResearch, error)
	FindLatestModelResearch(ctx context.Context, manufacturer, boatClass string) (*ModelResearch, error)
	CreateModelResearch(ctx context.Context, m ModelResearch) (*ModelResearch, bool, error)
	UpdateModelResearch(ctx context.Context, id string, u ModelUpdate) error

	FindSearchKeyMapping(ctx context.Context, searchKey string) (*SearchKeyMapping, error)
	CreateSearchKeyMapping(ctx context.Context, m SearchKeyMapping) (bool, error)
}
