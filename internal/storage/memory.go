package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boatresearch/internal/core/listing"
	"boatresearch/internal/core/research"

	"github.com/google/uuid"
)

// Memory keeps every table in process maps. It backs tests and
// single-process development runs.
type Memory struct {
	mu sync.Mutex

	nextListingID int64
	listings      map[int64]listing.Listing
	byLink        map[string]int64

	records  map[int64]research.ListingResearch
	models   map[string]research.ModelResearch
	modelIDs map[string]string
	mappings map[string]research.SearchKeyMapping

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		listings: make(map[int64]listing.Listing),
		byLink:   make(map[string]int64),
		records:  make(map[int64]research.ListingResearch),
		models:   make(map[string]research.ModelResearch),
		modelIDs: make(map[string]string),
		mappings: make(map[string]research.SearchKeyMapping),
		now:      time.Now,
	}
}

func (m *Memory) GetListing(_ context.Context, id int64) (*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", listing.ErrNotFound, id)
	}
	return &l, nil
}

func (m *Memory) FindListingByLink(_ context.Context, linkURL string) (*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byLink[linkURL]
	if !ok {
		return nil, nil
	}
	l := m.listings[id]
	return &l, nil
}

func (m *Memory) CreateListing(_ context.Context, l *listing.Listing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byLink[l.LinkURL]; ok {
		return false, nil
	}
	m.nextListingID++
	l.ID = m.nextListingID
	m.listings[l.ID] = *l
	m.byLink[l.LinkURL] = l.ID
	return true, nil
}

func (m *Memory) GetResearchRecord(_ context.Context, listingID int64) (*research.ListingResearch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[listingID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) UpsertResearchRecord(_ context.Context, listingID int64, u research.RecordUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[listingID]
	if !ok {
		r = research.ListingResearch{ListingID: listingID}
	}
	r.Apply(u, m.now().UTC())
	m.records[listingID] = r
	return nil
}

func (m *Memory) FindModelResearch(_ context.Context, key research.ModelKey) (*research.ModelResearch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.models[key.String()]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *Memory) FindLatestModelResearch(_ context.Context, manufacturer, boatClass string) (*research.ModelResearch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []research.ModelResearch
	for _, row := range m.models {
		if row.Manufacturer == manufacturer && row.BoatClass == boatClass {
			rows = append(rows, row)
		}
	}
	return latest(rows), nil
}

func (m *Memory) CreateModelResearch(_ context.Context, row research.ModelResearch) (*research.ModelResearch, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := row.Key().String()
	if existing, ok := m.models[k]; ok {
		return &existing, false, nil
	}
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	m.models[k] = row
	m.modelIDs[row.ID] = k
	return &row, true, nil
}

func (m *Memory) UpdateModelResearch(_ context.Context, id string, u research.ModelUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.modelIDs[id]
	if !ok {
		return fmt.Errorf("%w: model %s", ErrNotFound, id)
	}
	row := m.models[k]
	row.Apply(u)
	m.models[k] = row
	return nil
}

func (m *Memory) FindSearchKeyMapping(_ context.Context, searchKey string) (*research.SearchKeyMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.mappings[searchKey]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *Memory) CreateSearchKeyMapping(_ context.Context, row research.SearchKeyMapping) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mappings[row.SearchKey]; ok {
		return false, nil
	}
	m.mappings[row.SearchKey] = row
	return true, nil
}

// MappingCount is used by tests to assert on cache writes.
func (m *Memory) MappingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mappings)
}
