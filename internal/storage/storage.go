// Package storage implements the listing and research stores on Redis and
// in memory.
package storage

import (
	"errors"
	"time"

	"boatresearch/internal/core/listing"
	"boatresearch/internal/core/research"
)

var ErrNotFound = errors.New("not found")

var nowUTC = func() time.Time { return time.Now().UTC() }

var (
	_ listing.Store  = (*Memory)(nil)
	_ research.Store = (*Memory)(nil)
	_ listing.Store  = (*Redis)(nil)
	_ research.Store = (*Redis)(nil)
)

// latest picks the most recently researched row; rows never researched sort
// after researched ones, newest creation first.
func latest(rows []research.ModelResearch) *research.ModelResearch {
	var best *research.ModelResearch
	for i := range rows {
		r := &rows[i]
		if best == nil || newer(r, best) {
			best = r
		}
	}
	return best
}

func newer(a, b *research.ModelResearch) bool {
	switch {
	case a.ResearchedAt != nil && b.ResearchedAt == nil:
		return true
	case a.ResearchedAt == nil && b.ResearchedAt != nil:
		return false
	case a.ResearchedAt != nil:
		return a.ResearchedAt.After(*b.ResearchedAt)
	default:
		return a.CreatedAt.After(b.CreatedAt)
	}
}
