package listing

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("listing not found")

// Listing is one boat-for-sale record produced by the scrape crawler.
type Listing struct {
	ID             int64     `json:"id"`
	LinkURL        string    `json:"link_url"`
	BuildYear      *int      `json:"build_year"`
	ListingName    *string   `json:"listing_name"`
	SellerName     *string   `json:"seller_name"`
	SellerLocation *string   `json:"seller_location"`
	ImageURL       *string   `json:"img_url"`
	Manufacturer   *string   `json:"manufacturer"`
	BoatClass      *string   `json:"boat_class"`
	LengthInMeters *float64  `json:"length_in_meters"`
	State          *string   `json:"state"`
	PriceUSD       *int64    `json:"price_usd"`
	FileSource     string    `json:"file_source"`
	DateLoaded     time.Time `json:"date_loaded"`
}

// Store persists listings. GetListing fails with ErrNotFound,
// FindListingByLink returns nil when nothing matches, and CreateListing
// assigns the id and reports false when the link url is already taken.
type Store interface {
	GetListing(ctx context.Context, id int64) (*Listing, error)
	FindListingByLink(ctx context.Context, linkURL string) (*Listing, error)
	CreateListing(ctx context.Context, l *Listing) (bool, error)
}

// Str dereferences an optional text field.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
