package storage

import (
	"context"
	"fmt"
	"strconv"

	"boatresearch/internal/core/listing"
	"boatresearch/internal/core/research"
	rds "boatresearch/internal/platform/redis"

	"github.com/google/uuid"
)

const (
	keyListingSeq  = "listing:seq"
	prefixListing  = "listing:"
	prefixLink     = "listing:link:"
	prefixRecord   = "research:"
	prefixModelKey = "model:key:"
	prefixModelID  = "model:id:"
	prefixModelSet = "model:class:"
	prefixMapping  = "mapping:"
)

// Redis stores every row as JSON. Unique keys (link url, model key, search
// key) are claimed with SETNX, so racing creators see "already exists".
type Redis struct {
	svc *rds.Service
}

func NewRedis(svc *rds.Service) *Redis { return &Redis{svc: svc} }

func (r *Redis) GetListing(ctx context.Context, id int64) (*listing.Listing, error) {
	var l listing.Listing
	if err := r.svc.CacheGet(ctx, listingKey(id), &l); err != nil {
		if rds.IsMissing(err) {
			return nil, fmt.Errorf("%w: %d", listing.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get listing %d: %w", id, err)
	}
	return &l, nil
}

func (r *Redis) FindListingByLink(ctx context.Context, linkURL string) (*listing.Listing, error) {
	raw, err := r.svc.Client().Get(ctx, prefixLink+linkURL).Result()
	if err != nil {
		if rds.IsMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find listing by link: %w", err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt link index for %s: %w", linkURL, err)
	}
	return r.GetListing(ctx, id)
}

func (r *Redis) CreateListing(ctx context.Context, l *listing.Listing) (bool, error) {
	id, err := r.svc.Client().Incr(ctx, keyListingSeq).Result()
	if err != nil {
		return false, fmt.Errorf("allocate listing id: %w", err)
	}
	ok, err := r.svc.Client().SetNX(ctx, prefixLink+l.LinkURL, strconv.FormatInt(id, 10), 0).Result()
	if err != nil {
		return false, fmt.Errorf("claim listing link: %w", err)
	}
	if !ok {
		return false, nil
	}
	l.ID = id
	if err := r.svc.CacheSet(ctx, listingKey(id), l, 0); err != nil {
		// Release the link so a retry can create the row.
		_ = r.svc.Client().Del(context.WithoutCancel(ctx), prefixLink+l.LinkURL).Err()
		l.ID = 0
		return false, fmt.Errorf("write listing %d: %w", id, err)
	}
	return true, nil
}

func (r *Redis) GetResearchRecord(ctx context.Context, listingID int64) (*research.ListingResearch, error) {
	var rec research.ListingResearch
	if err := r.svc.CacheGet(ctx, recordKey(listingID), &rec); err != nil {
		if rds.IsMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get research record %d: %w", listingID, err)
	}
	return &rec, nil
}

// UpsertResearchRecord is a read-modify-write; a listing has one writer at a
// time because the registry admits one job per listing.
func (r *Redis) UpsertResearchRecord(ctx context.Context, listingID int64, u research.RecordUpdate) error {
	rec, err := r.GetResearchRecord(ctx, listingID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &research.ListingResearch{ListingID: listingID}
	}
	rec.Apply(u, nowUTC())
	if err := r.svc.CacheSet(ctx, recordKey(listingID), rec, 0); err != nil {
		return fmt.Errorf("write research record %d: %w", listingID, err)
	}
	return nil
}

func (r *Redis) FindModelResearch(ctx context.Context, key research.ModelKey) (*research.ModelResearch, error) {
	return r.modelByKey(ctx, key.String())
}

func (r *Redis) modelByKey(ctx context.Context, k string) (*research.ModelResearch, error) {
	var row research.ModelResearch
	if err := r.svc.CacheGet(ctx, prefixModelKey+k, &row); err != nil {
		if rds.IsMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get model research %s: %w", k, err)
	}
	return &row, nil
}

func (r *Redis) FindLatestModelResearch(ctx context.Context, manufacturer, boatClass string) (*research.ModelResearch, error) {
	keys, err := r.svc.Client().SMembers(ctx, classKey(manufacturer, boatClass)).Result()
	if err != nil {
		return nil, fmt.Errorf("list model research: %w", err)
	}
	rows := make([]research.ModelResearch, 0, len(keys))
	for _, k := range keys {
		row, err := r.modelByKey(ctx, k)
		if err != nil {
			return nil, err
		}
		if row != nil {
			rows = append(rows, *row)
		}
	}
	return latest(rows), nil
}

func (r *Redis) CreateModelResearch(ctx context.Context, row research.ModelResearch) (*research.ModelResearch, bool, error) {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	k := row.Key().String()
	ok, err := r.svc.CacheSetNX(ctx, prefixModelKey+k, row)
	if err != nil {
		return nil, false, fmt.Errorf("create model research %s: %w", k, err)
	}
	if !ok {
		existing, err := r.modelByKey(ctx, k)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	pipe := r.svc.Client().TxPipeline()
	pipe.Set(ctx, prefixModelID+row.ID, k, 0)
	pipe.SAdd(ctx, classKey(row.Manufacturer, row.BoatClass), k)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, fmt.Errorf("index model research %s: %w", k, err)
	}
	return &row, true, nil
}

func (r *Redis) UpdateModelResearch(ctx context.Context, id string, u research.ModelUpdate) error {
	k, err := r.svc.Client().Get(ctx, prefixModelID+id).Result()
	if err != nil {
		if rds.IsMissing(err) {
			return fmt.Errorf("%w: model %s", ErrNotFound, id)
		}
		return fmt.Errorf("resolve model %s: %w", id, err)
	}
	row, err := r.modelByKey(ctx, k)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: model %s", ErrNotFound, id)
	}
	row.Apply(u)
	if err := r.svc.CacheSet(ctx, prefixModelKey+k, row, 0); err != nil {
		return fmt.Errorf("write model research %s: %w", k, err)
	}
	return nil
}

func (r *Redis) FindSearchKeyMapping(ctx context.Context, searchKey string) (*research.SearchKeyMapping, error) {
	var m research.SearchKeyMapping
	if err := r.svc.CacheGet(ctx, prefixMapping+searchKey, &m); err != nil {
		if rds.IsMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get search key mapping %q: %w", searchKey, err)
	}
	return &m, nil
}

func (r *Redis) CreateSearchKeyMapping(ctx context.Context, m research.SearchKeyMapping) (bool, error) {
	ok, err := r.svc.CacheSetNX(ctx, prefixMapping+m.SearchKey, m)
	if err != nil {
		return false, fmt.Errorf("create search key mapping %q: %w", m.SearchKey, err)
	}
	return ok, nil
}

func listingKey(id int64) string { return prefixListing + strconv.FormatInt(id, 10) }

func recordKey(id int64) string { return prefixRecord + strconv.FormatInt(id, 10) }

func classKey(manufacturer, boatClass string) string {
	return prefixModelSet + manufacturer + "|" + boatClass
}
