package research

import (
	"fmt"
	"sync"

	"boatresearch/internal/logger"
)

// Listener receives snapshots. Returning an error unsubscribes it.
type Listener func(Snapshot) error

// Publisher fans job snapshots out to per-listing listeners.
type Publisher struct {
	log *logger.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[int64]map[uint64]Listener
}

func NewPublisher() *Publisher {
	return &Publisher{log: logger.New("StatusPublisher"), subs: make(map[int64]map[uint64]Listener)}
}

// Subscribe registers fn for listingID and returns its unsubscribe func,
// which is safe to call more than once.
func (p *Publisher) Subscribe(listingID int64, fn Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	if p.subs[listingID] == nil {
		p.subs[listingID] = make(map[uint64]Listener)
	}
	p.subs[listingID][id] = fn
	return func() { p.remove(listingID, id) }
}

func (p *Publisher) remove(listingID int64, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.subs[listingID]
	delete(set, id)
	if len(set) == 0 {
		delete(p.subs, listingID)
	}
}

// Count returns the number of listeners for listingID.
func (p *Publisher) Count(listingID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs[listingID])
}

// Publish delivers s to every current listener of its listing, in the
// caller's goroutine. Listeners that fail or panic are dropped.
func (p *Publisher) Publish(s Snapshot) {
	p.mu.Lock()
	set := p.subs[s.ListingID]
	ids := make([]uint64, 0, len(set))
	fns := make([]Listener, 0, len(set))
	for id, fn := range set {
		ids = append(ids, id)
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for i, fn := range fns {
		if err := deliver(fn, s); err != nil {
			p.log.LogDebugf("dropping listener for listing %d: %v", s.ListingID, err)
			p.remove(s.ListingID, ids[i])
		}
	}
}

func deliver(fn Listener, s Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return fn(s)
}
