package research

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublisher_DeliversPerListing(t *testing.T) {
	p := NewPublisher()
	var one, two []Snapshot
	unsub := p.Subscribe(1, func(s Snapshot) error { one = append(one, s); return nil })
	p.Subscribe(2, func(s Snapshot) error { two = append(two, s); return nil })

	p.Publish(Snapshot{ListingID: 1, Status: StatusRunning})
	p.Publish(Snapshot{ListingID: 2, Status: StatusComplete})
	assert.Len(t, one, 1)
	assert.Len(t, two, 1)

	unsub()
	unsub()
	p.Publish(Snapshot{ListingID: 1, Status: StatusComplete})
	assert.Len(t, one, 1)
	assert.Zero(t, p.Count(1))
	assert.Equal(t, 1, p.Count(2))
}

func TestPublisher_DropsFailingListeners(t *testing.T) {
	p := NewPublisher()
	var healthy int
	p.Subscribe(1, func(Snapshot) error { healthy++; return nil })
	p.Subscribe(1, func(Snapshot) error { return errors.New("gone") })
	p.Subscribe(1, func(Snapshot) error { panic("boom") })
	assert.Equal(t, 3, p.Count(1))

	assert.NotPanics(t, func() { p.Publish(Snapshot{ListingID: 1}) })
	assert.Equal(t, 1, p.Count(1))
	assert.Equal(t, 1, healthy)

	p.Publish(Snapshot{ListingID: 1})
	assert.Equal(t, 2, healthy)
}

func TestPublisher_ListenerMayUnsubscribeItself(t *testing.T) {
	p := NewPublisher()
	var unsub func()
	calls := 0
	unsub = p.Subscribe(1, func(Snapshot) error {
		calls++
		unsub()
		return nil
	})
	p.Publish(Snapshot{ListingID: 1})
	p.Publish(Snapshot{ListingID: 1})
	assert.Equal(t, 1, calls)
}
