package usecase

import (
	"sync"
	"time"
)

// Observable holds a value and notifies subscribers of every update.
// Subscribers only ever see the latest value: a slow subscriber's pending
// value is replaced rather than queued.
type Observable[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   map[int]chan T
	nextID int
}

// NewObservable creates an observable holding initial.
func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{
		value: initial,
		subs:  make(map[int]chan T),
	}
}

// Get returns the current value.
func (o *Observable[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

// Subscribe returns a channel receiving future updates and a cancel func
// that closes it. cancel is safe to call more than once.
func (o *Observable[T]) Subscribe() (<-chan T, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	ch := make(chan T, 1)
	o.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Update stores v and delivers it to every subscriber without blocking.
func (o *Observable[T]) Update(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.value = v
	for _, ch := range o.subs {
		select {
		case ch <- v:
		default:
			// drop the stale pending value
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (o *Observable[T]) Subscribers() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

// Change kinds published on the feed.
const (
	ChangeRecords = "records"
	ChangeMoods   = "moods"
)

// Change describes a modification of a user's data.
type Change struct {
	UserID   string    `json:"userId"`
	Kind     string    `json:"kind"`
	Sequence uint64    `json:"sequence"`
	At       time.Time `json:"at"`
}

// ChangeFeed keeps one Observable per user.
type ChangeFeed struct {
	mu    sync.Mutex
	feeds map[string]*Observable[Change]
	now   func() time.Time
}

// NewChangeFeed creates an empty feed.
func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{
		feeds: make(map[string]*Observable[Change]),
		now:   time.Now,
	}
}

// For returns the observable of userID, creating it on first use.
func (f *ChangeFeed) For(userID string) *Observable[Change] {
	f.mu.Lock()
	defer f.mu.Unlock()

	obs, ok := f.feeds[userID]
	if !ok {
		obs = NewObservable(Change{UserID: userID})
		f.feeds[userID] = obs
	}
	return obs
}

// Publish records a change of kind for userID. A nil feed is a no-op.
func (f *ChangeFeed) Publish(userID, kind string) {
	if f == nil {
		return
	}
	obs := f.For(userID)

	// serialize publishers so sequence numbers stay unique per user
	f.mu.Lock()
	defer f.mu.Unlock()
	next := obs.Get().Sequence + 1
	obs.Update(Change{UserID: userID, Kind: kind, Sequence: next, At: f.now()})
}
