// Package memstore is an in-process document store laid out like the cloud
// document store paths: users/{userId}/{collection}/{barcode},
// users/{userId}/emotion_status/{date} and foods/{barcode}. It backs
// development servers and tests.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moodbite/backend/internal/domain"
)

// docs is an insertion-ordered set of records keyed by barcode
type docs struct {
	keys    []string
	records map[string]domain.NutritionRecord
}

func newDocs() *docs {
	return &docs{records: make(map[string]domain.NutritionRecord)}
}

func (d *docs) put(r domain.NutritionRecord) {
	if _, ok := d.records[r.Barcode]; !ok {
		d.keys = append(d.keys, r.Barcode)
	}
	d.records[r.Barcode] = r
}

func (d *docs) remove(barcode string) {
	if _, ok := d.records[barcode]; !ok {
		return
	}
	delete(d.records, barcode)
	for i, k := range d.keys {
		if k == barcode {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

func (d *docs) list(limit int) []domain.NutritionRecord {
	out := make([]domain.NutritionRecord, 0, len(d.keys))
	for _, k := range d.keys {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, d.records[k])
	}
	return out
}

type userDocs struct {
	collections map[domain.Collection]*docs
	moods       map[string]string
	moodOrder   []string
}

type lease struct {
	lockID  string
	owner   string
	expires time.Time
}

// Store is a thread-safe in-memory domain.Store
type Store struct {
	mu      sync.RWMutex
	users   map[string]*userDocs
	foods   *docs
	leases  map[string]lease
	now     func() time.Time
	catalog *catalogStore
}

// New creates an empty store
func New() *Store {
	s := &Store{
		users:  make(map[string]*userDocs),
		foods:  newDocs(),
		leases: make(map[string]lease),
		now:    time.Now,
	}
	s.catalog = &catalogStore{s: s}
	return s
}

func (s *Store) user(userID string) *userDocs {
	u, ok := s.users[userID]
	if !ok {
		u = &userDocs{
			collections: make(map[domain.Collection]*docs),
			moods:       make(map[string]string),
		}
		s.users[userID] = u
	}
	return u
}

// Add upserts a record under users/{userID}/{collection}/{barcode}
func (s *Store) Add(ctx context.Context, userID string, collection domain.Collection, record domain.NutritionRecord) error {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return err
	}
	if err := domain.ValidateRecord(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	d, ok := u.collections[collection]
	if !ok {
		d = newDocs()
		u.collections[collection] = d
	}
	d.put(record)
	return nil
}

// List returns the records of a collection in insertion order
func (s *Store) List(ctx context.Context, userID string, collection domain.Collection) ([]domain.NutritionRecord, error) {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return []domain.NutritionRecord{}, nil
	}
	d, ok := u.collections[collection]
	if !ok {
		return []domain.NutritionRecord{}, nil
	}
	return d.list(0), nil
}

// Delete removes a record; deleting a missing barcode is not an error
func (s *Store) Delete(ctx context.Context, userID string, collection domain.Collection, barcode string) error {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return err
	}
	if barcode == "" {
		return fmt.Errorf("%w: barcode is required", domain.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		if d, ok := u.collections[collection]; ok {
			d.remove(barcode)
		}
	}
	return nil
}

// SetMood stores users/{userID}/emotion_status/{date}
func (s *Store) SetMood(ctx context.Context, userID string, mood domain.MoodRecord) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}
	if err := domain.ValidateMood(mood); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	if _, ok := u.moods[mood.Date]; !ok {
		u.moodOrder = append(u.moodOrder, mood.Date)
	}
	u.moods[mood.Date] = mood.Mood
	return nil
}

// ListMoods returns every mood entry of a user
func (s *Store) ListMoods(ctx context.Context, userID string) ([]domain.MoodRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return []domain.MoodRecord{}, nil
	}
	out := make([]domain.MoodRecord, 0, len(u.moodOrder))
	for _, date := range u.moodOrder {
		out = append(out, domain.MoodRecord{Date: date, Mood: u.moods[date]})
	}
	return out, nil
}

// Catalog returns the shared foods/{barcode} collection
func (s *Store) Catalog() domain.CatalogStore {
	return s.catalog
}

// AcquireLock takes a lease on resource unless another unexpired lease exists
func (s *Store) AcquireLock(ctx context.Context, resource, owner string, ttl time.Duration) (domain.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if current, ok := s.leases[resource]; ok && now.Before(current.expires) {
		return nil, fmt.Errorf("%w: %s", domain.ErrLockHeld, resource)
	}

	l := lease{lockID: uuid.NewString(), owner: owner, expires: now.Add(ttl)}
	s.leases[resource] = l
	return &memLock{s: s, resource: resource, lockID: l.lockID}, nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

type memLock struct {
	s        *Store
	resource string
	lockID   string
}

// Release drops the lease if it is still ours
func (l *memLock) Release(ctx context.Context) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if current, ok := l.s.leases[l.resource]; ok && current.lockID == l.lockID {
		delete(l.s.leases, l.resource)
	}
	return nil
}

type catalogStore struct {
	s *Store
}

func (c *catalogStore) IsEmpty(ctx context.Context) (bool, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return len(c.s.foods.keys) == 0, nil
}

// PutBatch validates every record before writing any of them
func (c *catalogStore) PutBatch(ctx context.Context, records []domain.NutritionRecord) error {
	if err := domain.ValidateBatch(records); err != nil {
		return err
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, r := range records {
		c.s.foods.put(r)
	}
	return nil
}

func (c *catalogStore) Get(ctx context.Context, barcode string) (domain.NutritionRecord, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	r, ok := c.s.foods.records[barcode]
	if !ok {
		return domain.NutritionRecord{}, domain.ErrProductNotFound
	}
	return r, nil
}

func (c *catalogStore) List(ctx context.Context, limit int) ([]domain.NutritionRecord, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.s.foods.list(limit), nil
}
