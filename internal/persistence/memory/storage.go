// Package memory provides an in-memory implementation of the persistence port.
// It backs local development and tests; every unit of work is serialised by
// a single write lock.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/taskhub/internal/persistence"
)

type sequenceKey struct {
	ownerID string
	kind    persistence.Kind
}

type state struct {
	owners     map[string]persistence.Owner
	categories map[string]persistence.Category
	records    map[string]persistence.Record
	sequences  map[sequenceKey]int64
}

// Storage implements persistence.RecordStore and persistence.Provisioner.
type Storage struct {
	mu    sync.RWMutex
	state *state
	newID func() string
}

// Option customises a Storage.
type Option func(*Storage)

// WithIDGenerator overrides the id generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(s *Storage) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New returns an empty Storage.
func New(opts ...Option) *Storage {
	s := &Storage{
		state: &state{
			owners:     make(map[string]persistence.Owner),
			categories: make(map[string]persistence.Category),
			records:    make(map[string]persistence.Record),
			sequences:  make(map[sequenceKey]int64),
		},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close is a no-op kept for symmetry with the SQLite store.
func (s *Storage) Close() error {
	return nil
}

// WithinTx runs fn against a staged copy of the data and publishes it only
// when fn succeeds.
func (s *Storage) WithinTx(ctx context.Context, fn persistence.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(ctx, &tx{state: staged, newID: s.newID}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = staged
	return nil
}

// --- Provisioner ---

// CreateOwner stores a new owner.
func (s *Storage) CreateOwner(ctx context.Context, owner persistence.Owner) (persistence.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner.ID == "" {
		owner.ID = s.newID()
	}
	if _, ok := s.state.owners[owner.ID]; ok {
		return persistence.Owner{}, fmt.Errorf("%w: owner %s", persistence.ErrDuplicate, owner.ID)
	}
	s.state.owners[owner.ID] = owner
	return owner, nil
}

// CreateCategory stores a new category for an existing owner.
func (s *Storage) CreateCategory(ctx context.Context, category persistence.Category) (persistence.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" {
		category.ID = s.newID()
	}
	if _, ok := s.state.categories[category.ID]; ok {
		return persistence.Category{}, fmt.Errorf("%w: category %s", persistence.ErrDuplicate, category.ID)
	}
	if _, ok := s.state.owners[category.OwnerID]; !ok {
		return persistence.Category{}, fmt.Errorf("%w: owner %s does not exist", persistence.ErrForeignKeyViolation, category.OwnerID)
	}
	s.state.categories[category.ID] = cloneCategory(category)
	return cloneCategory(category), nil
}

// --- RecordReader ---

func (s *Storage) FindOwnerByID(ctx context.Context, id string) (persistence.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findOwner(id)
}

func (s *Storage) FindCategoryByID(ctx context.Context, id string) (persistence.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findCategory(id)
}

func (s *Storage) FindByID(ctx context.Context, id string) (persistence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findRecord(id)
}

func (s *Storage) FindInstancesByMasterID(ctx context.Context, masterID string) ([]persistence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.instancesOf(masterID), nil
}

func (s *Storage) MaxDisplayNumber(ctx context.Context, ownerID string, kind persistence.Kind) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.maxDisplayNumber(ownerID, kind), nil
}

func (s *Storage) ListInRange(ctx context.Context, ownerID string, kind persistence.Kind, start, end time.Time) ([]persistence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listInRange(ownerID, kind, start, end), nil
}

func (s *Storage) FindOrphanedInstances(ctx context.Context) ([]persistence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.orphans(), nil
}

// ReserveDisplayNumber reserves the next number under the write lock.
func (s *Storage) ReserveDisplayNumber(ctx context.Context, ownerID string, kind persistence.Kind) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.reserve(ownerID, kind), nil
}

// --- transaction view ---

type tx struct {
	state *state
	newID func() string
}

func (t *tx) FindOwnerByID(ctx context.Context, id string) (persistence.Owner, error) {
	return t.state.findOwner(id)
}

func (t *tx) FindCategoryByID(ctx context.Context, id string) (persistence.Category, error) {
	return t.state.findCategory(id)
}

func (t *tx) FindByID(ctx context.Context, id string) (persistence.Record, error) {
	return t.state.findRecord(id)
}

func (t *tx) FindInstancesByMasterID(ctx context.Context, masterID string) ([]persistence.Record, error) {
	return t.state.instancesOf(masterID), nil
}

func (t *tx) MaxDisplayNumber(ctx context.Context, ownerID string, kind persistence.Kind) (int64, error) {
	return t.state.maxDisplayNumber(ownerID, kind), nil
}

func (t *tx) ListInRange(ctx context.Context, ownerID string, kind persistence.Kind, start, end time.Time) ([]persistence.Record, error) {
	return t.state.listInRange(ownerID, kind, start, end), nil
}

func (t *tx) FindOrphanedInstances(ctx context.Context) ([]persistence.Record, error) {
	return t.state.orphans(), nil
}

func (t *tx) ReserveDisplayNumber(ctx context.Context, ownerID string, kind persistence.Kind) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return t.state.reserve(ownerID, kind), nil
}

func (t *tx) Save(ctx context.Context, record persistence.Record) (persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Record{}, err
	}
	return t.state.save(record, t.newID)
}

func (t *tx) SaveAll(ctx context.Context, records []persistence.Record) ([]persistence.Record, error) {
	saved := make([]persistence.Record, 0, len(records))
	for _, record := range records {
		stored, err := t.Save(ctx, record)
		if err != nil {
			return nil, err
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func (t *tx) Delete(ctx context.Context, record persistence.Record) error {
	if _, ok := t.state.records[record.ID]; !ok {
		return persistence.ErrNotFound
	}
	delete(t.state.records, record.ID)
	return nil
}

func (t *tx) DeleteAll(ctx context.Context, records []persistence.Record) error {
	for _, record := range records {
		if err := t.Delete(ctx, record); err != nil {
			return fmt.Errorf("delete %s: %w", record.ID, err)
		}
	}
	return nil
}

// --- state helpers ---

func (st *state) clone() *state {
	return &state{
		owners:     maps.Clone(st.owners),
		categories: maps.Clone(st.categories),
		records:    maps.Clone(st.records),
		sequences:  maps.Clone(st.sequences),
	}
}

func (st *state) findOwner(id string) (persistence.Owner, error) {
	owner, ok := st.owners[id]
	if !ok {
		return persistence.Owner{}, persistence.ErrNotFound
	}
	return owner, nil
}

func (st *state) findCategory(id string) (persistence.Category, error) {
	category, ok := st.categories[id]
	if !ok {
		return persistence.Category{}, persistence.ErrNotFound
	}
	return cloneCategory(category), nil
}

func (st *state) findRecord(id string) (persistence.Record, error) {
	record, ok := st.records[id]
	if !ok {
		return persistence.Record{}, persistence.ErrNotFound
	}
	return record.Clone(), nil
}

func (st *state) instancesOf(masterID string) []persistence.Record {
	instances := make([]persistence.Record, 0)
	for _, record := range st.records {
		if record.MasterID != nil && *record.MasterID == masterID {
			instances = append(instances, record.Clone())
		}
	}
	sortRecords(instances)
	return instances
}

func (st *state) maxDisplayNumber(ownerID string, kind persistence.Kind) int64 {
	var highest int64
	for _, record := range st.records {
		if record.OwnerID == ownerID && record.Kind == kind && record.DisplayNumber > highest {
			highest = record.DisplayNumber
		}
	}
	return highest
}

func (st *state) reserve(ownerID string, kind persistence.Kind) int64 {
	key := sequenceKey{ownerID: ownerID, kind: kind}
	current := st.sequences[key]
	if persisted := st.maxDisplayNumber(ownerID, kind); persisted > current {
		current = persisted
	}
	next := current + 1
	st.sequences[key] = next
	return next
}

func (st *state) listInRange(ownerID string, kind persistence.Kind, start, end time.Time) []persistence.Record {
	records := make([]persistence.Record, 0)
	for _, record := range st.records {
		if record.OwnerID != ownerID || record.Kind != kind {
			continue
		}
		if record.OccurrenceTime.Before(start) || record.OccurrenceTime.After(end) {
			continue
		}
		records = append(records, record.Clone())
	}
	sortRecords(records)
	return records
}

func (st *state) orphans() []persistence.Record {
	orphans := make([]persistence.Record, 0)
	for _, record := range st.records {
		if record.MasterID == nil {
			continue
		}
		if _, ok := st.records[*record.MasterID]; !ok {
			orphans = append(orphans, record.Clone())
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	return orphans
}

func (st *state) save(record persistence.Record, newID func() string) (persistence.Record, error) {
	if record.ID == "" {
		record.ID = newID()
	}
	if _, ok := st.owners[record.OwnerID]; !ok {
		return persistence.Record{}, fmt.Errorf("%w: owner %s does not exist", persistence.ErrForeignKeyViolation, record.OwnerID)
	}
	if record.CategoryID != nil {
		if _, ok := st.categories[*record.CategoryID]; !ok {
			return persistence.Record{}, fmt.Errorf("%w: category %s does not exist", persistence.ErrForeignKeyViolation, *record.CategoryID)
		}
	}
	if record.DisplayNumber <= 0 {
		return persistence.Record{}, errors.Join(persistence.ErrConstraintViolation, fmt.Errorf("display number must be positive"))
	}
	for id, existing := range st.records {
		if id == record.ID {
			continue
		}
		if existing.OwnerID == record.OwnerID && existing.Kind == record.Kind && existing.DisplayNumber == record.DisplayNumber {
			return persistence.Record{}, fmt.Errorf("%w: display number %d already used", persistence.ErrConflict, record.DisplayNumber)
		}
	}
	st.records[record.ID] = record.Clone()
	return record.Clone(), nil
}

func sortRecords(records []persistence.Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].OccurrenceTime.Equal(records[j].OccurrenceTime) {
			return records[i].DisplayNumber < records[j].DisplayNumber
		}
		return records[i].OccurrenceTime.Before(records[j].OccurrenceTime)
	})
}

func cloneCategory(category persistence.Category) persistence.Category {
	if category.Color != nil {
		color := *category.Color
		category.Color = &color
	}
	return category
}
