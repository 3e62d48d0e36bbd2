// Package sqlite implements the persistence port on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store implements persistence.RecordStore and persistence.Provisioner.
type Store struct {
	db *sql.DB
	records
}

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator overrides the id generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// Open connects to the database described by cfg and applies the embedded
// schema migrations.
func Open(ctx context.Context, cfg migration.SQLiteConfig, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := migration.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewExecutor(db),
		logger.With("component", "migration"),
	)
	if err := manager.Run(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	store := &Store{
		db:      db,
		records: records{q: db, newID: uuid.NewString, now: time.Now},
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithinTx runs fn in a database transaction.
func (s *Store) WithinTx(ctx context.Context, fn persistence.TxFunc) error {
	return withTransaction(ctx, s.db, func(tx *sql.Tx) error {
		view := records{q: tx, newID: s.newID, now: s.now}
		return fn(ctx, &view)
	})
}

// CreateOwner stores a new owner.
func (s *Store) CreateOwner(ctx context.Context, owner persistence.Owner) (persistence.Owner, error) {
	if owner.ID == "" {
		owner.ID = s.newID()
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owners (id, display_name, created_at) VALUES (?, ?, ?)`,
		owner.ID, owner.DisplayName, formatTime(owner.CreatedAt))
	if err != nil {
		return persistence.Owner{}, mapError(err)
	}
	return owner, nil
}

// CreateCategory stores a new category for an existing owner.
func (s *Store) CreateCategory(ctx context.Context, category persistence.Category) (persistence.Category, error) {
	if category.ID == "" {
		category.ID = s.newID()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, owner_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		category.ID, category.OwnerID, category.Name, nullString(category.Color), formatTime(category.CreatedAt))
	if err != nil {
		return persistence.Category{}, mapError(err)
	}
	return category, nil
}
