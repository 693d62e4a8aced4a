// Package sqlite implements domain.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/moodbite/backend/internal/domain"
)

//go:embed schema.sql
var schemaFS embed.FS

const recordColumns = `barcode, product_name, energy_kj, energy_kcal, carbohydrates, sugars, fat, proteins, scan_date`

// Store implements domain.Store
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening database: %v", domain.ErrStore, err)
	}

	// A single connection serialises writers and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: error enabling WAL mode: %v", domain.ErrStore, err)
		}
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Named("sqlite").Info("database ready", zap.String("path", path))
	return &Store{db: db, logger: logger.Named("sqlite"), now: time.Now}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("%w: error executing schema: %v", domain.ErrStore, err)
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStore, op, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.NutritionRecord, error) {
	var r domain.NutritionRecord
	err := row.Scan(&r.Barcode, &r.ProductName, &r.EnergyKj, &r.EnergyKcal,
		&r.Carbohydrates, &r.Sugars, &r.Fat, &r.Proteins, &r.ScanDate)
	return r, err
}

// Add upserts a record keyed by (user, collection, barcode)
func (s *Store) Add(ctx context.Context, userID string, collection domain.Collection, record domain.NutritionRecord) error {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return err
	}
	if err := domain.ValidateRecord(record); err != nil {
		return err
	}

	query := `
		INSERT INTO user_foods (user_id, collection, ` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, collection, barcode) DO UPDATE SET
			product_name = excluded.product_name,
			energy_kj = excluded.energy_kj,
			energy_kcal = excluded.energy_kcal,
			carbohydrates = excluded.carbohydrates,
			sugars = excluded.sugars,
			fat = excluded.fat,
			proteins = excluded.proteins,
			scan_date = excluded.scan_date
	`

	_, err := s.db.ExecContext(ctx, query, userID, string(collection),
		record.Barcode, record.ProductName, record.EnergyKj, record.EnergyKcal,
		record.Carbohydrates, record.Sugars, record.Fat, record.Proteins, record.ScanDate,
	)
	if err != nil {
		return storeErr("add record", err)
	}
	return nil
}

// List returns a collection in insertion order
func (s *Store) List(ctx context.Context, userID string, collection domain.Collection) ([]domain.NutritionRecord, error) {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + ` FROM user_foods WHERE user_id = ? AND collection = ? ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, query, userID, string(collection))
	if err != nil {
		return nil, storeErr("list records", err)
	}
	defer rows.Close()

	records := []domain.NutritionRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, storeErr("scan record", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list records", err)
	}
	return records, nil
}

// Delete removes a record; deleting a missing barcode is not an error
func (s *Store) Delete(ctx context.Context, userID string, collection domain.Collection, barcode string) error {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return err
	}
	if barcode == "" {
		return fmt.Errorf("%w: barcode is required", domain.ErrInvalidRequest)
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_foods WHERE user_id = ? AND collection = ? AND barcode = ?`,
		userID, string(collection), barcode)
	if err != nil {
		return storeErr("delete record", err)
	}
	return nil
}

// SetMood upserts the mood of one date
func (s *Store) SetMood(ctx context.Context, userID string, mood domain.MoodRecord) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}
	if err := domain.ValidateMood(mood); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moods (user_id, date, mood) VALUES (?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET mood = excluded.mood`,
		userID, mood.Date, mood.Mood)
	if err != nil {
		return storeErr("set mood", err)
	}
	return nil
}

// ListMoods returns every mood entry of a user
func (s *Store) ListMoods(ctx context.Context, userID string) ([]domain.MoodRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT date, mood FROM moods WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, storeErr("list moods", err)
	}
	defer rows.Close()

	moods := []domain.MoodRecord{}
	for rows.Next() {
		var m domain.MoodRecord
		if err := rows.Scan(&m.Date, &m.Mood); err != nil {
			return nil, storeErr("scan mood", err)
		}
		moods = append(moods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list moods", err)
	}
	return moods, nil
}

// Catalog returns the shared foods table
func (s *Store) Catalog() domain.CatalogStore {
	return &catalogStore{s: s}
}

// AcquireLock takes over the lock row unless an unexpired lease exists
func (s *Store) AcquireLock(ctx context.Context, resource, owner string, ttl time.Duration) (domain.Lock, error) {
	now := s.now()
	lockID := uuid.NewString()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO locks (resource, lock_id, owner, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(resource) DO UPDATE SET
			lock_id = excluded.lock_id,
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE locks.expires_at < ?`,
		resource, lockID, owner, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, storeErr("acquire lock", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("acquire lock", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrLockHeld, resource)
	}

	s.logger.Debug("lock acquired", zap.String("resource", resource), zap.String("owner", owner))
	return &sqlLock{s: s, resource: resource, lockID: lockID}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

type sqlLock struct {
	s        *Store
	resource string
	lockID   string
}

func (l *sqlLock) Release(ctx context.Context) error {
	_, err := l.s.db.ExecContext(ctx, `DELETE FROM locks WHERE resource = ? AND lock_id = ?`, l.resource, l.lockID)
	if err != nil {
		return storeErr("release lock", err)
	}
	return nil
}

type catalogStore struct {
	s *Store
}

func (c *catalogStore) IsEmpty(ctx context.Context) (bool, error) {
	var one int
	err := c.s.db.QueryRowContext(ctx, `SELECT 1 FROM foods LIMIT 1`).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, storeErr("check catalog", err)
	}
	return false, nil
}

// PutBatch writes every record inside one transaction
func (c *catalogStore) PutBatch(ctx context.Context, records []domain.NutritionRecord) error {
	if err := domain.ValidateBatch(records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO foods (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(barcode) DO UPDATE SET
			product_name = excluded.product_name,
			energy_kj = excluded.energy_kj,
			energy_kcal = excluded.energy_kcal,
			carbohydrates = excluded.carbohydrates,
			sugars = excluded.sugars,
			fat = excluded.fat,
			proteins = excluded.proteins,
			scan_date = excluded.scan_date`)
	if err != nil {
		return storeErr("prepare batch", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Barcode, r.ProductName, r.EnergyKj, r.EnergyKcal,
			r.Carbohydrates, r.Sugars, r.Fat, r.Proteins, r.ScanDate); err != nil {
			return storeErr("write batch", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit batch", err)
	}
	return nil
}

func (c *catalogStore) Get(ctx context.Context, barcode string) (domain.NutritionRecord, error) {
	row := c.s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM foods WHERE barcode = ?`, barcode)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NutritionRecord{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.NutritionRecord{}, storeErr("get catalog record", err)
	}
	return r, nil
}

func (c *catalogStore) List(ctx context.Context, limit int) ([]domain.NutritionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM foods ORDER BY rowid LIMIT ?`, limit)
	if err != nil {
		return nil, storeErr("list catalog", err)
	}
	defer rows.Close()

	records := []domain.NutritionRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, storeErr("scan catalog record", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list catalog", err)
	}
	return records, nil
}
