package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/recurrence"
)

// timeLayout is fixed width so that text comparison matches chronological
// order for UTC values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const recordColumns = `id, owner_id, kind, display_number, title, description, occurrence_time,
	location, reminder_minutes, category_id, is_master, master_id,
	recurrence_pattern, recurrence_interval, recurrence_end_date, created_at, updated_at`

// records implements the record queries against either the pool or an open
// transaction.
type records struct {
	q     querier
	newID func() string
	now   func() time.Time
}

func (r *records) FindOwnerByID(ctx context.Context, id string) (persistence.Owner, error) {
	var (
		owner     persistence.Owner
		createdAt string
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, display_name, created_at FROM owners WHERE id = ?`, id).
		Scan(&owner.ID, &owner.DisplayName, &createdAt)
	if err != nil {
		return persistence.Owner{}, mapError(err)
	}
	if owner.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Owner{}, err
	}
	return owner, nil
}

func (r *records) FindCategoryByID(ctx context.Context, id string) (persistence.Category, error) {
	var (
		category  persistence.Category
		color     sql.NullString
		createdAt string
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, owner_id, name, color, created_at FROM categories WHERE id = ?`, id).
		Scan(&category.ID, &category.OwnerID, &category.Name, &color, &createdAt)
	if err != nil {
		return persistence.Category{}, mapError(err)
	}
	category.Color = stringPtr(color)
	if category.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Category{}, err
	}
	return category, nil
}

func (r *records) FindByID(ctx context.Context, id string) (persistence.Record, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err != nil {
		return persistence.Record{}, mapError(err)
	}
	return record, nil
}

func (r *records) FindInstancesByMasterID(ctx context.Context, masterID string) ([]persistence.Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM records WHERE master_id = ? ORDER BY occurrence_time ASC, display_number ASC`,
		masterID)
}

func (r *records) MaxDisplayNumber(ctx context.Context, ownerID string, kind persistence.Kind) (int64, error) {
	var highest int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(display_number), 0) FROM records WHERE owner_id = ? AND kind = ?`,
		ownerID, string(kind)).Scan(&highest)
	if err != nil {
		return 0, mapError(err)
	}
	return highest, nil
}

func (r *records) ListInRange(ctx context.Context, ownerID string, kind persistence.Kind, start, end time.Time) ([]persistence.Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM records
		WHERE owner_id = ? AND kind = ? AND occurrence_time >= ? AND occurrence_time <= ?
		ORDER BY occurrence_time ASC, display_number ASC`,
		ownerID, string(kind), formatTime(start), formatTime(end))
}

func (r *records) FindOrphanedInstances(ctx context.Context) ([]persistence.Record, error) {
	return r.list(ctx,
		`SELECT `+recordColumns+` FROM records r
		WHERE r.master_id IS NOT NULL
		AND NOT EXISTS (SELECT 1 FROM records m WHERE m.id = r.master_id)
		ORDER BY r.id ASC`)
}

// ReserveDisplayNumber advances the per (owner, kind) counter in a single
// statement. A missing counter is seeded from the records table, so data
// imported without counters continues above its highest number.
func (r *records) ReserveDisplayNumber(ctx context.Context, ownerID string, kind persistence.Kind) (int64, error) {
	const stmt = `
		INSERT INTO display_sequences (owner_id, kind, last_value)
		VALUES (?, ?, (SELECT COALESCE(MAX(display_number), 0) FROM records WHERE owner_id = ? AND kind = ?) + 1)
		ON CONFLICT(owner_id, kind) DO UPDATE
		SET last_value = MAX(display_sequences.last_value + 1, excluded.last_value)
		RETURNING last_value`

	var next int64
	if err := r.q.QueryRowContext(ctx, stmt, ownerID, string(kind), ownerID, string(kind)).Scan(&next); err != nil {
		return 0, mapError(err)
	}
	return next, nil
}

func (r *records) Save(ctx context.Context, record persistence.Record) (persistence.Record, error) {
	if record.ID == "" {
		record.ID = r.newID()
	}
	now := r.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	var (
		pattern  sql.NullString
		interval sql.NullInt64
		endDate  sql.NullString
	)
	if rule := record.Recurrence; rule != nil {
		pattern = sql.NullString{String: rule.Pattern.String(), Valid: true}
		interval = sql.NullInt64{Int64: int64(rule.Interval), Valid: true}
		if rule.EndDate != nil {
			endDate = sql.NullString{String: formatTime(*rule.EndDate), Valid: true}
		}
	}

	var reminder sql.NullInt64
	if record.ReminderMinutes != nil {
		reminder = sql.NullInt64{Int64: int64(*record.ReminderMinutes), Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_number = excluded.display_number,
			title = excluded.title,
			description = excluded.description,
			occurrence_time = excluded.occurrence_time,
			location = excluded.location,
			reminder_minutes = excluded.reminder_minutes,
			category_id = excluded.category_id,
			is_master = excluded.is_master,
			master_id = excluded.master_id,
			recurrence_pattern = excluded.recurrence_pattern,
			recurrence_interval = excluded.recurrence_interval,
			recurrence_end_date = excluded.recurrence_end_date,
			updated_at = excluded.updated_at`,
		record.ID,
		record.OwnerID,
		string(record.Kind),
		record.DisplayNumber,
		record.Title,
		record.Description,
		formatTime(record.OccurrenceTime),
		nullString(record.Location),
		reminder,
		nullString(record.CategoryID),
		record.IsMaster,
		nullString(record.MasterID),
		pattern,
		interval,
		endDate,
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	if err != nil {
		return persistence.Record{}, mapError(err)
	}
	return record, nil
}

func (r *records) SaveAll(ctx context.Context, batch []persistence.Record) ([]persistence.Record, error) {
	saved := make([]persistence.Record, 0, len(batch))
	for _, record := range batch {
		stored, err := r.Save(ctx, record)
		if err != nil {
			return nil, err
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func (r *records) Delete(ctx context.Context, record persistence.Record) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, record.ID)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *records) DeleteAll(ctx context.Context, batch []persistence.Record) error {
	for _, record := range batch {
		if err := r.Delete(ctx, record); err != nil {
			return fmt.Errorf("delete %s: %w", record.ID, err)
		}
	}
	return nil
}

func (r *records) list(ctx context.Context, query string, args ...any) ([]persistence.Record, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	result := make([]persistence.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (persistence.Record, error) {
	var (
		record     persistence.Record
		kind       string
		occurrence string
		location   sql.NullString
		reminder   sql.NullInt64
		categoryID sql.NullString
		masterID   sql.NullString
		pattern    sql.NullString
		interval   sql.NullInt64
		endDate    sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(
		&record.ID, &record.OwnerID, &kind, &record.DisplayNumber, &record.Title, &record.Description, &occurrence,
		&location, &reminder, &categoryID, &record.IsMaster, &masterID,
		&pattern, &interval, &endDate, &createdAt, &updatedAt,
	)
	if err != nil {
		return persistence.Record{}, err
	}

	record.Kind = persistence.Kind(kind)
	record.Location = stringPtr(location)
	record.CategoryID = stringPtr(categoryID)
	record.MasterID = stringPtr(masterID)
	if reminder.Valid {
		minutes := int(reminder.Int64)
		record.ReminderMinutes = &minutes
	}

	if record.OccurrenceTime, err = parseTime(occurrence); err != nil {
		return persistence.Record{}, err
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Record{}, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Record{}, err
	}

	if pattern.Valid {
		parsed, err := recurrence.ParsePattern(pattern.String)
		if err != nil {
			return persistence.Record{}, fmt.Errorf("sqlite: record %s: %w", record.ID, err)
		}
		rule := recurrence.Rule{Pattern: parsed, Interval: int(interval.Int64)}
		if endDate.Valid {
			end, err := parseTime(endDate.String)
			if err != nil {
				return persistence.Record{}, err
			}
			rule.EndDate = &end
		}
		record.Recurrence = &rule
	}

	return record, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errors.Join(persistence.ErrConstraintViolation, fmt.Errorf("sqlite: parse time %q: %w", value, err))
	}
	return t, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
