package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tally/internal/core"
)

// RefTable names one of the archivable reference tables. The set is
// closed so table names are never interpolated from user input.
type RefTable string

const (
	RefCategories     RefTable = "categories"
	RefGroups         RefTable = "groups"
	RefPaymentMethods RefTable = "payment_methods"
	RefIncomeSources  RefTable = "income_sources"
	RefLendingSources RefTable = "lending_sources"
)

func (t RefTable) hasType() bool  { return t == RefPaymentMethods }
func (t RefTable) hasColor() bool { return t == RefLendingSources }

func (t RefTable) columns() string {
	cols := "id, user_id, name, is_active, created_at, updated_at"
	if t.hasType() {
		cols += ", type"
	}
	if t.hasColor() {
		cols += ", color"
	}
	return cols
}

func (t RefTable) scan(row interface{ Scan(...any) error }) (core.RefEntity, error) {
	var e core.RefEntity
	var active int64
	dest := []any{&e.ID, &e.UserID, &e.Name, &active, &e.CreatedAt, &e.UpdatedAt}
	if t.hasType() {
		dest = append(dest, &e.Type)
	}
	if t.hasColor() {
		dest = append(dest, &e.Color)
	}
	if err := row.Scan(dest...); err != nil {
		return core.RefEntity{}, err
	}
	e.IsActive = active == 1
	return e, nil
}

// RefUpdate is a partial update for a reference entity. Nil fields are
// left unchanged.
type RefUpdate struct {
	Name     *string
	IsActive *bool
	Type     *string
	Color    *string
}

// ListRef returns the user's rows of one reference table ordered by
// name. active filters on the archive flag when non-nil.
func (r *Repository) ListRef(ctx context.Context, table RefTable, userID string, active *bool) ([]core.RefEntity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ?`, table.columns(), table)
	args := []any{userID}
	if active != nil {
		query += ` AND is_active = ?`
		if *active {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	entities := []core.RefEntity{}
	for rows.Next() {
		e, err := table.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return entities, nil
}

// GetRef fetches one owned reference row.
func (r *Repository) GetRef(ctx context.Context, table RefTable, userID, id string) (core.RefEntity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND user_id = ?`, table.columns(), table)
	e, err := table.scan(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.RefEntity{}, core.ErrNotFound
	}
	if err != nil {
		return core.RefEntity{}, fmt.Errorf("get %s: %w", table, err)
	}
	return e, nil
}

// CreateRef inserts a reference row. typ and color apply only to tables
// that carry those columns.
func (r *Repository) CreateRef(ctx context.Context, table RefTable, userID, name string, typ, color *string) (core.RefEntity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.RefEntity{}, core.ErrNameRequired
	}

	id := uuid.NewString()
	cols := "id, user_id, name"
	placeholders := "?, ?, ?"
	args := []any{id, userID, name}
	if table.hasType() && typ != nil {
		cols += ", type"
		placeholders += ", ?"
		args = append(args, *typ)
	}
	if table.hasColor() {
		cols += ", color"
		placeholders += ", ?"
		args = append(args, color)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, cols, placeholders)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return core.RefEntity{}, fmt.Errorf("create %s: %w", table, err)
	}
	return r.GetRef(ctx, table, userID, id)
}

// UpdateRef applies a partial update. Returns core.ErrNoUpdates when
// nothing is set and core.ErrNotFound when the row is missing or not
// owned by the user.
func (r *Repository) UpdateRef(ctx context.Context, table RefTable, userID, id string, upd RefUpdate) (core.RefEntity, error) {
	if _, err := r.GetRef(ctx, table, userID, id); err != nil {
		return core.RefEntity{}, err
	}

	sets := []string{}
	args := []any{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return core.RefEntity{}, core.ErrNameRequired
		}
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		if *upd.IsActive {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	if upd.Type != nil && table.hasType() {
		sets = append(sets, "type = ?")
		args = append(args, *upd.Type)
	}
	if upd.Color != nil && table.hasColor() {
		sets = append(sets, "color = ?")
		args = append(args, *upd.Color)
	}

	if len(sets) == 0 {
		return core.RefEntity{}, core.ErrNoUpdates
	}

	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, id, userID)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ? AND user_id = ?`, table, strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return core.RefEntity{}, fmt.Errorf("update %s: %w", table, err)
	}
	return r.GetRef(ctx, table, userID, id)
}

// ArchiveRef soft-deactivates a reference row. Rows are never physically
// removed while transactions may reference them.
func (r *Repository) ArchiveRef(ctx context.Context, table RefTable, userID, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET is_active = 0, updated_at = datetime('now') WHERE id = ? AND user_id = ?`, table)
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("archive %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
