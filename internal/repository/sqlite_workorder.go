package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/domain"
)

// SQLiteWorkOrderRepo implements WorkOrderRepo using a SQLite database.
// Module choices live in work_order_module_choices and are loaded with the
// order.
type SQLiteWorkOrderRepo struct {
	db db.DBTX
}

func NewSQLiteWorkOrderRepo(db db.DBTX) *SQLiteWorkOrderRepo {
	return &SQLiteWorkOrderRepo{db: db}
}

const workOrderColumns = `id, plan_id, process_id, order_index, status, original_set_id, set_id,
	finished_set_id, dispatch_date, comment, created_at, updated_at`

func (r *SQLiteWorkOrderRepo) Create(ctx context.Context, o *domain.WorkOrder) error {
	query := `INSERT INTO work_orders (` + workOrderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		o.ID,
		o.PlanID,
		o.ProcessID,
		o.OrderIndex,
		string(o.Status),
		stringOrNil(o.OriginalSetID),
		stringOrNil(o.SetID),
		stringOrNil(o.FinishedSetID),
		nullableTimeToString(o.DispatchDate, time.RFC3339Nano),
		o.Comment,
		formatTime(o.CreatedAt),
		formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting work order: %w", err)
	}
	return r.insertModules(ctx, o.ID, o.ModuleIDs)
}

func (r *SQLiteWorkOrderRepo) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = ?`
	o, err := scanWorkOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("work order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning work order: %w", err)
	}
	if o.ModuleIDs, err = r.listModules(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *SQLiteWorkOrderRepo) ListByPlan(ctx context.Context, planID string) ([]*domain.WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE plan_id = ? ORDER BY order_index`
	rows, err := r.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("listing work orders: %w", err)
	}

	var orders []*domain.WorkOrder
	for rows.Next() {
		o, err := scanWorkOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning work order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating work orders: %w", err)
	}
	rows.Close()

	// Choices are read after the cursor is released; an in-memory store runs
	// on a single connection.
	for _, o := range orders {
		if o.ModuleIDs, err = r.listModules(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *SQLiteWorkOrderRepo) Update(ctx context.Context, o *domain.WorkOrder, expected domain.OrderStatus) error {
	query := `UPDATE work_orders SET status = ?, original_set_id = ?, set_id = ?, finished_set_id = ?,
		dispatch_date = ?, comment = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query,
		string(o.Status),
		stringOrNil(o.OriginalSetID),
		stringOrNil(o.SetID),
		stringOrNil(o.FinishedSetID),
		nullableTimeToString(o.DispatchDate, time.RFC3339Nano),
		o.Comment,
		formatTime(o.UpdatedAt),
		o.ID,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("updating work order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating work order: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM work_orders WHERE id = ?`, o.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("work order %s: %w", o.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading work order status: %w", err)
	}
	return fmt.Errorf("work order %s is %s, expected %s: %w", o.ID, current, expected, domain.ErrStaleState)
}

func (r *SQLiteWorkOrderRepo) ReplaceModules(ctx context.Context, orderID string, moduleIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM work_order_module_choices WHERE work_order_id = ?`, orderID); err != nil {
		return fmt.Errorf("clearing module choices: %w", err)
	}
	return r.insertModules(ctx, orderID, moduleIDs)
}

func (r *SQLiteWorkOrderRepo) DeleteByPlan(ctx context.Context, planID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM work_orders WHERE plan_id = ?`, planID); err != nil {
		return fmt.Errorf("deleting work orders: %w", err)
	}
	return nil
}

func (r *SQLiteWorkOrderRepo) insertModules(ctx context.Context, orderID string, moduleIDs []string) error {
	for i, id := range moduleIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO work_order_module_choices (work_order_id, position, module_id) VALUES (?, ?, ?)`,
			orderID, i, id)
		if err != nil {
			return fmt.Errorf("inserting module choice %d: %w", i, err)
		}
	}
	return nil
}

func (r *SQLiteWorkOrderRepo) listModules(ctx context.Context, orderID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT module_id FROM work_order_module_choices WHERE work_order_id = ? ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing module choices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning module choice: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanWorkOrder(row rowScanner) (*domain.WorkOrder, error) {
	var (
		o                          domain.WorkOrder
		status                     string
		originalSet, set, finished sql.NullString
		dispatchDate               sql.NullString
		createdAt, updatedAt       string
	)
	err := row.Scan(&o.ID, &o.PlanID, &o.ProcessID, &o.OrderIndex, &status, &originalSet, &set,
		&finished, &dispatchDate, &o.Comment, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.OriginalSetID = nullableString(originalSet)
	o.SetID = nullableString(set)
	o.FinishedSetID = nullableString(finished)
	o.DispatchDate = parseNullableTime(dispatchDate, time.RFC3339Nano)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}
