package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/domain"
)

// SQLiteWorkPlanRepo implements WorkPlanRepo using a SQLite database.
type SQLiteWorkPlanRepo struct {
	db db.DBTX
}

func NewSQLiteWorkPlanRepo(db db.DBTX) *SQLiteWorkPlanRepo {
	return &SQLiteWorkPlanRepo{db: db}
}

const workPlanColumns = `id, owner, project_id, original_set_id, product_id, comment, desired_date, created_at, updated_at`

func (r *SQLiteWorkPlanRepo) Create(ctx context.Context, p *domain.WorkPlan) error {
	query := `INSERT INTO work_plans (` + workPlanColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Owner,
		int64OrNil(p.ProjectID),
		stringOrNil(p.OriginalSetID),
		stringOrNil(p.ProductID),
		stringOrNil(p.Comment),
		nullableTimeToString(p.DesiredDate, dateLayout),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting work plan: %w", err)
	}
	return nil
}

func (r *SQLiteWorkPlanRepo) GetByID(ctx context.Context, id string) (*domain.WorkPlan, error) {
	query := `SELECT ` + workPlanColumns + ` FROM work_plans WHERE id = ?`
	p, err := scanWorkPlan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("work plan %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning work plan: %w", err)
	}
	return p, nil
}

func (r *SQLiteWorkPlanRepo) List(ctx context.Context, owner string) ([]*domain.WorkPlan, error) {
	query := `SELECT ` + workPlanColumns + ` FROM work_plans`
	var args []any
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing work plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.WorkPlan
	for rows.Next() {
		p, err := scanWorkPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning work plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating work plans: %w", err)
	}
	return plans, nil
}

func (r *SQLiteWorkPlanRepo) Update(ctx context.Context, p *domain.WorkPlan) error {
	query := `UPDATE work_plans SET owner = ?, project_id = ?, original_set_id = ?, product_id = ?,
		comment = ?, desired_date = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		p.Owner,
		int64OrNil(p.ProjectID),
		stringOrNil(p.OriginalSetID),
		stringOrNil(p.ProductID),
		stringOrNil(p.Comment),
		nullableTimeToString(p.DesiredDate, dateLayout),
		formatTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating work plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("work plan %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *SQLiteWorkPlanRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM work_plans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting work plan: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkPlan(row rowScanner) (*domain.WorkPlan, error) {
	var (
		p                         domain.WorkPlan
		projectID                 sql.NullInt64
		setID, productID, comment sql.NullString
		desiredDate               sql.NullString
		createdAt, updatedAt      string
	)
	if err := row.Scan(&p.ID, &p.Owner, &projectID, &setID, &productID, &comment, &desiredDate, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.ProjectID = nullableInt64(projectID)
	p.OriginalSetID = nullableString(setID)
	p.ProductID = nullableString(productID)
	p.Comment = nullableString(comment)
	p.DesiredDate = parseNullableTime(desiredDate, dateLayout)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
