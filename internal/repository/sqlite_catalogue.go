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

// SQLiteCatalogueRepo stores products and their process graphs.
type SQLiteCatalogueRepo struct {
	db db.DBTX
}

func NewSQLiteCatalogueRepo(db db.DBTX) *SQLiteCatalogueRepo {
	return &SQLiteCatalogueRepo{db: db}
}

func (r *SQLiteCatalogueRepo) CreateProduct(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO products (id, name, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Name, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}

	for _, proc := range p.Processes {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO processes (id, name) VALUES (?, ?)`, proc.ID, proc.Name); err != nil {
			return fmt.Errorf("inserting process %q: %w", proc.Name, err)
		}
		_, err := r.db.ExecContext(ctx, `INSERT INTO product_processes (product_id, process_id, stage) VALUES (?, ?, ?)`,
			p.ID, proc.ID, proc.Stage)
		if err != nil {
			return fmt.Errorf("linking process %q: %w", proc.Name, err)
		}
		for _, m := range proc.Modules {
			_, err := r.db.ExecContext(ctx, `INSERT INTO process_modules (id, process_id, name) VALUES (?, ?, ?)`,
				m.ID, proc.ID, m.Name)
			if err != nil {
				return fmt.Errorf("inserting module %q: %w", m.Name, err)
			}
		}
		for _, pr := range proc.Pairings {
			_, err := r.db.ExecContext(ctx,
				`INSERT INTO process_module_pairings (id, process_id, from_module_id, to_module_id, default_path) VALUES (?, ?, ?, ?, ?)`,
				pr.ID, proc.ID, stringOrNil(pr.FromModuleID), stringOrNil(pr.ToModuleID), boolToInt(pr.DefaultPath))
			if err != nil {
				return fmt.Errorf("inserting pairing in %q: %w", proc.Name, err)
			}
		}
	}
	return nil
}

func (r *SQLiteCatalogueRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return r.getProduct(ctx, `SELECT id, name FROM products WHERE id = ?`, id)
}

func (r *SQLiteCatalogueRepo) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	return r.getProduct(ctx, `SELECT id, name FROM products WHERE name = ?`, name)
}

func (r *SQLiteCatalogueRepo) getProduct(ctx context.Context, query string, arg string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", arg, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning product: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT pr.id, pr.name, pp.stage FROM product_processes pp
		 JOIN processes pr ON pr.id = pp.process_id
		 WHERE pp.product_id = ? ORDER BY pp.stage`, p.ID)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	for rows.Next() {
		proc := &domain.Process{}
		if err := rows.Scan(&proc.ID, &proc.Name, &proc.Stage); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning process: %w", err)
		}
		p.Processes = append(p.Processes, proc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating processes: %w", err)
	}
	rows.Close()

	for _, proc := range p.Processes {
		if err := r.loadGraph(ctx, proc); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (r *SQLiteCatalogueRepo) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

func (r *SQLiteCatalogueRepo) GetProcess(ctx context.Context, id string) (*domain.Process, error) {
	proc := &domain.Process{}
	err := r.db.QueryRowContext(ctx,
		`SELECT pr.id, pr.name, COALESCE(pp.stage, 0) FROM processes pr
		 LEFT JOIN product_processes pp ON pp.process_id = pr.id
		 WHERE pr.id = ?`, id).Scan(&proc.ID, &proc.Name, &proc.Stage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("process %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning process: %w", err)
	}
	if err := r.loadGraph(ctx, proc); err != nil {
		return nil, err
	}
	return proc, nil
}

func (r *SQLiteCatalogueRepo) loadGraph(ctx context.Context, proc *domain.Process) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM process_modules WHERE process_id = ? ORDER BY rowid`, proc.ID)
	if err != nil {
		return fmt.Errorf("listing modules: %w", err)
	}
	for rows.Next() {
		m := &domain.ProcessModule{ProcessID: proc.ID}
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning module: %w", err)
		}
		proc.Modules = append(proc.Modules, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating modules: %w", err)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx,
		`SELECT id, from_module_id, to_module_id, default_path FROM process_module_pairings
		 WHERE process_id = ? ORDER BY rowid`, proc.ID)
	if err != nil {
		return fmt.Errorf("listing pairings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		pr := &domain.ModulePairing{ProcessID: proc.ID}
		var from, to sql.NullString
		var def int
		if err := rows.Scan(&pr.ID, &from, &to, &def); err != nil {
			return fmt.Errorf("scanning pairing: %w", err)
		}
		pr.FromModuleID = nullableString(from)
		pr.ToModuleID = nullableString(to)
		pr.DefaultPath = intToBool(def)
		proc.Pairings = append(proc.Pairings, pr)
	}
	return rows.Err()
}
