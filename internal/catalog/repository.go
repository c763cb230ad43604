package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a car does not exist (or is soft-deleted).
var ErrNotFound = errors.New("car not found")

// Repository is the persistence contract for the catalog.
type Repository interface {
	Create(ctx context.Context, car *Car) error
	CreateBulk(ctx context.Context, cars []Car) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Car, error)
	GetByStockID(ctx context.Context, stockID string) (*Car, error)
	Search(ctx context.Context, f Filter) ([]Car, error)
	Update(ctx context.Context, car *Car) error
	Delete(ctx context.Context, id uuid.UUID) error
	Makes(ctx context.Context) ([]string, error)
	ModelsByMake(ctx context.Context, make string) ([]string, error)
}

type pgRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a Postgres-backed catalog repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &pgRepository{db: db}
}

const carColumns = `id, stock_id, make, model, year, price, km, version,
	bluetooth, car_play, length, width, height, created_at, updated_at`

func scanCar(row pgx.Row) (*Car, error) {
	var c Car
	err := row.Scan(&c.ID, &c.StockID, &c.Make, &c.Model, &c.Year, &c.Price,
		&c.KM, &c.Version, &c.Bluetooth, &c.CarPlay, &c.Length, &c.Width,
		&c.Height, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *pgRepository) Create(ctx context.Context, car *Car) error {
	if car.ID == uuid.Nil {
		car.ID = uuid.New()
	}
	sql := `INSERT INTO cars (id, stock_id, make, model, year, price, km, version,
				bluetooth, car_play, length, width, height)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, sql, car.ID, car.StockID, car.Make, car.Model,
		car.Year, car.Price, car.KM, car.Version, car.Bluetooth, car.CarPlay,
		car.Length, car.Width, car.Height).Scan(&car.CreatedAt, &car.UpdatedAt)
}

func (r *pgRepository) CreateBulk(ctx context.Context, cars []Car) (int, error) {
	rows := make([][]any, 0, len(cars))
	for i := range cars {
		c := &cars[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		rows = append(rows, []any{c.ID, c.StockID, c.Make, c.Model, c.Year,
			c.Price, c.KM, c.Version, c.Bluetooth, c.CarPlay, c.Length,
			c.Width, c.Height})
	}

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"cars"},
		[]string{"id", "stock_id", "make", "model", "year", "price", "km",
			"version", "bluetooth", "car_play", "length", "width", "height"},
		pgx.CopyFromRows(rows))
	return int(n), err
}

func (r *pgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Car, error) {
	sql := fmt.Sprintf(`SELECT %s FROM cars WHERE id = $1 AND deleted_at IS NULL`, carColumns)
	return scanCar(r.db.QueryRow(ctx, sql, id))
}

func (r *pgRepository) GetByStockID(ctx context.Context, stockID string) (*Car, error) {
	sql := fmt.Sprintf(`SELECT %s FROM cars WHERE stock_id = $1 AND deleted_at IS NULL`, carColumns)
	return scanCar(r.db.QueryRow(ctx, sql, stockID))
}

func (r *pgRepository) Search(ctx context.Context, f Filter) ([]Car, error) {
	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	conds = append(conds, "deleted_at IS NULL")
	if f.Make != "" {
		add("LOWER(make) = $%d", strings.ToLower(f.Make))
	}
	if f.Model != "" {
		add("LOWER(model) = $%d", strings.ToLower(f.Model))
	}
	if f.Year != 0 {
		add("year = $%d", f.Year)
	}
	if f.MinYear != 0 {
		add("year >= $%d", f.MinYear)
	}
	if f.MaxYear != 0 {
		add("year <= $%d", f.MaxYear)
	}
	if f.MinPrice != 0 {
		add("price >= $%d", f.MinPrice)
	}
	if f.MaxPrice != 0 {
		add("price <= $%d", f.MaxPrice)
	}

	limit := f.Limit
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`SELECT %s FROM cars WHERE %s ORDER BY price ASC LIMIT $%d`,
		carColumns, strings.Join(conds, " AND "), len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cars []Car
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, *c)
	}
	return cars, rows.Err()
}

func (r *pgRepository) Update(ctx context.Context, car *Car) error {
	sql := `UPDATE cars
			SET stock_id = $2, make = $3, model = $4, year = $5, price = $6,
				km = $7, version = $8, bluetooth = $9, car_play = $10,
				length = $11, width = $12, height = $13, updated_at = $14
			WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, sql, car.ID, car.StockID, car.Make, car.Model,
		car.Year, car.Price, car.KM, car.Version, car.Bluetooth, car.CarPlay,
		car.Length, car.Width, car.Height, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete soft-deletes a car so past conversations can still reference it.
func (r *pgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE cars SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) Makes(ctx context.Context) ([]string, error) {
	return r.distinct(ctx,
		`SELECT DISTINCT make FROM cars WHERE deleted_at IS NULL ORDER BY make`)
}

func (r *pgRepository) ModelsByMake(ctx context.Context, make string) ([]string, error) {
	if make == "" {
		return r.distinct(ctx,
			`SELECT DISTINCT model FROM cars WHERE deleted_at IS NULL ORDER BY model`)
	}
	return r.distinct(ctx,
		`SELECT DISTINCT model FROM cars WHERE deleted_at IS NULL AND LOWER(make) = $1 ORDER BY model`,
		strings.ToLower(make))
}

func (r *pgRepository) distinct(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
