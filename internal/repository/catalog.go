package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// findOrCreateStore возвращает магазин по точному имени, создавая его при
// отсутствии. Повторные и конкурентные вызовы для одного имени не создают
// дубликатов: вставка идёт через ON CONFLICT DO NOTHING с повторным чтением.
func (r *PostgresRepository) findOrCreateStore(ctx context.Context, q querier, name string) (*model.Store, error) {
	_, err := q.Exec(ctx,
		`INSERT INTO stores (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert store: %w", err)
	}

	var s model.Store
	err = q.QueryRow(ctx,
		`SELECT id, name, created_at FROM stores WHERE name = $1`,
		name,
	).Scan(&s.ID, &s.Name, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("select store: %w", err)
	}

	return &s, nil
}

// findOrCreateProduct возвращает товар по точному имени. Отсутствующий товар
// создаётся в состоянии pending с нулевой ставкой и наблюдённой ценой.
// У существующего товара без цены цена дозаполняется первой увиденной,
// существующая цена никогда не перезаписывается.
func (r *PostgresRepository) findOrCreateProduct(ctx context.Context, q querier, name string, priceCents *int64) (*model.Product, error) {
	_, err := q.Exec(ctx,
		`INSERT INTO products (id, name, price, points_value, status)
		 VALUES ($1, $2, $3, 0, $4)
		 ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), name, priceCents, string(model.ProductStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}

	if priceCents != nil {
		_, err = q.Exec(ctx,
			`UPDATE products SET price = $2 WHERE name = $1 AND price IS NULL`,
			name, *priceCents,
		)
		if err != nil {
			return nil, fmt.Errorf("backfill product price: %w", err)
		}
	}

	p, err := scanProduct(q.QueryRow(ctx,
		`SELECT id, name, price, points_value, status, created_at FROM products WHERE name = $1`,
		name,
	))
	if err != nil {
		return nil, fmt.Errorf("select product: %w", err)
	}

	return p, nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p      model.Product
		status string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.PointsValue, &status, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = model.ProductStatus(status)
	return &p, nil
}

// GetProductByID возвращает товар по идентификатору.
func (r *PostgresRepository) GetProductByID(ctx context.Context, productID string) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT id, name, price, points_value, status, created_at FROM products WHERE id = $1`,
		productID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}

	return p, nil
}

// ProductUpdate описывает частичное обновление товара: применяются только
// заданные поля.
type ProductUpdate struct {
	PriceCents  *int64
	PointsValue *int64
	Status      *model.ProductStatus
}

// UpdateProduct применяет частичное обновление и возвращает обновлённый товар.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, productID string, upd ProductUpdate) (*model.Product, error) {
	set := make([]string, 0, 3)
	args := []any{productID}

	if upd.PriceCents != nil {
		args = append(args, *upd.PriceCents)
		set = append(set, fmt.Sprintf("price = $%d", len(args)))
	}
	if upd.PointsValue != nil {
		args = append(args, *upd.PointsValue)
		set = append(set, fmt.Sprintf("points_value = $%d", len(args)))
	}
	if upd.Status != nil {
		args = append(args, string(*upd.Status))
		set = append(set, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(set) == 0 {
		return r.GetProductByID(ctx, productID)
	}

	p, err := scanProduct(r.pool.QueryRow(ctx,
		`UPDATE products SET `+strings.Join(set, ", ")+
			` WHERE id = $1 RETURNING id, name, price, points_value, status, created_at`,
		args...,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return p, nil
}
