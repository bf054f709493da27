package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const productColumns = `id, name, price, quantity, created_at, updated_at`

type productRepository struct {
	conn
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q().ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, product.ID, product.Name, product.Price, product.Quantity, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return mapProductInsertError(product.ID, err)
	}
	return nil
}

func mapProductInsertError(id string, err error) error {
	code, constraint := pgErrorCode(err)
	switch {
	case code == pgUniqueViolation && constraint == constraintProductName:
		return domain.ErrProductNameTaken
	case code == pgUniqueViolation && constraint == constraintProductPK:
		return fmt.Errorf("product %s: %w", id, domain.ErrProductAlreadyExists)
	default:
		return fmt.Errorf("insert product: %w", err)
	}
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	return r.selectOne(ctx, `WHERE id = $1`, id)
}

func (r *productRepository) FindByName(ctx context.Context, name string) (domain.Product, error) {
	return r.selectOne(ctx, `WHERE name = $1`, name)
}

func (r *productRepository) selectOne(ctx context.Context, where string, arg any) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	p, err := scanProduct(r.q().QueryRowContext(ctx, `SELECT `+productColumns+` FROM products `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

// FindAllByID внутри транзакции блокирует найденные строки в порядке id,
// чтобы параллельные заказы на одни и те же товары не проверяли устаревший остаток.
func (r *productRepository) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`
	if r.tx != nil {
		query += ` FOR UPDATE`
	}

	rows, err := r.q().QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("select products by id: %w", err)
	}
	return scanProducts(rows)
}

func (r *productRepository) List(ctx context.Context, limit int) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products ORDER BY name, id`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.q().QueryContext(ctx, query+" LIMIT $1", limit)
	} else {
		rows, err = r.q().QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return scanProducts(rows)
}

// DecrementQuantity перечитывает товары под блокировкой и списывает остатки одним
// условным UPDATE. Если хотя бы одна строка не прошла условие quantity >= qty,
// транзакция откатывается и остатки не меняются.
func (r *productRepository) DecrementQuantity(ctx context.Context, adjustments []domain.StockAdjustment) ([]domain.Product, error) {
	merged, err := domain.MergeAdjustments(adjustments)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return []domain.Product{}, nil
	}

	ids := make([]string, 0, len(merged))
	qtys := make([]int64, 0, len(merged))
	for _, adj := range merged {
		ids = append(ids, adj.ProductID)
		qtys = append(qtys, adj.Quantity)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var updated []domain.Product
	err = r.inTx(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT `+productColumns+`
			FROM products
			WHERE id = ANY($1)
			ORDER BY id
			FOR UPDATE
		`, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		current, err := scanProducts(rows)
		if err != nil {
			return err
		}

		byID := make(map[string]domain.Product, len(current))
		for _, p := range current {
			byID[p.ID] = p
		}
		for _, adj := range merged {
			p, ok := byID[adj.ProductID]
			if !ok {
				return fmt.Errorf("product %s: %w", adj.ProductID, domain.ErrProductVanished)
			}
			if p.Quantity < adj.Quantity {
				return fmt.Errorf("product %s has %d, requested %d: %w",
					adj.ProductID, p.Quantity, adj.Quantity, domain.ErrInsufficientStock)
			}
		}

		rows, err = q.QueryContext(ctx, `
			UPDATE products AS p
			SET quantity = p.quantity - d.qty,
			    updated_at = $3
			FROM unnest($1::text[], $2::bigint[]) AS d(id, qty)
			WHERE p.id = d.id
			  AND p.quantity >= d.qty
			RETURNING p.id, p.name, p.price, p.quantity, p.created_at, p.updated_at
		`, ids, qtys, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("decrement product quantity: %w", err)
		}
		changed, err := scanProducts(rows)
		if err != nil {
			return err
		}
		if len(changed) != len(merged) {
			return fmt.Errorf("conditional decrement touched %d of %d products: %w",
				len(changed), len(merged), domain.ErrInsufficientStock)
		}

		changedByID := make(map[string]domain.Product, len(changed))
		for _, p := range changed {
			changedByID[p.ID] = p
		}
		updated = make([]domain.Product, 0, len(merged))
		for _, adj := range merged {
			updated = append(updated, changedByID[adj.ProductID])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
