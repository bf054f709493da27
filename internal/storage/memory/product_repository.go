package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type productRepository struct {
	scope
}

// Create сохраняет товар, если его название ещё не занято.
func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	r.update(func(onRollback func(func())) {
		s := r.store
		if _, exists := s.products[product.ID]; exists {
			err = fmt.Errorf("product %s: %w", product.ID, domain.ErrProductAlreadyExists)
			return
		}
		if _, taken := s.productNames[product.Name]; taken {
			err = domain.ErrProductNameTaken
			return
		}
		s.products[product.ID] = product
		s.productNames[product.Name] = product.ID
		onRollback(func() {
			delete(s.products, product.ID)
			delete(s.productNames, product.Name)
		})
	})
	return err
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	var (
		product domain.Product
		ok      bool
	)
	r.view(func() {
		product, ok = r.store.products[id]
	})
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// FindByName ищет товар по точному названию.
func (r *productRepository) FindByName(ctx context.Context, name string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	var (
		product domain.Product
		ok      bool
	)
	r.view(func() {
		id, found := r.store.productNames[name]
		if !found {
			return
		}
		product, ok = r.store.products[id]
	})
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// FindAllByID возвращает найденные товары в порядке первого упоминания id.
func (r *productRepository) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Product, 0, len(ids))
	r.view(func() {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if product, ok := r.store.products[id]; ok {
				result = append(result, product)
			}
		}
	})
	return result, nil
}

// List возвращает товары, отсортированные по названию.
func (r *productRepository) List(ctx context.Context, limit int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []domain.Product
	r.view(func() {
		result = make([]domain.Product, 0, len(r.store.products))
		for _, product := range r.store.products {
			result = append(result, product)
		}
	})

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DecrementQuantity перечитывает товары и списывает остатки только если хватает на все позиции.
func (r *productRepository) DecrementQuantity(ctx context.Context, adjustments []domain.StockAdjustment) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged, err := domain.MergeAdjustments(adjustments)
	if err != nil {
		return nil, err
	}

	var updated []domain.Product
	r.update(func(onRollback func(func())) {
		s := r.store
		now := s.now()

		updated = make([]domain.Product, 0, len(merged))
		for _, adj := range merged {
			product, ok := s.products[adj.ProductID]
			if !ok {
				err = fmt.Errorf("product %s: %w", adj.ProductID, domain.ErrProductVanished)
				return
			}
			if product.Quantity < adj.Quantity {
				err = fmt.Errorf("product %s has %d, requested %d: %w",
					adj.ProductID, product.Quantity, adj.Quantity, domain.ErrInsufficientStock)
				return
			}
			product.Quantity -= adj.Quantity
			product.UpdatedAt = now
			updated = append(updated, product)
		}

		for _, product := range updated {
			previous := s.products[product.ID]
			s.products[product.ID] = product
			onRollback(func() {
				s.products[previous.ID] = previous
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
