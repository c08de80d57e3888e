package service

import (
	"context"

	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/repository"
)

// UpdateProduct изменяет поля товара. При смене ставки баллов или статуса
// баллы по всем ранее обработанным чекам с этим товаром пересчитываются.
func (s *Service) UpdateProduct(ctx context.Context, productID string, upd repository.ProductUpdate) (*model.Product, error) {
	product, err := s.repo.UpdateProduct(ctx, productID, upd)
	if err != nil {
		return nil, err
	}

	if upd.PointsValue != nil || upd.Status != nil {
		if err := s.RecalculateProductPoints(ctx, productID); err != nil {
			return nil, err
		}
	}

	return product, nil
}

// GetProduct возвращает товар каталога по идентификатору.
func (s *Service) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	return s.repo.GetProductByID(ctx, productID)
}
