package service

import (
	"context"

	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/repository"
)

// RecalculateProductPoints ретроактивно пересчитывает баллы по всем позициям
// транзакций, ссылающимся на товар. Вызывается при каждом изменении ставки
// баллов товара. Новое значение каждой позиции считается тем же правилом,
// что и при сканировании; дельты агрегируются по транзакциям и
// пользователям и применяются одной атомарной записью — ровно один раз.
func (s *Service) RecalculateProductPoints(ctx context.Context, productID string) error {
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}

	items, err := s.repo.GetItemsForProduct(ctx, productID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	updates := make([]repository.ItemPointsUpdate, 0, len(items))
	txDeltas := make(map[string]int64)
	userDeltas := make(map[string]int64)

	for _, it := range items {
		newPoints := model.PointsForItem(product.Status, product.PointsValue, it.Quantity, it.TotalCents)
		delta := newPoints - it.PointsAwarded
		if delta == 0 {
			continue
		}

		updates = append(updates, repository.ItemPointsUpdate{
			ItemID:        it.ItemID,
			PointsAwarded: newPoints,
		})
		txDeltas[it.TransactionID] += delta
		userDeltas[it.UserID] += delta
	}

	if len(updates) == 0 {
		return nil
	}

	return s.repo.ApplyPointsRecalculation(ctx, updates, txDeltas, userDeltas)
}
