package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmeshcher/loyalty-system/internal/receipt"
	"github.com/mmeshcher/loyalty-system/internal/repository"
	"github.com/mmeshcher/loyalty-system/internal/validation"
)

// ScanReceipt обрабатывает скан QR-кода чека: проверяет ссылку, отсекает
// дубликаты по хешу до дорогого сетевого разбора, разбирает чек вне
// транзакции БД и атомарно записывает чек, транзакцию, позиции и
// инкремент баланса.
func (s *Service) ScanReceipt(ctx context.Context, userID, url string) (*repository.ScanResult, error) {
	if !validation.IsValidReceiptURL(url) {
		return nil, ErrInvalidReceiptURL
	}

	hash := receipt.Hash(url)

	exists, err := s.repo.ReceiptExists(ctx, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, repository.ErrReceiptExists
	}

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	// Сетевой вызов к фискальному сервису выполняется до открытия
	// транзакции: медленный внешний запрос не должен держать соединение.
	parsed, err := s.fetcher.FetchAndParse(ctx, url)
	if err != nil {
		return nil, err
	}

	if len(parsed.Items) == 0 {
		return nil, ErrUnsupportedReceipt
	}

	rawData, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("marshal parsed receipt: %w", err)
	}

	items := make([]repository.ScanItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		items = append(items, repository.ScanItem{
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			TotalCents:     it.TotalCents,
		})
	}

	return s.repo.CreateScan(ctx, repository.ScanParams{
		UserID:      userID,
		ReceiptHash: hash,
		ReceiptURL:  url,
		RawData:     string(rawData),
		StoreName:   parsed.StoreName,
		Date:        parsed.Date,
		TotalCents:  parsed.TotalCents,
		Items:       items,
	})
}
