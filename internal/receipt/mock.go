package receipt

import (
	"context"
	"strconv"
	"time"
)

// Пулы мок-данных повторяют ассортимент реальных сербских магазинов,
// чтобы каталог в дев-окружении выглядел правдоподобно.
var (
	mockStores = []string{"Maxi", "Idea", "Roda", "Lidl", "Univerexport"}

	mockKnownProducts = []string{
		"Coca-Cola 0.5L",
		"Jaffa Cakes",
		"Plazma keks",
		"Grand kafa 200g",
		"Smoki 50g",
	}

	mockUnknownProducts = []string{
		"Domaći sir 200g",
		"Hleb beli 500g",
		"Jogurt 1L",
	}
)

// MockFetcher — детерминированная замена SUFFetcher для окружений без
// доступа к сервису фискализации. Один и тот же URL всегда даёт один и
// тот же магазин, набор позиций и сумму.
type MockFetcher struct{}

// NewMockFetcher создаёт генератор мок-чеков.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

// FetchAndParse генерирует правдоподобный чек, зависящий только от URL.
func (f *MockFetcher) FetchAndParse(_ context.Context, url string) (*Parsed, error) {
	seed := mockSeed(url)

	items := []ParsedItem{
		{
			Name:           mockKnownProducts[seed%uint64(len(mockKnownProducts))],
			Quantity:       2,
			UnitPriceCents: 15000,
			TotalCents:     30000,
		},
		{
			Name:           mockKnownProducts[(seed+1)%uint64(len(mockKnownProducts))],
			Quantity:       1,
			UnitPriceCents: 25000,
			TotalCents:     25000,
		},
		{
			Name:           mockUnknownProducts[seed%uint64(len(mockUnknownProducts))],
			Quantity:       1,
			UnitPriceCents: 20000,
			TotalCents:     20000,
		},
	}

	var total int64
	for _, it := range items {
		total += it.TotalCents
	}

	return &Parsed{
		StoreName:  mockStores[seed%uint64(len(mockStores))],
		Items:      items,
		TotalCents: total,
		Date:       time.Now().UTC(),
	}, nil
}

// mockSeed строит зерно из первых восьми hex-символов хеша URL.
func mockSeed(url string) uint64 {
	seed, err := strconv.ParseUint(Hash(url)[:8], 16, 64)
	if err != nil {
		return 0
	}
	return seed
}
