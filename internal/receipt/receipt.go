// Package receipt предоставляет получение и разбор фискальных чеков.
package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrUnparseable возвращается, когда чек не удалось получить или разобрать.
var ErrUnparseable = errors.New("receipt cannot be parsed")

// ParsedItem описывает одну позицию разобранного чека.
type ParsedItem struct {
	Name           string  `json:"name"`
	Quantity       float64 `json:"quantity"`
	UnitPriceCents int64   `json:"unitPrice"`
	TotalCents     int64   `json:"totalPrice"`
}

// Parsed содержит нормализованное содержимое чека.
type Parsed struct {
	StoreName  string       `json:"storeName"`
	Items      []ParsedItem `json:"items"`
	TotalCents int64        `json:"totalAmount"`
	Date       time.Time    `json:"date"`
}

// Fetcher описывает источник данных чека по ссылке из QR-кода.
// Реализации не выполняют никаких записей в хранилище.
type Fetcher interface {
	FetchAndParse(ctx context.Context, url string) (*Parsed, error)
}

// Hash возвращает ключ идемпотентности чека — sha256 от URL в hex-виде.
func Hash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
