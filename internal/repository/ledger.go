package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// ScanItem описывает одну позицию разобранного чека для записи в леджер.
type ScanItem struct {
	Name           string
	Quantity       float64
	UnitPriceCents int64
	TotalCents     int64
}

// ScanParams содержит данные одной операции сканирования чека.
type ScanParams struct {
	UserID      string
	ReceiptHash string
	ReceiptURL  string
	RawData     string
	StoreName   string
	Date        time.Time
	TotalCents  int64
	Items       []ScanItem
}

// ScanResultItem описывает позицию чека в итоге сканирования.
type ScanResultItem struct {
	ProductID     string
	Name          string
	Matched       bool
	PointsAwarded int64
}

// ScanResult содержит итог сканирования чека.
type ScanResult struct {
	TransactionID string
	PointsEarned  int64
	NewBalance    int64
	Items         []ScanResultItem
}

// ReceiptExists сообщает, был ли чек с таким хешем уже учтён.
// Дешёвая проверка идемпотентности до дорогого сетевого разбора;
// уникальный индекс по хешу остаётся последней линией защиты при записи.
func (r *PostgresRepository) ReceiptExists(ctx context.Context, receiptHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM receipts WHERE receipt_hash = $1)`,
		receiptHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check receipt hash: %w", err)
	}
	return exists, nil
}

// CreateScan атомарно записывает чек, транзакцию, её позиции и инкремент
// баланса пользователя. Магазин и товары разрешаются внутри той же
// транзакции: при откате не остаётся ни одной частичной записи.
func (r *PostgresRepository) CreateScan(ctx context.Context, p ScanParams) (*ScanResult, error) {
	var result *ScanResult

	err := r.withRetry(ctx, func(ctx context.Context) error {
		res, err := r.createScan(ctx, p)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) createScan(ctx context.Context, p ScanParams) (*ScanResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	store, err := r.findOrCreateStore(ctx, tx, p.StoreName)
	if err != nil {
		return nil, err
	}

	products := make([]*model.Product, 0, len(p.Items))
	for _, it := range p.Items {
		price := it.UnitPriceCents
		product, err := r.findOrCreateProduct(ctx, tx, it.Name, &price)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	items, resultItems, pointsEarned := buildScanItems(p.Items, products)

	receiptID := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO receipts (id, receipt_hash, receipt_url, raw_data, store_id, receipt_date, total_amount, scanned_by, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		receiptID, p.ReceiptHash, p.ReceiptURL, p.RawData, store.ID, p.Date, p.TotalCents,
		p.UserID, string(model.ReceiptStatusProcessed),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrReceiptExists
		}
		return nil, fmt.Errorf("insert receipt: %w", err)
	}

	transactionID := uuid.NewString()
	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, store_id, receipt_id, date, total_amount, points_earned)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		transactionID, p.UserID, store.ID, receiptID, p.Date, p.TotalCents, pointsEarned,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	for _, it := range items {
		_, err = tx.Exec(ctx,
			`INSERT INTO transaction_items (id, transaction_id, product_id, product_name, quantity, unit_price, total_price, points_awarded)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, transactionID, it.ProductID, it.ProductName, it.Quantity,
			it.UnitPriceCents, it.TotalCents, it.PointsAwarded,
		)
		if err != nil {
			return nil, fmt.Errorf("insert transaction item: %w", err)
		}
	}

	var newBalance int64
	err = tx.QueryRow(ctx,
		`UPDATE users SET points_balance = points_balance + $2 WHERE id = $1 RETURNING points_balance`,
		p.UserID, pointsEarned,
	).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("increment balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &ScanResult{
		TransactionID: transactionID,
		PointsEarned:  pointsEarned,
		NewBalance:    newBalance,
		Items:         resultItems,
	}, nil
}

// buildScanItems собирает позиции транзакции по уже разрешённым товарам:
// products[i] соответствует items[i]. Возвращает позиции для записи,
// позиции итога для клиента и общую сумму начисленных баллов чека.
func buildScanItems(items []ScanItem, products []*model.Product) ([]model.TransactionItem, []ScanResultItem, int64) {
	txItems := make([]model.TransactionItem, 0, len(items))
	resultItems := make([]ScanResultItem, 0, len(items))
	var pointsEarned int64

	for i, it := range items {
		product := products[i]
		awarded := model.PointsForItem(product.Status, product.PointsValue, it.Quantity, it.TotalCents)
		pointsEarned += awarded

		txItems = append(txItems, model.TransactionItem{
			ID:             uuid.NewString(),
			ProductID:      product.ID,
			ProductName:    it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			TotalCents:     it.TotalCents,
			PointsAwarded:  awarded,
		})
		resultItems = append(resultItems, ScanResultItem{
			ProductID:     product.ID,
			Name:          it.Name,
			Matched:       model.ItemMatched(product.Status, product.PointsValue),
			PointsAwarded: awarded,
		})
	}

	return txItems, resultItems, pointsEarned
}

// ItemForRecalc описывает позицию транзакции, подлежащую пересчёту,
// вместе с владельцем транзакции.
type ItemForRecalc struct {
	ItemID        string
	TransactionID string
	UserID        string
	Quantity      float64
	TotalCents    int64
	PointsAwarded int64
}

// GetItemsForProduct возвращает все позиции транзакций по товару.
func (r *PostgresRepository) GetItemsForProduct(ctx context.Context, productID string) ([]ItemForRecalc, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ti.id, ti.transaction_id, t.user_id, ti.quantity, ti.total_price, ti.points_awarded
		 FROM transaction_items ti
		 JOIN transactions t ON t.id = ti.transaction_id
		 WHERE ti.product_id = $1`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select items for product: %w", err)
	}
	defer rows.Close()

	var res []ItemForRecalc
	for rows.Next() {
		var it ItemForRecalc
		if err := rows.Scan(&it.ItemID, &it.TransactionID, &it.UserID, &it.Quantity, &it.TotalCents, &it.PointsAwarded); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		res = append(res, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ItemPointsUpdate описывает новое значение баллов одной позиции.
type ItemPointsUpdate struct {
	ItemID        string
	PointsAwarded int64
}

// ApplyPointsRecalculation атомарно применяет результат ретроактивного
// пересчёта: новые баллы позиций, агрегированные дельты транзакций и
// агрегированные дельты балансов. Либо применяется всё, либо ничего —
// частичное применение нарушило бы инвариант леджера.
func (r *PostgresRepository) ApplyPointsRecalculation(ctx context.Context, items []ItemPointsUpdate, txDeltas, userDeltas map[string]int64) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		return r.applyPointsRecalculation(ctx, items, txDeltas, userDeltas)
	})
}

func (r *PostgresRepository) applyPointsRecalculation(ctx context.Context, items []ItemPointsUpdate, txDeltas, userDeltas map[string]int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, it := range items {
		_, err = tx.Exec(ctx,
			`UPDATE transaction_items SET points_awarded = $2 WHERE id = $1`,
			it.ItemID, it.PointsAwarded,
		)
		if err != nil {
			return fmt.Errorf("update item points: %w", err)
		}
	}

	// Обновления идут в отсортированном порядке ключей, чтобы два
	// конкурентных пересчёта не взяли блокировки строк навстречу друг другу.
	for _, id := range sortedKeys(txDeltas) {
		_, err = tx.Exec(ctx,
			`UPDATE transactions SET points_earned = points_earned + $2 WHERE id = $1`,
			id, txDeltas[id],
		)
		if err != nil {
			return fmt.Errorf("update transaction points: %w", err)
		}
	}

	// Отрицательная дельта может превышать остаток, если пользователь уже
	// потратил баллы: баланс срезается до нуля, иначе пересчёт упирался бы
	// в ограничение points_balance >= 0 и не проходил бы никогда.
	for _, id := range sortedKeys(userDeltas) {
		_, err = tx.Exec(ctx,
			`UPDATE users SET points_balance = GREATEST(0, points_balance + $2) WHERE id = $1`,
			id, userDeltas[id],
		)
		if err != nil {
			return fmt.Errorf("update user balance: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetBalance возвращает текущий баланс баллов пользователя.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx,
		`SELECT points_balance FROM users WHERE id = $1`,
		userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

// DeductPoints атомарно списывает баллы с баланса пользователя.
// Условное обновление исключает уход баланса в минус при конкурентных
// списаниях; возвращает новый баланс.
func (r *PostgresRepository) DeductPoints(ctx context.Context, userID string, points int64) (int64, error) {
	var newBalance int64
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET points_balance = points_balance - $2
		 WHERE id = $1 AND points_balance >= $2
		 RETURNING points_balance`,
		userID, points,
	).Scan(&newBalance)
	if err == nil {
		return newBalance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("deduct points: %w", err)
	}

	// Либо пользователя нет, либо баллов не хватило.
	if _, balErr := r.GetBalance(ctx, userID); balErr != nil {
		return 0, balErr
	}
	return 0, ErrInsufficientBalance
}
