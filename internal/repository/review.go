package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// CreateReviewRequest сохраняет запрос на оценку товара. Частичный
// уникальный индекс по необработанным запросам страхует от гонки двух
// одновременных отправок одного пользователя.
func (r *PostgresRepository) CreateReviewRequest(ctx context.Context, req model.ReviewRequest) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO review_requests (id, product_id, submitted_by, status, comment)
		 VALUES ($1, $2, $3, $4, $5)`,
		req.ID, req.ProductID, req.SubmittedByID, string(req.Status), req.Comment,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrReviewRequestExists
		}
		return fmt.Errorf("insert review request: %w", err)
	}
	return nil
}

// HasPendingReviewRequest сообщает, есть ли у пользователя необработанный
// запрос по товару.
func (r *PostgresRepository) HasPendingReviewRequest(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM review_requests
		   WHERE product_id = $1 AND submitted_by = $2 AND status = $3
		 )`,
		productID, userID, string(model.ReviewRequestStatusPending),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending review request: %w", err)
	}
	return exists, nil
}

// ReviewRequestRow — запрос на оценку вместе с товаром и автором.
type ReviewRequestRow struct {
	Request   model.ReviewRequest
	Product   model.Product
	UserName  string
	UserEmail string
}

// ListReviewRequests возвращает запросы на оценку с товаром и автором,
// старые первыми. При заданном статусе — только запросы в этом статусе.
func (r *PostgresRepository) ListReviewRequests(ctx context.Context, status *model.ReviewRequestStatus) ([]ReviewRequestRow, error) {
	query := `SELECT rr.id, rr.product_id, rr.submitted_by, rr.status, rr.comment, rr.created_at,
	                 p.id, p.name, p.price, p.points_value, p.status, p.created_at,
	                 u.name, u.email
	          FROM review_requests rr
	          JOIN products p ON p.id = rr.product_id
	          JOIN users u ON u.id = rr.submitted_by`
	args := []any{}
	if status != nil {
		query += ` WHERE rr.status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY rr.created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select review requests: %w", err)
	}
	defer rows.Close()

	var res []ReviewRequestRow
	for rows.Next() {
		var (
			row           ReviewRequestRow
			reqStatus     string
			productStatus string
		)
		err := rows.Scan(
			&row.Request.ID, &row.Request.ProductID, &row.Request.SubmittedByID,
			&reqStatus, &row.Request.Comment, &row.Request.CreatedAt,
			&row.Product.ID, &row.Product.Name, &row.Product.PriceCents,
			&row.Product.PointsValue, &productStatus, &row.Product.CreatedAt,
			&row.UserName, &row.UserEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review request: %w", err)
		}
		row.Request.Status = model.ReviewRequestStatus(reqStatus)
		row.Product.Status = model.ProductStatus(productStatus)
		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetLatestUnitPrices возвращает последнюю наблюдённую цену позиции для
// каждого из товаров. Используется для обогащения списка запросов, пока
// у товара нет цены в каталоге.
func (r *PostgresRepository) GetLatestUnitPrices(ctx context.Context, productIDs []string) (map[string]int64, error) {
	if len(productIDs) == 0 {
		return map[string]int64{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (product_id) product_id, unit_price
		 FROM transaction_items
		 WHERE product_id = ANY($1)
		 ORDER BY product_id, created_at DESC`,
		productIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select latest unit prices: %w", err)
	}
	defer rows.Close()

	res := make(map[string]int64)
	for rows.Next() {
		var (
			id    string
			price int64
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scan unit price: %w", err)
		}
		res[id] = price
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// DecideReviewRequests атомарно переводит товар и все его необработанные
// запросы в решённое состояние. Возвращает число затронутых запросов;
// ноль означает, что решение по товару уже принято.
func (r *PostgresRepository) DecideReviewRequests(ctx context.Context, productID string, decision model.ReviewRequestStatus, pointsValue *int64, comment string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `UPDATE review_requests SET status = $2`
	args := []any{productID, string(decision)}
	if comment != "" {
		args = append(args, comment)
		query += fmt.Sprintf(", comment = $%d", len(args))
	}
	query += ` WHERE product_id = $1 AND status = '` + string(model.ReviewRequestStatusPending) + `'`

	cmdTag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update review requests: %w", err)
	}

	updated := cmdTag.RowsAffected()
	if updated == 0 {
		return 0, nil
	}

	productStatus := model.ProductStatusRejected
	if decision == model.ReviewRequestStatusApproved {
		productStatus = model.ProductStatusApproved
	}

	if pointsValue != nil {
		_, err = tx.Exec(ctx,
			`UPDATE products SET status = $2, points_value = $3 WHERE id = $1`,
			productID, string(productStatus), *pointsValue,
		)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE products SET status = $2 WHERE id = $1`,
			productID, string(productStatus),
		)
	}
	if err != nil {
		return 0, fmt.Errorf("update product: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return updated, nil
}

// ProductTransactionRow — покупка товара одним из запросивших оценку
// пользователей, для админского представления.
type ProductTransactionRow struct {
	UserID         string
	UserName       string
	TransactionID  string
	Date           time.Time
	StoreName      string
	Quantity       float64
	UnitPriceCents int64
	TotalCents     int64
	PointsAwarded  int64
}

// GetProductTransactionsForRequesters возвращает покупки товара теми
// пользователями, кто запрашивал его оценку, новые первыми.
func (r *PostgresRepository) GetProductTransactionsForRequesters(ctx context.Context, productID string) ([]ProductTransactionRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.user_id, u.name, t.id, t.date, s.name, ti.quantity, ti.unit_price, ti.total_price, ti.points_awarded
		 FROM transaction_items ti
		 JOIN transactions t ON t.id = ti.transaction_id
		 JOIN stores s ON s.id = t.store_id
		 JOIN users u ON u.id = t.user_id
		 WHERE ti.product_id = $1
		   AND t.user_id IN (SELECT submitted_by FROM review_requests WHERE product_id = $1)
		 ORDER BY t.date DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select product transactions: %w", err)
	}
	defer rows.Close()

	var res []ProductTransactionRow
	for rows.Next() {
		var row ProductTransactionRow
		err := rows.Scan(&row.UserID, &row.UserName, &row.TransactionID, &row.Date,
			&row.StoreName, &row.Quantity, &row.UnitPriceCents, &row.TotalCents, &row.PointsAwarded)
		if err != nil {
			return nil, fmt.Errorf("scan product transaction: %w", err)
		}
		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
