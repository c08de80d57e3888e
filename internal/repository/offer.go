package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// CreatePromotion сохраняет акцию магазина.
func (r *PostgresRepository) CreatePromotion(ctx context.Context, p model.Promotion) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO promotions (id, title, description, discount_percentage, store_id, start_date, end_date, status, min_points_required)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Title, p.Description, p.DiscountPercentage, p.StoreID,
		p.StartDate, p.EndDate, string(p.Status), p.MinPointsRequired,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrStoreNotFound
		}
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

func scanPromotion(row pgx.Row) (*model.Promotion, error) {
	var (
		p      model.Promotion
		status string
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.DiscountPercentage, &p.StoreID,
		&p.StartDate, &p.EndDate, &status, &p.MinPointsRequired, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PromotionStatus(status)
	return &p, nil
}

const promotionColumns = `id, title, description, discount_percentage, store_id, start_date, end_date, status, min_points_required, created_at`

// GetPromotionByID возвращает акцию по идентификатору.
func (r *PostgresRepository) GetPromotionByID(ctx context.Context, promotionID string) (*model.Promotion, error) {
	p, err := scanPromotion(r.pool.QueryRow(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, promotionID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("select promotion: %w", err)
	}
	return p, nil
}

// ListActivePromotions возвращает активные акции, чьё окно действия
// включает указанный момент.
func (r *PostgresRepository) ListActivePromotions(ctx context.Context, now time.Time) ([]model.Promotion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+promotionColumns+`
		 FROM promotions
		 WHERE status = $1 AND start_date <= $2 AND end_date >= $2
		 ORDER BY end_date`,
		string(model.PromotionStatusActive), now,
	)
	if err != nil {
		return nil, fmt.Errorf("select active promotions: %w", err)
	}
	defer rows.Close()

	var res []model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListPromotions возвращает все акции, новые первыми.
func (r *PostgresRepository) ListPromotions(ctx context.Context) ([]model.Promotion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+promotionColumns+` FROM promotions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select promotions: %w", err)
	}
	defer rows.Close()

	var res []model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateOffer сохраняет оффер. Нарушение частичного уникального индекса по
// (пользователь, акция) означает, что конкурентный генератор успел раньше;
// вызывающая сторона трактует это как обычный пропуск.
func (r *PostgresRepository) CreateOffer(ctx context.Context, o model.Offer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO offers (id, title, description, discount_percentage, user_id, store_id, promotion_id, expires_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Title, o.Description, o.DiscountPercentage, o.UserID, o.StoreID,
		o.PromotionID, o.ExpiresAt, string(o.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOfferExists
		}
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var (
		o      model.Offer
		status string
	)
	err := row.Scan(&o.ID, &o.Title, &o.Description, &o.DiscountPercentage, &o.UserID,
		&o.StoreID, &o.PromotionID, &o.ExpiresAt, &status, &o.ClaimedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OfferStatus(status)
	return &o, nil
}

const offerColumns = `id, title, description, discount_percentage, user_id, store_id, promotion_id, expires_at, status, claimed_at, created_at`

// GetOfferByID возвращает оффер по идентификатору.
func (r *PostgresRepository) GetOfferByID(ctx context.Context, offerID string) (*model.Offer, error) {
	o, err := scanOffer(r.pool.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = $1`, offerID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("select offer: %w", err)
	}
	return o, nil
}

// ListOffersForUser возвращает действующие и использованные офферы
// пользователя из его избранных магазинов, ближайшие к истечению первыми.
func (r *PostgresRepository) ListOffersForUser(ctx context.Context, userID string, now time.Time) ([]model.Offer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+offerColumns+`
		 FROM offers
		 WHERE user_id = $1
		   AND store_id IN (SELECT store_id FROM user_favorite_stores WHERE user_id = $1)
		   AND (status = $2 AND expires_at >= $3 OR status = $4)
		 ORDER BY expires_at`,
		userID, string(model.OfferStatusActive), now, string(model.OfferStatusClaimed),
	)
	if err != nil {
		return nil, fmt.Errorf("select offers: %w", err)
	}
	defer rows.Close()

	var res []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetPromotionIDsWithOffer возвращает акции, по которым у пользователя уже
// есть активный или использованный оффер.
func (r *PostgresRepository) GetPromotionIDsWithOffer(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT promotion_id FROM offers
		 WHERE user_id = $1 AND status = ANY($2) AND promotion_id IS NOT NULL`,
		userID, []string{string(model.OfferStatusActive), string(model.OfferStatusClaimed)},
	)
	if err != nil {
		return nil, fmt.Errorf("select promotions with offer: %w", err)
	}
	defer rows.Close()

	res := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan promotion id: %w", err)
		}
		res[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetUserIDsWithOfferForPromotion возвращает пользователей, у которых по
// акции уже есть активный или использованный оффер.
func (r *PostgresRepository) GetUserIDsWithOfferForPromotion(ctx context.Context, promotionID string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM offers WHERE promotion_id = $1 AND status = ANY($2)`,
		promotionID, []string{string(model.OfferStatusActive), string(model.OfferStatusClaimed)},
	)
	if err != nil {
		return nil, fmt.Errorf("select users with offer: %w", err)
	}
	defer rows.Close()

	res := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		res[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ClaimOffer атомарно помечает оффер использованным и, при ненулевой
// стоимости, списывает баллы. Строка пользователя блокируется на время
// проверки баланса, условное обновление статуса страхует от двойного
// использования при гонке.
func (r *PostgresRepository) ClaimOffer(ctx context.Context, offerID, userID string, pointsCost int64, claimedAt time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var newBalance int64
	if pointsCost > 0 {
		var balance int64
		err = tx.QueryRow(ctx,
			`SELECT points_balance FROM users WHERE id = $1 FOR UPDATE`,
			userID,
		).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, ErrUserNotFound
			}
			return 0, fmt.Errorf("lock user: %w", err)
		}

		if balance < pointsCost {
			return 0, ErrInsufficientBalance
		}

		err = tx.QueryRow(ctx,
			`UPDATE users SET points_balance = points_balance - $2 WHERE id = $1 RETURNING points_balance`,
			userID, pointsCost,
		).Scan(&newBalance)
		if err != nil {
			return 0, fmt.Errorf("deduct points: %w", err)
		}
	} else {
		err = tx.QueryRow(ctx,
			`SELECT points_balance FROM users WHERE id = $1`,
			userID,
		).Scan(&newBalance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, ErrUserNotFound
			}
			return 0, fmt.Errorf("select balance: %w", err)
		}
	}

	cmdTag, err := tx.Exec(ctx,
		`UPDATE offers SET status = $3, claimed_at = $4
		 WHERE id = $1 AND user_id = $2 AND status = $5`,
		offerID, userID, string(model.OfferStatusClaimed), claimedAt, string(model.OfferStatusActive),
	)
	if err != nil {
		return 0, fmt.Errorf("claim offer: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return 0, ErrOfferNotActive
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return newBalance, nil
}
