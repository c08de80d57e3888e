package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, credential_hash, role) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Name, u.Email, u.CredentialHash, string(u.Role),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CredentialHash, &role, &u.PointsBalance, &u.PushToken, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = model.UserRole(role)
	return &u, nil
}

const userColumns = `id, name, email, credential_hash, role, points_balance, COALESCE(push_token, ''), created_at`

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdatePushToken сохраняет адрес доставки push-уведомлений пользователя.
func (r *PostgresRepository) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET push_token = $2 WHERE id = $1`,
		userID, pushToken,
	)
	if err != nil {
		return fmt.Errorf("update push token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddFavoriteStore добавляет магазин в избранное пользователя.
// Повторное добавление — no-op.
func (r *PostgresRepository) AddFavoriteStore(ctx context.Context, userID, storeID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_favorite_stores (user_id, store_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, storeID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrStoreNotFound
		}
		return fmt.Errorf("add favorite store: %w", err)
	}
	return nil
}

// RemoveFavoriteStore убирает магазин из избранного пользователя.
func (r *PostgresRepository) RemoveFavoriteStore(ctx context.Context, userID, storeID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_favorite_stores WHERE user_id = $1 AND store_id = $2`,
		userID, storeID,
	)
	if err != nil {
		return fmt.Errorf("remove favorite store: %w", err)
	}
	return nil
}

// GetFavoriteStores возвращает избранные магазины пользователя.
func (r *PostgresRepository) GetFavoriteStores(ctx context.Context, userID string) ([]model.Store, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, s.created_at
		 FROM user_favorite_stores ufs
		 JOIN stores s ON s.id = ufs.store_id
		 WHERE ufs.user_id = $1
		 ORDER BY s.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select favorite stores: %w", err)
	}
	defer rows.Close()

	var res []model.Store
	for rows.Next() {
		var s model.Store
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetFavoriteStoreIDs возвращает идентификаторы избранных магазинов пользователя.
func (r *PostgresRepository) GetFavoriteStoreIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	stores, err := r.GetFavoriteStores(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(stores))
	for _, s := range stores {
		ids[s.ID] = struct{}{}
	}
	return ids, nil
}

// GetUserIDsFavoritedStore возвращает пользователей, добавивших магазин в избранное.
func (r *PostgresRepository) GetUserIDsFavoritedStore(ctx context.Context, storeID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM user_favorite_stores WHERE store_id = $1`,
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("select store followers: %w", err)
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		res = append(res, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetBalances возвращает балансы баллов указанных пользователей.
func (r *PostgresRepository) GetBalances(ctx context.Context, userIDs []string) (map[string]int64, error) {
	if len(userIDs) == 0 {
		return map[string]int64{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, points_balance FROM users WHERE id = ANY($1)`,
		userIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	defer rows.Close()

	res := make(map[string]int64, len(userIDs))
	for rows.Next() {
		var (
			id      string
			balance int64
		)
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		res[id] = balance
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// PushTarget описывает адресата push-уведомления.
type PushTarget struct {
	UserID    string
	PushToken string
}

// GetPushTargets возвращает адреса доставки уведомлений для пользователей,
// у которых они зарегистрированы.
func (r *PostgresRepository) GetPushTargets(ctx context.Context, userIDs []string) ([]PushTarget, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, push_token FROM users WHERE id = ANY($1) AND push_token IS NOT NULL AND push_token <> ''`,
		userIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select push targets: %w", err)
	}
	defer rows.Close()

	var res []PushTarget
	for rows.Next() {
		var t PushTarget
		if err := rows.Scan(&t.UserID, &t.PushToken); err != nil {
			return nil, fmt.Errorf("scan push target: %w", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
