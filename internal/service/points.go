package service

import "context"

// GetPoints возвращает текущий баланс баллов пользователя.
func (s *Service) GetPoints(ctx context.Context, userID string) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

// UsePoints списывает указанную сумму баллов и возвращает новый баланс.
// Сумма должна быть положительной, баланс не опускается ниже нуля.
func (s *Service) UsePoints(ctx context.Context, userID string, points int64) (int64, error) {
	if points <= 0 {
		return 0, ErrInvalidPointsAmount
	}
	return s.repo.DeductPoints(ctx, userID, points)
}
