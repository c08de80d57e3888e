package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/loyalty-system/internal/model"
)

// ErrInvalidPromotionPeriod возвращается, когда окончание акции раньше её начала.
var ErrInvalidPromotionPeriod = errors.New("promotion end date precedes start date")

// CreatePromotion регистрирует новую акцию магазина.
func (s *Service) CreatePromotion(ctx context.Context, p model.Promotion) (*model.Promotion, error) {
	if p.EndDate.Before(p.StartDate) {
		return nil, ErrInvalidPromotionPeriod
	}

	p.ID = uuid.NewString()
	if p.Status == "" {
		p.Status = model.PromotionStatusActive
	}

	if err := s.repo.CreatePromotion(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPromotions возвращает все акции.
func (s *Service) ListPromotions(ctx context.Context) ([]model.Promotion, error) {
	return s.repo.ListPromotions(ctx)
}

// ListActivePromotions возвращает акции, действующие в данный момент.
func (s *Service) ListActivePromotions(ctx context.Context) ([]model.Promotion, error) {
	return s.repo.ListActivePromotions(ctx, time.Now())
}
