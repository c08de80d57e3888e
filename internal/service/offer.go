package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/notification"
	"github.com/mmeshcher/loyalty-system/internal/repository"
)

const notifyTimeout = 10 * time.Second

// AutoGenerateOffers создаёт пользователю офферы по активным акциям его
// избранных магазинов. Акции, по которым у пользователя уже есть активный
// или использованный оффер, и акции с порогом баллов выше текущего баланса
// пропускаются. Повторные и конкурентные запуски безопасны: проигрыш гонки
// за уникальный индекс — обычный пропуск, не ошибка.
func (s *Service) AutoGenerateOffers(ctx context.Context, userID string) (int, error) {
	favorites, err := s.repo.GetFavoriteStoreIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(favorites) == 0 {
		return 0, nil
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}

	promotions, err := s.repo.ListActivePromotions(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	existing, err := s.repo.GetPromotionIDsWithOffer(ctx, userID)
	if err != nil {
		return 0, err
	}

	generated := 0
	for _, promo := range promotions {
		if _, ok := existing[promo.ID]; ok {
			continue
		}
		if _, ok := favorites[promo.StoreID]; !ok {
			continue
		}
		if promo.MinPointsRequired != nil && *promo.MinPointsRequired > user.PointsBalance {
			continue
		}

		err := s.repo.CreateOffer(ctx, offerFromPromotion(promo, userID))
		if err != nil {
			if errors.Is(err, repository.ErrOfferExists) {
				continue
			}
			return generated, err
		}
		generated++
	}

	return generated, nil
}

// GenerateOffersForPromotion массово создаёт офферы по акции для всех
// пользователей, добавивших её магазин в избранное. Созданным офферам
// рассылаются уведомления; рассылка идёт вне транзакций и её неудача не
// откатывает создание.
func (s *Service) GenerateOffersForPromotion(ctx context.Context, promotionID string) (int, error) {
	promo, err := s.repo.GetPromotionByID(ctx, promotionID)
	if err != nil {
		return 0, err
	}
	if promo.Status != model.PromotionStatusActive || promo.EndDate.Before(time.Now()) {
		return 0, nil
	}

	userIDs, err := s.repo.GetUserIDsFavoritedStore(ctx, promo.StoreID)
	if err != nil {
		return 0, err
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	existing, err := s.repo.GetUserIDsWithOfferForPromotion(ctx, promotionID)
	if err != nil {
		return 0, err
	}

	balances, err := s.repo.GetBalances(ctx, userIDs)
	if err != nil {
		return 0, err
	}

	var created []string
	for _, userID := range userIDs {
		if _, ok := existing[userID]; ok {
			continue
		}
		if promo.MinPointsRequired != nil && *promo.MinPointsRequired > balances[userID] {
			continue
		}

		err := s.repo.CreateOffer(ctx, offerFromPromotion(*promo, userID))
		if err != nil {
			if errors.Is(err, repository.ErrOfferExists) {
				continue
			}
			return len(created), err
		}
		created = append(created, userID)
	}

	if len(created) > 0 {
		s.notifyNewOffers(*promo, created)
	}

	return len(created), nil
}

func offerFromPromotion(promo model.Promotion, userID string) model.Offer {
	promotionID := promo.ID
	return model.Offer{
		ID:                 uuid.NewString(),
		Title:              promo.Title,
		Description:        promo.Description,
		DiscountPercentage: promo.DiscountPercentage,
		UserID:             userID,
		StoreID:            promo.StoreID,
		PromotionID:        &promotionID,
		ExpiresAt:          promo.EndDate,
		Status:             model.OfferStatusActive,
	}
}

func (s *Service) notifyNewOffers(promo model.Promotion, userIDs []string) {
	if s.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		targets, err := s.repo.GetPushTargets(ctx, userIDs)
		if err != nil || len(targets) == 0 {
			return
		}

		body := fmt.Sprintf("New offer from %s! %.0f%% off", promo.Title, promo.DiscountPercentage)

		messages := make([]notification.Message, 0, len(targets))
		for _, t := range targets {
			messages = append(messages, notification.Message{
				To:    t.PushToken,
				Title: "New Offer Available!",
				Body:  body,
			})
		}

		_ = s.notifier.SendBulk(ctx, messages)
	}()
}

// ListOffersForUser возвращает действующие и использованные офферы
// пользователя из его избранных магазинов. Истечение вычисляется при
// чтении: истёкшие активные офферы не попадают в выдачу.
func (s *Service) ListOffersForUser(ctx context.Context, userID string) ([]model.Offer, error) {
	return s.repo.ListOffersForUser(ctx, userID, time.Now())
}

// ClaimResult содержит итог использования оффера.
type ClaimResult struct {
	Offer          model.Offer
	PointsDeducted int64
	NewBalance     int64
}

// ClaimOffer использует оффер от имени пользователя. Чужой, неактивный или
// истёкший оффер отклоняется без изменений. Если за акцией закреплён порог
// баллов, он списывается атомарно вместе с переводом оффера в claimed.
func (s *Service) ClaimOffer(ctx context.Context, userID, offerID string) (*ClaimResult, error) {
	offer, err := s.repo.GetOfferByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	if offer.UserID != userID {
		return nil, ErrOfferNotOwned
	}
	if offer.Status != model.OfferStatusActive {
		return nil, repository.ErrOfferNotActive
	}

	now := time.Now()
	if offer.ExpiresAt.Before(now) {
		return nil, ErrOfferExpired
	}

	var pointsCost int64
	if offer.PromotionID != nil {
		promo, err := s.repo.GetPromotionByID(ctx, *offer.PromotionID)
		if err != nil && !errors.Is(err, repository.ErrPromotionNotFound) {
			return nil, err
		}
		if promo != nil && promo.MinPointsRequired != nil {
			pointsCost = *promo.MinPointsRequired
		}
	}

	newBalance, err := s.repo.ClaimOffer(ctx, offerID, userID, pointsCost, now)
	if err != nil {
		return nil, err
	}

	if pointsCost > 0 {
		s.notifyOfferClaimed(userID, offer.Title, pointsCost)
	}

	claimed := *offer
	claimed.Status = model.OfferStatusClaimed
	claimed.ClaimedAt = &now

	return &ClaimResult{
		Offer:          claimed,
		PointsDeducted: pointsCost,
		NewBalance:     newBalance,
	}, nil
}

func (s *Service) notifyOfferClaimed(userID, offerTitle string, pointsCost int64) {
	if s.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		targets, err := s.repo.GetPushTargets(ctx, []string{userID})
		if err != nil || len(targets) == 0 {
			return
		}

		body := fmt.Sprintf("%d points deducted for offer: %s", pointsCost, offerTitle)
		_ = s.notifier.Send(ctx, "Offer Claimed", body, targets[0].PushToken, nil)
	}()
}
