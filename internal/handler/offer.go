package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/repository"
	"github.com/mmeshcher/loyalty-system/internal/service"
)

type offerResponse struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	Description        string  `json:"description,omitempty"`
	DiscountPercentage float64 `json:"discountPercentage"`
	StoreID            string  `json:"storeId"`
	PromotionID        *string `json:"promotionId,omitempty"`
	ExpiresAt          string  `json:"expiresAt"`
	Status             string  `json:"status"`
	ClaimedAt          *string `json:"claimedAt,omitempty"`
}

func newOfferResponse(o model.Offer) offerResponse {
	resp := offerResponse{
		ID:                 o.ID,
		Title:              o.Title,
		Description:        o.Description,
		DiscountPercentage: o.DiscountPercentage,
		StoreID:            o.StoreID,
		PromotionID:        o.PromotionID,
		ExpiresAt:          o.ExpiresAt.Format(time.RFC3339),
		Status:             string(o.Status),
	}
	if o.ClaimedAt != nil {
		claimed := o.ClaimedAt.Format(time.RFC3339)
		resp.ClaimedAt = &claimed
	}
	return resp
}

// GetOffers возвращает офферы текущего пользователя. Перед выдачей
// пользователю генерируются офферы по новым акциям избранных магазинов.
func (h *Handler) GetOffers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.AutoGenerateOffers(r.Context(), userID); err != nil {
		h.logger.Error("auto generate offers error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	offers, err := h.service.ListOffersForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list offers error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]offerResponse, 0, len(offers))
	for _, o := range offers {
		resp = append(resp, newOfferResponse(o))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GenerateOffers создаёт текущему пользователю офферы по активным акциям
// его избранных магазинов и возвращает число созданных.
func (h *Handler) GenerateOffers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	generated, err := h.service.AutoGenerateOffers(r.Context(), userID)
	if err != nil {
		h.logger.Error("generate offers error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"generated": generated})
}

// ClaimOffer использует оффер от имени текущего пользователя.
func (h *Handler) ClaimOffer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	offerID := chi.URLParam(r, "offerID")

	result, err := h.service.ClaimOffer(r.Context(), userID, offerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOfferNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrOfferNotOwned):
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		case errors.Is(err, repository.ErrOfferNotActive), errors.Is(err, service.ErrOfferExpired):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrInsufficientBalance):
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
		default:
			h.logger.Error("claim offer error", zap.Error(err), zap.String("offerID", offerID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"offer":          newOfferResponse(result.Offer),
		"pointsDeducted": result.PointsDeducted,
		"newBalance":     result.NewBalance,
	})
}

type promotionRequest struct {
	Title              string  `json:"title" validate:"required"`
	Description        string  `json:"description"`
	DiscountPercentage float64 `json:"discountPercentage" validate:"required,gt=0,lte=100"`
	StoreID            string  `json:"storeId" validate:"required,uuid4"`
	StartDate          string  `json:"startDate" validate:"required"`
	EndDate            string  `json:"endDate" validate:"required"`
	MinPointsRequired  *int64  `json:"minPointsRequired" validate:"omitempty,gte=0"`
}

type promotionResponse struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	Description        string  `json:"description,omitempty"`
	DiscountPercentage float64 `json:"discountPercentage"`
	StoreID            string  `json:"storeId"`
	StartDate          string  `json:"startDate"`
	EndDate            string  `json:"endDate"`
	Status             string  `json:"status"`
	MinPointsRequired  *int64  `json:"minPointsRequired,omitempty"`
}

func newPromotionResponse(p model.Promotion) promotionResponse {
	return promotionResponse{
		ID:                 p.ID,
		Title:              p.Title,
		Description:        p.Description,
		DiscountPercentage: p.DiscountPercentage,
		StoreID:            p.StoreID,
		StartDate:          p.StartDate.Format(time.RFC3339),
		EndDate:            p.EndDate.Format(time.RFC3339),
		Status:             string(p.Status),
		MinPointsRequired:  p.MinPointsRequired,
	}
}

// CreatePromotion регистрирует новую акцию магазина.
func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	created, err := h.service.CreatePromotion(r.Context(), model.Promotion{
		Title:              req.Title,
		Description:        req.Description,
		DiscountPercentage: req.DiscountPercentage,
		StoreID:            req.StoreID,
		StartDate:          startDate,
		EndDate:            endDate,
		MinPointsRequired:  req.MinPointsRequired,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPromotionPeriod):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrStoreNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("create promotion error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, newPromotionResponse(*created))
}

// ListPromotions возвращает действующие акции.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := h.service.ListActivePromotions(r.Context())
	if err != nil {
		h.logger.Error("list promotions error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]promotionResponse, 0, len(promotions))
	for _, p := range promotions {
		resp = append(resp, newPromotionResponse(p))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GenerateOffersForPromotion массово создаёт офферы по акции для
// пользователей её магазина.
func (h *Handler) GenerateOffersForPromotion(w http.ResponseWriter, r *http.Request) {
	promotionID := chi.URLParam(r, "promotionID")

	created, err := h.service.GenerateOffersForPromotion(r.Context(), promotionID)
	if err != nil {
		if errors.Is(err, repository.ErrPromotionNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("generate offers for promotion error", zap.Error(err), zap.String("promotionID", promotionID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"created": created})
}
