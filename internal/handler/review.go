package handler

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/repository"
	"github.com/mmeshcher/loyalty-system/internal/service"
)

type reviewRequestBody struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Comment   string `json:"comment"`
}

// SubmitReviewRequest создаёт запрос на оценку товара от текущего пользователя.
func (h *Handler) SubmitReviewRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req reviewRequestBody
	if err := h.decodeAndValidate(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	created, err := h.service.SubmitReviewRequest(r.Context(), userID, req.ProductID, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrProductRejected):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrReviewRequestExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("submit review request error", zap.Error(err), zap.String("productID", req.ProductID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{
		"id":     created.ID,
		"status": string(created.Status),
	})
}

// ListReviewRequests возвращает запросы на оценку, сгруппированные по товару.
// Параметр status ограничивает выборку одним состоянием.
func (h *Handler) ListReviewRequests(w http.ResponseWriter, r *http.Request) {
	var status *model.ReviewRequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.ReviewRequestStatus(raw)
		switch s {
		case model.ReviewRequestStatusPending, model.ReviewRequestStatusApproved, model.ReviewRequestStatusRejected:
			status = &s
		default:
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	groups, err := h.service.ListReviewRequestsGrouped(r.Context(), status)
	if err != nil {
		h.logger.Error("list review requests error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, groups)
}

type decisionRequest struct {
	Decision    string `json:"decision" validate:"required,oneof=approved rejected"`
	PointsValue *int64 `json:"pointsValue" validate:"omitempty,gte=0"`
	Comment     string `json:"comment"`
}

// DecideReviewRequests принимает решение по всем необработанным запросам товара.
func (h *Handler) DecideReviewRequests(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req decisionRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	updated, err := h.service.DecideReviewRequests(r.Context(), productID, model.ReviewRequestStatus(req.Decision), req.PointsValue, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPointsValueRequired):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrNoPendingRequests):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("decide review requests error", zap.Error(err), zap.String("productID", productID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// GetProductTransactions возвращает покупки товара пользователями,
// запросившими его оценку.
func (h *Handler) GetProductTransactions(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	users, err := h.service.GetProductTransactions(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get product transactions error", zap.Error(err), zap.String("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, users)
}

type productResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       *float64 `json:"price,omitempty"`
	PointsValue int64    `json:"pointsValue"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"createdAt"`
}

func newProductResponse(p *model.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		PointsValue: p.PointsValue,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
	if p.PriceCents != nil {
		price := float64(*p.PriceCents) / 100
		resp.Price = &price
	}
	return resp
}

// GetProduct возвращает товар каталога.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get product error", zap.Error(err), zap.String("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, newProductResponse(product))
}

type updateProductRequest struct {
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	PointsValue *int64   `json:"pointsValue" validate:"omitempty,gte=0"`
	Status      *string  `json:"status" validate:"omitempty,oneof=pending approved rejected"`
}

// UpdateProduct применяет частичное обновление товара. Изменение ставки
// баллов или статуса ретроактивно пересчитывает начисленные баллы.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req updateProductRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var upd repository.ProductUpdate
	if req.Price != nil {
		cents := int64(math.Round(*req.Price * 100))
		upd.PriceCents = &cents
	}
	upd.PointsValue = req.PointsValue
	if req.Status != nil {
		status := model.ProductStatus(*req.Status)
		upd.Status = &status
	}

	product, err := h.service.UpdateProduct(r.Context(), productID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update product error", zap.Error(err), zap.String("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, newProductResponse(product))
}
