package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/receipt"
	"github.com/mmeshcher/loyalty-system/internal/repository"
	"github.com/mmeshcher/loyalty-system/internal/service"
)

type scanRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type scanItemResponse struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	Matched       bool   `json:"matched"`
	PointsAwarded int64  `json:"pointsAwarded"`
}

type scanResponse struct {
	TransactionID string             `json:"transactionId"`
	PointsEarned  int64              `json:"pointsEarned"`
	NewBalance    int64              `json:"newBalance"`
	Items         []scanItemResponse `json:"items"`
}

// ScanReceipt принимает ссылку из QR-кода чека и начисляет баллы.
func (h *Handler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req scanRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.ScanReceipt(r.Context(), userID, req.URL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidReceiptURL):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrReceiptExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, service.ErrUnsupportedReceipt), errors.Is(err, receipt.ErrUnparseable):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		case errors.Is(err, repository.ErrUserNotFound):
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		default:
			h.logger.Error("scan receipt error", zap.Error(err), zap.String("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	resp := scanResponse{
		TransactionID: result.TransactionID,
		PointsEarned:  result.PointsEarned,
		NewBalance:    result.NewBalance,
		Items:         make([]scanItemResponse, 0, len(result.Items)),
	}
	for _, it := range result.Items {
		resp.Items = append(resp.Items, scanItemResponse{
			ProductID:     it.ProductID,
			Name:          it.Name,
			Matched:       it.Matched,
			PointsAwarded: it.PointsAwarded,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetPoints возвращает текущий баланс баллов пользователя.
func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetPoints(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get points error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"points": balance})
}

type usePointsRequest struct {
	Points int64 `json:"points" validate:"required,gt=0"`
}

// UsePoints списывает баллы с баланса текущего пользователя.
func (h *Handler) UsePoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req usePointsRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	newBalance, err := h.service.UsePoints(r.Context(), userID, req.Points)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPointsAmount):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrInsufficientBalance):
			http.Error(w, http.StatusText(http.StatusPaymentRequired), http.StatusPaymentRequired)
		case errors.Is(err, repository.ErrUserNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("use points error", zap.Error(err), zap.String("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"points": newBalance})
}
