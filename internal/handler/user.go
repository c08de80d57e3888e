package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/repository"
)

type pushTokenRequest struct {
	PushToken string `json:"pushToken" validate:"required"`
}

// UpdatePushToken сохраняет адрес доставки push-уведомлений текущего пользователя.
func (h *Handler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req pushTokenRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdatePushToken(r.Context(), userID, req.PushToken); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update push token error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// AddFavoriteStore добавляет магазин в избранное текущего пользователя.
func (h *Handler) AddFavoriteStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	storeID := chi.URLParam(r, "storeID")

	if err := h.service.AddFavoriteStore(r.Context(), userID, storeID); err != nil {
		if errors.Is(err, repository.ErrStoreNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("add favorite store error", zap.Error(err), zap.String("storeID", storeID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// RemoveFavoriteStore убирает магазин из избранного текущего пользователя.
func (h *Handler) RemoveFavoriteStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	storeID := chi.URLParam(r, "storeID")

	if err := h.service.RemoveFavoriteStore(r.Context(), userID, storeID); err != nil {
		h.logger.Error("remove favorite store error", zap.Error(err), zap.String("storeID", storeID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type storeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetFavoriteStores возвращает избранные магазины текущего пользователя.
func (h *Handler) GetFavoriteStores(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	stores, err := h.service.GetFavoriteStores(r.Context(), userID)
	if err != nil {
		h.logger.Error("get favorite stores error", zap.Error(err), zap.String("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]storeResponse, 0, len(stores))
	for _, s := range stores {
		resp = append(resp, storeResponse{ID: s.ID, Name: s.Name})
	}

	h.writeJSON(w, http.StatusOK, resp)
}
