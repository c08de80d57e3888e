// Package handler содержит HTTP-обработчики API платформы лояльности.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/middleware"
	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/repository"
	"github.com/mmeshcher/loyalty-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, name, email, password string) (string, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	UpdatePushToken(ctx context.Context, userID, pushToken string) error
	AddFavoriteStore(ctx context.Context, userID, storeID string) error
	RemoveFavoriteStore(ctx context.Context, userID, storeID string) error
	GetFavoriteStores(ctx context.Context, userID string) ([]model.Store, error)

	ScanReceipt(ctx context.Context, userID, url string) (*repository.ScanResult, error)

	GetPoints(ctx context.Context, userID string) (int64, error)
	UsePoints(ctx context.Context, userID string, points int64) (int64, error)

	SubmitReviewRequest(ctx context.Context, userID, productID, comment string) (*model.ReviewRequest, error)
	ListReviewRequestsGrouped(ctx context.Context, status *model.ReviewRequestStatus) ([]service.ReviewRequestGroup, error)
	DecideReviewRequests(ctx context.Context, productID string, decision model.ReviewRequestStatus, pointsValue *int64, comment string) (int64, error)
	GetProductTransactions(ctx context.Context, productID string) ([]service.ProductTransactionsUser, error)

	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	UpdateProduct(ctx context.Context, productID string, upd repository.ProductUpdate) (*model.Product, error)

	CreatePromotion(ctx context.Context, p model.Promotion) (*model.Promotion, error)
	ListPromotions(ctx context.Context) ([]model.Promotion, error)
	ListActivePromotions(ctx context.Context) ([]model.Promotion, error)

	AutoGenerateOffers(ctx context.Context, userID string) (int, error)
	GenerateOffersForPromotion(ctx context.Context, promotionID string) (int, error)
	ListOffersForUser(ctx context.Context, userID string) ([]model.Offer, error)
	ClaimOffer(ctx context.Context, userID, offerID string) (*service.ClaimResult, error)
}

// Handler реализует HTTP-обработчики API платформы лояльности.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	validate       *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		validate:       validator.New(),
	}
}

// decodeAndValidate разбирает JSON-тело запроса и проверяет его по тегам validate.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID, model.UserRoleUser)
	h.writeJSON(w, http.StatusOK, map[string]string{"id": userID})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, user.ID, user.Role)
	h.writeJSON(w, http.StatusOK, map[string]string{"id": user.ID})
}

// currentUserID достаёт идентификатор пользователя из контекста запроса,
// при отсутствии отвечает 401.
func (h *Handler) currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}
