// Package service реализует бизнес-логику платформы лояльности.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/notification"
	"github.com/mmeshcher/loyalty-system/internal/receipt"
	"github.com/mmeshcher/loyalty-system/internal/repository"
)

// ErrInvalidReceiptURL возвращается для ссылок не с домена фискального сервиса.
var (
	ErrInvalidReceiptURL = errors.New("receipt url must point to the fiscal service")
	// ErrUnsupportedReceipt возвращается, когда разобранный чек не содержит позиций.
	ErrUnsupportedReceipt = errors.New("receipt format is not supported")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProductRejected возвращается при запросе оценки отклонённого товара.
	ErrProductRejected = errors.New("product has been reviewed and rejected")
	// ErrPointsValueRequired возвращается, когда товар одобряют без ставки баллов.
	ErrPointsValueRequired = errors.New("points value is required for approval")
	// ErrNoPendingRequests возвращается, когда по товару нет необработанных запросов.
	ErrNoPendingRequests = errors.New("no pending review requests for product")
	// ErrOfferNotOwned возвращается при попытке использовать чужой оффер.
	ErrOfferNotOwned = errors.New("offer belongs to another user")
	// ErrOfferExpired возвращается при попытке использовать истёкший оффер.
	ErrOfferExpired = errors.New("offer has expired")
	// ErrInvalidPointsAmount возвращается для неположительной суммы списания.
	ErrInvalidPointsAmount = errors.New("points amount must be positive")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	UpdatePushToken(ctx context.Context, userID, pushToken string) error
	AddFavoriteStore(ctx context.Context, userID, storeID string) error
	RemoveFavoriteStore(ctx context.Context, userID, storeID string) error
	GetFavoriteStores(ctx context.Context, userID string) ([]model.Store, error)
	GetFavoriteStoreIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	GetUserIDsFavoritedStore(ctx context.Context, storeID string) ([]string, error)
	GetPushTargets(ctx context.Context, userIDs []string) ([]repository.PushTarget, error)
	GetBalances(ctx context.Context, userIDs []string) (map[string]int64, error)

	ReceiptExists(ctx context.Context, receiptHash string) (bool, error)
	CreateScan(ctx context.Context, p repository.ScanParams) (*repository.ScanResult, error)

	GetProductByID(ctx context.Context, productID string) (*model.Product, error)
	UpdateProduct(ctx context.Context, productID string, upd repository.ProductUpdate) (*model.Product, error)
	GetItemsForProduct(ctx context.Context, productID string) ([]repository.ItemForRecalc, error)
	ApplyPointsRecalculation(ctx context.Context, items []repository.ItemPointsUpdate, txDeltas, userDeltas map[string]int64) error

	GetBalance(ctx context.Context, userID string) (int64, error)
	DeductPoints(ctx context.Context, userID string, points int64) (int64, error)

	CreateReviewRequest(ctx context.Context, req model.ReviewRequest) error
	HasPendingReviewRequest(ctx context.Context, userID, productID string) (bool, error)
	ListReviewRequests(ctx context.Context, status *model.ReviewRequestStatus) ([]repository.ReviewRequestRow, error)
	GetLatestUnitPrices(ctx context.Context, productIDs []string) (map[string]int64, error)
	DecideReviewRequests(ctx context.Context, productID string, decision model.ReviewRequestStatus, pointsValue *int64, comment string) (int64, error)
	GetProductTransactionsForRequesters(ctx context.Context, productID string) ([]repository.ProductTransactionRow, error)

	CreatePromotion(ctx context.Context, p model.Promotion) error
	GetPromotionByID(ctx context.Context, promotionID string) (*model.Promotion, error)
	ListActivePromotions(ctx context.Context, now time.Time) ([]model.Promotion, error)
	ListPromotions(ctx context.Context) ([]model.Promotion, error)

	CreateOffer(ctx context.Context, o model.Offer) error
	GetOfferByID(ctx context.Context, offerID string) (*model.Offer, error)
	ListOffersForUser(ctx context.Context, userID string, now time.Time) ([]model.Offer, error)
	GetPromotionIDsWithOffer(ctx context.Context, userID string) (map[string]struct{}, error)
	GetUserIDsWithOfferForPromotion(ctx context.Context, promotionID string) (map[string]struct{}, error)
	ClaimOffer(ctx context.Context, offerID, userID string, pointsCost int64, claimedAt time.Time) (int64, error)
}

// Notifier описывает best-effort доставку push-уведомлений.
type Notifier interface {
	Send(ctx context.Context, title, body, pushToken string, data map[string]any) error
	SendBulk(ctx context.Context, messages []notification.Message) error
}

// Service содержит бизнес-логику платформы лояльности.
// Источник чеков выбирается конфигурацией: реальный клиент фискального
// сервиса либо детерминированный мок.
type Service struct {
	repo     Repository
	fetcher  receipt.Fetcher
	notifier Notifier
}

// NewService создаёт сервис с указанным репозиторием, источником чеков и
// клиентом уведомлений. Клиент уведомлений может отсутствовать.
func NewService(repo Repository, fetcher receipt.Fetcher, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		fetcher:  fetcher,
		notifier: notifier,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя и возвращает его идентификатор.
func (s *Service) RegisterUser(ctx context.Context, name, email, password string) (string, error) {
	u := model.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		CredentialHash: hashCredentials(email, password),
		Role:           model.UserRoleUser,
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		return "", err
	}
	return u.ID, nil
}

// AuthenticateUser проверяет email и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hashed := hashCredentials(email, password)
	if subtle.ConstantTimeCompare(hashed, u.CredentialHash) != 1 {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func hashCredentials(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}

// UpdatePushToken сохраняет адрес доставки уведомлений пользователя.
func (s *Service) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	return s.repo.UpdatePushToken(ctx, userID, pushToken)
}

// AddFavoriteStore добавляет магазин в избранное пользователя.
func (s *Service) AddFavoriteStore(ctx context.Context, userID, storeID string) error {
	return s.repo.AddFavoriteStore(ctx, userID, storeID)
}

// RemoveFavoriteStore убирает магазин из избранного пользователя.
func (s *Service) RemoveFavoriteStore(ctx context.Context, userID, storeID string) error {
	return s.repo.RemoveFavoriteStore(ctx, userID, storeID)
}

// GetFavoriteStores возвращает избранные магазины пользователя.
func (s *Service) GetFavoriteStores(ctx context.Context, userID string) ([]model.Store, error) {
	return s.repo.GetFavoriteStores(ctx, userID)
}
