package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/repository"
)

// SubmitReviewRequest создаёт запрос на оценку товара. Повторный
// необработанный запрос того же пользователя и запрос по отклонённому
// товару не допускаются.
func (s *Service) SubmitReviewRequest(ctx context.Context, userID, productID, comment string) (*model.ReviewRequest, error) {
	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Status == model.ProductStatusRejected {
		return nil, ErrProductRejected
	}

	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}

	pending, err := s.repo.HasPendingReviewRequest(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, repository.ErrReviewRequestExists
	}

	req := model.ReviewRequest{
		ID:            uuid.NewString(),
		ProductID:     productID,
		SubmittedByID: userID,
		Status:        model.ReviewRequestStatusPending,
		Comment:       comment,
	}

	if err := s.repo.CreateReviewRequest(ctx, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Requester описывает автора запроса на оценку в сгруппированном списке.
type Requester struct {
	RequestID string    `json:"requestId"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewRequestGroup — все запросы по одному товару, сведённые в одну
// точку решения администратора.
type ReviewRequestGroup struct {
	ProductID           string              `json:"productId"`
	ProductName         string              `json:"productName"`
	ProductPriceCents   *int64              `json:"productPrice,omitempty"`
	ProductStatus       model.ProductStatus `json:"productStatus"`
	Status              model.ReviewRequestStatus `json:"status"`
	RequestCount        int                 `json:"requestCount"`
	Requesters          []Requester         `json:"requesters"`
	EarliestRequestDate time.Time           `json:"earliestRequestDate"`
}

// ListReviewRequestsGrouped возвращает запросы на оценку, сгруппированные
// по товару, старые группы первыми. Для товаров без цены в каталоге цена
// берётся из последней наблюдённой позиции чека.
func (s *Service) ListReviewRequestsGrouped(ctx context.Context, status *model.ReviewRequestStatus) ([]ReviewRequestGroup, error) {
	rows, err := s.repo.ListReviewRequests(ctx, status)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []ReviewRequestGroup{}, nil
	}

	var unpriced []string
	seen := make(map[string]struct{})
	for _, row := range rows {
		if row.Product.PriceCents == nil {
			if _, ok := seen[row.Product.ID]; !ok {
				seen[row.Product.ID] = struct{}{}
				unpriced = append(unpriced, row.Product.ID)
			}
		}
	}

	observedPrices, err := s.repo.GetLatestUnitPrices(ctx, unpriced)
	if err != nil {
		return nil, err
	}

	groups := make([]ReviewRequestGroup, 0)
	index := make(map[string]int)

	// Строки отсортированы по дате создания, поэтому порядок групп —
	// порядок самых ранних запросов.
	for _, row := range rows {
		i, ok := index[row.Request.ProductID]
		if !ok {
			price := row.Product.PriceCents
			if price == nil {
				if observed, ok := observedPrices[row.Product.ID]; ok {
					price = &observed
				}
			}

			groups = append(groups, ReviewRequestGroup{
				ProductID:           row.Request.ProductID,
				ProductName:         row.Product.Name,
				ProductPriceCents:   price,
				ProductStatus:       row.Product.Status,
				Status:              row.Request.Status,
				EarliestRequestDate: row.Request.CreatedAt,
			})
			i = len(groups) - 1
			index[row.Request.ProductID] = i
		}

		groups[i].RequestCount++
		groups[i].Requesters = append(groups[i].Requesters, Requester{
			RequestID: row.Request.ID,
			UserID:    row.Request.SubmittedByID,
			Name:      row.UserName,
			Email:     row.UserEmail,
			Comment:   row.Request.Comment,
			CreatedAt: row.Request.CreatedAt,
		})
	}

	return groups, nil
}

// DecideReviewRequests принимает решение по товару: переводит товар и все
// его необработанные запросы в решённое состояние одной записью. Одобрение
// требует ставку баллов и запускает ретроактивный пересчёт уже начисленных
// баллов. Решение по товару без необработанных запросов отклоняется.
func (s *Service) DecideReviewRequests(ctx context.Context, productID string, decision model.ReviewRequestStatus, pointsValue *int64, comment string) (int64, error) {
	if decision == model.ReviewRequestStatusApproved && pointsValue == nil {
		return 0, ErrPointsValueRequired
	}

	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		return 0, err
	}

	var value *int64
	if decision == model.ReviewRequestStatusApproved {
		value = pointsValue
	}

	updated, err := s.repo.DecideReviewRequests(ctx, productID, decision, value, comment)
	if err != nil {
		return 0, err
	}
	if updated == 0 {
		return 0, ErrNoPendingRequests
	}

	if decision == model.ReviewRequestStatusApproved {
		if err := s.RecalculateProductPoints(ctx, productID); err != nil {
			return 0, err
		}
	}

	return updated, nil
}

// ProductTransactionsUser — покупки товара одним пользователем для
// админского представления при решении по запросам.
type ProductTransactionsUser struct {
	UserID       string                      `json:"userId"`
	UserName     string                      `json:"userName"`
	Transactions []ProductTransactionSummary `json:"transactions"`
}

// ProductTransactionSummary описывает одну покупку товара.
type ProductTransactionSummary struct {
	TransactionID string    `json:"transactionId"`
	Date          time.Time `json:"date"`
	StoreName     string    `json:"storeName"`
	Quantity      float64   `json:"quantity"`
	UnitPrice     float64   `json:"unitPrice"`
	TotalPrice    float64   `json:"totalPrice"`
	PointsAwarded int64     `json:"pointsAwarded"`
}

// GetProductTransactions возвращает покупки товара пользователями,
// запросившими его оценку, сгруппированные по пользователю.
func (s *Service) GetProductTransactions(ctx context.Context, productID string) ([]ProductTransactionsUser, error) {
	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}

	rows, err := s.repo.GetProductTransactionsForRequesters(ctx, productID)
	if err != nil {
		return nil, err
	}

	users := make([]ProductTransactionsUser, 0)
	index := make(map[string]int)

	for _, row := range rows {
		i, ok := index[row.UserID]
		if !ok {
			users = append(users, ProductTransactionsUser{
				UserID:   row.UserID,
				UserName: row.UserName,
			})
			i = len(users) - 1
			index[row.UserID] = i
		}

		users[i].Transactions = append(users[i].Transactions, ProductTransactionSummary{
			TransactionID: row.TransactionID,
			Date:          row.Date,
			StoreName:     row.StoreName,
			Quantity:      row.Quantity,
			UnitPrice:     float64(row.UnitPriceCents) / 100,
			TotalPrice:    float64(row.TotalCents) / 100,
			PointsAwarded: row.PointsAwarded,
		})
	}

	return users, nil
}
