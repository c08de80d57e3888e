// Package model содержит доменные сущности платформы лояльности.
package model

import "time"

// UserRole описывает роль пользователя в системе.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User представляет зарегистрированного участника программы лояльности.
type User struct {
	ID             string
	Name           string
	Email          string
	CredentialHash []byte
	Role           UserRole
	PointsBalance  int64
	PushToken      string
	CreatedAt      time.Time
}

// Store представляет торговую точку, упомянутую в чеке.
type Store struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ProductStatus описывает состояние товара в каталоге.
type ProductStatus string

const (
	ProductStatusPending  ProductStatus = "pending"
	ProductStatusApproved ProductStatus = "approved"
	ProductStatusRejected ProductStatus = "rejected"
)

// Product описывает товар каталога. Цена хранится в сотых долях
// и может отсутствовать, пока товар не встречался в чеках.
type Product struct {
	ID          string
	Name        string
	PriceCents  *int64
	PointsValue int64
	Status      ProductStatus
	CreatedAt   time.Time
}

// ReceiptStatus описывает результат обработки чека.
type ReceiptStatus string

const (
	ReceiptStatusProcessed ReceiptStatus = "processed"
	ReceiptStatusFailed    ReceiptStatus = "failed"
)

// Receipt описывает фискальный чек. Хеш URL — ключ идемпотентности,
// запись неизменяема после создания.
type Receipt struct {
	ID          string
	ReceiptHash string
	ReceiptURL  string
	RawData     string
	StoreID     string
	ReceiptDate time.Time
	TotalCents  int64
	ScannedByID string
	Status      ReceiptStatus
	CreatedAt   time.Time
}

// Transaction описывает начисление баллов по одному чеку.
// PointsEarned всегда равен сумме PointsAwarded его позиций.
type Transaction struct {
	ID           string
	UserID       string
	StoreID      string
	ReceiptID    string
	Date         time.Time
	TotalCents   int64
	PointsEarned int64
	CreatedAt    time.Time
}

// TransactionItem описывает одну позицию чека.
// PointsAwarded вычисляется системой и никогда не вводится пользователем.
type TransactionItem struct {
	ID             string
	TransactionID  string
	ProductID      string
	ProductName    string
	Quantity       float64
	UnitPriceCents int64
	TotalCents     int64
	PointsAwarded  int64
}

// ReviewRequestStatus описывает состояние запроса на оценку товара.
type ReviewRequestStatus string

const (
	ReviewRequestStatusPending  ReviewRequestStatus = "pending"
	ReviewRequestStatusApproved ReviewRequestStatus = "approved"
	ReviewRequestStatusRejected ReviewRequestStatus = "rejected"
)

// ReviewRequest представляет просьбу пользователя оценить товар.
type ReviewRequest struct {
	ID            string
	ProductID     string
	SubmittedByID string
	Status        ReviewRequestStatus
	Comment       string
	CreatedAt     time.Time
}

// PromotionStatus описывает состояние акции.
type PromotionStatus string

const (
	PromotionStatusActive   PromotionStatus = "active"
	PromotionStatusInactive PromotionStatus = "inactive"
)

// Promotion описывает акцию магазина, из которой генерируются офферы.
type Promotion struct {
	ID                 string
	Title              string
	Description        string
	DiscountPercentage float64
	StoreID            string
	StartDate          time.Time
	EndDate            time.Time
	Status             PromotionStatus
	MinPointsRequired  *int64
	CreatedAt          time.Time
}

// OfferStatus описывает состояние оффера.
type OfferStatus string

const (
	OfferStatusActive  OfferStatus = "active"
	OfferStatusClaimed OfferStatus = "claimed"
	OfferStatusExpired OfferStatus = "expired"
)

// Offer описывает персональное предложение пользователю.
// На пару (пользователь, акция) существует не более одного
// активного или использованного оффера.
type Offer struct {
	ID                 string
	Title              string
	Description        string
	DiscountPercentage float64
	UserID             string
	StoreID            string
	PromotionID        *string
	ExpiresAt          time.Time
	Status             OfferStatus
	ClaimedAt          *time.Time
	CreatedAt          time.Time
}
