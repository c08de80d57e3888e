package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/loyalty-system/internal/middleware"
	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/receipt"
	"github.com/mmeshcher/loyalty-system/internal/repository"
	"github.com/mmeshcher/loyalty-system/internal/service"
)

type stubService struct {
	registerUserID string
	registerErr    error

	authUser *model.User
	authErr  error

	scanResult *repository.ScanResult
	scanErr    error

	points    int64
	pointsErr error

	useBalance int64
	useErr     error

	reviewRequest *model.ReviewRequest
	reviewErr     error

	groups    []service.ReviewRequestGroup
	groupsErr error

	decideUpdated int64
	decideErr     error

	productTx []service.ProductTransactionsUser

	product       *model.Product
	productErr    error
	productUpdate repository.ProductUpdate

	promotion    *model.Promotion
	promotionErr error
	promotions   []model.Promotion

	generated   int
	generateErr error

	offers    []model.Offer
	offersErr error

	claimResult *service.ClaimResult
	claimErr    error

	stores []model.Store
}

func (s *stubService) RegisterUser(ctx context.Context, name, email, password string) (string, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	return nil
}

func (s *stubService) AddFavoriteStore(ctx context.Context, userID, storeID string) error {
	return nil
}

func (s *stubService) RemoveFavoriteStore(ctx context.Context, userID, storeID string) error {
	return nil
}

func (s *stubService) GetFavoriteStores(ctx context.Context, userID string) ([]model.Store, error) {
	return s.stores, nil
}

func (s *stubService) ScanReceipt(ctx context.Context, userID, url string) (*repository.ScanResult, error) {
	return s.scanResult, s.scanErr
}

func (s *stubService) GetPoints(ctx context.Context, userID string) (int64, error) {
	return s.points, s.pointsErr
}

func (s *stubService) UsePoints(ctx context.Context, userID string, points int64) (int64, error) {
	return s.useBalance, s.useErr
}

func (s *stubService) SubmitReviewRequest(ctx context.Context, userID, productID, comment string) (*model.ReviewRequest, error) {
	return s.reviewRequest, s.reviewErr
}

func (s *stubService) ListReviewRequestsGrouped(ctx context.Context, status *model.ReviewRequestStatus) ([]service.ReviewRequestGroup, error) {
	return s.groups, s.groupsErr
}

func (s *stubService) DecideReviewRequests(ctx context.Context, productID string, decision model.ReviewRequestStatus, pointsValue *int64, comment string) (int64, error) {
	return s.decideUpdated, s.decideErr
}

func (s *stubService) GetProductTransactions(ctx context.Context, productID string) ([]service.ProductTransactionsUser, error) {
	return s.productTx, nil
}

func (s *stubService) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	return s.product, s.productErr
}

func (s *stubService) UpdateProduct(ctx context.Context, productID string, upd repository.ProductUpdate) (*model.Product, error) {
	s.productUpdate = upd
	return s.product, s.productErr
}

func (s *stubService) CreatePromotion(ctx context.Context, p model.Promotion) (*model.Promotion, error) {
	return s.promotion, s.promotionErr
}

func (s *stubService) ListPromotions(ctx context.Context) ([]model.Promotion, error) {
	return s.promotions, nil
}

func (s *stubService) ListActivePromotions(ctx context.Context) ([]model.Promotion, error) {
	return s.promotions, nil
}

func (s *stubService) AutoGenerateOffers(ctx context.Context, userID string) (int, error) {
	return s.generated, s.generateErr
}

func (s *stubService) GenerateOffersForPromotion(ctx context.Context, promotionID string) (int, error) {
	return s.generated, s.generateErr
}

func (s *stubService) ListOffersForUser(ctx context.Context, userID string) ([]model.Offer, error) {
	return s.offers, s.offersErr
}

func (s *stubService) ClaimOffer(ctx context.Context, userID, offerID string) (*service.ClaimResult, error) {
	return s.claimResult, s.claimErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authCookie(h *Handler, userID string, role model.UserRole) *http.Cookie {
	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID, role)
	return rec.Result().Cookies()[0]
}

func doRequest(h *Handler, method, target string, body []byte, cookie *http.Cookie) *http.Response {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec.Result()
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{registerUserID: "u1"}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		Password: "secret1",
	})

	res := doRequest(h, http.MethodPost, "/api/user/register", body, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("register must set auth cookie")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		Password: "secret1",
	})

	res := doRequest(h, http.MethodPost, "/api/user/register", body, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestRegister_InvalidBody(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(registerRequest{
		Name:     "Ana",
		Email:    "not-an-email",
		Password: "secret1",
	})

	res := doRequest(h, http.MethodPost, "/api/user/register", body, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{
		Email:    "ana@example.com",
		Password: "wrong",
	})

	res := doRequest(h, http.MethodPost, "/api/user/login", body, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestScanReceipt_RequiresAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(scanRequest{URL: "https://suf.purs.gov.rs/v/?vl=abc"})

	res := doRequest(h, http.MethodPost, "/api/receipts/scan", body, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestScanReceipt_Success(t *testing.T) {
	svc := &stubService{
		scanResult: &repository.ScanResult{
			TransactionID: "t1",
			PointsEarned:  130,
			NewBalance:    230,
			Items: []repository.ScanResultItem{
				{ProductID: "p1", Name: "Mleko", Matched: true, PointsAwarded: 100},
				{ProductID: "p2", Name: "Hleb", Matched: false, PointsAwarded: 30},
			},
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(scanRequest{URL: "https://suf.purs.gov.rs/v/?vl=abc"})

	res := doRequest(h, http.MethodPost, "/api/receipts/scan", body, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp scanResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PointsEarned != 130 || len(resp.Items) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !resp.Items[0].Matched || resp.Items[1].Matched {
		t.Fatalf("matched flags must survive serialization")
	}
}

func TestScanReceipt_DuplicateConflict(t *testing.T) {
	svc := &stubService{scanErr: repository.ErrReceiptExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(scanRequest{URL: "https://suf.purs.gov.rs/v/?vl=abc"})

	res := doRequest(h, http.MethodPost, "/api/receipts/scan", body, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestScanReceipt_InvalidURLBadRequest(t *testing.T) {
	svc := &stubService{scanErr: service.ErrInvalidReceiptURL}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(scanRequest{URL: "https://example.com/v/?vl=abc"})

	res := doRequest(h, http.MethodPost, "/api/receipts/scan", body, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestScanReceipt_UnparseableUnprocessable(t *testing.T) {
	svc := &stubService{scanErr: fmt.Errorf("fetch receipt: %w", receipt.ErrUnparseable)}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(scanRequest{URL: "https://suf.purs.gov.rs/v/?vl=abc"})

	res := doRequest(h, http.MethodPost, "/api/receipts/scan", body, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestUsePoints_InsufficientBalance(t *testing.T) {
	svc := &stubService{useErr: repository.ErrInsufficientBalance}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(usePointsRequest{Points: 500})

	res := doRequest(h, http.MethodPost, "/api/points/use", body, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusPaymentRequired)
	}
}

func TestGetPoints_JSONResponse(t *testing.T) {
	svc := &stubService{points: 420}
	h := newTestHandler(t, svc)

	res := doRequest(h, http.MethodGet, "/api/points", nil, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp map[string]int64
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["points"] != 420 {
		t.Fatalf("points = %d, want 420", resp["points"])
	}
}

func TestClaimOffer_Forbidden(t *testing.T) {
	svc := &stubService{claimErr: service.ErrOfferNotOwned}
	h := newTestHandler(t, svc)

	res := doRequest(h, http.MethodPost, "/api/offers/o1/claim", nil, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}
}

func TestClaimOffer_Success(t *testing.T) {
	now := time.Now()
	svc := &stubService{
		claimResult: &service.ClaimResult{
			Offer: model.Offer{
				ID:        "o1",
				Title:     "Weekend Sale",
				UserID:    "u1",
				StoreID:   "s1",
				ExpiresAt: now.Add(time.Hour),
				Status:    model.OfferStatusClaimed,
				ClaimedAt: &now,
			},
			PointsDeducted: 150,
			NewBalance:     350,
		},
	}
	h := newTestHandler(t, svc)

	res := doRequest(h, http.MethodPost, "/api/offers/o1/claim", nil, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestListReviewRequests_AdminOnly(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := doRequest(h, http.MethodGet, "/api/review-requests", nil, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("user role: status = %d, want %d", res.StatusCode, http.StatusForbidden)
	}

	res = doRequest(h, http.MethodGet, "/api/review-requests", nil, authCookie(h, "admin1", model.UserRoleAdmin))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin role: status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestDecideReviewRequests_NoPendingConflict(t *testing.T) {
	svc := &stubService{decideErr: service.ErrNoPendingRequests}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(decisionRequest{Decision: "rejected"})

	res := doRequest(h, http.MethodPost, "/api/review-requests/p1/decision", body, authCookie(h, "admin1", model.UserRoleAdmin))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestUpdateProduct_PriceRoundedToCents(t *testing.T) {
	svc := &stubService{product: &model.Product{ID: "p1", Name: "Mleko", Status: model.ProductStatusApproved}}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(map[string]float64{"price": 19.99})

	res := doRequest(h, http.MethodPatch, "/api/products/p1", body, authCookie(h, "admin1", model.UserRoleAdmin))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.productUpdate.PriceCents == nil {
		t.Fatal("price update not passed to service")
	}
	if *svc.productUpdate.PriceCents != 1999 {
		t.Errorf("price = %d cents, want 1999", *svc.productUpdate.PriceCents)
	}
}

func TestSubmitReviewRequest_Created(t *testing.T) {
	svc := &stubService{
		reviewRequest: &model.ReviewRequest{
			ID:     "r1",
			Status: model.ReviewRequestStatusPending,
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(reviewRequestBody{
		ProductID: "4f2d8c1a-9b0e-4f3a-8d6c-1e2b3a4c5d6e",
	})

	res := doRequest(h, http.MethodPost, "/api/review-requests", body, authCookie(h, "u1", model.UserRoleUser))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
}
