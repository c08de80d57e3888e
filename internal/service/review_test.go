package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/repository"
)

func TestSubmitReviewRequest_RejectedProduct(t *testing.T) {
	repo := &stubRepo{
		product: &model.Product{ID: "p1", Status: model.ProductStatusRejected},
		user:    &model.User{ID: "u1"},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.SubmitReviewRequest(context.Background(), "u1", "p1", "")
	if !errors.Is(err, ErrProductRejected) {
		t.Fatalf("expected ErrProductRejected, got %v", err)
	}
}

func TestSubmitReviewRequest_DuplicatePending(t *testing.T) {
	repo := &stubRepo{
		product:    &model.Product{ID: "p1", Status: model.ProductStatusPending},
		user:       &model.User{ID: "u1"},
		hasPending: true,
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.SubmitReviewRequest(context.Background(), "u1", "p1", "")
	if !errors.Is(err, repository.ErrReviewRequestExists) {
		t.Fatalf("expected ErrReviewRequestExists, got %v", err)
	}
}

func TestSubmitReviewRequest_CreatesPending(t *testing.T) {
	repo := &stubRepo{
		product: &model.Product{ID: "p1", Status: model.ProductStatusPending},
		user:    &model.User{ID: "u1"},
	}
	svc := NewService(repo, nil, nil)

	req, err := svc.SubmitReviewRequest(context.Background(), "u1", "p1", "please review")
	if err != nil {
		t.Fatalf("SubmitReviewRequest error: %v", err)
	}
	if req.Status != model.ReviewRequestStatusPending {
		t.Fatalf("Status = %q, want pending", req.Status)
	}
	if repo.createdRequest == nil || repo.createdRequest.Comment != "please review" {
		t.Fatalf("unexpected created request: %+v", repo.createdRequest)
	}
}

func TestListReviewRequestsGrouped_GroupsByProduct(t *testing.T) {
	early := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	later := early.Add(48 * time.Hour)

	productA := model.Product{ID: "pa", Name: "Jogurt", Status: model.ProductStatusPending}
	productB := model.Product{ID: "pb", Name: "Kafa", Status: model.ProductStatusPending}

	repo := &stubRepo{
		reviewRows: []repository.ReviewRequestRow{
			{
				Request:  model.ReviewRequest{ID: "r1", ProductID: "pa", SubmittedByID: "u1", Status: model.ReviewRequestStatusPending, CreatedAt: early},
				Product:  productA,
				UserName: "Ana",
			},
			{
				Request:  model.ReviewRequest{ID: "r2", ProductID: "pb", SubmittedByID: "u2", Status: model.ReviewRequestStatusPending, CreatedAt: early.Add(time.Hour)},
				Product:  productB,
				UserName: "Marko",
			},
			{
				Request:  model.ReviewRequest{ID: "r3", ProductID: "pa", SubmittedByID: "u3", Status: model.ReviewRequestStatusPending, CreatedAt: later},
				Product:  productA,
				UserName: "Ivana",
			},
		},
		latestPrices: map[string]int64{"pa": 12900},
	}
	svc := NewService(repo, nil, nil)

	groups, err := svc.ListReviewRequestsGrouped(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListReviewRequestsGrouped error: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].ProductID != "pa" || groups[1].ProductID != "pb" {
		t.Fatalf("groups must keep earliest-request order, got %q then %q", groups[0].ProductID, groups[1].ProductID)
	}
	if groups[0].RequestCount != 2 || len(groups[0].Requesters) != 2 {
		t.Fatalf("product pa must aggregate both requests, got %+v", groups[0])
	}
	if !groups[0].EarliestRequestDate.Equal(early) {
		t.Fatalf("EarliestRequestDate = %v, want %v", groups[0].EarliestRequestDate, early)
	}
	if groups[0].ProductPriceCents == nil || *groups[0].ProductPriceCents != 12900 {
		t.Fatalf("missing catalog price must fall back to last observed receipt price")
	}
	if groups[1].ProductPriceCents != nil {
		t.Fatalf("product without observations must stay unpriced")
	}
}

func TestDecideReviewRequests_ApprovalRequiresPointsValue(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil)

	_, err := svc.DecideReviewRequests(context.Background(), "p1", model.ReviewRequestStatusApproved, nil, "")
	if !errors.Is(err, ErrPointsValueRequired) {
		t.Fatalf("expected ErrPointsValueRequired, got %v", err)
	}
}

func TestDecideReviewRequests_NoPendingRequests(t *testing.T) {
	repo := &stubRepo{
		product:       &model.Product{ID: "p1", Status: model.ProductStatusPending},
		decideUpdated: 0,
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.DecideReviewRequests(context.Background(), "p1", model.ReviewRequestStatusRejected, nil, "")
	if !errors.Is(err, ErrNoPendingRequests) {
		t.Fatalf("expected ErrNoPendingRequests, got %v", err)
	}
}

func TestDecideReviewRequests_ApprovalTriggersRecalculation(t *testing.T) {
	value := int64(40)
	repo := &stubRepo{
		product:       &model.Product{ID: "p1", Status: model.ProductStatusPending, PointsValue: 0},
		decideUpdated: 2,
		recalcItems: []repository.ItemForRecalc{
			{ItemID: "i1", TransactionID: "t1", UserID: "u1", Quantity: 1, TotalCents: 9000, PointsAwarded: 9},
		},
	}
	svc := NewService(repo, nil, nil)

	updated, err := svc.DecideReviewRequests(context.Background(), "p1", model.ReviewRequestStatusApproved, &value, "ok")
	if err != nil {
		t.Fatalf("DecideReviewRequests error: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}
	if repo.decidedPoints == nil || *repo.decidedPoints != 40 {
		t.Fatalf("points value must be passed to the decision")
	}
	if repo.appliedItems == nil {
		t.Fatalf("approval must trigger retroactive recalculation")
	}
}

func TestDecideReviewRequests_RejectionSkipsRecalculation(t *testing.T) {
	repo := &stubRepo{
		product:       &model.Product{ID: "p1", Status: model.ProductStatusPending},
		decideUpdated: 1,
		recalcItems: []repository.ItemForRecalc{
			{ItemID: "i1", TransactionID: "t1", UserID: "u1", Quantity: 1, TotalCents: 9000, PointsAwarded: 9},
		},
	}
	svc := NewService(repo, nil, nil)

	if _, err := svc.DecideReviewRequests(context.Background(), "p1", model.ReviewRequestStatusRejected, nil, "no"); err != nil {
		t.Fatalf("DecideReviewRequests error: %v", err)
	}
	if repo.appliedItems != nil {
		t.Fatalf("rejection keeps already awarded points untouched")
	}
}

func TestGetProductTransactions_GroupsByUser(t *testing.T) {
	now := time.Now()
	repo := &stubRepo{
		product: &model.Product{ID: "p1", Status: model.ProductStatusPending},
		productTxRows: []repository.ProductTransactionRow{
			{UserID: "u1", UserName: "Ana", TransactionID: "t2", Date: now, StoreName: "Maxi", Quantity: 1, UnitPriceCents: 15050, TotalCents: 15050, PointsAwarded: 15},
			{UserID: "u1", UserName: "Ana", TransactionID: "t1", Date: now.Add(-time.Hour), StoreName: "Idea", Quantity: 2, UnitPriceCents: 15050, TotalCents: 30100, PointsAwarded: 30},
			{UserID: "u2", UserName: "Marko", TransactionID: "t3", Date: now, StoreName: "Maxi", Quantity: 1, UnitPriceCents: 15050, TotalCents: 15050, PointsAwarded: 15},
		},
	}
	svc := NewService(repo, nil, nil)

	users, err := svc.GetProductTransactions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetProductTransactions error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if len(users[0].Transactions) != 2 {
		t.Fatalf("user u1 must have 2 transactions, got %d", len(users[0].Transactions))
	}
	if users[0].Transactions[0].UnitPrice != 150.50 {
		t.Fatalf("UnitPrice = %v, want 150.50", users[0].Transactions[0].UnitPrice)
	}
}
