package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/loyalty-system/internal/model"
	"github.com/mmeshcher/loyalty-system/internal/receipt"
	"github.com/mmeshcher/loyalty-system/internal/repository"
)

const validReceiptURL = "https://suf.purs.gov.rs/v/?vl=AzNNWENDMlpHUw"

type stubFetcher struct {
	parsed *receipt.Parsed
	err    error
	calls  int
}

func (f *stubFetcher) FetchAndParse(ctx context.Context, url string) (*receipt.Parsed, error) {
	f.calls++
	return f.parsed, f.err
}

func TestScanReceipt_RejectsForeignURL(t *testing.T) {
	svc := NewService(&stubRepo{}, &stubFetcher{}, nil)

	for _, url := range []string{
		"https://example.com/v/?vl=abc",
		"not a url",
		"ftp://suf.purs.gov.rs/v/?vl=abc",
	} {
		_, err := svc.ScanReceipt(context.Background(), "u1", url)
		if !errors.Is(err, ErrInvalidReceiptURL) {
			t.Fatalf("url %q: expected ErrInvalidReceiptURL, got %v", url, err)
		}
	}
}

func TestScanReceipt_DuplicateSkipsFetch(t *testing.T) {
	repo := &stubRepo{receiptExists: true}
	fetcher := &stubFetcher{}
	svc := NewService(repo, fetcher, nil)

	_, err := svc.ScanReceipt(context.Background(), "u1", validReceiptURL)
	if !errors.Is(err, repository.ErrReceiptExists) {
		t.Fatalf("expected ErrReceiptExists, got %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("duplicate must be rejected before fetching, fetcher called %d times", fetcher.calls)
	}
}

func TestScanReceipt_EmptyReceiptNotPersisted(t *testing.T) {
	repo := &stubRepo{user: &model.User{ID: "u1"}}
	fetcher := &stubFetcher{parsed: &receipt.Parsed{StoreName: "Maxi"}}
	svc := NewService(repo, fetcher, nil)

	_, err := svc.ScanReceipt(context.Background(), "u1", validReceiptURL)
	if !errors.Is(err, ErrUnsupportedReceipt) {
		t.Fatalf("expected ErrUnsupportedReceipt, got %v", err)
	}
	if repo.scanParams != nil {
		t.Fatalf("empty receipt must not reach the ledger")
	}
}

func TestScanReceipt_PassesParsedDataToLedger(t *testing.T) {
	date := time.Date(2026, 2, 10, 12, 30, 0, 0, time.UTC)
	repo := &stubRepo{
		user: &model.User{ID: "u1"},
		scanResult: &repository.ScanResult{
			TransactionID: "t1",
			PointsEarned:  130,
			NewBalance:    130,
		},
	}
	fetcher := &stubFetcher{parsed: &receipt.Parsed{
		StoreName: "Maxi",
		Items: []receipt.ParsedItem{
			{Name: "Mleko 2.8%", Quantity: 2, UnitPriceCents: 15000, TotalCents: 30000},
			{Name: "Hleb", Quantity: 1, UnitPriceCents: 8000, TotalCents: 8000},
		},
		TotalCents: 38000,
		Date:       date,
	}}
	svc := NewService(repo, fetcher, nil)

	res, err := svc.ScanReceipt(context.Background(), "u1", validReceiptURL)
	if err != nil {
		t.Fatalf("ScanReceipt error: %v", err)
	}
	if res.PointsEarned != 130 {
		t.Fatalf("PointsEarned = %d, want 130", res.PointsEarned)
	}

	p := repo.scanParams
	if p == nil {
		t.Fatalf("scan was not persisted")
	}
	if p.ReceiptHash != receipt.Hash(validReceiptURL) {
		t.Fatalf("ReceiptHash = %q, want hash of the scanned url", p.ReceiptHash)
	}
	if p.StoreName != "Maxi" || p.TotalCents != 38000 || !p.Date.Equal(date) {
		t.Fatalf("unexpected scan params: %+v", p)
	}
	if len(p.Items) != 2 || p.Items[0].UnitPriceCents != 15000 {
		t.Fatalf("unexpected items: %+v", p.Items)
	}
	if p.RawData == "" {
		t.Fatalf("raw receipt data must be stored")
	}
}

func TestScanReceipt_FetchErrorPropagated(t *testing.T) {
	repo := &stubRepo{user: &model.User{ID: "u1"}}
	fetcher := &stubFetcher{err: receipt.ErrUnparseable}
	svc := NewService(repo, fetcher, nil)

	_, err := svc.ScanReceipt(context.Background(), "u1", validReceiptURL)
	if !errors.Is(err, receipt.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
	if repo.scanParams != nil {
		t.Fatalf("failed fetch must not reach the ledger")
	}
}
