package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const fetchTimeout = 15 * time.Second

// SUFFetcher получает чек с сервиса фискализации в два шага:
// страница проверки отдаёт токены и метаданные, эндпоинт /specifications —
// список позиций. Сетевые сбои ретраятся ограниченно, итоговая неудача
// любого шага классифицируется как неразбираемый чек.
type SUFFetcher struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewSUFFetcher создаёт клиент сервиса фискальных чеков по указанному базовому адресу.
func NewSUFFetcher(baseURL string) *SUFFetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.HTTPClient.Timeout = fetchTimeout
	client.Logger = nil

	return &SUFFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// FetchAndParse получает страницу проверки чека и список позиций.
// Компонент не выполняет записей в хранилище.
func (f *SUFFetcher) FetchAndParse(ctx context.Context, receiptURL string) (*Parsed, error) {
	html, cookies, err := f.fetchVerificationPage(ctx, receiptURL)
	if err != nil {
		return nil, err
	}

	invoiceNumber, err := extractScriptToken(html, "InvoiceNumber")
	if err != nil {
		return nil, err
	}
	token, err := extractScriptToken(html, "Token")
	if err != nil {
		return nil, err
	}

	items, err := f.fetchSpecifications(ctx, invoiceNumber, token, cookies)
	if err != nil {
		return nil, err
	}

	return &Parsed{
		StoreName:  extractStoreName(html),
		Items:      items,
		TotalCents: extractTotalCents(html),
		Date:       extractDate(html, time.Now().UTC()),
	}, nil
}

func (f *SUFFetcher) fetchVerificationPage(ctx context.Context, receiptURL string) (string, []*http.Cookie, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, receiptURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: fetch verification page: %v", ErrUnparseable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("%w: verification page status %d", ErrUnparseable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: read verification page: %v", ErrUnparseable, err)
	}

	return string(body), resp.Cookies(), nil
}

type specificationsResponse struct {
	Success bool `json:"success"`
	Items   []struct {
		Name      string  `json:"name"`
		Quantity  float64 `json:"quantity"`
		UnitPrice float64 `json:"unitPrice"`
		Total     float64 `json:"total"`
	} `json:"items"`
}

func (f *SUFFetcher) fetchSpecifications(ctx context.Context, invoiceNumber, token string, cookies []*http.Cookie) ([]ParsedItem, error) {
	form := url.Values{}
	form.Set("invoiceNumber", invoiceNumber)
	form.Set("token", token)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		f.baseURL+"/specifications", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", f.baseURL)
	req.Header.Set("Referer", f.baseURL+"/v/")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch specifications: %v", ErrUnparseable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: specifications status %d", ErrUnparseable, resp.StatusCode)
	}

	var spec specificationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&spec); err != nil {
		return nil, fmt.Errorf("%w: decode specifications: %v", ErrUnparseable, err)
	}

	if !spec.Success || len(spec.Items) == 0 {
		return nil, fmt.Errorf("%w: empty specifications", ErrUnparseable)
	}

	items := make([]ParsedItem, 0, len(spec.Items))
	for _, it := range spec.Items {
		items = append(items, ParsedItem{
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: toCents(it.UnitPrice),
			TotalCents:     toCents(it.Total),
		})
	}

	return items, nil
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
