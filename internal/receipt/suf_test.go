package receipt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newSUFTestServer(t *testing.T, page string, specStatus int, specBody string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		fmt.Fprint(w, page)
	})
	mux.HandleFunc("/specifications", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("invoiceNumber") == "" || r.PostForm.Get("token") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(specStatus)
		fmt.Fprint(w, specBody)
	})

	return httptest.NewServer(mux)
}

func TestSUFFetcherFetchAndParse(t *testing.T) {
	specBody := `{"success":true,"items":[
		{"name":"Plazma keks","quantity":2,"unitPrice":150,"total":300},
		{"name":"Jogurt 1L","quantity":1,"unitPrice":94.99,"total":94.99}
	]}`

	server := newSUFTestServer(t, samplePage, http.StatusOK, specBody)
	defer server.Close()

	f := NewSUFFetcher(server.URL)

	parsed, err := f.FetchAndParse(context.Background(), server.URL+"/v/?vl=AzdKQkRNRFY0")
	if err != nil {
		t.Fatalf("FetchAndParse error: %v", err)
	}

	if parsed.StoreName != "Maxi" {
		t.Errorf("StoreName = %q, want Maxi", parsed.StoreName)
	}
	if parsed.TotalCents != 109499 {
		t.Errorf("TotalCents = %d, want 109499", parsed.TotalCents)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(parsed.Items))
	}
	if parsed.Items[0].Name != "Plazma keks" || parsed.Items[0].UnitPriceCents != 15000 || parsed.Items[0].TotalCents != 30000 {
		t.Errorf("unexpected first item: %+v", parsed.Items[0])
	}
	if parsed.Items[1].UnitPriceCents != 9499 {
		t.Errorf("Items[1].UnitPriceCents = %d, want 9499", parsed.Items[1].UnitPriceCents)
	}
}

func TestSUFFetcherMissingToken(t *testing.T) {
	page := `<html><span id="shopFullNameLabel">Maxi</span></html>`

	server := newSUFTestServer(t, page, http.StatusOK, `{"success":true,"items":[]}`)
	defer server.Close()

	f := NewSUFFetcher(server.URL)

	_, err := f.FetchAndParse(context.Background(), server.URL+"/v/?vl=abc")
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestSUFFetcherEmptyItems(t *testing.T) {
	server := newSUFTestServer(t, samplePage, http.StatusOK, `{"success":true,"items":[]}`)
	defer server.Close()

	f := NewSUFFetcher(server.URL)

	_, err := f.FetchAndParse(context.Background(), server.URL+"/v/?vl=abc")
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable for empty item list, got %v", err)
	}
}

func TestSUFFetcherSpecificationsFailure(t *testing.T) {
	server := newSUFTestServer(t, samplePage, http.StatusInternalServerError, `{}`)
	defer server.Close()

	f := NewSUFFetcher(server.URL)

	_, err := f.FetchAndParse(context.Background(), server.URL+"/v/?vl=abc")
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}
