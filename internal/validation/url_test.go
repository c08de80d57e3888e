package validation

import "testing"

func TestIsValidReceiptURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{
			name: "valid verification url",
			url:  "https://suf.purs.gov.rs/v/?vl=AzdKQkRNRFY0",
			want: true,
		},
		{
			name: "valid subdomain",
			url:  "https://api.suf.purs.gov.rs/v/?vl=abc",
			want: true,
		},
		{
			name: "http scheme accepted",
			url:  "http://suf.purs.gov.rs/v/?vl=abc",
			want: true,
		},
		{
			name: "wrong domain",
			url:  "https://example.com/v/?vl=abc",
			want: false,
		},
		{
			name: "domain suffix spoof",
			url:  "https://evilsuf.purs.gov.rs.attacker.io/v/",
			want: false,
		},
		{
			name: "prefix spoof without dot",
			url:  "https://notsuf.purs.gov.rs.example.com/",
			want: false,
		},
		{
			name: "not a url",
			url:  "definitely not a url",
			want: false,
		},
		{
			name: "empty string",
			url:  "",
			want: false,
		},
		{
			name: "missing scheme",
			url:  "suf.purs.gov.rs/v/?vl=abc",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidReceiptURL(tt.url); got != tt.want {
				t.Errorf("IsValidReceiptURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
