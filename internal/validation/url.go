// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/url"
	"strings"
)

// FiscalDomain — домен сервиса фискальных чеков, единственный допустимый
// источник ссылок из QR-кодов.
const FiscalDomain = "suf.purs.gov.rs"

// IsValidReceiptURL проверяет, что ссылка из QR-кода указывает на сервис
// фискальных чеков. Проверка выполняется до любых сетевых вызовов.
func IsValidReceiptURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := u.Hostname()
	if host == "" {
		return false
	}

	return host == FiscalDomain || strings.HasSuffix(host, "."+FiscalDomain)
}
