package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Страница проверки чека инициализирует вью-модель скриптом вида
// viewModel.InvoiceNumber('MXNC2ZGS-MXNC2ZGS-11571'); данные берутся оттуда
// и из подписанных span-элементов, а не из DOM-разбора: страница не является
// валидным документом.
var (
	shopNameRe  = regexp.MustCompile(`id="shopFullNameLabel"[^>]*>([^<]+)`)
	totalRe     = regexp.MustCompile(`id="totalAmountLabel"[^>]*>\s*([^<]+)`)
	dateTimeRe  = regexp.MustCompile(`id="sdcDateTimeLabel"[^>]*>\s*([^<]+)`)
	fiscal240Re = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})\.?\s+(\d{2}):(\d{2}):(\d{2})`)
)

func extractScriptToken(html, name string) (string, error) {
	re, err := regexp.Compile(regexp.QuoteMeta(name) + `\('([^']+)'\)`)
	if err != nil {
		return "", fmt.Errorf("compile token pattern: %w", err)
	}

	m := re.FindStringSubmatch(html)
	if m == nil {
		return "", fmt.Errorf("%w: %s not found on verification page", ErrUnparseable, name)
	}
	return m[1], nil
}

// extractStoreName извлекает название магазина и отбрасывает префикс
// с кодом точки продаж ("1235237-287 - Maxi" → "Maxi").
func extractStoreName(html string) string {
	m := shopNameRe.FindStringSubmatch(html)
	if m == nil {
		return "Unknown Store"
	}

	full := strings.TrimSpace(m[1])
	if i := strings.LastIndex(full, " - "); i != -1 {
		return strings.TrimSpace(full[i+3:])
	}
	return full
}

func extractTotalCents(html string) int64 {
	m := totalRe.FindStringSubmatch(html)
	if m == nil {
		return 0
	}

	cents, err := parseLocalizedAmountCents(m[1])
	if err != nil {
		return 0
	}
	return cents
}

func extractDate(html string, now time.Time) time.Time {
	m := dateTimeRe.FindStringSubmatch(html)
	if m == nil {
		return now
	}

	ts, err := parseFiscalTime(m[1])
	if err != nil {
		return now
	}
	return ts
}

// parseFiscalTime разбирает сербский формат даты чека:
// D.M.YYYY. HH:mm:ss, с точкой после года.
func parseFiscalTime(s string) (time.Time, error) {
	m := fiscal240Re.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: unrecognized date format %q", ErrUnparseable, s)
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: implausible date %q", ErrUnparseable, s)
	}

	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC), nil
}

// parseLocalizedAmountCents разбирает сумму в сербском формате
// (запятая как десятичный разделитель, точка как разделитель тысяч)
// и возвращает значение в сотых долях без плавающей точки.
func parseLocalizedAmountCents(s string) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrUnparseable)
	}

	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	whole, frac, _ := strings.Cut(cleaned, ".")

	neg := false
	if strings.HasPrefix(whole, "-") {
		neg = true
		whole = whole[1:]
	}

	units := int64(0)
	if whole != "" {
		v, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad amount %q", ErrUnparseable, s)
		}
		units = v
	}

	centsPart := int64(0)
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		v, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad amount %q", ErrUnparseable, s)
		}
		centsPart = v
	}

	cents := units*100 + centsPart
	if neg {
		cents = -cents
	}
	return cents, nil
}
