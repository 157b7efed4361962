// This file implements utilities for parsing and validating request data:
// JSON bodies, query parameters and path values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"casa/internal/core"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed request")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using
// now's month for missing values. Out-of-range values are rejected.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("%w: year %q", errMalformedBody, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("%w: month %q", errMalformedBody, v)
		}
		if m < 1 || m > 12 {
			return MonthParams{}, core.ErrInvalidMonth
		}
		params.Month = m
	}
	return params, nil
}

// ParseDateQuery reads a YYYY-MM-DD query value. Missing values yield
// fallback.
func ParseDateQuery(query url.Values, key string, fallback core.Date) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return fallback, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s: %v", errMalformedBody, key, err)
	}
	return d, nil
}

// ParseOptionalDate is ParseDateQuery for filters where absence means "no
// bound".
func ParseOptionalDate(query url.Values, key string) (*core.Date, error) {
	if strings.TrimSpace(query.Get(key)) == "" {
		return nil, nil
	}
	d, err := ParseDateQuery(query, key, core.Date{})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseFilter builds a transaction filter from from/to/responsible/category.
func ParseFilter(query url.Values) (core.TransactionFilter, error) {
	from, err := ParseOptionalDate(query, "from")
	if err != nil {
		return core.TransactionFilter{}, err
	}
	to, err := ParseOptionalDate(query, "to")
	if err != nil {
		return core.TransactionFilter{}, err
	}
	return core.TransactionFilter{
		From:        from,
		To:          to,
		Responsible: sanitizeInput(query.Get("responsible")),
		CategoryID:  sanitizeInput(query.Get("category")),
	}, nil
}

// ParseLimit reads a positive "limit" query value, falling back to def.
func ParseLimit(query url.Values, def int) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit %q", errMalformedBody, v)
	}
	return n, nil
}

// DecodeJSON reads a single JSON object from the request body into dst.
// Unknown fields, trailing data and oversized bodies are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if core.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", errMalformedBody)
	}
	return nil
}

// parseAmount parses a signed decimal amount such as "-12,50".
func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseSignedDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// parsePrice parses a non-negative price; empty means zero.
func parsePrice(s string) (core.Money, error) {
	s = strings.TrimSpace(s)
	if strings.Trim(s, "0.,") == "" {
		return core.Money{}, nil
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}
