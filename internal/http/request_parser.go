// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// It keeps query parsing, JSON decoding and input sanitization in one place
// so handlers only deal with typed values.

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

	"daisycash/internal/core"
	"daisycash/internal/store"
)

// maxJSONBody caps request bodies decoded as JSON.
const maxJSONBody = 1 << 20

var errInvalidQuery = errors.New("invalid query parameter")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month time.Month
}

// ParseMonthParams extracts year and month from query parameters, using the
// month of now for anything missing. Present but malformed values are errors.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: now.Month(),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("%w: year %q", errInvalidQuery, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, fmt.Errorf("%w: month %q", errInvalidQuery, v)
		}
		params.Month = time.Month(m)
	}

	return params, nil
}

// ParseTransactionFilter reads the type, from and to query parameters. An
// empty type or "all" lists both kinds.
func ParseTransactionFilter(query url.Values) (store.TransactionFilter, error) {
	var f store.TransactionFilter

	if v := strings.TrimSpace(query.Get("type")); v != "" && !strings.EqualFold(v, "all") {
		k, err := core.ParseKind(v)
		if err != nil || !k.IsTransactionKind() {
			return store.TransactionFilter{}, fmt.Errorf("%w: type %q", errInvalidQuery, v)
		}
		f.Kind = k
	}
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return store.TransactionFilter{}, fmt.Errorf("%w: from %q", errInvalidQuery, v)
		}
		f.From = d
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return store.TransactionFilter{}, fmt.Errorf("%w: to %q", errInvalidQuery, v)
		}
		f.To = d
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return store.TransactionFilter{}, fmt.Errorf("%w: to is before from", errInvalidQuery)
	}

	return f, nil
}

// ParseKindFilter reads the optional kind query parameter for category
// listings. A nil result means every category.
func ParseKindFilter(query url.Values) (*core.Kind, error) {
	v := strings.TrimSpace(query.Get("kind"))
	if v == "" {
		return nil, nil
	}
	k, err := core.ParseKind(v)
	if err != nil {
		return nil, fmt.Errorf("%w: kind %q", errInvalidQuery, v)
	}
	return &k, nil
}

// DecodeJSON reads a single JSON document from the request body into v.
// Unknown fields and trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
