package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vault/internal/budget"
	"vault/internal/core"
	vlog "vault/internal/log"
)

// MaxBodyBytes bounds every request body. Snapshot imports use
// MaxSnapshotBytes instead.
const (
	MaxBodyBytes     = 1 << 20
	MaxSnapshotBytes = 16 << 20
)

var errEmptyBody = errors.New("request body is empty")

// amountKeys name the JSON fields that carry currency values.
var amountKeys = map[string]bool{
	"amount":        true,
	"value":         true,
	"creditLimit":   true,
	"monthlyIncome": true,
}

// decodeJSON reads a single JSON value into v. Fractional amounts are rounded
// to whole units first. Unknown fields are rejected so typos in patches do
// not silently do nothing.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	if err := roundAmounts(raw); err != nil {
		return err
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	strict := json.NewDecoder(bytes.NewReader(data))
	strict.DisallowUnknownFields()
	return strict.Decode(v)
}

// roundAmounts rounds every numeric amount field in a decoded document,
// half away from zero. Amounts beyond core.MaxAmount are a validation error.
func roundAmounts(node any) error {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			if num, ok := v.(json.Number); ok && amountKeys[k] {
				d, err := decimal.NewFromString(num.String())
				if err != nil {
					return core.Invalid(k, core.ErrInvalidAmount)
				}
				whole, err := core.RoundDecimal(d)
				if err != nil {
					return core.Invalid(k, err)
				}
				n[k] = whole
				continue
			}
			if err := roundAmounts(v); err != nil {
				return err
			}
		}
	case []any:
		for _, v := range n {
			if err := roundAmounts(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for bodies that may be omitted.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := decodeJSON(w, r, v)
	if errors.Is(err, errEmptyBody) {
		return nil
	}
	return err
}

// readBody reads the raw body up to limit bytes.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}

// MonthParams represents a calendar month selected by the month query
// parameter.
type MonthParams struct {
	Period budget.Period
}

// ParseMonthParams reads month=YYYY-MM, falling back to the month of today.
func ParseMonthParams(query url.Values, today core.Date) (MonthParams, error) {
	raw := strings.TrimSpace(query.Get("month"))
	if raw == "" {
		return MonthParams{Period: budget.PeriodOf(today)}, nil
	}
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return MonthParams{}, fmt.Errorf("invalid month %q: expected YYYY-MM", raw)
	}
	if t.Year() < 1970 || t.Year() > 9999 {
		return MonthParams{}, fmt.Errorf("invalid month %q: year out of range", raw)
	}
	return MonthParams{Period: budget.Period{Year: t.Year(), Month: int(t.Month())}}, nil
}

// parseLimit reads a positive limit query parameter, clamped to max.
func parseLimit(query url.Values, def, max int) (int, error) {
	raw := strings.TrimSpace(query.Get("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q: must be a positive integer", raw)
	}
	return min(n, max), nil
}

// parseBool accepts the strconv forms plus an empty value meaning false.
func parseBool(query url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: must be true or false", key, raw)
	}
	return b, nil
}

// pathID returns the {id} wildcard, rejecting blanks.
func pathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", errors.New("missing id in path")
	}
	return id, nil
}

// decodeOrFail decodes the body into v, answering 400 (or 413 for an
// oversized body) on failure.
func decodeOrFail(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	var err error
	if optional {
		err = decodeOptionalJSON(w, r, v)
	} else {
		err = decodeJSON(w, r, v)
	}
	if err == nil {
		return true
	}
	if core.IsValidation(err) {
		writeError(w, r, "decode", err)
		return false
	}
	failBadRequest(w, err)
	return false
}

func failBadRequest(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		ErrorResponse(http.StatusRequestEntityTooLarge, vlog.ErrorTypeParse, fmt.Sprintf("request body exceeds %d bytes", mbe.Limit)).Write(w)
		return
	}
	BadRequestError(err.Error()).Write(w)
}
