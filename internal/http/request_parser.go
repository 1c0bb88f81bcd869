package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"simplemoney/internal/core"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON object from r into dst. Unknown fields are
// rejected. Engine validation errors raised while decoding (amounts, dates)
// are returned unchanged so they map to 422; other problems are wrapped as
// errBadRequest.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var ce *core.Error
		if errors.As(err, &ce) {
			return ce
		}
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("request body too large")
		}
		return badRequest(fmt.Sprintf("malformed JSON: %v", err))
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// ParseFailure maps a decode or query error to its response.
func ParseFailure(err error) *JSONResponseBuilder {
	var br *badRequestError
	if errors.As(err, &br) {
		return BadRequestError(br.msg)
	}
	return FromError(err)
}

// ParsePeriodFilter reads start, end, type and category from the query.
// Dates use YYYY-MM-DD.
func ParsePeriodFilter(q url.Values) (core.PeriodFilter, error) {
	f := core.PeriodFilter{
		Type:     strings.TrimSpace(q.Get("type")),
		Category: sanitizeInput(q.Get("category")),
	}
	for _, bound := range []struct {
		name string
		dst  **core.Date
	}{{"start", &f.Start}, {"end", &f.End}} {
		v := strings.TrimSpace(q.Get(bound.name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return core.PeriodFilter{}, core.Validation(bound.name, "date must be YYYY-MM-DD")
		}
		*bound.dst = &d
	}
	return f, nil
}

// PathID returns the {id} wildcard, or an error when it is blank.
func PathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", badRequest("missing id in path")
	}
	return id, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
