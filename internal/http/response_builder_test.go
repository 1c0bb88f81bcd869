package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"simplemoney/internal/core"
)

func TestStatusFor(t *testing.T) {
	tests := map[core.Code]int{
		core.CodeValidation: http.StatusUnprocessableEntity,
		core.CodeNotFound:   http.StatusNotFound,
		core.CodeConflict:   http.StatusConflict,
		core.CodePartial:    http.StatusAccepted,
		core.CodeBackend:    http.StatusServiceUnavailable,
	}
	for code, want := range tests {
		if got := StatusFor(code); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestFromError(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(core.ErrEmptyName).Write(rec)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Field != "name" || body.Error.Message != "empty name" || body.Error.Code != "validation" {
		t.Errorf("unexpected body %+v", body)
	}

	rec = httptest.NewRecorder()
	FromError(errors.New("dial tcp: refused")).Write(rec)
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") != "5" {
		t.Errorf("unclassified errors are backend failures, got %d", rec.Code)
	}
}

func TestResult(t *testing.T) {
	rec := httptest.NewRecorder()
	Result(http.StatusCreated, map[string]int{"n": 1}, nil).Write(rec)
	if rec.Code != http.StatusCreated || rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("unexpected success response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	Result(http.StatusCreated, map[string]int{"n": 1}, core.Partial("add transaction", errors.New("boom"))).Write(rec)
	if rec.Code != http.StatusAccepted || rec.Header().Get(HeaderReconcilePending) != "true" {
		t.Errorf("partial should be 202 with reconcile header, got %d", rec.Code)
	}
	if rec.Body.String() != "{\"n\":1}\n" {
		t.Errorf("partial should keep the body, got %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	Result(http.StatusOK, nil, core.NotFound("goal", "g1")).Write(rec)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Header("X-Test", "1").Write(rec)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 || rec.Header().Get("X-Test") != "1" {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}
