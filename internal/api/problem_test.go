package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/impactlane/vouch/internal/store"
	"github.com/impactlane/vouch/internal/types"
	"github.com/impactlane/vouch/internal/validation"
)

func TestWriteProblem_Format(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/evidence/missing", nil)
	rec := httptest.NewRecorder()

	WriteProblem(rec, req, http.StatusNotFound, "Resource not found")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Expected problem+json, got %s", ct)
	}

	var p Problem
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Type != "https://vouch.dev/errors/not-found" {
		t.Errorf("Unexpected type URI: %s", p.Type)
	}
	if p.Title != "Not Found" || p.Status != 404 {
		t.Errorf("Unexpected problem: %+v", p)
	}
	if p.Instance != "/api/v1/evidence/missing" {
		t.Errorf("Unexpected instance: %s", p.Instance)
	}
}

func TestWriteProblem_UnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	WriteProblem(rec, req, http.StatusTeapot, "short and stout")

	var p Problem
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Type != "https://vouch.dev/errors/unknown" {
		t.Errorf("Unexpected type URI: %s", p.Type)
	}
}

func TestWriteProblemWithErrors_IncludesFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evidence", nil)
	rec := httptest.NewRecorder()

	WriteProblemWithErrors(rec, req, "Request contains invalid fields", []validation.ValidationError{
		{Field: "title", Message: "is required"},
		{Field: "interval", Message: "requires a date or a date range"},
	})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", rec.Code)
	}

	var p ProblemWithErrors
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if len(p.Errors) != 2 || p.Errors[0].Field != "title" {
		t.Errorf("Unexpected errors: %+v", p.Errors)
	}
}

func TestMapStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", store.ErrNotFound), http.StatusNotFound},
		{"foreign key", store.ErrForeignKey, http.StatusConflict},
		{"empty interval", types.ErrIntervalEmpty, http.StatusUnprocessableEntity},
		{"inverted interval", types.ErrIntervalInverted, http.StatusUnprocessableEntity},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			MapStoreError(rec, req, tt.err)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestMapStoreError_HidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	MapStoreError(rec, req, errors.New("password=hunter2 leaked"))

	var p Problem
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Detail != "Internal Server Error" {
		t.Errorf("Internal detail leaked: %s", p.Detail)
	}
}
