package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestValidation_WrapsSentinel(t *testing.T) {
	err := Validation("%s is required", "symptoms")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err.Error() != "validation error: symptoms is required" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestNotFound_WrapsSentinel(t *testing.T) {
	err := NotFound("consultation")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err.Error() != "consultation not found" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ErrValidation:                           http.StatusBadRequest,
		ErrDuplicateEmail:                       http.StatusConflict,
		ErrInvalidCredentials:                   http.StatusUnauthorized,
		ErrNotFound:                             http.StatusNotFound,
		ErrForbidden:                            http.StatusForbidden,
		ErrInvalidTransition:                    http.StatusConflict,
		fmt.Errorf("respond: %w", ErrForbidden): http.StatusForbidden,
		errors.New("boom"):                      http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := HTTPStatus(err); got != want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestHTTPError_HidesInternal(t *testing.T) {
	he := HTTPError(errors.New("connection refused"))
	if he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", he.Code)
	}
	if he.Message != "internal server error" {
		t.Errorf("expected generic message, got %v", he.Message)
	}
	if he.Internal == nil {
		t.Error("expected internal error to be preserved")
	}
}
