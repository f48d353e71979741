package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode_WrappedException(t *testing.T) {
	err := fmt.Errorf("resume task 7: %w", ErrActiveTaskConflict)

	if got := StatusCode(err); got != http.StatusConflict {
		t.Errorf("expected %d, got %d", http.StatusConflict, got)
	}
	if !errors.Is(err, ErrActiveTaskConflict) {
		t.Error("expected wrapped error to match sentinel")
	}
	if got := PublicMessage(err); got != ErrActiveTaskConflict.Message {
		t.Errorf("unexpected public message %q", got)
	}
}

func TestStatusCode_PlainError(t *testing.T) {
	err := errors.New("connection refused")

	if got := StatusCode(err); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", got)
	}
	if got := PublicMessage(err); got != "internal error" {
		t.Errorf("unexpected public message %q", got)
	}
}
