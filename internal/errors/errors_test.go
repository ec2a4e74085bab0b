package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := NotFound("task", "42")
	if !errors.Is(err, &Error{Code: CodeNotFound}) {
		t.Fatalf("expected code match for %v", err)
	}
	if errors.Is(err, &Error{Code: CodeValidation}) {
		t.Fatalf("unexpected code match for %v", err)
	}
}

func TestIsCodeSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("redeem: %w", InsufficientBalance(10, 30))
	if !IsCode(err, CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance code, got %v", err)
	}
	if IsCode(err, CodeExpired) {
		t.Fatalf("unexpected expired code for %v", err)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad amount"), http.StatusBadRequest},
		{NotFound("reward", "r1"), http.StatusNotFound},
		{InsufficientBalance(0, 5), http.StatusConflict},
		{RateLimitExceeded(1, "7d"), http.StatusTooManyRequests},
		{InvalidStateTransition("task", "completed", "claimed"), http.StatusConflict},
		{Expired("redemption", "x"), http.StatusGone},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("status for %v: got %d want %d", tc.err, got, tc.want)
		}
	}
}

func TestInternalUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("append transaction", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap from %v", err)
	}
}
