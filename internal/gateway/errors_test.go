package gateway

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &RateLimitedError{RetryAfter: time.Minute}, true},
		{"transient", &TransientError{Op: "list", Err: errors.New("boom")}, true},
		{"wrapped transient", fmt.Errorf("sweep: %w", &TransientError{Op: "list", Err: errors.New("boom")}), true},
		{"forbidden", ErrForbidden, false},
		{"not found", ErrNotFound, false},
		{"already unassigned", ErrAlreadyUnassigned, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlreadySatisfied(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", ErrNotFound, true},
		{"already unassigned", ErrAlreadyUnassigned, true},
		{"wrapped not found", fmt.Errorf("unassign: %w", ErrNotFound), true},
		{"forbidden", ErrForbidden, false},
		{"transient", &TransientError{Op: "post", Err: errors.New("boom")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlreadySatisfied(tt.err); got != tt.want {
				t.Errorf("AlreadySatisfied = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimitedErrorMessage(t *testing.T) {
	e := &RateLimitedError{RetryAfter: 90 * time.Second}
	if e.Error() != "rate limited (retry after 1m30s)" {
		t.Errorf("unexpected message: %q", e.Error())
	}

	bare := &RateLimitedError{}
	if bare.Error() != "rate limited" {
		t.Errorf("unexpected message: %q", bare.Error())
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	e := &TransientError{Op: "list issues", Err: inner}
	if !errors.Is(e, inner) {
		t.Error("TransientError must unwrap to its cause")
	}
}

func TestSplitRepo(t *testing.T) {
	tests := []struct {
		input     string
		owner     string
		name      string
		wantError bool
	}{
		{"acme/widgets", "acme", "widgets", false},
		{"acme/", "", "", true},
		{"/widgets", "", "", true},
		{"widgets", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			owner, name, err := splitRepo(tt.input)
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if owner != tt.owner || name != tt.name {
				t.Errorf("splitRepo(%q) = (%q, %q)", tt.input, owner, name)
			}
		})
	}
}
