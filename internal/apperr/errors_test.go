package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("patch booking: %w", OverlapConflict("booking overlaps booking %d", 7))

	if !errors.Is(err, ErrOverlapConflict) {
		t.Fatalf("expected overlap conflict, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("overlap conflict must not match not found")
	}
	if got := KindOf(err); got != KindOverlapConflict {
		t.Fatalf("KindOf = %v, want %v", got, KindOverlapConflict)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("KindOf = %v, want internal", got)
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"message only", InvalidTransition("invalid status transition %s→%s", "pending", "done"), "invalid status transition pending→done"},
		{"channel", ChannelDelivery("webhook", cause), "webhook: connection refused"},
		{"bare sentinel", ErrValidation, "ValidationError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
	if !errors.Is(ChannelDelivery("email", cause), cause) {
		t.Fatalf("channel delivery error must unwrap to its cause")
	}
}

func TestPublicMessageHidesCause(t *testing.T) {
	cause := errors.New(`ERROR: conflicting key value violates exclusion constraint "bookings_no_overlap" (SQLSTATE 23P01)`)
	err := fmt.Errorf("patch booking: %w", OverlapConflict("update booking: interval overlaps an existing booking").WithCause(cause))

	if got := PublicMessage(err); got != "update booking: interval overlaps an existing booking" {
		t.Fatalf("PublicMessage = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause must stay in the chain for logs")
	}
	if got := PublicMessage(ErrNotFound); got != "NotFound" {
		t.Fatalf("PublicMessage(sentinel) = %q", got)
	}
	if got := PublicMessage(errors.New("boom")); got != "InternalError" {
		t.Fatalf("PublicMessage(plain) = %q", got)
	}
}
