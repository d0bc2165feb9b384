package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("op", "bad %s", "code"), KindValidation},
		{"wrapped not found", fmt.Errorf("outer: %w", NotFound("op", "missing")), KindNotFound},
		{"persistence", Persistence("op", errors.New("disk")), KindPersistence},
		{"plain error", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinelIs(t *testing.T) {
	err := fmt.Errorf("accept: %w", Conflict("AcceptInvitation", "invitation already accepted"))
	if !errors.Is(err, ErrConflict) {
		t.Error("expected errors.Is to match ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("did not expect errors.Is to match ErrNotFound")
	}
}

func TestPublicMessageHidesCause(t *testing.T) {
	err := Persistence("CreateChore", errors.New("SQLITE_BUSY: database is locked"))
	if got := PublicMessage(err); got != "storage failure" {
		t.Errorf("PublicMessage() = %q", got)
	}
	if got := PublicMessage(errors.New("raw")); got != "internal error" {
		t.Errorf("PublicMessage() = %q", got)
	}
}
