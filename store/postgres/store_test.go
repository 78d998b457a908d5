package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestLikePrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"acme/", "acme/"},
		{"a_b/", `a\_b/`},
		{"100%/", `100\%/`},
		{`back\slash/`, `back\\slash/`},
	}
	for _, tt := range tests {
		if got := likePrefix(tt.in); got != tt.want {
			t.Errorf("likePrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !isUniqueViolation(dup) {
		t.Fatal("wrapped 23505 must be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("boom")) || isUniqueViolation(nil) {
		t.Fatal("plain errors are not unique violations")
	}
}
