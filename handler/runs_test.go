package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestIsNotFound(t *testing.T) {
	if !isNotFound(pgx.ErrNoRows) {
		t.Error("bare ErrNoRows should be not-found")
	}
	if !isNotFound(fmt.Errorf("get run: %w", pgx.ErrNoRows)) {
		t.Error("wrapped ErrNoRows should be not-found")
	}
	if isNotFound(errors.New("connection refused")) {
		t.Error("other errors are not not-found")
	}
	if isNotFound(nil) {
		t.Error("nil is not not-found")
	}
}
