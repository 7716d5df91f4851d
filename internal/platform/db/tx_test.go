package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sahayak/sahayak/internal/platform/apperr"
)

func TestNopTransactor_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := NopTransactor{}.WithinTx(context.Background(), func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Fatal("expected nil tx on empty context")
	}
}

func TestSchemaPattern(t *testing.T) {
	valid := []string{"public", "district_17", "_scratch"}
	invalid := []string{"", "1abc", "drop table;", "a-b"}
	for _, s := range valid {
		if !schemaPattern.MatchString(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if schemaPattern.MatchString(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestTranslate(t *testing.T) {
	if Translate(nil, "person", "1") != nil {
		t.Error("nil must stay nil")
	}
	if err := Translate(pgx.ErrNoRows, "person", "1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
	if err := Translate(&pgconn.PgError{Code: "23505"}, "person", "1"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected Conflict, got %v", err)
	}
	if err := Translate(errors.New("conn reset"), "person", "1"); !errors.Is(err, apperr.ErrUpstreamUnavailable) {
		t.Errorf("expected Upstream, got %v", err)
	}
	inv := apperr.InvalidState("work item", "1", "completed", "start")
	if err := Translate(inv, "work item", "1"); err != inv {
		t.Errorf("classified errors must pass through, got %v", err)
	}
}
