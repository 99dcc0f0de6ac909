package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestOpen_EmptyDSN(t *testing.T) {
	db, err := Open(context.Background(), "")
	if err == nil {
		t.Fatal("Open with empty DSN should return error")
	}
	if db != nil {
		t.Error("Open should return nil db on error")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	if !IsUniqueViolation(unique) {
		t.Error("23505 should be a unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("insert account: %w", unique)) {
		t.Error("wrapped 23505 should be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Error("plain error is not a unique violation")
	}
}

func TestNullTimeConversions(t *testing.T) {
	if NullTime(TimeOrNull(nil)) != nil {
		t.Error("nil should round-trip to nil")
	}
	now := time.Now().UTC().Truncate(time.Second)
	got := NullTime(TimeOrNull(&now))
	if got == nil || !got.Equal(now) {
		t.Errorf("got %v, want %v", got, now)
	}
}

func TestMigrationFS_ContainsPairs(t *testing.T) {
	entries, err := MigrationFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("up=%d down=%d, want matching non-zero counts", ups, downs)
	}
}
