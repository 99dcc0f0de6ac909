package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	accountdomain "memodams/backend/internal/account/domain"
	accountrepo "memodams/backend/internal/account/repository"
	"memodams/backend/internal/db"
	"memodams/backend/internal/device/domain"
)

// exercise runs the same contract against any Repository implementation.
func exercise(t *testing.T, repo Repository, accountA, accountB string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	device := uuid.NewString()

	got, err := repo.Get(ctx, accountA, device)
	if err != nil || got != nil {
		t.Fatalf("Get missing = %+v, %v; want nil, nil", got, err)
	}

	for _, acct := range []string{accountA, accountB} {
		if err := repo.Upsert(ctx, &domain.TrustedDevice{AccountID: acct, DeviceID: device, Label: "Firefox", VerifiedAt: now, LastSeenAt: now}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	got, err = repo.Get(ctx, accountA, device)
	if err != nil || got == nil || !got.Trusted(now) || got.Label != "Firefox" {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	ok, err := repo.Revoke(ctx, accountA, device, now)
	if err != nil || !ok {
		t.Fatalf("Revoke = %v, %v", ok, err)
	}
	ok, _ = repo.Revoke(ctx, accountA, device, now)
	if ok {
		t.Error("second Revoke should report false")
	}
	got, _ = repo.Get(ctx, accountA, device)
	if got.Trusted(now) {
		t.Error("revoked flag must not be trusted")
	}

	// Re-verification clears the revocation and keeps the label.
	if err := repo.Upsert(ctx, &domain.TrustedDevice{AccountID: accountA, DeviceID: device, VerifiedAt: now, LastSeenAt: now}); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	got, _ = repo.Get(ctx, accountA, device)
	if !got.Trusted(now) || got.Label != "Firefox" {
		t.Errorf("after re-verify: %+v", got)
	}

	list, err := repo.ListByAccount(ctx, accountA)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByAccount = %d, %v", len(list), err)
	}

	n, err := repo.DeleteByDevice(ctx, device)
	if err != nil || n != 2 {
		t.Fatalf("DeleteByDevice = %d, %v; want 2", n, err)
	}
	if got, _ := repo.Get(ctx, accountB, device); got != nil {
		t.Error("flags for every account on the device should be gone")
	}
}

func TestMemoryRepository(t *testing.T) {
	exercise(t, NewMemoryRepository(), "acct-a", "acct-b")
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	conn, err := db.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer conn.Close()

	accounts := accountrepo.NewPostgresRepository(conn)
	ids := make([]string, 2)
	for i := range ids {
		now := time.Now().UTC()
		a := &accountdomain.Account{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Status: accountdomain.AccountStatusActive, CreatedAt: now, UpdatedAt: now}
		if err := accounts.Create(context.Background(), a); err != nil {
			t.Fatalf("create account: %v", err)
		}
		ids[i] = a.ID
	}
	exercise(t, NewPostgresRepository(conn), ids[0], ids[1])
}
