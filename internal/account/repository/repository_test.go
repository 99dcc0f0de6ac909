package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"memodams/backend/internal/account/domain"
	"memodams/backend/internal/db"
)

// exercise runs the same contract against any Repository implementation.
func exercise(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	email := uuid.NewString() + "@example.com"
	a := &domain.Account{ID: uuid.NewString(), Email: email, Name: "Ada", Status: domain.AccountStatusActive, CreatedAt: now, UpdatedAt: now}

	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := *a
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate Create: err = %v, want ErrEmailTaken", err)
	}

	got, err := repo.GetByEmail(ctx, email)
	if err != nil || got == nil || got.ID != a.ID {
		t.Fatalf("GetByEmail = %+v, %v", got, err)
	}
	if got.EmailVerified || got.Admin {
		t.Errorf("new account should be unverified non-admin: %+v", got)
	}

	if err := repo.SetEmailVerified(ctx, a.ID); err != nil {
		t.Fatalf("SetEmailVerified: %v", err)
	}
	ok, err := repo.SetAdmin(ctx, a.ID, true)
	if err != nil || !ok {
		t.Fatalf("SetAdmin = %v, %v", ok, err)
	}
	got, _ = repo.GetByID(ctx, a.ID)
	if !got.EmailVerified || !got.Admin {
		t.Errorf("after updates: %+v", got)
	}

	ok, err = repo.SetAdmin(ctx, uuid.NewString(), true)
	if err != nil || ok {
		t.Errorf("SetAdmin unknown = %v, %v; want false, nil", ok, err)
	}
	missing, err := repo.GetByID(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Errorf("GetByID unknown = %+v, %v; want nil, nil", missing, err)
	}
}

func TestMemoryRepository(t *testing.T) {
	exercise(t, NewMemoryRepository())
}

func TestMemoryRepository_ListPaginates(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_ = repo.Create(context.Background(), &domain.Account{
			ID: uuid.NewString(), Email: uuid.NewString() + "@x.io", CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	page, _ := repo.List(context.Background(), 2, 0)
	if len(page) != 2 {
		t.Fatalf("page 1 len = %d", len(page))
	}
	page2, _ := repo.List(context.Background(), 2, 2)
	if len(page2) != 1 {
		t.Fatalf("page 2 len = %d", len(page2))
	}
	if !page[0].CreatedAt.Equal(base.Add(2*time.Second)) || !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Error("list should be ordered newest first")
	}
	if !page2[0].CreatedAt.Equal(base) {
		t.Errorf("last page holds %v, want the oldest account", page2[0].CreatedAt)
	}

	_, _ = repo.SetAdmin(context.Background(), page[0].ID, true)
	_ = repo.SetEmailVerified(context.Background(), page[1].ID)
	counts, err := repo.Count(context.Background())
	if err != nil || counts != (domain.Counts{Total: 3, EmailVerified: 1, Admins: 1}) {
		t.Errorf("Count = %+v, %v", counts, err)
	}
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
	exercise(t, NewPostgresRepository(conn))
}
