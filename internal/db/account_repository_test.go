package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/talonchat/talon/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "talon.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return db
}

func TestAccountRepository_CreateAndList(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAccountRepository(db)
	ctx := context.Background()

	account1 := &models.Account{
		ServerURL: "https://chat.example.com",
		Email:     "me@example.com",
		APIKey:    "key-1",
		Capabilities: []string{
			models.CapabilityRecentConversations,
		},
	}
	account2 := &models.Account{
		ServerURL: "https://other.example.com",
		Email:     "me@example.com",
		APIKey:    "key-2",
	}

	if err := repo.Create(ctx, account1); err != nil {
		t.Fatalf("Create account1 failed: %v", err)
	}
	if err := repo.Create(ctx, account2); err != nil {
		t.Fatalf("Create account2 failed: %v", err)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(all))
	}

	got := all[0]
	if got.ServerURL != "https://chat.example.com" {
		t.Fatalf("unexpected order: %s", got.ServerURL)
	}
	if !got.HasCapability(models.CapabilityRecentConversations) {
		t.Fatalf("capabilities not round-tripped: %+v", got.Capabilities)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", got)
	}
}

func TestAccountRepository_DuplicateLogin(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAccountRepository(db)
	ctx := context.Background()

	account := &models.Account{
		ServerURL: "https://chat.example.com",
		Email:     "me@example.com",
		APIKey:    "key-1",
	}
	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := &models.Account{
		ServerURL: "https://chat.example.com",
		Email:     "me@example.com",
		APIKey:    "key-other",
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrAccountAlreadyExists) {
		t.Fatalf("expected ErrAccountAlreadyExists, got %v", err)
	}
}

func TestAccountRepository_GetUpdateDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAccountRepository(db)
	ctx := context.Background()

	account := &models.Account{
		ServerURL: "https://chat.example.com",
		Email:     "me@example.com",
		APIKey:    "key-1",
	}
	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.Get(ctx, account.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.APIKey != "key-1" {
		t.Fatalf("unexpected api key: %s", got.APIKey)
	}

	byLogin, err := repo.GetByLogin(ctx, "https://chat.example.com", "me@example.com")
	if err != nil {
		t.Fatalf("GetByLogin failed: %v", err)
	}
	if byLogin.ID != account.ID {
		t.Fatalf("GetByLogin returned wrong account: %s", byLogin.ID)
	}

	err = repo.UpdateServerInfo(ctx, account.ID, "4.0",
		[]string{models.CapabilityRecentConversations})
	if err != nil {
		t.Fatalf("UpdateServerInfo failed: %v", err)
	}

	got, err = repo.Get(ctx, account.ID)
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if got.ServerVersion != "4.0" || !got.HasCapability(models.CapabilityRecentConversations) {
		t.Fatalf("server info not updated: %+v", got)
	}

	if err := repo.Delete(ctx, account.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, account.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, account.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound on double delete, got %v", err)
	}
}

func TestAccountRepository_ValidationErrors(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewAccountRepository(db)
	if err := repo.Create(context.Background(), &models.Account{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSchemaIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talon.db")
	ctx := context.Background()

	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	repo := NewAccountRepository(db)
	account := &models.Account{
		ServerURL: "https://chat.example.com",
		Email:     "me@example.com",
		APIKey:    "key-1",
	}
	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	db, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	all, err := NewAccountRepository(db).List(ctx)
	if err != nil {
		t.Fatalf("List after reopen failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 account after reopen, got %d", len(all))
	}
}
