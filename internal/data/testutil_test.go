package data

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/PaulBabatuyi/pairchat/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	d, err := db.Open(ctx, filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Fatalf("close test db: %v", err)
		}
	})
	if err := d.CreateSchema(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return d.SQL()
}

func mustUser(t *testing.T, users *UsersStore, phone, name string) *User {
	t.Helper()

	u, _, err := users.FindOrCreateByPhone(context.Background(), phone, name)
	if err != nil {
		t.Fatalf("create user %q: %v", phone, err)
	}
	return u
}
