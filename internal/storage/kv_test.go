package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	kv, err := NewSQLiteKV(path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteKV() error = %v", err)
	}

	if _, ok, err := kv.Get(ctx, "ai_platform_token"); err != nil || ok {
		t.Fatalf("Get() on empty store = ok %v, err %v", ok, err)
	}

	if err := kv.Set(ctx, "ai_platform_token", "first"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := kv.Set(ctx, "ai_platform_token", "second"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// reopening runs migrations again and keeps the data
	kv, err = NewSQLiteKV(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer kv.Close()

	got, ok, err := kv.Get(ctx, "ai_platform_token")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if got != "second" {
		t.Errorf("Get() = %q, want %q", got, "second")
	}

	if err := kv.Delete(ctx, "ai_platform_token"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := kv.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete() of missing key error = %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "ai_platform_token"); ok {
		t.Error("key still present after Delete()")
	}
}

func TestRunMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	for i := 0; i < 2; i++ {
		version, err := RunMigrations(path)
		if err != nil {
			t.Fatalf("RunMigrations() run %d error = %v", i+1, err)
		}
		if version != 1 {
			t.Errorf("RunMigrations() run %d version = %d, want 1", i+1, version)
		}
	}
}
