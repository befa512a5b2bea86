package backend

import (
	"context"
	"path/filepath"
	"testing"

	"ledger/internal/config"
	"ledger/internal/session"
	"ledger/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}

	cfg, err := FromAppConfig(&config.Config{SessionBackend: "sqlite", SessionDBPath: "/tmp/s.db"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SQLiteStorage || cfg.SQLitePath != "/tmp/s.db" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{SessionBackend: "redis"}); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestFactory_Create(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		check   func(t *testing.T, s session.Storage)
	}{
		{
			name: "memory",
			cfg:  Config{Type: MemoryStorage},
			check: func(t *testing.T, s session.Storage) {
				if _, ok := s.(*session.MemoryStorage); !ok {
					t.Errorf("got %T, want *session.MemoryStorage", s)
				}
			},
		},
		{
			name: "file",
			cfg:  Config{Type: FileStorage, FilePath: filepath.Join(dir, "session.json")},
			check: func(t *testing.T, s session.Storage) {
				if _, ok := s.(*session.FileStorage); !ok {
					t.Errorf("got %T, want *session.FileStorage", s)
				}
			},
		},
		{
			name: "sqlite",
			cfg:  Config{Type: SQLiteStorage, SQLitePath: filepath.Join(dir, "session.db")},
			check: func(t *testing.T, s session.Storage) {
				if _, ok := s.(*storage.SQLiteKV); !ok {
					t.Errorf("got %T, want *storage.SQLiteKV", s)
				}
			},
		},
		{name: "file without path", cfg: Config{Type: FileStorage}, wantErr: true},
		{name: "sqlite without path", cfg: Config{Type: SQLiteStorage}, wantErr: true},
		{name: "unknown", cfg: Config{Type: "nope"}, wantErr: true},
	}

	f := NewFactory(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.Create(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer res.Close()

			tt.check(t, res.Storage)

			ctx := context.Background()
			if err := res.Storage.Set(ctx, session.KeyToken, "tok"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, ok, err := res.Storage.Get(ctx, session.KeyToken)
			if err != nil || !ok || got != "tok" {
				t.Errorf("Get() = %q, %v, %v", got, ok, err)
			}
		})
	}
}
