// Package backend selects where the session is persisted.
package backend

import (
	"fmt"

	"ledger/internal/config"
	applog "ledger/internal/log"
	"ledger/internal/session"
	"ledger/internal/storage"
)

// StorageType names a session storage implementation.
type StorageType string

const (
	FileStorage   StorageType = config.SessionBackendFile
	SQLiteStorage StorageType = config.SessionBackendSQLite
	MemoryStorage StorageType = config.SessionBackendMemory
)

func (t StorageType) String() string {
	return string(t)
}

func (t StorageType) IsValid() bool {
	switch t {
	case FileStorage, SQLiteStorage, MemoryStorage:
		return true
	default:
		return false
	}
}

// StorageTypes returns all valid storage types.
func StorageTypes() []StorageType {
	return []StorageType{FileStorage, SQLiteStorage, MemoryStorage}
}

// CleanupFunc releases resources held by a storage.
type CleanupFunc func() error

// Result is a ready storage and its optional cleanup.
type Result struct {
	Storage session.Storage
	Cleanup CleanupFunc
}

// Close runs Cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Config holds what the factory needs from the application config.
type Config struct {
	Type       StorageType
	FilePath   string
	SQLitePath string
}

// FromAppConfig converts the application config to storage config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := StorageType(appConfig.SessionBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid session backend in config: %s", appConfig.SessionBackend)
	}

	return Config{
		Type:       t,
		FilePath:   appConfig.SessionFile,
		SQLitePath: appConfig.SessionDBPath,
	}, nil
}

func (c Config) Validate() error {
	switch c.Type {
	case FileStorage:
		if c.FilePath == "" {
			return fmt.Errorf("session file path is required for file storage")
		}
	case SQLiteStorage:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite storage")
		}
	case MemoryStorage:
	default:
		return fmt.Errorf("invalid storage type: %s", c.Type)
	}
	return nil
}

// Factory builds session storages.
type Factory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentStorage)}
}

// Create returns the storage selected by cfg.
func (f *Factory) Create(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case FileStorage:
		fs, err := session.NewFileStorage(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		f.logger.Debug("Initialized file session storage", "path", cfg.FilePath)
		return &Result{Storage: fs}, nil

	case SQLiteStorage:
		kv, err := storage.NewSQLiteKV(cfg.SQLitePath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		f.logger.Debug("Initialized SQLite session storage", "db_path", cfg.SQLitePath)
		return &Result{Storage: kv, Cleanup: kv.Close}, nil

	default:
		f.logger.Debug("Initialized memory session storage")
		return &Result{Storage: session.NewMemoryStorage()}, nil
	}
}
