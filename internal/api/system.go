package api

import (
	"context"

	"ledger/internal/core"
)

const (
	pathBackupTrigger = "/backup/trigger"
	pathBackupList    = "/backup/list"
	pathHealth        = "/health"
)

// Backup wraps the admin-only backup endpoints.
type Backup struct {
	doer Doer
}

func (b *Backup) Trigger(ctx context.Context) (*core.BackupTriggerResult, error) {
	var out core.BackupTriggerResult
	if _, err := b.doer.Post(ctx, pathBackupTrigger, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns backup files, newest first.
func (b *Backup) List(ctx context.Context) ([]core.BackupFile, error) {
	var out []core.BackupFile
	_, err := b.doer.Get(ctx, pathBackupList, &out)
	return out, err
}

type System struct {
	doer Doer
}

func (s *System) Health(ctx context.Context) (*core.HealthStatus, error) {
	var out core.HealthStatus
	if _, err := s.doer.Get(ctx, pathHealth, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
