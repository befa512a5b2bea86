// Package services holds workflows that combine several API calls.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/sheets"
)

// MaxPageSize is the largest page the backend serves.
const MaxPageSize = 100

// RecordLister returns one page of records.
type RecordLister interface {
	Records(ctx context.Context, filter core.RecordFilter) (*core.RecordPage, error)
}

// ExportResult summarizes one export run.
type ExportResult struct {
	Rows   int
	Pages  int
	RowRef string
}

// ExportService copies filtered income records into a spreadsheet.
type ExportService struct {
	records  RecordLister
	writer   sheets.RecordWriter
	pageSize int
	logger   *applog.Logger
}

func NewExportService(records RecordLister, writer sheets.RecordWriter, pageSize int, logger *applog.Logger) *ExportService {
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExportService{
		records:  records,
		writer:   writer,
		pageSize: pageSize,
		logger:   logger.WithComponent(applog.ComponentSheets),
	}
}

// Export walks every page matching filter and appends the records in
// chronological order, the same order as the CSV export. Nothing is written
// when a page fails to load.
func (s *ExportService) Export(ctx context.Context, filter core.ExportFilter) (*ExportResult, error) {
	if s.records == nil || s.writer == nil {
		return nil, errors.New("export service not configured")
	}

	var all []core.IncomeRecord
	res := &ExportResult{}
	for page := 1; ; page++ {
		p, err := s.records.Records(ctx, core.RecordFilter{
			Page:     page,
			PageSize: s.pageSize,
			Year:     filter.Year,
			Month:    filter.Month,
			SourceID: filter.SourceID,
		})
		if err != nil {
			return nil, fmt.Errorf("load page %d: %w", page, err)
		}
		res.Pages++
		all = append(all, p.Items...)

		if len(p.Items) == 0 || len(all) >= p.Total {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.RecordDate.Equal(b.RecordDate.Time) {
			return a.RecordDate.Before(b.RecordDate.Time)
		}
		return a.ID < b.ID
	})

	ref, err := s.writer.Append(ctx, all)
	if err != nil {
		applog.LogError(ctx, s.logger, "Sheet export failed", err, applog.OpExport, nil)
		return nil, fmt.Errorf("append rows: %w", err)
	}
	res.Rows = len(all)
	res.RowRef = ref

	s.logger.InfoContext(ctx, "Exported records",
		applog.FieldOperation, applog.OpExport,
		"rows", res.Rows,
		"pages", res.Pages,
		applog.FieldYear, filter.Year,
		applog.FieldMonth, filter.Month)
	return res, nil
}
