package services

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/core"
	"ledger/internal/sheets/memory"
)

type pagedRecords struct {
	items   []core.IncomeRecord
	filters []core.RecordFilter
	failAt  int
}

func (p *pagedRecords) Records(_ context.Context, f core.RecordFilter) (*core.RecordPage, error) {
	p.filters = append(p.filters, f)
	if p.failAt > 0 && f.Page == p.failAt {
		return nil, errors.New("boom")
	}
	start := (f.Page - 1) * f.PageSize
	end := start + f.PageSize
	if start > len(p.items) {
		start = len(p.items)
	}
	if end > len(p.items) {
		end = len(p.items)
	}
	return &core.RecordPage{
		Total:    len(p.items),
		Page:     f.Page,
		PageSize: f.PageSize,
		Items:    p.items[start:end],
	}, nil
}

// newestFirst mimics the backend ordering.
func newestFirst(n int) []core.IncomeRecord {
	out := make([]core.IncomeRecord, 0, n)
	for i := n; i >= 1; i-- {
		out = append(out, core.IncomeRecord{
			ID:         int64(i),
			SourceName: "Salary",
			Amount:     core.MustMoney("10"),
			RecordDate: core.NewDate(2024, 1, i),
		})
	}
	return out
}

func TestExport_PagesAndOrders(t *testing.T) {
	records := &pagedRecords{items: newestFirst(5)}
	writer := memory.New()
	svc := NewExportService(records, writer, 2, nil)

	res, err := svc.Export(context.Background(), core.ExportFilter{Year: 2024, SourceID: 7})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Rows != 5 || res.Pages != 3 {
		t.Fatalf("result = %+v, want 5 rows over 3 pages", res)
	}
	if res.RowRef != "mem:2-6" {
		t.Errorf("RowRef = %q", res.RowRef)
	}

	for i, f := range records.filters {
		if f.Page != i+1 || f.PageSize != 2 || f.Year != 2024 || f.SourceID != 7 {
			t.Errorf("filter %d = %+v", i, f)
		}
	}

	rows := writer.Rows()
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want header + 5", len(rows))
	}
	for i, row := range rows[1:] {
		want := core.NewDate(2024, 1, i+1).String()
		if row[0] != want {
			t.Errorf("row %d date = %s, want %s", i, row[0], want)
		}
	}
}

func TestExport_Empty(t *testing.T) {
	records := &pagedRecords{}
	writer := memory.New()
	res, err := NewExportService(records, writer, 50, nil).Export(context.Background(), core.ExportFilter{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Rows != 0 || res.Pages != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(writer.Rows()) != 0 {
		t.Error("nothing should be written")
	}
}

func TestExport_PageFailureWritesNothing(t *testing.T) {
	records := &pagedRecords{items: newestFirst(5), failAt: 2}
	writer := memory.New()
	_, err := NewExportService(records, writer, 2, nil).Export(context.Background(), core.ExportFilter{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(writer.Rows()) != 0 {
		t.Error("partial export must not be written")
	}
}

func TestNewExportService_ClampsPageSize(t *testing.T) {
	for _, size := range []int{0, -1, MaxPageSize + 1} {
		if got := NewExportService(nil, nil, size, nil).pageSize; got != MaxPageSize {
			t.Errorf("pageSize(%d) = %d, want %d", size, got, MaxPageSize)
		}
	}
	if _, err := NewExportService(nil, nil, 10, nil).Export(context.Background(), core.ExportFilter{}); err == nil {
		t.Error("expected error for unconfigured service")
	}
}
