package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/transport"
)

const (
	pathSources          = "/income/sources"
	pathRecords          = "/income/records"
	pathYearlyTrend      = "/income/records/stats/yearly-trend"
	pathMonthlyBreakdown = "/income/records/stats/monthly-breakdown"
	pathAnnualTotals     = "/income/records/stats/annual-totals"
	pathExportCSV        = "/income/records/export/csv"
	pathImportCSV        = "/income/records/import/csv"
)

type Income struct {
	doer   Doer
	logger *applog.Logger
}

func sourcePath(id int64) string { return fmt.Sprintf("%s/%d", pathSources, id) }
func recordPath(id int64) string { return fmt.Sprintf("%s/%d", pathRecords, id) }

// Sources lists the user's sources, active ones only unless includeInactive.
func (c *Income) Sources(ctx context.Context, includeInactive bool) ([]core.IncomeSource, error) {
	var out []core.IncomeSource
	_, err := c.doer.Get(ctx, pathSources, &out,
		transport.WithParam("include_inactive", strconv.FormatBool(includeInactive)))
	return out, err
}

func (c *Income) CreateSource(ctx context.Context, in core.SourceCreate) (*core.IncomeSource, error) {
	var out core.IncomeSource
	if _, err := c.doer.Post(ctx, pathSources, transport.JSON(in), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSource sends only the fields set in patch.
func (c *Income) UpdateSource(ctx context.Context, id int64, patch core.SourceUpdate) (*core.IncomeSource, error) {
	var out core.IncomeSource
	if _, err := c.doer.Put(ctx, sourcePath(id), transport.JSON(patch), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Income) DeleteSource(ctx context.Context, id int64) error {
	_, err := c.doer.Delete(ctx, sourcePath(id), nil)
	return err
}

// Records returns one page of records matching filter.
func (c *Income) Records(ctx context.Context, filter core.RecordFilter) (*core.RecordPage, error) {
	var out core.RecordPage
	if _, err := c.doer.Get(ctx, pathRecords, &out, transport.WithQuery(filter.Values())); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Income) CreateRecord(ctx context.Context, in core.RecordCreate) (*core.IncomeRecord, error) {
	var out core.IncomeRecord
	if _, err := c.doer.Post(ctx, pathRecords, transport.JSON(in), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRecord sends only the fields set in patch.
func (c *Income) UpdateRecord(ctx context.Context, id int64, patch core.RecordUpdate) (*core.IncomeRecord, error) {
	var out core.IncomeRecord
	if _, err := c.doer.Put(ctx, recordPath(id), transport.JSON(patch), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Income) DeleteRecord(ctx context.Context, id int64) error {
	_, err := c.doer.Delete(ctx, recordPath(id), nil)
	return err
}

// YearlyTrend returns the monthly totals of year.
func (c *Income) YearlyTrend(ctx context.Context, year int) ([]core.YearlyTrendItem, error) {
	var out []core.YearlyTrendItem
	_, err := c.doer.Get(ctx, pathYearlyTrend, &out, transport.WithParam("year", strconv.Itoa(year)))
	return out, err
}

// MonthlyBreakdown returns each source's share of one month.
func (c *Income) MonthlyBreakdown(ctx context.Context, year, month int) ([]core.MonthlyBreakdownItem, error) {
	var out []core.MonthlyBreakdownItem
	_, err := c.doer.Get(ctx, pathMonthlyBreakdown, &out,
		transport.WithParam("year", strconv.Itoa(year)),
		transport.WithParam("month", strconv.Itoa(month)))
	return out, err
}

// AnnualTotals returns the total of each requested year. Years are sent as
// repeated "years" parameters.
func (c *Income) AnnualTotals(ctx context.Context, years ...int) ([]core.AnnualTotalItem, error) {
	q := url.Values{}
	for _, y := range years {
		q.Add("years", strconv.Itoa(y))
	}
	var out []core.AnnualTotalItem
	_, err := c.doer.Get(ctx, pathAnnualTotals, &out, transport.WithQuery(q))
	return out, err
}

// ExportURL builds the CSV download link. No request is made.
func (c *Income) ExportURL(filter core.ExportFilter) string {
	return c.doer.URL(pathExportCSV, filter.Values())
}

// ExportCSV downloads the CSV with the session's credentials and copies it to w.
func (c *Income) ExportCSV(ctx context.Context, filter core.ExportFilter, w io.Writer) error {
	_, err := c.doer.Get(ctx, pathExportCSV, w,
		transport.WithQuery(filter.Values()),
		transport.WithHeader("Accept", "text/csv"))
	return err
}

// ImportCSV uploads a CSV file. A successful call may still report skipped
// rows in the result.
func (c *Income) ImportCSV(ctx context.Context, filename string, r io.Reader) (*core.ImportResult, error) {
	body := transport.Multipart(nil, transport.FilePart{
		Field:       "file",
		Filename:    filename,
		ContentType: "text/csv",
		Reader:      r,
	})

	var out core.ImportResult
	if _, err := c.doer.Post(ctx, pathImportCSV, body, &out); err != nil {
		return nil, err
	}
	if out.Skipped > 0 {
		c.logger.WarnContext(ctx, "CSV import skipped rows",
			applog.FieldOperation, applog.OpImport,
			"imported", out.Imported,
			"skipped", out.Skipped)
	}
	return &out, nil
}
