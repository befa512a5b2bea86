package core

import (
	"net/url"
	"strconv"
)

// YearlyTrendItem is the total of one month (1-12) within a year.
type YearlyTrendItem struct {
	Month int   `json:"month"`
	Total Money `json:"total"`
}

// MonthlyBreakdownItem is one source's share of a month's income.
type MonthlyBreakdownItem struct {
	SourceID   int64   `json:"source_id"`
	SourceName string  `json:"source_name"`
	Total      Money   `json:"total"`
	Percentage float64 `json:"percentage"` // 0-100
}

// AnnualTotalItem is the total income of one year.
type AnnualTotalItem struct {
	Year  int   `json:"year"`
	Total Money `json:"total"`
}

// RecordFilter selects a page of records. Zero fields are omitted from the
// query so the backend applies its own defaults.
type RecordFilter struct {
	Page     int
	PageSize int
	Year     int
	Month    int
	SourceID int64
}

// Values encodes the filter as query parameters.
func (f RecordFilter) Values() url.Values {
	v := ExportFilter{Year: f.Year, Month: f.Month, SourceID: f.SourceID}.Values()
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return v
}

// ExportFilter narrows a CSV export.
type ExportFilter struct {
	Year     int
	Month    int
	SourceID int64
}

func (f ExportFilter) Values() url.Values {
	v := url.Values{}
	if f.Year > 0 {
		v.Set("year", strconv.Itoa(f.Year))
	}
	if f.Month > 0 {
		v.Set("month", strconv.Itoa(f.Month))
	}
	if f.SourceID > 0 {
		v.Set("source_id", strconv.FormatInt(f.SourceID, 10))
	}
	return v
}

// SumBreakdown returns the grand total and the sum of percentages.
func SumBreakdown(items []MonthlyBreakdownItem) (total Money, percent float64) {
	for _, it := range items {
		total = total.Add(it.Total)
		percent += it.Percentage
	}
	return total, percent
}
