package apitest

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var hundred = decimal.NewFromInt(100)

func (s *Server) handleYearlyTrend(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	year, set, err := queryInt(r, "year")
	if err != nil || !set {
		validationError(w, "year", "Field required")
		return
	}

	totals := make([]core.Money, 13)
	s.mu.Lock()
	for _, rec := range s.userRecords(u, core.ExportFilter{Year: year}) {
		m := rec.RecordDate.Month()
		totals[m] = totals[m].Add(rec.Amount)
	}
	s.mu.Unlock()

	out := make([]core.YearlyTrendItem, 0, 12)
	for m := 1; m <= 12; m++ {
		out = append(out, core.YearlyTrendItem{Month: m, Total: core.NewMoney(totals[m].Decimal)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonthlyBreakdown(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	year, set, err := queryInt(r, "year")
	if err != nil || !set {
		validationError(w, "year", "Field required")
		return
	}
	month, set, err := queryInt(r, "month")
	if err != nil || !set || core.ValidateMonth(month) != nil {
		validationError(w, "month", "Input should be between 1 and 12")
		return
	}

	s.mu.Lock()
	bySource := make(map[int64]core.Money)
	names := make(map[int64]string)
	grand := decimal.Zero
	for _, rec := range s.userRecords(u, core.ExportFilter{Year: year, Month: month}) {
		bySource[rec.SourceID] = bySource[rec.SourceID].Add(rec.Amount)
		if src, ok := s.sources[rec.SourceID]; ok {
			names[rec.SourceID] = src.Name
		}
		grand = grand.Add(rec.Amount.Decimal)
	}
	s.mu.Unlock()

	if grand.IsZero() {
		grand = decimal.NewFromInt(1)
	}

	out := make([]core.MonthlyBreakdownItem, 0, len(bySource))
	for id, total := range bySource {
		pct := total.Div(grand).Mul(hundred).Round(2).InexactFloat64()
		out = append(out, core.MonthlyBreakdownItem{
			SourceID:   id,
			SourceName: names[id],
			Total:      core.NewMoney(total.Decimal),
			Percentage: pct,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnnualTotals(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	raw := r.URL.Query()["years"]
	if len(raw) == 0 {
		validationError(w, "years", "Field required")
		return
	}

	var years []int
	seen := make(map[int]bool)
	for _, v := range raw {
		y, err := strconv.Atoi(v)
		if err != nil {
			validationError(w, "years", fmt.Sprintf("Invalid year %q", v))
			return
		}
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}

	s.mu.Lock()
	out := make([]core.AnnualTotalItem, 0, len(years))
	for _, y := range years {
		var total core.Money
		for _, rec := range s.userRecords(u, core.ExportFilter{Year: y}) {
			total = total.Add(rec.Amount)
		}
		out = append(out, core.AnnualTotalItem{Year: y, Total: core.NewMoney(total.Decimal)})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}
