package apitest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ledger/internal/core"
)

// CSVHeader is the column order of exported and imported files.
var CSVHeader = []string{"record_date", "source_name", "amount", "note"}

const maxImportSize = 5 << 20

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	filter, ok := parseExportFilter(r)
	if !ok {
		validationError(w, "query", "invalid filter")
		return
	}

	s.mu.Lock()
	recs := s.userRecords(u, filter)
	rows := make([][]string, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		rec := s.renderRecord(recs[i])
		note := ""
		if rec.Note != nil {
			note = *rec.Note
		}
		rows = append(rows, []string{rec.RecordDate.String(), rec.SourceName, rec.Amount.String(), note})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="income_records.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write(CSVHeader)
	_ = cw.WriteAll(rows)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		validationError(w, "file", "multipart body required")
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		validationError(w, "file", "Field required")
		return
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil || !validHeader(header) {
		writeDetail(w, http.StatusBadRequest,
			"CSV header must be "+strings.Join(CSVHeader, ","))
		return
	}

	result := core.ImportResult{Errors: []string{}}
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", line, err))
			continue
		}
		if err := s.importRow(u, row); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", line, err))
			continue
		}
		result.Imported++
	}

	writeJSON(w, http.StatusOK, result)
}

func validHeader(h []string) bool {
	if len(h) < 3 || len(h) > len(CSVHeader) {
		return false
	}
	for i, col := range h {
		if strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) != CSVHeader[i] {
			return false
		}
	}
	return true
}

func (s *Server) importRow(u *user, row []string) error {
	if len(row) < 3 {
		return fmt.Errorf("expected at least 3 columns, got %d", len(row))
	}
	date, err := core.ParseDate(row[0])
	if err != nil {
		return fmt.Errorf("invalid date %q", row[0])
	}
	amount, err := core.ParseAmount(row[2])
	if err != nil {
		return fmt.Errorf("invalid amount %q", row[2])
	}
	var note *string
	if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
		n := row[3]
		note = &n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sourceByName(u, strings.TrimSpace(row[1]))
	if !ok {
		return fmt.Errorf("unknown source %q", row[1])
	}
	rec := &record{
		ID:         s.allocID(),
		UserID:     u.profile.ID,
		SourceID:   src.ID,
		Amount:     amount,
		RecordDate: date,
		Note:       note,
		CreatedAt:  s.now().UTC(),
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *Server) handleTriggerBackup(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	now := s.now().UTC()
	size := int64(4096 + 128*len(s.records))
	s.backups = append(s.backups, core.BackupFile{
		Filename:  "ai_platform_" + now.Format("20060102_150405") + ".db",
		SizeBytes: size,
		CreatedAt: core.Timestamp{Time: now},
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, core.BackupTriggerResult{Message: "Backup triggered"})
}

func (s *Server) handleListBackups(w http.ResponseWriter, _ *http.Request) {
	type backupJSON struct {
		Filename  string `json:"filename"`
		SizeBytes int64  `json:"size_bytes"`
		CreatedAt string `json:"created_at"`
	}

	s.mu.Lock()
	out := make([]backupJSON, 0, len(s.backups))
	for i := len(s.backups) - 1; i >= 0; i-- {
		b := s.backups[i]
		out = append(out, backupJSON{
			Filename:  b.Filename,
			SizeBytes: b.SizeBytes,
			CreatedAt: b.CreatedAt.Format(time.DateTime),
		})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}
