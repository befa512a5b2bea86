package apitest

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"ledger/internal/core"
)

// recordJSON is a record as the backend renders it.
type recordJSON struct {
	ID         int64      `json:"id"`
	SourceID   int64      `json:"source_id"`
	SourceName string     `json:"source_name"`
	Amount     core.Money `json:"amount"`
	RecordDate core.Date  `json:"record_date"`
	Note       *string    `json:"note"`
	CreatedAt  string     `json:"created_at"`
}

func (s *Server) renderRecord(rec *record) recordJSON {
	name := ""
	if src, ok := s.sources[rec.SourceID]; ok {
		name = src.Name
	}
	return recordJSON{
		ID:         rec.ID,
		SourceID:   rec.SourceID,
		SourceName: name,
		Amount:     rec.Amount,
		RecordDate: rec.RecordDate,
		Note:       rec.Note,
		CreatedAt:  rec.CreatedAt.Format(TimestampLayout),
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, key string) (int, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	return v, true, err
}

func validName(name string) bool {
	return strings.TrimSpace(name) != "" && utf8.RuneCountInString(name) <= core.MaxSourceNameLen
}

// ownedSource returns the caller's source. Callers hold mu.
func (s *Server) ownedSource(u *user, id int64) (*source, bool) {
	src, ok := s.sources[id]
	if !ok || src.userID != u.profile.ID {
		return nil, false
	}
	return src, true
}

// sourceByName finds a source by exact name. Callers hold mu.
func (s *Server) sourceByName(u *user, name string) (*source, bool) {
	for _, src := range s.sources {
		if src.userID == u.profile.ID && src.Name == name {
			return src, true
		}
	}
	return nil, false
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))

	s.mu.Lock()
	out := make([]core.IncomeSource, 0, len(s.sources))
	for _, src := range s.sources {
		if src.userID != u.profile.ID || (!includeInactive && !src.IsActive) {
			continue
		}
		out = append(out, src.IncomeSource)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var in core.SourceCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		validationError(w, "body", "invalid JSON")
		return
	}
	if !validName(in.Name) {
		validationError(w, "name", "String should have 1 to 64 characters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sourceByName(u, in.Name); exists {
		writeDetail(w, http.StatusBadRequest, "Source name already exists")
		return
	}

	src := &source{userID: u.profile.ID}
	src.ID = s.allocID()
	src.Name = in.Name
	src.Icon = in.Icon
	src.IsActive = true
	if in.SortOrder != nil {
		src.SortOrder = *in.SortOrder
	}
	src.CreatedAt = core.Timestamp{Time: s.now().UTC()}
	s.sources[src.ID] = src

	writeJSON(w, http.StatusCreated, src.IncomeSource)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Source not found")
		return
	}
	var in core.SourceUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		validationError(w, "body", "invalid JSON")
		return
	}
	if in.Name != nil && !validName(*in.Name) {
		validationError(w, "name", "String should have 1 to 64 characters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.ownedSource(u, id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Source not found")
		return
	}
	if in.Name != nil {
		src.Name = *in.Name
	}
	if in.Icon != nil {
		src.Icon = in.Icon
	}
	if in.IsActive != nil {
		src.IsActive = *in.IsActive
	}
	if in.SortOrder != nil {
		src.SortOrder = *in.SortOrder
	}
	writeJSON(w, http.StatusOK, src.IncomeSource)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Source not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownedSource(u, id); !ok {
		writeDetail(w, http.StatusNotFound, "Source not found")
		return
	}
	for _, rec := range s.records {
		if rec.SourceID == id {
			writeDetail(w, http.StatusBadRequest,
				"Source has income records and cannot be deleted. Delete the records or deactivate it instead.")
			return
		}
	}
	delete(s.sources, id)
	w.WriteHeader(http.StatusNoContent)
}

// userRecords returns the caller's records matching the filter, newest first.
// Callers hold mu.
func (s *Server) userRecords(u *user, f core.ExportFilter) []*record {
	var out []*record
	for _, rec := range s.records {
		if rec.UserID != u.profile.ID {
			continue
		}
		if f.Year > 0 && rec.RecordDate.Year() != f.Year {
			continue
		}
		if f.Month > 0 && rec.RecordDate.Month() != f.Month {
			continue
		}
		if f.SourceID > 0 && rec.SourceID != f.SourceID {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordDate.Equal(out[j].RecordDate.Time) {
			return out[i].RecordDate.After(out[j].RecordDate.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func parseExportFilter(r *http.Request) (core.ExportFilter, bool) {
	var f core.ExportFilter
	year, _, err := queryInt(r, "year")
	if err != nil {
		return f, false
	}
	month, _, err := queryInt(r, "month")
	if err != nil {
		return f, false
	}
	sourceID, _, err := queryInt(r, "source_id")
	if err != nil {
		return f, false
	}
	f.Year, f.Month, f.SourceID = year, month, int64(sourceID)
	return f, true
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	filter, ok := parseExportFilter(r)
	if !ok {
		validationError(w, "query", "invalid filter")
		return
	}

	page, set, err := queryInt(r, "page")
	if err != nil || (set && page < 1) {
		validationError(w, "page", "Input should be greater than or equal to 1")
		return
	}
	if !set {
		page = 1
	}
	size, set, err := queryInt(r, "page_size")
	if err != nil || (set && (size < 1 || size > MaxPageSize)) {
		validationError(w, "page_size", "Input should be between 1 and 100")
		return
	}
	if !set {
		size = DefaultPageSize
	}

	s.mu.Lock()
	all := s.userRecords(u, filter)
	items := make([]recordJSON, 0, size)
	for i := (page - 1) * size; i < len(all) && len(items) < size; i++ {
		items = append(items, s.renderRecord(all[i]))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(all),
		"page":      page,
		"page_size": size,
		"items":     items,
	})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var in core.RecordCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		validationError(w, "body", "invalid JSON")
		return
	}
	if !in.Amount.IsPositive() {
		validationError(w, "amount", "Input should be greater than 0")
		return
	}
	if in.RecordDate.IsZero() {
		validationError(w, "record_date", "Field required")
		return
	}
	if in.Note != nil && utf8.RuneCountInString(*in.Note) > core.MaxNoteLen {
		validationError(w, "note", "String should have at most 512 characters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownedSource(u, in.SourceID); !ok {
		writeDetail(w, http.StatusBadRequest, "Income source not found")
		return
	}
	rec := &record{
		ID:         s.allocID(),
		UserID:     u.profile.ID,
		SourceID:   in.SourceID,
		Amount:     in.Amount,
		RecordDate: in.RecordDate,
		Note:       in.Note,
		CreatedAt:  s.now().UTC(),
	}
	s.records[rec.ID] = rec
	writeJSON(w, http.StatusCreated, s.renderRecord(rec))
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Record not found")
		return
	}
	var in core.RecordUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		validationError(w, "body", "invalid JSON")
		return
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		validationError(w, "amount", "Input should be greater than 0")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.UserID != u.profile.ID {
		writeDetail(w, http.StatusNotFound, "Record not found")
		return
	}
	if in.SourceID != nil {
		if _, ok := s.ownedSource(u, *in.SourceID); !ok {
			writeDetail(w, http.StatusBadRequest, "Income source not found")
			return
		}
		rec.SourceID = *in.SourceID
	}
	if in.Amount != nil {
		rec.Amount = *in.Amount
	}
	if in.RecordDate != nil {
		rec.RecordDate = *in.RecordDate
	}
	if in.Note != nil {
		rec.Note = in.Note
	}
	writeJSON(w, http.StatusOK, s.renderRecord(rec))
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Record not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.UserID != u.profile.ID {
		writeDetail(w, http.StatusNotFound, "Record not found")
		return
	}
	delete(s.records, id)
	w.WriteHeader(http.StatusNoContent)
}
