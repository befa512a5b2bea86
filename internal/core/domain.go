package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DateLayout = "2006-01-02"

	MaxSourceNameLen = 64
	MaxNoteLen       = 512
)

type (
	// Date is a calendar date carried as YYYY-MM-DD on the wire.
	Date struct {
		time.Time
	}

	// Timestamp is a server-side datetime. The backend emits ISO 8601 without
	// a zone for naive columns, so parsing accepts both forms.
	Timestamp struct {
		time.Time
	}

	// Profile is the logged in user as returned by /auth/login and /auth/me.
	Profile struct {
		ID        int64     `json:"id"`
		Username  string    `json:"username"`
		Email     *string   `json:"email"`
		Role      string    `json:"role"`
		IsActive  bool      `json:"is_active"`
		CreatedAt Timestamp `json:"created_at"`
	}

	LoginResult struct {
		AccessToken string  `json:"access_token"`
		TokenType   string  `json:"token_type"`
		User        Profile `json:"user"`
	}

	IncomeSource struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Icon      *string   `json:"icon"`
		IsActive  bool      `json:"is_active"`
		SortOrder int       `json:"sort_order"`
		CreatedAt Timestamp `json:"created_at"`
	}

	SourceCreate struct {
		Name      string  `json:"name"`
		Icon      *string `json:"icon,omitempty"`
		SortOrder *int    `json:"sort_order,omitempty"`
	}

	// SourceUpdate is a partial update; nil fields are not sent.
	SourceUpdate struct {
		Name      *string `json:"name,omitempty"`
		Icon      *string `json:"icon,omitempty"`
		IsActive  *bool   `json:"is_active,omitempty"`
		SortOrder *int    `json:"sort_order,omitempty"`
	}

	IncomeRecord struct {
		ID         int64     `json:"id"`
		SourceID   int64     `json:"source_id"`
		SourceName string    `json:"source_name"`
		Amount     Money     `json:"amount"`
		RecordDate Date      `json:"record_date"`
		Note       *string   `json:"note"`
		CreatedAt  Timestamp `json:"created_at"`
	}

	RecordCreate struct {
		SourceID   int64   `json:"source_id"`
		Amount     Money   `json:"amount"`
		RecordDate Date    `json:"record_date"`
		Note       *string `json:"note,omitempty"`
	}

	// RecordUpdate is a partial update; nil fields are not sent.
	RecordUpdate struct {
		SourceID   *int64  `json:"source_id,omitempty"`
		Amount     *Money  `json:"amount,omitempty"`
		RecordDate *Date   `json:"record_date,omitempty"`
		Note       *string `json:"note,omitempty"`
	}

	// RecordPage is one page window over the server-side filtered collection.
	RecordPage struct {
		Total    int            `json:"total"`
		Page     int            `json:"page"`
		PageSize int            `json:"page_size"`
		Items    []IncomeRecord `json:"items"`
	}

	// ImportResult is the partial-success report of a CSV import.
	ImportResult struct {
		Imported int      `json:"imported"`
		Skipped  int      `json:"skipped"`
		Errors   []string `json:"errors"`
	}

	BackupFile struct {
		Filename  string    `json:"filename"`
		SizeBytes int64     `json:"size_bytes"`
		CreatedAt Timestamp `json:"created_at"`
	}

	BackupTriggerResult struct {
		Message string `json:"message"`
	}

	HealthStatus struct {
		Status string `json:"status"`
	}
)

var (
	ErrInvalidMonth   = errors.New("invalid month")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrEmptyName      = errors.New("empty name")
	ErrNameTooLong    = fmt.Errorf("name too long (max %d characters)", MaxSourceNameLen)
	ErrNoteTooLong    = fmt.Errorf("note too long (max %d characters)", MaxNoteLen)
	ErrMissingSource  = errors.New("missing source")
	ErrEmptyUpdate    = errors.New("nothing to update")
	ErrInvalidDateFmt = errors.New("invalid date, expected YYYY-MM-DD")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDateFmt
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	DateLayout,
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (s SourceCreate) Validate() error {
	return validateName(s.Name)
}

func (s SourceUpdate) Validate() error {
	if s.Name == nil && s.Icon == nil && s.IsActive == nil && s.SortOrder == nil {
		return ErrEmptyUpdate
	}
	if s.Name != nil {
		return validateName(*s.Name)
	}
	return nil
}

func (r RecordCreate) Validate() error {
	if r.SourceID <= 0 {
		return ErrMissingSource
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := r.RecordDate.Validate(); err != nil {
		return err
	}
	return validateNote(r.Note)
}

func (r RecordUpdate) Validate() error {
	if r.SourceID == nil && r.Amount == nil && r.RecordDate == nil && r.Note == nil {
		return ErrEmptyUpdate
	}
	if r.SourceID != nil && *r.SourceID <= 0 {
		return ErrMissingSource
	}
	if r.Amount != nil {
		if err := r.Amount.Validate(); err != nil {
			return err
		}
	}
	return validateNote(r.Note)
}

// ValidateMonth checks a 1-12 month number.
func ValidateMonth(month int) error {
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxSourceNameLen {
		return ErrNameTooLong
	}
	return nil
}

func validateNote(note *string) error {
	if note != nil && utf8.RuneCountInString(*note) > MaxNoteLen {
		return ErrNoteTooLong
	}
	return nil
}
