// Package apitest runs an in-memory copy of the income backend for tests.
//
// It serves the same paths and payloads as the real API under /api, issues
// HS256 tokens, checks bcrypt password hashes and keeps all data in maps.
// Every handler scopes data to the token's user.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"ledger/internal/core"
)

const (
	// TimestampLayout matches the zone-less datetimes the backend emits.
	TimestampLayout = "2006-01-02T15:04:05.000000"

	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPasswordLen  = 6

	RoleAdmin = "admin"
	RoleUser  = "user"
)

type user struct {
	profile      core.Profile
	passwordHash []byte
}

type source struct {
	core.IncomeSource
	userID int64
}

type record struct {
	ID         int64
	UserID     int64
	SourceID   int64
	Amount     core.Money
	RecordDate core.Date
	Note       *string
	CreatedAt  time.Time
}

// RequestInfo is what the server saw of one request.
type RequestInfo struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	ContentType   string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time

	users   map[string]*user
	sources map[int64]*source
	records map[int64]*record
	backups []core.BackupFile
	nextID  int64

	requests []RequestInfo
}

type Option func(*Server)

// WithClock fixes the server's notion of now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// NewServer starts a server. Close it when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		secret:   []byte("apitest-signing-key"),
		tokenTTL: 24 * time.Hour,
		now:      time.Now,
		users:    make(map[string]*user),
		sources:  make(map[int64]*source),
		records:  make(map[int64]*record),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL is the API root, ending in /api.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.recordRequest)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/change-password", s.handleChangePassword)

			r.Route("/income/sources", func(r chi.Router) {
				r.Get("/", s.handleListSources)
				r.Post("/", s.handleCreateSource)
				r.Put("/{id}", s.handleUpdateSource)
				r.Delete("/{id}", s.handleDeleteSource)
			})

			r.Route("/income/records", func(r chi.Router) {
				r.Get("/", s.handleListRecords)
				r.Post("/", s.handleCreateRecord)
				r.Put("/{id}", s.handleUpdateRecord)
				r.Delete("/{id}", s.handleDeleteRecord)

				r.Get("/stats/yearly-trend", s.handleYearlyTrend)
				r.Get("/stats/monthly-breakdown", s.handleMonthlyBreakdown)
				r.Get("/stats/annual-totals", s.handleAnnualTotals)

				r.Get("/export/csv", s.handleExportCSV)
				r.Post("/import/csv", s.handleImportCSV)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/backup/trigger", s.handleTriggerBackup)
				r.Get("/backup/list", s.handleListBackups)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	return r
}

func (s *Server) recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, RequestInfo{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Requests returns every request received so far.
func (s *Server) Requests() []RequestInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RequestInfo(nil), s.requests...)
}

// LastRequest returns the most recent request.
func (s *Server) LastRequest() (RequestInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return RequestInfo{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// AddUser creates an account and returns its profile.
func (s *Server) AddUser(username, password, role string) core.Profile {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p := core.Profile{
		ID:        s.nextID,
		Username:  username,
		Role:      role,
		IsActive:  true,
		CreatedAt: core.Timestamp{Time: s.now().UTC()},
	}
	s.users[username] = &user{profile: p, passwordHash: hash}
	return p
}

// DisableUser marks an account inactive.
func (s *Server) DisableUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		u.profile.IsActive = false
	}
}

// RotateSecret invalidates every token issued so far.
func (s *Server) RotateSecret() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = append([]byte("rotated-"), s.secret...)
}

func (s *Server) allocID() int64 {
	s.nextID++
	return s.nextID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the backend's error envelope.
func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// validationError mimics the shape of a 422 body.
func validationError(w http.ResponseWriter, field, msg string) {
	writeDetail(w, http.StatusUnprocessableEntity, []map[string]any{
		{"loc": []string{"body", field}, "msg": msg, "type": "value_error"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, core.HealthStatus{Status: "ok"})
}
