// Package router resolves navigation targets against a route table and runs
// guards before every move. It holds only local state.
package router

import "strings"

// Well known paths.
const (
	PathLogin     = "/login"
	PathRoot      = "/"
	PathDashboard = "/income/dashboard"
	PathRecords   = "/income/records"
	PathSources   = "/income/sources"
)

// Route names.
const (
	NameLogin           = "Login"
	NameIncomeDashboard = "IncomeDashboard"
	NameIncomeRecords   = "IncomeRecords"
	NameIncomeSources   = "IncomeSources"
)

const (
	ModuleIncome        = "income"
	RedirectQueryParam  = "redirect"
	DefaultMaxRedirects = 8
)

// Route is one entry of the table. A route with Redirect set is never a
// destination; navigating to it continues at Redirect.
type Route struct {
	Path     string
	Name     string
	Public   bool
	Redirect string
	Title    string
	Module   string
}

// Routes is the application's route table.
var Routes = []Route{
	{Path: PathLogin, Name: NameLogin, Public: true},
	{Path: PathRoot, Redirect: PathDashboard},
	{Path: PathDashboard, Name: NameIncomeDashboard, Title: "Income overview", Module: ModuleIncome},
	{Path: PathRecords, Name: NameIncomeRecords, Title: "Income records", Module: ModuleIncome},
	{Path: PathSources, Name: NameIncomeSources, Title: "Income sources", Module: ModuleIncome},
}

// CatchAllRedirect is where unknown paths go.
const CatchAllRedirect = PathRoot

// Table looks routes up by path.
type Table struct {
	byPath map[string]Route
	order  []Route
}

func NewTable(routes []Route) *Table {
	t := &Table{byPath: make(map[string]Route, len(routes))}
	for _, r := range routes {
		p := cleanPath(r.Path)
		r.Path = p
		if _, dup := t.byPath[p]; dup {
			continue
		}
		t.byPath[p] = r
		t.order = append(t.order, r)
	}
	return t
}

// Lookup returns the route registered for path.
func (t *Table) Lookup(path string) (Route, bool) {
	r, ok := t.byPath[cleanPath(path)]
	return r, ok
}

// All returns routes in registration order.
func (t *Table) All() []Route {
	return append([]Route(nil), t.order...)
}

func cleanPath(p string) string {
	if p == "" {
		return PathRoot
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = PathRoot
		}
	}
	return p
}
