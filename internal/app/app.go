// Package app wires the session, transport, router and resource clients into
// one application root. The root is what the transport reports failures to:
// a 401 logs the user out and moves navigation to the login page.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/api"
	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/notify"
	"ledger/internal/router"
	"ledger/internal/session"
	"ledger/internal/transport"
)

// DashboardYears is how many years, ending at the requested one, the
// dashboard compares.
const DashboardYears = 5

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Storage    session.Storage
	Notifier   notify.Notifier
	HTTPClient *http.Client
	Logger     *applog.Logger
}

type App struct {
	Session *session.Store
	Router  *router.Router
	API     *api.Client

	transport *transport.Client
	notifier  notify.Notifier
	logger    *applog.Logger
}

var _ transport.Events = (*App)(nil)

// New builds the application and restores any persisted session.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	storage := cfg.Storage
	if storage == nil {
		storage = session.NewMemoryStorage()
	}

	a := &App{
		notifier: cfg.Notifier,
		logger:   logger.WithComponent(applog.ComponentApp),
	}
	a.Session = session.New(ctx, storage, session.WithLogger(logger))
	a.Router = router.New(router.Routes,
		router.WithGuard(router.AuthGuard(a.Session)),
		router.WithLogger(logger))

	opts := []transport.Option{
		transport.WithTokenSource(a.Session),
		transport.WithEvents(a),
		transport.WithLogger(logger),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, transport.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, transport.WithTimeout(cfg.Timeout))
	}
	tc, err := transport.New(cfg.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	a.transport = tc
	a.API = api.New(tc, logger)

	return a, nil
}

// OnAuthExpired ends the session and sends navigation to the login page.
func (a *App) OnAuthExpired(ctx context.Context) {
	a.Session.Logout(ctx)
	if _, err := a.Router.Push(ctx, router.PathLogin); err != nil {
		applog.LogError(ctx, a.logger, "Redirect to login failed", err, applog.OpLogout, nil)
	}
}

// OnNotify forwards a notice to the configured sinks.
func (a *App) OnNotify(ctx context.Context, n notify.Notice) {
	if a.notifier != nil {
		a.notifier.Notify(ctx, n)
	}
}

// Navigate moves to target and returns where navigation ended.
func (a *App) Navigate(ctx context.Context, target string) (router.Location, error) {
	return a.Router.Push(ctx, target)
}

// Login authenticates and continues to the page that sent the user to login,
// or to the landing page.
func (a *App) Login(ctx context.Context, username, password string) (router.Location, error) {
	next := a.Router.Current().RedirectTarget()

	if err := a.Session.Login(ctx, a.API.Auth, username, password); err != nil {
		return router.Location{}, err
	}
	if next == "" {
		next = router.PathRoot
	}

	loc, err := a.Router.Push(ctx, next)
	if errors.Is(err, router.ErrInvalidTarget) {
		// a redirect parameter that is not a local path is ignored
		loc, err = a.Router.Push(ctx, router.PathRoot)
	}
	if err != nil {
		return router.Location{}, err
	}

	a.logger.InfoContext(ctx, "Logged in",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUsername, username,
		applog.FieldRoute, loc.FullPath())
	return loc, nil
}

// Logout ends the session and returns to the login page.
func (a *App) Logout(ctx context.Context) (router.Location, error) {
	a.Session.Logout(ctx)
	return a.Router.Push(ctx, router.PathLogin)
}

// Dashboard is the income overview for one month.
type Dashboard struct {
	Year       int
	Month      int
	Trend      []core.YearlyTrendItem
	Breakdown  []core.MonthlyBreakdownItem
	Annual     []core.AnnualTotalItem
	MonthTotal core.Money
}

// Dashboard loads the yearly trend, the month's breakdown and the annual
// totals concurrently. The first failure cancels the other calls.
func (a *App) Dashboard(ctx context.Context, year, month int) (*Dashboard, error) {
	if err := core.ValidateMonth(month); err != nil {
		return nil, err
	}

	d := &Dashboard{Year: year, Month: month}
	years := make([]int, 0, DashboardYears)
	for y := year - DashboardYears + 1; y <= year; y++ {
		years = append(years, y)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trend, err := a.API.Income.YearlyTrend(gctx, year)
		if err != nil {
			return fmt.Errorf("yearly trend: %w", err)
		}
		d.Trend = trend
		return nil
	})
	g.Go(func() error {
		breakdown, err := a.API.Income.MonthlyBreakdown(gctx, year, month)
		if err != nil {
			return fmt.Errorf("monthly breakdown: %w", err)
		}
		d.Breakdown = breakdown
		return nil
	})
	g.Go(func() error {
		annual, err := a.API.Income.AnnualTotals(gctx, years...)
		if err != nil {
			return fmt.Errorf("annual totals: %w", err)
		}
		d.Annual = annual
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.MonthTotal, _ = core.SumBreakdown(d.Breakdown)
	a.logger.DebugContext(ctx, "Loaded dashboard", applog.FieldYear, year, applog.FieldMonth, month)
	return d, nil
}
