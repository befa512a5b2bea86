package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/router"
)

func incomeCommands() []command {
	return []command{
		{name: "sources", usage: "list|add|update|delete income sources", route: router.PathSources, run: runSources},
		{name: "records", usage: "list|add|update|delete income records", route: router.PathRecords, run: runRecords},
		{name: "stats", usage: "trend|breakdown|annual income statistics", route: router.PathDashboard, run: runStats},
		{name: "dashboard", usage: "monthly overview (-year, -month)", route: router.PathDashboard, run: runDashboard},
	}
}

func parseID(args []string, what string) (int64, []string, error) {
	if len(args) == 0 {
		return 0, nil, fmt.Errorf("missing %s id", what)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("invalid %s id %q", what, args[0])
	}
	return id, args[1:], nil
}

// setFlags returns the names of flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func runSources(ctx context.Context, e *env, args []string) error {
	sub, args := subcommand(args, "list")
	switch sub {
	case "list":
		return listSources(ctx, e, args)
	case "add":
		return addSource(ctx, e, args)
	case "update":
		return updateSource(ctx, e, args)
	case "delete":
		return deleteSource(ctx, e, args)
	default:
		return fmt.Errorf("unknown sources command %q", sub)
	}
}

func listSources(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "sources list")
	all := fs.Bool("all", false, "include inactive sources")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sources, err := e.app.API.Income.Sources(ctx, *all)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(e.stdout, sources)
	}

	tw := newTable(e.stdout)
	fmt.Fprintln(tw, "ID\tNAME\tICON\tACTIVE\tORDER")
	for _, s := range sources {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%d\n", s.ID, s.Name, orDash(s.Icon), s.IsActive, s.SortOrder)
	}
	return tw.Flush()
}

func addSource(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "sources add")
	name := fs.String("name", "", "source name")
	icon := fs.String("icon", "", "icon")
	order := fs.Int("order", 0, "sort order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)

	in := core.SourceCreate{Name: strings.TrimSpace(*name)}
	if set["icon"] {
		in.Icon = icon
	}
	if set["order"] {
		in.SortOrder = order
	}
	if err := in.Validate(); err != nil {
		return err
	}

	src, err := e.app.API.Income.CreateSource(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Created source %d (%s)\n", src.ID, src.Name)
	return nil
}

func updateSource(ctx context.Context, e *env, args []string) error {
	id, args, err := parseID(args, "source")
	if err != nil {
		return err
	}
	fs := newFlags(e, "sources update")
	name := fs.String("name", "", "new name")
	icon := fs.String("icon", "", "new icon")
	active := fs.Bool("active", true, "whether the source is active")
	order := fs.Int("order", 0, "new sort order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)

	var patch core.SourceUpdate
	if set["name"] {
		patch.Name = name
	}
	if set["icon"] {
		patch.Icon = icon
	}
	if set["active"] {
		patch.IsActive = active
	}
	if set["order"] {
		patch.SortOrder = order
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	src, err := e.app.API.Income.UpdateSource(ctx, id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Updated source %d (%s)\n", src.ID, src.Name)
	return nil
}

func deleteSource(ctx context.Context, e *env, args []string) error {
	id, _, err := parseID(args, "source")
	if err != nil {
		return err
	}
	if err := e.app.API.Income.DeleteSource(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Deleted source %d\n", id)
	return nil
}

func runRecords(ctx context.Context, e *env, args []string) error {
	sub, args := subcommand(args, "list")
	switch sub {
	case "list":
		return listRecords(ctx, e, args)
	case "add":
		return addRecord(ctx, e, args)
	case "update":
		return updateRecord(ctx, e, args)
	case "delete":
		return deleteRecord(ctx, e, args)
	default:
		return fmt.Errorf("unknown records command %q", sub)
	}
}

func listRecords(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "records list")
	var f core.RecordFilter
	fs.IntVar(&f.Page, "page", 0, "page number")
	fs.IntVar(&f.PageSize, "size", 0, "page size")
	fs.IntVar(&f.Year, "year", 0, "year")
	fs.IntVar(&f.Month, "month", 0, "month (1-12)")
	fs.Int64Var(&f.SourceID, "source", 0, "source id")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.Month != 0 {
		if err := core.ValidateMonth(f.Month); err != nil {
			return err
		}
	}

	page, err := e.app.API.Income.Records(ctx, f)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(e.stdout, page)
	}

	tw := newTable(e.stdout)
	fmt.Fprintln(tw, "ID\tDATE\tSOURCE\tAMOUNT\tNOTE")
	for _, r := range page.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.RecordDate, r.SourceName, r.Amount, orDash(r.Note))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Page %d, %d of %d records\n", page.Page, len(page.Items), page.Total)
	return nil
}

func addRecord(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "records add")
	sourceID := fs.Int64("source", 0, "source id")
	amount := fs.String("amount", "", "amount, e.g. 1500.00")
	date := fs.String("date", time.Now().Format(core.DateLayout), "record date YYYY-MM-DD")
	note := fs.String("note", "", "note")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := core.RecordCreate{SourceID: *sourceID}
	var err error
	if in.Amount, err = core.ParseAmount(*amount); err != nil {
		return err
	}
	if in.RecordDate, err = core.ParseDate(*date); err != nil {
		return err
	}
	if setFlags(fs)["note"] {
		in.Note = note
	}
	if err := in.Validate(); err != nil {
		return err
	}

	rec, err := e.app.API.Income.CreateRecord(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Created record %d: %s %s on %s\n", rec.ID, rec.SourceName, rec.Amount, rec.RecordDate)
	return nil
}

func updateRecord(ctx context.Context, e *env, args []string) error {
	id, args, err := parseID(args, "record")
	if err != nil {
		return err
	}
	fs := newFlags(e, "records update")
	sourceID := fs.Int64("source", 0, "new source id")
	amount := fs.String("amount", "", "new amount")
	date := fs.String("date", "", "new date YYYY-MM-DD")
	note := fs.String("note", "", "new note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)

	var patch core.RecordUpdate
	if set["source"] {
		patch.SourceID = sourceID
	}
	if set["amount"] {
		m, err := core.ParseAmount(*amount)
		if err != nil {
			return err
		}
		patch.Amount = &m
	}
	if set["date"] {
		d, err := core.ParseDate(*date)
		if err != nil {
			return err
		}
		patch.RecordDate = &d
	}
	if set["note"] {
		patch.Note = note
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	rec, err := e.app.API.Income.UpdateRecord(ctx, id, patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Updated record %d: %s %s on %s\n", rec.ID, rec.SourceName, rec.Amount, rec.RecordDate)
	return nil
}

func deleteRecord(ctx context.Context, e *env, args []string) error {
	id, _, err := parseID(args, "record")
	if err != nil {
		return err
	}
	if err := e.app.API.Income.DeleteRecord(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Deleted record %d\n", id)
	return nil
}

func runStats(ctx context.Context, e *env, args []string) error {
	sub, args := subcommand(args, "trend")
	now := time.Now()

	fs := newFlags(e, "stats "+sub)
	year := fs.Int("year", now.Year(), "year")
	month := fs.Int("month", int(now.Month()), "month (1-12)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch sub {
	case "trend":
		items, err := e.app.API.Income.YearlyTrend(ctx, *year)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(e.stdout, items)
		}
		tw := newTable(e.stdout)
		fmt.Fprintln(tw, "MONTH\tTOTAL")
		for _, it := range items {
			fmt.Fprintf(tw, "%s\t%s\n", time.Month(it.Month).String()[:3], it.Total)
		}
		return tw.Flush()

	case "breakdown":
		if err := core.ValidateMonth(*month); err != nil {
			return err
		}
		items, err := e.app.API.Income.MonthlyBreakdown(ctx, *year, *month)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(e.stdout, items)
		}
		return printBreakdown(e, items)

	case "annual":
		years, err := parseYears(fs.Args(), *year)
		if err != nil {
			return err
		}
		items, err := e.app.API.Income.AnnualTotals(ctx, years...)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(e.stdout, items)
		}
		tw := newTable(e.stdout)
		fmt.Fprintln(tw, "YEAR\tTOTAL")
		for _, it := range items {
			fmt.Fprintf(tw, "%d\t%s\n", it.Year, it.Total)
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unknown stats command %q", sub)
	}
}

// parseYears reads positional years, defaulting to def.
func parseYears(args []string, def int) ([]int, error) {
	if len(args) == 0 {
		return []int{def}, nil
	}
	years := make([]int, 0, len(args))
	for _, a := range args {
		y, err := strconv.Atoi(a)
		if err != nil || y < 1 {
			return nil, fmt.Errorf("invalid year %q", a)
		}
		years = append(years, y)
	}
	return years, nil
}

func printBreakdown(e *env, items []core.MonthlyBreakdownItem) error {
	tw := newTable(e.stdout)
	fmt.Fprintln(tw, "SOURCE\tTOTAL\tSHARE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.SourceName, it.Total, formatPercent(it.Percentage))
	}
	total, share := core.SumBreakdown(items)
	fmt.Fprintf(tw, "Total\t%s\t%s\n", total, formatPercent(share))
	return tw.Flush()
}

func runDashboard(ctx context.Context, e *env, args []string) error {
	now := time.Now()
	fs := newFlags(e, "dashboard")
	year := fs.Int("year", now.Year(), "year")
	month := fs.Int("month", int(now.Month()), "month (1-12)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := e.app.Dashboard(ctx, *year, *month)
	if err != nil {
		if errors.Is(err, core.ErrInvalidMonth) {
			return fmt.Errorf("%w: %d", err, *month)
		}
		return err
	}
	if *asJSON {
		return printJSON(e.stdout, d)
	}

	fmt.Fprintf(e.stdout, "%s %d\n\n", time.Month(d.Month), d.Year)
	if err := printBreakdown(e, d.Breakdown); err != nil {
		return err
	}

	fmt.Fprintln(e.stdout)
	tw := newTable(e.stdout)
	fmt.Fprintln(tw, "MONTH\tTOTAL")
	for _, it := range d.Trend {
		fmt.Fprintf(tw, "%s\t%s\n", time.Month(it.Month).String()[:3], it.Total)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(e.stdout)
	tw = newTable(e.stdout)
	fmt.Fprintln(tw, "YEAR\tTOTAL")
	for _, it := range d.Annual {
		fmt.Fprintf(tw, "%d\t%s\n", it.Year, it.Total)
	}
	return tw.Flush()
}
