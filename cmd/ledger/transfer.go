package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/router"
	"ledger/internal/services"
	"ledger/internal/sheets/memory"
)

func transferCommands() []command {
	return []command{
		{name: "export", usage: "url|csv|sheets export records (-year, -month, -source)", route: router.PathRecords, run: runExport},
		{name: "import", usage: "import records from a CSV file", route: router.PathRecords, run: runImport},
		{name: "backup", usage: "trigger|list server backups (admin)", route: router.PathRoot, run: runBackup},
		{name: "health", usage: "check that the API is up", run: runHealth},
	}
}

func runExport(ctx context.Context, e *env, args []string) error {
	sub, args := subcommand(args, "url")

	fs := newFlags(e, "export "+sub)
	var f core.ExportFilter
	fs.IntVar(&f.Year, "year", 0, "year")
	fs.IntVar(&f.Month, "month", 0, "month (1-12)")
	fs.Int64Var(&f.SourceID, "source", 0, "source id")
	out := fs.String("o", "", "csv: output file (default stdout)")
	dryRun := fs.Bool("dry-run", false, "sheets: print rows instead of writing to Google Sheets")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if f.Month != 0 {
		if err := core.ValidateMonth(f.Month); err != nil {
			return err
		}
	}

	switch sub {
	case "url":
		fmt.Fprintln(e.stdout, e.app.API.Income.ExportURL(f))
		return nil
	case "csv":
		return exportCSV(ctx, e, f, *out)
	case "sheets":
		return exportSheets(ctx, e, f, *dryRun)
	default:
		return fmt.Errorf("unknown export command %q", sub)
	}
}

func exportCSV(ctx context.Context, e *env, f core.ExportFilter, path string) (err error) {
	if path == "" {
		return e.app.API.Income.ExportCSV(ctx, f, e.stdout)
	}

	file, err := os.CreateTemp(filepath.Dir(path), ".ledger-export-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(file.Name())
		}
	}()

	if err = e.app.API.Income.ExportCSV(ctx, f, file); err != nil {
		return err
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err = os.Rename(file.Name(), path); err != nil {
		return fmt.Errorf("move output: %w", err)
	}
	fmt.Fprintf(e.stderr, "Wrote %s\n", path)
	return nil
}

func exportSheets(ctx context.Context, e *env, f core.ExportFilter, dryRun bool) error {
	writer, err := cli.InitSheetsWriter(ctx, e.rt.Config, e.rt.Logger, dryRun)
	if err != nil {
		return err
	}

	svc := services.NewExportService(e.app.API.Income, writer, e.rt.Config.ExportPageSize, e.rt.Logger)
	res, err := svc.Export(ctx, f)
	if err != nil {
		return err
	}

	if mem, ok := writer.(*memory.Store); ok {
		tw := newTable(e.stdout)
		for _, row := range mem.Rows() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row[0], row[1], row[2], row[3])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintf(e.stdout, "Exported %d records (%d pages)", res.Rows, res.Pages)
	if res.RowRef != "" {
		fmt.Fprintf(e.stdout, " to %s", res.RowRef)
	}
	fmt.Fprintln(e.stdout)
	return nil
}

func runImport(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: ledger import <file.csv>")
	}

	var (
		r    io.Reader
		name string
	)
	if args[0] == "-" {
		r, name = e.stdin, "stdin.csv"
	} else {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer file.Close()
		r, name = file, filepath.Base(args[0])
	}

	res, err := e.app.API.Income.ImportCSV(ctx, name, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Imported %d records, skipped %d\n", res.Imported, res.Skipped)
	for _, msg := range res.Errors {
		fmt.Fprintf(e.stdout, "  %s\n", msg)
	}
	return nil
}

func runBackup(ctx context.Context, e *env, args []string) error {
	sub, _ := subcommand(args, "list")
	switch sub {
	case "trigger":
		res, err := e.app.API.Backup.Trigger(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, res.Message)
		return nil
	case "list":
		files, err := e.app.API.Backup.List(ctx)
		if err != nil {
			return err
		}
		tw := newTable(e.stdout)
		fmt.Fprintln(tw, "FILE\tSIZE\tCREATED")
		for _, f := range files {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Filename, humanize.IBytes(uint64(f.SizeBytes)), formatTime(f.CreatedAt.Time))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown backup command %q", sub)
	}
}

func runHealth(ctx context.Context, e *env, _ []string) error {
	h, err := e.app.API.System.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "API %s: %s\n", e.rt.Config.APIBaseURL, h.Status)
	return nil
}
