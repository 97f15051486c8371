// Command importer runs one spreadsheet through the import pipeline and
// prints the run as JSON on stdout. Logs go to stderr.
//
//	importer -file sales.xlsx
//	importer -file sales.csv -dry-run
//	importer -template blank.xlsx
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/salesimport/internal/config"
	"github.com/JonMunkholm/salesimport/internal/core"
	"github.com/JonMunkholm/salesimport/internal/importer"
	"github.com/JonMunkholm/salesimport/internal/logging"
	"github.com/JonMunkholm/salesimport/internal/sheet"
	"github.com/JonMunkholm/salesimport/internal/store"
)

var errUsage = errors.New("usage")

func main() {
	code, err := run(os.Args[1:])
	if err != nil && !errors.Is(err, errUsage) {
		slog.Error("import failed", "error", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	var (
		file     = fs.String("file", "", "spreadsheet to import (.xlsx or .csv)")
		dsn      = fs.String("dsn", "", "PostgreSQL URL (overrides DATABASE_URL)")
		migrate  = fs.Bool("migrate", false, "apply pending migrations before importing")
		dryRun   = fs.Bool("dry-run", false, "import into an in-memory store; nothing is saved")
		template = fs.String("template", "", "write a blank import workbook to this path and exit")
	)
	if err := fs.Parse(args); err != nil {
		return 2, errUsage
	}

	if *template != "" {
		return writeTemplate(*template)
	}
	if *file == "" {
		fs.Usage()
		return 2, errUsage
	}

	_ = godotenv.Overload()
	if *dsn != "" {
		os.Setenv("DATABASE_URL", *dsn)
	}
	if *dryRun {
		os.Setenv("IMPORT_STORE", config.StoreMemory)
	}

	cfg, err := config.Load()
	if err != nil {
		return 1, err
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := store.Open(ctx, cfg, *migrate)
	if err != nil {
		return 1, err
	}
	defer stores.Close()

	f, err := os.Open(*file)
	if err != nil {
		return 1, err
	}
	defer f.Close()

	service := core.NewService(stores.Backend, stores.History, nil, core.Options{
		MaxFileSize:    cfg.Import.MaxFileSize,
		Timeout:        cfg.Import.Timeout,
		DefaultTaxRate: &cfg.Import.DefaultTaxRate,
	})
	result, err := service.Import(ctx, filepath.Base(*file), f)
	if err != nil {
		return 1, err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return 1, fmt.Errorf("write result: %w", err)
	}

	if result.Result.HasSystemError() {
		return 1, nil
	}
	return 0, nil
}

func writeTemplate(path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 1, err
	}
	if err := sheet.WriteTemplate(f, importer.Template()); err != nil {
		f.Close()
		return 1, err
	}
	if err := f.Close(); err != nil {
		return 1, err
	}
	return 0, nil
}
