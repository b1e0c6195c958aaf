// Command pqload imports one Parquet, XLSX or CSV file into a database table.
//
//	pqload [flags] <path> <table>
//
// The destination comes from -database or DATABASE_URL. Settings not given
// as flags are read from the environment (and a .env file if present).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/pqload/internal/config"
	"github.com/JonMunkholm/pqload/internal/database"
	"github.com/JonMunkholm/pqload/internal/importer"
	"github.com/JonMunkholm/pqload/internal/logging"
	"github.com/JonMunkholm/pqload/internal/source"
)

func main() {
	// A missing .env is fine; real environment variables are not overwritten.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

// pairs collects repeated -map flags.
type pairs []string

func (p *pairs) String() string { return strings.Join(*p, ",") }

func (p *pairs) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// run is main without the process globals. It returns the exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pqload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: pqload [flags] <path> <table>")
		fs.PrintDefaults()
	}

	var maps pairs
	fs.Var(&maps, "map", "column mapping `source=target` (repeatable)")
	mapFile := fs.String("map-file", "", "YAML column map file")
	dbURL := fs.String("database", "", "destination URL (default $DATABASE_URL)")
	batch := fs.Int("batch", 0, "rows per batch (default $IMPORT_BATCH_SIZE or 5000)")
	timeout := fs.Int("timeout", 0, "COPY statement timeout in seconds (default $IMPORT_COPY_TIMEOUT or 300)")
	truncate := fs.Bool("truncate", false, "empty the table before importing")
	sheet := fs.String("sheet", "", "worksheet to read from XLSX files (default first sheet)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	path, table := fs.Arg(0), fs.Arg(1)

	// Flags take precedence over the environment and go through the same
	// validation.
	overrides := map[string]string{}
	if *dbURL != "" {
		overrides["DATABASE_URL"] = *dbURL
	}
	if *batch != 0 {
		overrides["IMPORT_BATCH_SIZE"] = strconv.Itoa(*batch)
	}
	if *timeout != 0 {
		overrides["IMPORT_COPY_TIMEOUT"] = strconv.Itoa(*timeout)
	}
	if *sheet != "" {
		overrides["IMPORT_SHEET"] = *sheet
	}
	cfg, err := config.LoadWith(func(key string) string {
		if v, ok := overrides[key]; ok {
			return v
		}
		return getenv(key)
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logging.SetupTo(stderr, cfg.Logging.Level, cfg.Logging.Format)

	columnMap, err := buildColumnMap(*mapFile, maps)
	if err != nil {
		fmt.Fprintln(stderr, importer.FormatUserError(err))
		slog.Error("invalid column map", "error", err)
		return 1
	}

	dest, err := database.Open(ctx, cfg.Database.URL, database.Options{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		BulkLoad:        cfg.Database.BulkLoad,
	})
	if err != nil {
		fmt.Fprintln(stderr, importer.FormatUserError(err))
		slog.Error("failed to connect to database", "error", err)
		return 1
	}
	defer dest.Close()

	im := importer.New(dest, importer.Config{
		BatchSize:          cfg.Import.BatchSize,
		CopyTimeoutSeconds: cfg.Import.CopyTimeoutSeconds(),
	}, importer.WithSourceOptions(source.Options{Sheet: cfg.Import.Sheet}))

	res, err := im.Import(ctx, importer.Request{
		Path:      path,
		Table:     table,
		ColumnMap: columnMap,
		Truncate:  *truncate,
	})
	if err != nil {
		fmt.Fprintln(stderr, importer.FormatUserError(err))
		slog.Error("import failed", "error", err, "driver", dest.Driver())
		return 1
	}

	fmt.Fprintf(stdout, "Imported %d rows in %.2fs into table %s.\n",
		res.RowsImported, res.DurationSeconds, res.Table)
	return 0
}

// buildColumnMap layers -map pairs over the -map-file entries. Malformed
// pairs are warned about and skipped.
func buildColumnMap(file string, flags []string) (map[string]string, error) {
	var fromFile map[string]string
	if file != "" {
		m, err := config.LoadColumnMap(file)
		if err != nil {
			return nil, err
		}
		fromFile = m
	}

	fromFlags, skipped := config.ParseColumnMap(flags)
	for _, pair := range skipped {
		slog.Warn("ignoring invalid column mapping", "mapping", pair)
	}

	return config.MergeColumnMaps(fromFile, fromFlags), nil
}
