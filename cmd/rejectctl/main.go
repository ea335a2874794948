// Command rejectctl runs administrative tasks against the reject list
// database: applying migrations, managing users and importing CSV files.
//
// Usage:
//
//	rejectctl migrate
//	rejectctl adduser -username NAME -password PW [-superuser] [-staff] [-groups "Team Lead,Other"]
//	rejectctl import -file clients.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/JonMunkholm/rejectlist/internal/auth"
	"github.com/JonMunkholm/rejectlist/internal/config"
	"github.com/JonMunkholm/rejectlist/internal/core"
	"github.com/JonMunkholm/rejectlist/internal/logging"
	"github.com/JonMunkholm/rejectlist/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

var errUsage = errors.New("usage: rejectctl <migrate|adduser|import> [flags]")

func main() {
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		if msg := core.FormatUserError(err); msg != "" && core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, msg)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	if !strings.EqualFold(cfg.Database.Backend, config.BackendPostgres) {
		return fmt.Errorf("rejectctl needs STORE_BACKEND=postgres, got %q", cfg.Database.Backend)
	}

	pool, err := storage.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	switch args[0] {
	case "migrate":
		if err := storage.MigratePool(ctx, pool); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
		return nil
	case "adduser":
		return addUser(ctx, pool, args[1:], out)
	case "import":
		return importCSV(ctx, cfg, pool, args[1:], out)
	default:
		return errUsage
	}
}

func addUser(ctx context.Context, pool *pgxpool.Pool, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	username := fs.String("username", "", "login name")
	password := fs.String("password", "", "password")
	superuser := fs.Bool("superuser", false, "grant superuser")
	staff := fs.Bool("staff", false, "grant staff")
	groups := fs.String("groups", "", "comma-separated group names")
	if err := fs.Parse(args); err != nil {
		return err
	}

	spec := auth.UserSpec{
		Username:    *username,
		Password:    *password,
		IsSuperuser: *superuser,
		IsStaff:     *staff,
		Groups:      splitList(*groups),
	}

	db := storage.OpenDB(pool)
	defer db.Close()
	dir := storage.NewUserDirectory(db)
	existed, err := dir.UserExists(ctx, spec.Username)
	if err != nil {
		return err
	}
	if err := dir.PutUser(ctx, spec); err != nil {
		return err
	}
	action := "created"
	if existed {
		action = "updated"
	}

	role := auth.ResolveRole(auth.Identity{
		Username:    spec.Username,
		IsSuperuser: spec.IsSuperuser,
		IsStaff:     spec.IsStaff,
		Groups:      spec.Groups,
	})
	fmt.Fprintf(out, "user %q %s (%s)\n", spec.Username, action, role)
	return nil
}

func importCSV(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "CSV file to import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("import: -file is required")
	}

	loc, err := cfg.Records.Location()
	if err != nil {
		return err
	}

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	items, err := core.ReadCSV(f, loc)
	if err != nil {
		return err
	}

	service := core.NewService(storage.NewPostgresStore(pool, loc, nil), core.ServiceConfig{
		Location:             loc,
		MaxConcurrentImports: 1,
		ImportWait:           cfg.Ingest.MaxWaitTime,
		MaxBatchSize:         len(items) + 1,
	})
	res, err := service.CreateBatch(ctx, items)
	if err != nil {
		return err
	}

	slog.Info("csv import finished", "file", *path, "created", res.CreatedCount, "skipped", res.SkippedCount)
	fmt.Fprintf(out, "created %d, skipped %d\n", res.CreatedCount, res.SkippedCount)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
