package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/config"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// create and validate work on files only.
	switch *cmd {
	case "create":
		if *name == "" {
			fail(ctx, logg, "missing -name for create", nil)
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name, time.Now())
		if err != nil {
			fail(ctx, logg, "failed to create migration", err)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateFS(migrate.Source(*dir)); err != nil {
			fail(ctx, logg, "migration validation failed", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail(ctx, logg, "failed to load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "failed to bootstrap database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(ctx, logg, "failed to extract sql.DB", err)
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.Source(*dir), logg)
	if err != nil {
		fail(ctx, logg, "failed to build migration runner", err)
	}

	switch *cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "version":
		if *version == "" {
			fail(ctx, logg, "missing -version for version command", nil)
		}
		err = runner.MigrateTo(ctx, *version)
	case "status":
		err = printStatus(ctx, runner)
	default:
		fail(ctx, logg, "unknown -cmd value: "+*cmd, nil)
	}
	if err != nil {
		fail(ctx, logg, "migration command failed", err)
	}
}

func printStatus(ctx context.Context, runner *migrate.Runner) error {
	statuses, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
	}
	return w.Flush()
}

func fail(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
