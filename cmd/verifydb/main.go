// Command verifydb opens the configured database, runs migrations, and prints
// what it finds: the tables and how many users and tasks they hold.
//
//	$ DB_PATH=data/taskflow.db go run ./cmd/verifydb
//	database: data/taskflow.db
//	tables:   sessions, tasks, users
//	users:    3
//	tasks:    12
//
// It reads DB_PATH the same way the server does (.env, then environment) but
// doesn't need SESSION_SECRET.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sakif/taskflow/internal/config"
	sqliteRepo "github.com/sakif/taskflow/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "", "database path (default: DB_PATH or "+config.DefaultDBPath+")")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	path := *dbPath
	if path == "" {
		path = resolveDBPath()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, os.Stdout, path); err != nil {
		logger.Error("verification failed",
			slog.String("database", path),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
}

// resolveDBPath mirrors config.Load for the one variable this tool needs.
func resolveDBPath() string {
	if v := os.Getenv("DB_PATH"); v != "" {
		return v
	}
	if vals, err := godotenv.Read(); err == nil && vals["DB_PATH"] != "" {
		return vals["DB_PATH"]
	}
	return config.DefaultDBPath
}

// run opens path and writes the report to out.
func run(ctx context.Context, out io.Writer, path string) error {
	db, err := sqliteRepo.New(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tables, err := db.TableNames(ctx)
	if err != nil {
		return err
	}
	users, err := db.Users().Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	tasks, err := db.Tasks().Count(ctx)
	if err != nil {
		return fmt.Errorf("counting tasks: %w", err)
	}

	fmt.Fprintf(out, "database: %s\n", path)
	fmt.Fprintf(out, "tables:   %s\n", strings.Join(tables, ", "))
	fmt.Fprintf(out, "users:    %d\n", users)
	fmt.Fprintf(out, "tasks:    %d\n", tasks)
	return nil
}
