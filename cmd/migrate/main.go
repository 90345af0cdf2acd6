package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
	"github.com/moleary1107/etownz-grants-sub007/internal/rules"
	appmigrations "github.com/moleary1107/etownz-grants-sub007/migrations"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// Usage:
//
//	migrate                    apply all pending migrations
//	migrate down               roll back one migration
//	migrate force <version>    mark a version as applied
//	migrate seed <rules.json>  upsert disclosure rules from a JSON file
func main() {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if len(os.Args) >= 3 && os.Args[1] == "seed" {
		count, err := seedRules(context.Background(), databaseURL, os.Args[2], logging.New("info"))
		if err != nil {
			log.Fatalf("seed rules: %v", err)
		}
		fmt.Printf("seeded %d disclosure rules\n", count)
		return
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	m, err := newMigrator(db)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	switch {
	case len(os.Args) >= 3 && os.Args[1] == "force":
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("force version: %v", err)
		}
		fmt.Printf("forced version to %d\n", version)
	case len(os.Args) >= 2 && os.Args[1] == "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate down: %v", err)
		}
		fmt.Println("rolled back one migration")
	default:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate up: %v", err)
		}
		fmt.Println("migrations complete")
	}
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := newSource()
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
}

func newSource() (source.Driver, error) {
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("source driver: %w", err)
	}
	return srcDriver, nil
}

type ruleUpserter interface {
	Upsert(ctx context.Context, rule disclosure.Rule) (disclosure.Rule, error)
}

func seedRules(ctx context.Context, databaseURL, path string, logger *logging.Logger) (int, error) {
	static, err := rules.LoadFile(path, logger)
	if err != nil {
		return 0, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()
	return upsertAll(ctx, rules.NewPostgresStore(pool, logger), static.Rules())
}

func upsertAll(ctx context.Context, store ruleUpserter, list []disclosure.Rule) (int, error) {
	for i, rule := range list {
		if _, err := store.Upsert(ctx, rule); err != nil {
			return i, fmt.Errorf("rule %q: %w", rule.ID, err)
		}
	}
	return len(list), nil
}
