// Command migrate applies the schema files under migrations/ to the
// database named by DATABASE_URL. Files run in lexical order, one
// transaction each, and stop at the first failure. The files themselves
// are idempotent (IF NOT EXISTS), so re-running against an initialized
// database is safe.
//
//	migrate            apply ./migrations
//	migrate --list     print the public tables and exit
//	migrate --dir d    apply another directory
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/anthology/autoposter/internal/pkg/logger"
)

func main() {
	dir := flag.String("dir", "migrations", "directory with ordered .sql files")
	list := flag.Bool("list", false, "print the public tables and exit")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping %s: %v", logger.RedactDSN(dsn), err)
	}

	if *list {
		if err := listTables(db); err != nil {
			log.Fatalf("list tables: %v", err)
		}
		return
	}

	n, err := apply(db, *dir)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("Applied %d migration file(s)", n)
}

func listTables(db *sql.DB) error {
	rows, err := db.Query(`
		SELECT tablename
		FROM pg_tables
		WHERE schemaname = 'public'
		ORDER BY tablename`)
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		fmt.Println(" ", name)
		n++
	}
	fmt.Printf("Total: %d tables\n", n)
	return rows.Err()
}

// apply runs every .sql file in dir, each in its own transaction, and
// returns how many were applied. The first failing file aborts the run:
// later files may depend on it.
func apply(db *sql.DB, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", f, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return applied, fmt.Errorf("%s: begin: %w", f, err)
		}
		if _, err := tx.Exec(string(data)); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("%s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("%s: commit: %w", f, err)
		}
		log.Printf("  %s OK", f)
		applied++
	}
	return applied, nil
}
