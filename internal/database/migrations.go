package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

type migration struct {
	version int
	name    string
	sql     string
}

// loadMigrations reads the numbered .sql files in dir, ordered by version.
// Files are named like "001_generations.sql".
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		name := entry.Name()
		if len(name) < 4 {
			continue
		}
		version := 0
		fmt.Sscanf(name[:3], "%d", &version)
		if version == 0 {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		out = append(out, migration{version: version, name: name, sql: string(content)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// Driver names returned by ParseDatabaseURL.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ParseDatabaseURL picks the audit log backend from DATABASE_URL.
// postgres:// and postgresql:// URLs select PostgreSQL, "sqlite:<path>"
// selects SQLite. An empty URL returns an empty driver.
func ParseDatabaseURL(raw string) (driver, dsn string, err error) {
	switch {
	case raw == "":
		return "", "", nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DriverPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite:"):
		dsn = strings.TrimPrefix(strings.TrimPrefix(raw, "sqlite:"), "//")
		if dsn == "" {
			return "", "", fmt.Errorf("sqlite database URL has no path")
		}
		return DriverSQLite, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme in %q", redact(raw))
	}
}

func redact(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		return raw[:i] + "://…"
	}
	return "…"
}
