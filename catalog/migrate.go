package catalog

import (
	"context"
	"database/sql"
	"embed"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SchemaVersion is the catalog schema this build writes. Every source row
// records it so a catalog filled by an older build can be told apart.
const SchemaVersion = 2

type migration struct {
	version int
	file    string
}

// pendingMigrations lists the embedded migrations in version order.
// File names are NNN_description.sql with unique versions.
func pendingMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	var list []migration
	seen := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil {
			return nil, errors.Newf("migration %s has no numeric version prefix", name)
		}
		if other, dup := seen[version]; dup {
			return nil, errors.Newf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name
		list = append(list, migration{version: version, file: name})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].version < list[j].version })
	return list, nil
}

// Migrate brings db up to SchemaVersion. Each migration runs in its own
// transaction together with its schema_migrations row.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	log = logger.OrNop(log)
	ctx := context.Background()

	list, err := pendingMigrations()
	if err != nil {
		return err
	}

	current, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range list {
		if m.version <= current {
			continue
		}

		body, err := migrationFS.ReadFile(path.Join("migrations", m.file))
		if err != nil {
			return errors.Wrapf(err, "read %s", m.file)
		}

		log.Infow("Applying catalog migration", logger.FieldFile, m.file, "version", m.version)
		if err := apply(ctx, db, m, string(body)); err != nil {
			return err
		}
		applied++
	}

	log.Debugw("Catalog schema ready", "version", SchemaVersion, "applied", applied)
	return nil
}

// appliedVersion is the highest recorded migration, or -1 on a fresh database.
func appliedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var exists int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'").Scan(&exists); err != nil {
		return 0, errors.Wrap(err, "inspect schema")
	}
	if exists == 0 {
		return -1, nil
	}

	var version sql.NullInt64
	if err := db.QueryRowContext(ctx,
		"SELECT MAX(CAST(version AS INTEGER)) FROM schema_migrations").Scan(&version); err != nil {
		return 0, errors.Wrap(err, "read schema version")
	}
	if !version.Valid {
		return -1, nil
	}
	return int(version.Int64), nil
}

func apply(ctx context.Context, db *sql.DB, m migration, body string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "begin %s", m.file)
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "execute %s", m.file)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version) VALUES (?)", strconv.Itoa(m.version)); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "record %s", m.file)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.file)
}
