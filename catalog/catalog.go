// Package catalog stores extracted digest classes in SQLite so editors can
// discover and autocomplete device classes without re-reading digest files.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/verseblueprint/digest"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/logger"
)

// DefaultSearchLimit caps Search when the caller passes no limit
const DefaultSearchLimit = 50

// Entry is a class summary returned by Search.
type Entry struct {
	Name          string `json:"name"`
	Source        string `json:"source"`
	ModulePath    string `json:"module_path"`
	Description   string `json:"description"`
	IsPublic      bool   `json:"is_public"`
	IsNative      bool   `json:"is_native"`
	PropertyCount int    `json:"property_count"`
	MethodCount   int    `json:"method_count"`
}

// Source is an imported digest file.
type Source struct {
	Path       string    `json:"path"`
	ModulePath    string    `json:"module_path"`
	ImportedAt    time.Time `json:"imported_at"`
	SchemaVersion int       `json:"schema_version"`
	Classes       int       `json:"classes"`
}

// Catalog queries and updates the class catalog.
type Catalog struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

// New wraps an open, migrated database.
func New(db *sql.DB, log *zap.SugaredLogger) *Catalog {
	return &Catalog{
		db:     db,
		logger: logger.OrNop(log).Named("catalog"),
		now:    time.Now,
	}
}

// Import replaces every class recorded for source with the classes of d.
// The replacement is atomic. When d names a class twice the first
// definition is kept, and the returned count is the number of classes stored.
func (c *Catalog) Import(ctx context.Context, source string, d *digest.Digest) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin import")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sources (path, module_path, imported_at, schema_version) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET module_path = excluded.module_path,
		   imported_at = excluded.imported_at, schema_version = excluded.schema_version`,
		source, d.ModulePath, c.now().Unix(), SchemaVersion); err != nil {
		tx.Rollback()
		return 0, errors.Wrapf(err, "record source %s", source)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM classes WHERE source = ?", source); err != nil {
		tx.Rollback()
		return 0, errors.Wrapf(err, "clear classes of %s", source)
	}

	stored := 0
	for _, class := range d.Classes {
		body, err := json.Marshal(class)
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "encode class %s", class.Name)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO classes
			 (source, name, description, is_public, is_native, property_count, method_count, body)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			source, class.Name, class.Description, class.IsPublic, class.IsNative,
			len(class.Properties), len(class.Methods), string(body))
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "insert class %s", class.Name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "insert class %s", class.Name)
		}
		if n == 0 {
			c.logger.Warnw("Duplicate class in digest, keeping first definition",
				logger.FieldFile, source,
				logger.FieldClass, class.Name)
			continue
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit import")
	}

	c.logger.Infow("Imported digest",
		logger.FieldFile, source,
		logger.FieldModule, d.ModulePath,
		logger.FieldClasses, stored)
	return stored, nil
}

// Search lists classes whose name starts with prefix, case-insensitively,
// ordered by name. limit <= 0 means DefaultSearchLimit.
func (c *Catalog) Search(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT c.name, c.source, s.module_path, c.description, c.is_public, c.is_native,
		        c.property_count, c.method_count
		 FROM classes c JOIN sources s ON s.path = c.source
		 WHERE c.name LIKE ? ESCAPE '\'
		 ORDER BY c.name, c.source
		 LIMIT ?`,
		escapeLike(prefix)+"%", limit)
	if err != nil {
		return nil, errors.Wrap(err, "search classes")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Source, &e.ModulePath, &e.Description,
			&e.IsPublic, &e.IsNative, &e.PropertyCount, &e.MethodCount); err != nil {
			return nil, errors.Wrap(err, "scan class")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "search classes")
	}
	return entries, nil
}

// Class returns the full class model by exact name. When several digests
// define the name, the first source by path wins.
func (c *Catalog) Class(ctx context.Context, name string) (*digest.Class, error) {
	var body string
	err := c.db.QueryRowContext(ctx,
		"SELECT body FROM classes WHERE name = ? ORDER BY source LIMIT 1", name).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("class %s", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load class %s", name)
	}

	var class digest.Class
	if err := json.Unmarshal([]byte(body), &class); err != nil {
		return nil, errors.Wrapf(err, "decode class %s", name)
	}
	return &class, nil
}

// Sources lists imported digests with their class counts.
func (c *Catalog) Sources(ctx context.Context) ([]Source, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT s.path, s.module_path, s.imported_at, s.schema_version, COUNT(c.name)
		 FROM sources s LEFT JOIN classes c ON c.source = s.path
		 GROUP BY s.path, s.module_path, s.imported_at, s.schema_version
		 ORDER BY s.path`)
	if err != nil {
		return nil, errors.Wrap(err, "list sources")
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		var s Source
		var importedAt int64
		if err := rows.Scan(&s.Path, &s.ModulePath, &importedAt, &s.SchemaVersion, &s.Classes); err != nil {
			return nil, errors.Wrap(err, "scan source")
		}
		s.ImportedAt = time.Unix(importedAt, 0).UTC()
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list sources")
	}
	return sources, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
