// internal/corpus/postgres.go
package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"registry-workers/internal/dedup"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Postgres reads the corpus from a table of (id, entity_type, data jsonb,
// created_at). Each call issues one query, so a snapshot is consistent.
// maxRecords of 0 reads every row; a positive limit fails the load when the
// entity type holds more rows than that.
type Postgres struct {
	db         Queryer
	query      string
	maxRecords int
}

func NewPostgres(db Queryer, table string, maxRecords int) (*Postgres, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid corpus table name %q", table)
	}

	query := fmt.Sprintf("SELECT id, data FROM %s WHERE entity_type = $1 ORDER BY created_at, id", table)
	if maxRecords > 0 {
		query += fmt.Sprintf(" LIMIT %d", maxRecords+1)
	}

	return &Postgres{db: db, query: query, maxRecords: maxRecords}, nil
}

// RecordsForType implements dedup.CorpusProvider.
func (p *Postgres) RecordsForType(ctx context.Context, entityType string) ([]dedup.Entry, error) {
	rows, err := p.db.QueryContext(ctx, p.query, entityType)
	if err != nil {
		return nil, fmt.Errorf("query corpus: %w", err)
	}
	defer rows.Close()

	entries := make([]dedup.Entry, 0)
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan corpus row: %w", err)
		}

		var record dedup.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		entries = append(entries, dedup.Entry{ID: id, Record: record})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corpus rows: %w", err)
	}
	if p.maxRecords > 0 && len(entries) > p.maxRecords {
		return nil, limitExceeded(entityType, p.maxRecords)
	}

	return entries, nil
}
