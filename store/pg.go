package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PG implements KV against a Postgres table with a single text primary key,
// one row per record. Put is an upsert, so a write is one atomic replace of
// the item.
type PG struct {
	DB    *sql.DB
	Table string
}

// NewPG validates the table name (it is interpolated into SQL) and returns
// the KV.
func NewPG(db *sql.DB, table string) (*PG, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PG{DB: db, Table: table}, nil
}

func (p *PG) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE key=$1`, p.Table), key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (p *PG) Put(ctx context.Context, key, value string) error {
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(key, value, updated_at) VALUES($1,$2,NOW())
			ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, p.Table),
		key, value)
	return err
}

func (p *PG) Delete(ctx context.Context, key string) error {
	_, err := p.DB.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key=$1`, p.Table), key)
	return err
}
