package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"orsi/internal/settings"
)

var ErrNotFound = errors.New("not found")

var _ settings.KV = (*Store)(nil)

func (s *Store) Get(ctx context.Context, partition, key string) (string, bool, error) {
	value, err := s.GetValue(ctx, partition, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, partition, key, value string) error {
	q := s.sql.Insert("settings_kv").
		Columns("scope", "name", "value", "updated_at").
		Values(partition, key, value, nowExpr(s.driver)).
		Suffix("ON CONFLICT(scope, name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set value query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	return nil
}

func (s *Store) GetValue(ctx context.Context, partition, key string) (string, error) {
	q := s.sql.Select("value").
		From("settings_kv").
		Where(sq.Eq{"scope": partition, "name": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build get value query: %w", err)
	}

	var value string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get value: %w", err)
	}
	return value, nil
}

func (s *Store) DeleteValue(ctx context.Context, partition, key string) error {
	q := s.sql.Delete("settings_kv").Where(sq.Eq{"scope": partition, "name": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete value query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete value: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPartitions returns every partition holding at least one key.
func (s *Store) ListPartitions(ctx context.Context) ([]string, error) {
	q := s.sql.Select("DISTINCT scope").From("settings_kv").OrderBy("scope ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list partitions query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan partition row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partition rows: %w", err)
	}
	return out, nil
}

func nowExpr(driver string) any {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
