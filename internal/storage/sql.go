package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect различия SQL между встраиваемой и сетевой базой
type dialect struct {
	driver   string
	numbered bool
}

var (
	sqliteDialect   = dialect{driver: "sqlite"}
	postgresDialect = dialect{driver: "postgres", numbered: true}
)

// rebind заменяет ? на $N для драйверов с нумерованными параметрами
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS interview_sessions (
	id         TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	status     TEXT NOT NULL,
	format     TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	data       TEXT NOT NULL
)`

// SQLStore хранит сессии в SQL таблице: одна строка на сессию, состояние в JSON
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

var _ Store = (*SQLStore)(nil)

// OpenSQLite открывает файл SQLite в режиме WAL с единственным писателем
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite %s: %w", path, err)
	}

	// SQLite поддерживает одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return newSQLStore(ctx, db, sqliteDialect)
}

// OpenPostgres подключается к PostgreSQL по DSN
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия PostgreSQL: %w", err)
	}

	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка подключения к базе: %w", err)
	}

	if _, err := db.ExecContext(ctx, createSessionsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка создания схемы: %w", err)
	}

	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		return ErrInvalidSessionID
	}

	candidate := sess.Clone()
	candidate.Version = 1
	data, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сессии: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO interview_sessions (id, version, status, format, updated_at, data)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		candidate.ID, candidate.Version, string(candidate.Status), candidate.FormatName,
		candidate.UpdatedAt.UTC().Format(timeLayout), string(data))
	if err != nil {
		return fmt.Errorf("ошибка записи сессии %s: %w", sess.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка проверки записи сессии %s: %w", sess.ID, err)
	}
	if n == 0 {
		return ErrSessionExists
	}

	sess.Version = 1
	return nil
}

func (s *SQLStore) Load(ctx context.Context, id string) (*Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT data FROM interview_sessions WHERE id = ?`), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии %s: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("ошибка десериализации сессии %s: %w", id, err)
	}
	return &sess, nil
}

func (s *SQLStore) CompareAndSwap(ctx context.Context, expected int64, sess *Session) error {
	next := sess.Clone()
	next.Version = expected + 1
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сессии: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`UPDATE interview_sessions SET version = ?, status = ?, updated_at = ?, data = ?
		 WHERE id = ? AND version = ?`),
		next.Version, string(next.Status), next.UpdatedAt.UTC().Format(timeLayout), string(data),
		next.ID, expected)
	if err != nil {
		return fmt.Errorf("ошибка обновления сессии %s: %w", sess.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка проверки обновления сессии %s: %w", sess.ID, err)
	}
	if n == 0 {
		var current int64
		err := s.db.QueryRowContext(ctx, s.dialect.rebind(
			`SELECT version FROM interview_sessions WHERE id = ?`), sess.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("ошибка чтения версии сессии %s: %w", sess.ID, err)
		}
		return conflictError(sess.ID, expected, current)
	}

	sess.Version = next.Version
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"
