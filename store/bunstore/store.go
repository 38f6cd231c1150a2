package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/photoshare/photoauth"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Open connects to dsn with the named driver and returns a bun handle.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, err
		}
		// One connection keeps an in-memory database alive and serializes writers.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Store is a photoauth.UserStore backed by a users table.
type Store struct {
	db  bun.IDB
	now func() time.Time
}

var _ photoauth.UserStore = (*Store)(nil)

func New(db bun.IDB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CreateSchema creates the users table when it does not exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*userModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*photoauth.Identity, error) {
	return s.findOne(ctx, "email = ?", email)
}

func (s *Store) FindByID(ctx context.Context, id string) (*photoauth.Identity, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Store) findOne(ctx context.Context, where string, arg any) (*photoauth.Identity, error) {
	var m userModel
	err := s.db.NewSelect().Model(&m).Where(where, arg).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, photoauth.ErrAccountNotFound
		}
		return nil, err
	}
	return m.identity(), nil
}

func (s *Store) Create(ctx context.Context, identity *photoauth.Identity) error {
	m := fromIdentity(identity)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return photoauth.ErrAccountExists
		}
		return err
	}
	return nil
}

// CreateAssigningRole counts and inserts inside one transaction. On Postgres
// the users table is locked in a self-conflicting mode first so concurrent
// callers serialize; SQLite transactions are already serialized.
func (s *Store) CreateAssigningRole(ctx context.Context, identity *photoauth.Identity, first photoauth.Role) error {
	m := fromIdentity(identity)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if tx.Dialect().Name() == dialect.PG {
			if _, err := tx.ExecContext(ctx, "LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE"); err != nil {
				return err
			}
		}
		exists, err := tx.NewSelect().Model((*userModel)(nil)).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			m.Role = int16(first)
		}
		_, err = tx.NewInsert().Model(m).Exec(ctx)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return photoauth.ErrAccountExists
		}
		return err
	}
	identity.Role = photoauth.Role(m.Role)
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*userModel)(nil)).Count(ctx)
}

func (s *Store) List(ctx context.Context) ([]photoauth.Identity, error) {
	var rows []userModel
	if err := s.db.NewSelect().Model(&rows).Order("created_at ASC", "email ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]photoauth.Identity, len(rows))
	for i := range rows {
		out[i] = *rows[i].identity()
	}
	return out, nil
}

func (s *Store) UpdateRefreshToken(ctx context.Context, id, token string) error {
	res, err := s.db.NewUpdate().
		Model((*userModel)(nil)).
		Set("refresh_token = ?", nullable(token)).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SwapRefreshToken is a single conditional UPDATE, so concurrent callers
// presenting the same current token see exactly one success.
func (s *Store) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	q := s.db.NewUpdate().
		Model((*userModel)(nil)).
		Set("refresh_token = ?", nullable(next)).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id)
	if current == "" {
		q = q.Where("refresh_token IS NULL")
	} else {
		q = q.Where("refresh_token = ?", current)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) UpdateConfirmed(ctx context.Context, email string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*userModel)(nil)).
		Set("confirmed = ?", true).
		Set("updated_at = ?", s.now()).
		Where("email = ?", email).
		Where("confirmed = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	exists, err := s.db.NewSelect().Model((*userModel)(nil)).Where("email = ?", email).Exists(ctx)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, photoauth.ErrAccountNotFound
	}
	return false, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, role photoauth.Role) (*photoauth.Identity, error) {
	res, err := s.db.NewUpdate().
		Model((*userModel)(nil)).
		Set("role = ?", int16(role)).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *Store) UpdateAvatar(ctx context.Context, email, avatar string) (*photoauth.Identity, error) {
	res, err := s.db.NewUpdate().
		Model((*userModel)(nil)).
		Set("avatar = ?", nullable(avatar)).
		Set("updated_at = ?", s.now()).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.FindByEmail(ctx, email)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.NewUpdate().
		Model((*userModel)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return photoauth.ErrAccountNotFound
	}
	return nil
}

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
