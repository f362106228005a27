package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

// Store is the PostgreSQL Repository backed by gorm.
type Store struct {
	orm *gorm.DB
}

var _ Repository = (*Store)(nil)

// NewStore returns a Store over an open gorm handle.
func NewStore(orm *gorm.DB) *Store {
	return &Store{orm: orm}
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.orm.WithContext(ctx)
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.orm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

// affected turns a zero-row write into ErrNotFound.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
