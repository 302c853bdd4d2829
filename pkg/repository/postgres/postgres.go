package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/repository/postgres/migrations"
)

const uniqueViolation = "23505"

type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time

	user     *userRepository
	task     *taskRepository
	document *documentRepository
}

var _ interfaces.Repository = &Postgres{}

type Option func(*Postgres)

// WithClock replaces the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Postgres) {
		p.now = now
	}
}

func New(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, goerr.Wrap(err, "failed to connect postgres")
	}

	p := &Postgres{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(p)
	}

	p.user = &userRepository{p: p}
	p.task = &taskRepository{p: p}
	p.document = &documentRepository{p: p}
	return p, nil
}

// Migrate brings the schema up to date
func (p *Postgres) Migrate() error {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	return migrations.Up(db)
}

// MigrationStatus reports the applied and latest schema versions
func (p *Postgres) MigrationStatus() (*migrations.Status, error) {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	return migrations.Check(db)
}

func (p *Postgres) User() interfaces.UserRepository {
	return p.user
}

func (p *Postgres) Task() interfaces.TaskRepository {
	return p.task
}

func (p *Postgres) Document() interfaces.DocumentRepository {
	return p.document
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// inTx runs fn in a transaction and commits when fn succeeds
func (p *Postgres) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return goerr.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
