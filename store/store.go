// Package store persists orders in a relational database and reads back the most recent ones.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kcmvp/orderdesk/entity"
	"github.com/rs/zerolog"

	// database drivers selected by DataSource.DriverName
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the order store. It is safe for concurrent use; every operation
// runs on its own connection taken from the pool.
type Store struct {
	db          *sqlx.DB
	driver      string
	dialect     dialect
	logger      zerolog.Logger
	initialized atomic.Bool
}

// Open connects to the datasource and verifies the connection with a ping.
// An unreachable database is reported as ErrConnection.
func Open(ctx context.Context, ds DataSource, logger zerolog.Logger) (*Store, error) {
	driver, err := ds.DriverName()
	if err != nil {
		return nil, err
	}
	dsn, err := ds.DSNChecked()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnection, driver, err)
	}
	if driver == SQLite && ds.inMemory() {
		// every connection would see its own empty database
		db.SetMaxOpenConns(1)
	} else if ds.MaxOpenConns > 0 {
		db.SetMaxOpenConns(ds.MaxOpenConns)
	}
	if ds.MaxIdleConns > 0 {
		db.SetMaxIdleConns(ds.MaxIdleConns)
	}
	if ds.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(ds.ConnMaxLifetime)
	}
	s := &Store{
		db:      db,
		driver:  driver,
		dialect: dialects[driver],
		logger:  logger.With().Str("component", "store").Str("driver", driver).Logger(),
	}
	if err = s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Driver returns the name of the database driver in use.
func (s *Store) Driver() string {
	return s.driver
}

// Initialize creates the orders table when it does not exist yet. Calling it
// again is a no-op. Create and ListRecent fail until it has succeeded once.
func (s *Store) Initialize(ctx context.Context) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	start := time.Now()
	_, err = conn.ExecContext(ctx, s.dialect.createTable)
	s.trace("initialize", s.dialect.createTable, nil, start, err)
	if err != nil {
		return classify("initialize", err)
	}
	s.initialized.Store(true)
	return nil
}

// Create inserts one order and returns the id assigned by the database.
// The order's OrderID and CreatedAt are ignored.
func (s *Store) Create(ctx context.Context, order entity.Order) (int64, error) {
	if !s.initialized.Load() {
		return 0, ErrUninitialized
	}
	conn, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	query := insertOrder
	if s.dialect.returning {
		query += " RETURNING order_id"
	}
	query = conn.Rebind(query)
	args := []any{order.CustomerName, order.Email, order.ProductName, order.Quantity, order.Note}

	start := time.Now()
	var id int64
	if s.dialect.returning {
		err = conn.QueryRowxContext(ctx, query, args...).Scan(&id)
	} else {
		var res sql.Result
		if res, err = conn.ExecContext(ctx, query, args...); err == nil {
			id, err = res.LastInsertId()
		}
	}
	s.trace("create", query, args, start, err)
	if err != nil {
		return 0, classify("create", err)
	}
	return id, nil
}

// ListRecent returns at most limit orders, newest first. Orders created at the
// same instant are ordered by descending id. No rows yields an empty slice.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if !s.initialized.Load() {
		return nil, ErrUninitialized
	}
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := conn.Rebind(selectRecent)
	orders := make([]entity.Order, 0, min(limit, 64))
	start := time.Now()
	err = conn.SelectContext(ctx, &orders, query, limit)
	s.trace("list_recent", query, []any{limit}, start, err)
	if err != nil {
		return nil, classify("list recent", err)
	}
	return orders, nil
}

// Ping checks that the database can be reached.
func (s *Store) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.db.PingContext(ctx)
	s.trace("ping", "", nil, start, err)
	if err != nil {
		return fmt.Errorf("%w: ping: %w", ErrConnection, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	start := time.Now()
	err := s.db.Close()
	s.trace("close", "", nil, start, err)
	return err
}

func (s *Store) conn(ctx context.Context) (*sqlx.Conn, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", ErrConnection, err)
	}
	return conn, nil
}

// trace logs a statement at debug level.
func (s *Store) trace(op, query string, args []any, start time.Time, err error) {
	e := s.logger.Debug()
	if !e.Enabled() {
		return
	}
	if query != "" {
		e = e.Str("sql", query).Interface("args", args)
	}
	e.Str("op", op).Dur("dur", time.Since(start)).Err(err).Msg("sql")
}
