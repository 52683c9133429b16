package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/younes-bami/hrcut-app/internal/config"
)

// SQLOpts tunes a database/sql pool.
type SQLOpts struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// OptsFrom copies pool settings out of a config section.
func OptsFrom(c config.DatabaseConfig) SQLOpts {
	return SQLOpts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	}
}

// NewMySQLConnection opens the customers store when store.driver=mysql.
// The DSN must carry parseTime=true.
func NewMySQLConnection(dsn string, opts SQLOpts) (*sqlx.DB, error) {
	return open("mysql", dsn, opts, 5*time.Second)
}

// NewClickHouseConnection opens the login audit store,
// e.g. clickhouse://default:@localhost:9000/hrcut?dial_timeout=5s
func NewClickHouseConnection(dsn string, opts SQLOpts) (*sqlx.DB, error) {
	return open("clickhouse", dsn, opts, 3*time.Second)
}

func open(driver, dsn string, opts SQLOpts, defaultPing time.Duration) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty %s DSN", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPing
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}
