package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// traceConnector opens sqlite3 connections that log every statement and its
// arguments at debug level.
type traceConnector struct {
	dsn    string
	logger *slog.Logger
	drv    sqlite3.SQLiteDriver
}

func openTraced(dsn string, logger *slog.Logger) *sql.DB {
	return sql.OpenDB(&traceConnector{dsn: dsn, logger: logger})
}

func (c *traceConnector) Connect(context.Context) (driver.Conn, error) {
	conn, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &traceConn{Conn: conn, logger: c.logger}, nil
}

func (c *traceConnector) Driver() driver.Driver { return &c.drv }

type traceConn struct {
	driver.Conn
	logger *slog.Logger
}

func (c *traceConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ec, ok := c.Conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	c.trace(ctx, "exec", query, args)
	return ec.ExecContext(ctx, query, args)
}

func (c *traceConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	qc, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	c.trace(ctx, "query", query, args)
	return qc.QueryContext(ctx, query, args)
}

func (c *traceConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if bt, ok := c.Conn.(driver.ConnBeginTx); ok {
		return bt.BeginTx(ctx, opts)
	}
	//nolint:staticcheck // SA1019: fallback for connections without BeginTx
	return c.Conn.Begin()
}

func (c *traceConn) trace(ctx context.Context, op, query string, args []driver.NamedValue) {
	c.logger.DebugContext(ctx, "sql",
		"op", op,
		"sql", strings.Join(strings.Fields(query), " "),
		"args", formatArgs(args),
	)
}

func formatArgs(args []driver.NamedValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		v := "NULL"
		switch t := a.Value.(type) {
		case nil:
		case []byte:
			v = string(t)
		default:
			v = fmt.Sprint(t)
		}
		if a.Name != "" {
			v = a.Name + "=" + v
		}
		out[i] = v
	}
	return out
}
