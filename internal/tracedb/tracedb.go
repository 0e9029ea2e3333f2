// Package tracedb is a database/sql driver for examples and tests.
// It has no storage: it prints each connection and transaction event
// so that Example output shows when resources are acquired and
// released.
package tracedb

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
)

// Name is the driver name to pass to sql.Open
const Name = "tracedb"

func init() {
	sql.Register(Name, traceDriver{})
}

var (
	_ driver.Driver = traceDriver{}
	_ driver.Conn   = conn{}
	_ driver.Tx     = tx{}
)

type traceDriver struct{}

func (traceDriver) Open(dsn string) (driver.Conn, error) {
	fmt.Println("db open", dsn)
	return conn{}, nil
}

type conn struct{}

func (conn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("tracedb cannot run %q", query)
}

func (conn) Close() error {
	fmt.Println("db close")
	return nil
}

func (conn) Begin() (driver.Tx, error) {
	fmt.Println("tx begin")
	return tx{}, nil
}

type tx struct{}

func (tx) Commit() error {
	fmt.Println("tx committed")
	return nil
}

func (tx) Rollback() error {
	fmt.Println("tx rolled back")
	return nil
}
