// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb holds types to fake an in-memory DB.
//
// Queries return the rows installed with Run.
// Statements executed through Exec are recorded and can be inspected
// with Execs.
package fakedb // import "github.com/kayamertak/OpenRacePlot/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

var query struct {
	mu   sync.Mutex
	rows Rows
}

// Run installs rows as the result of all the queries issued by f.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) error {
	query.mu.Lock()
	defer query.mu.Unlock()
	query.rows = rows

	return f(ctx)
}

// Exec describes an executed statement.
type Exec struct {
	Query string
	Args  []driver.Value
	Tx    bool // whether the statement was executed inside a committed transaction
}

var execs struct {
	mu   sync.Mutex
	done []Exec
}

// Execs returns the statements executed so far.
func Execs() []Exec {
	execs.mu.Lock()
	defer execs.mu.Unlock()
	return append([]Exec(nil), execs.done...)
}

// ResetExecs forgets all the executed statements.
func ResetExecs() {
	execs.mu.Lock()
	defer execs.mu.Unlock()
	execs.done = nil
}

func record(ex ...Exec) {
	execs.mu.Lock()
	defer execs.mu.Unlock()
	execs.done = append(execs.done, ex...)
}

func init() {
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

// Open returns a new connection to the database.
func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct {
	tx *Tx
}

// Prepare returns a prepared statement, bound to this connection.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{conn: c, query: query}, nil
}

// Close invalidates any current prepared statements and transactions.
func (c *Conn) Close() error {
	c.tx = nil
	return nil
}

// Begin starts and returns a new transaction.
// Statements executed inside the transaction are recorded on commit.
func (c *Conn) Begin() (driver.Tx, error) {
	c.tx = &Tx{conn: c}
	return c.tx, nil
}

type Tx struct {
	conn    *Conn
	pending []Exec
}

// Commit records all the statements executed inside the transaction.
func (tx *Tx) Commit() error {
	record(tx.pending...)
	tx.conn.tx = nil
	return nil
}

// Rollback drops all the statements executed inside the transaction.
func (tx *Tx) Rollback() error {
	tx.pending = nil
	tx.conn.tx = nil
	return nil
}

type Stmt struct {
	conn  *Conn
	query string
}

// Close closes the statement.
func (stmt *Stmt) Close() error {
	return nil
}

// NumInput returns the number of placeholder parameters.
// fakedb does not know it: argument counts are not checked.
func (stmt *Stmt) NumInput() int {
	return -1
}

// Exec records a query that doesn't return rows, such
// as an INSERT or UPDATE.
func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	ex := Exec{
		Query: stmt.query,
		Args:  append([]driver.Value(nil), args...),
	}
	if tx := stmt.conn.tx; tx != nil {
		ex.Tx = true
		tx.pending = append(tx.pending, ex)
		return driver.RowsAffected(1), nil
	}
	record(ex)
	return driver.RowsAffected(1), nil
}

// Query executes a query that may return rows, such as a
// SELECT.
func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return &query.rows, nil
}

type Rows struct {
	Names  []string
	Values [][]driver.Value
}

// Columns returns the names of the columns.
func (rows *Rows) Columns() []string {
	return rows.Names
}

// Close closes the rows iterator.
func (rows *Rows) Close() error {
	return nil
}

// Next is called to populate the next row of data into
// the provided slice.
// Next returns io.EOF when there are no more rows.
func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Tx     = (*Tx)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
