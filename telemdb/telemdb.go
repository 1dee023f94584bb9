// Copyright 2024 The OpenRacePlot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package telemdb stores decoded telemetry records in a SQL database.
//
// Records are stored in a single table, one row per record and one column
// per channel. Rows are grouped by session: the name under which a log
// was imported.
package telemdb // import "github.com/kayamertak/OpenRacePlot/telemdb"

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kayamertak/OpenRacePlot/motec"
)

const (
	// DefaultTable is the name of the records table.
	DefaultTable = "records"

	timeout = 5 * time.Second
)

var (
	drvName = "mysql"
)

// DB exposes convenience methods to store and retrieve telemetry records.
type DB struct {
	db    *sql.DB
	name  string // name of the database
	table string
}

// DSN returns the data source name of the MySQL database dbname.
func DSN(usr, pwd, host, dbname string) string {
	cfg := mysql.NewConfig()
	cfg.User = usr
	cfg.Passwd = pwd
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = dbname
	return cfg.FormatDSN()
}

// Open opens a connection to the database described by dsn.
func Open(dsn string) (*DB, error) {
	dbname := dsn
	if drvName == "mysql" {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("telemdb: invalid DSN: %w", err)
		}
		dbname = cfg.DBName
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("telemdb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db, dbname), nil
}

// New returns a DB storing records in the already opened database dbname.
func New(db *sql.DB, dbname string) *DB {
	return &DB{db: db, name: dbname, table: DefaultTable}
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("telemdb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Name returns the name of the database.
func (db *DB) Name() string { return db.name }

// Table returns the name of the records table.
func (db *DB) Table() string { return db.table }

// SetTable sets the name of the records table.
// Only ASCII letters, digits and underscores are accepted.
func (db *DB) SetTable(name string) error {
	if !validIdent(name) {
		return fmt.Errorf("telemdb: invalid table name %q", name)
	}
	db.table = name
	return nil
}

func validIdent(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// CreateTable creates the records table, if it does not exist already.
func (db *DB) CreateTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := db.db.ExecContext(ctx, createStmt(db.table))
	if err != nil {
		return fmt.Errorf("telemdb: could not create table %q: %w", db.table, err)
	}
	return nil
}

func createStmt(table string) string {
	o := new(strings.Builder)
	fmt.Fprintf(o, "CREATE TABLE IF NOT EXISTS `%s` (\n", table)
	o.WriteString("\tsession VARCHAR(64) NOT NULL,\n")
	o.WriteString("\tframe BIGINT NOT NULL,\n")
	for _, name := range motec.Names() {
		fmt.Fprintf(o, "\t%s DOUBLE,\n", name)
	}
	o.WriteString("\tPRIMARY KEY (session, frame)\n)")
	return o.String()
}

func insertStmt(table string) string {
	names := motec.Names()
	return fmt.Sprintf(
		"INSERT INTO `%s` (session, frame, %s) VALUES (?, ?%s)",
		table,
		strings.Join(names, ", "),
		strings.Repeat(", ?", len(names)),
	)
}

// Session describes the records stored under a session name.
type Session struct {
	Name    string
	Records int64
}

// Sessions returns the stored sessions, ordered by name.
func (db *DB) Sessions(ctx context.Context) ([]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var sessions []Session
	rows, err := db.db.QueryContext(
		ctx,
		fmt.Sprintf("SELECT session, COUNT(*) FROM `%s` GROUP BY session ORDER BY session", db.table),
	)
	if err != nil {
		return sessions, fmt.Errorf("telemdb: could not query sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s Session
		err = rows.Scan(&s.Name, &s.Records)
		if err != nil {
			return sessions, fmt.Errorf("telemdb: could not scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return sessions, fmt.Errorf("telemdb: could not scan db for sessions: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return sessions, fmt.Errorf("telemdb: context error while retrieving sessions: %w", err)
	}

	return sessions, nil
}

// Records returns the records stored under the session name,
// ordered by frame.
// NULL columns are returned as absent (NaN) values.
func (db *DB) Records(ctx context.Context, session string) ([]motec.Record, error) {
	var recs []motec.Record
	rows, err := db.db.QueryContext(
		ctx,
		fmt.Sprintf(
			"SELECT frame, %s FROM `%s` WHERE session=? ORDER BY frame",
			strings.Join(motec.Names(), ", "), db.table,
		),
		session,
	)
	if err != nil {
		return recs, fmt.Errorf("telemdb: could not query records of session %q: %w", session, err)
	}
	defer rows.Close()

	var (
		vs   [motec.NumChannels]sql.NullFloat64
		args = make([]interface{}, 1+motec.NumChannels)
	)
	for i := range vs {
		args[1+i] = &vs[i]
	}

	for rows.Next() {
		rec := motec.NewRecord()
		args[0] = &rec.Frame
		err = rows.Scan(args...)
		if err != nil {
			return recs, fmt.Errorf("telemdb: could not scan record %d of session %q: %w", len(recs), session, err)
		}
		for i, v := range vs {
			if v.Valid {
				rec.Values[i] = v.Float64
			}
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return recs, fmt.Errorf("telemdb: could not scan db for records of session %q: %w", session, err)
	}

	if err := ctx.Err(); err != nil {
		return recs, fmt.Errorf("telemdb: context error while retrieving records: %w", err)
	}

	return recs, nil
}

// Writer inserts records under a session name.
// Records are buffered and inserted in transactions of up to batch rows.
type Writer struct {
	db      *DB
	ctx     context.Context
	session string
	batch   int
	query   string
	rows    [][]interface{}
	n       int64 // number of inserted records
}

// NewWriter returns a writer storing records under the session name.
// A batch size smaller than 1 inserts records one transaction at a time.
func (db *DB) NewWriter(ctx context.Context, session string, batch int) *Writer {
	if batch < 1 {
		batch = 1
	}
	return &Writer{
		db:      db,
		ctx:     ctx,
		session: session,
		batch:   batch,
		query:   insertStmt(db.table),
		rows:    make([][]interface{}, 0, batch),
	}
}

// WriteRecord buffers rec for insertion.
func (w *Writer) WriteRecord(rec *motec.Record) error {
	row := make([]interface{}, 2+motec.NumChannels)
	row[0] = w.session
	row[1] = rec.Frame
	for i, v := range rec.Values {
		if math.IsNaN(v) {
			continue
		}
		row[2+i] = v
	}
	w.rows = append(w.rows, row)
	if len(w.rows) < w.batch {
		return nil
	}
	return w.Flush()
}

// Flush inserts all buffered records.
func (w *Writer) Flush() error {
	if len(w.rows) == 0 {
		return nil
	}

	tx, err := w.db.db.BeginTx(w.ctx, nil)
	if err != nil {
		return fmt.Errorf("telemdb: could not start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(w.ctx, w.query)
	if err != nil {
		return fmt.Errorf("telemdb: could not prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range w.rows {
		_, err = stmt.ExecContext(w.ctx, row...)
		if err != nil {
			return fmt.Errorf(
				"telemdb: could not insert record %d of session %q: %w",
				w.n+int64(i), w.session, err,
			)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("telemdb: could not commit records of session %q: %w", w.session, err)
	}

	w.n += int64(len(w.rows))
	w.rows = w.rows[:0]
	return nil
}

// N returns the number of inserted records.
func (w *Writer) N() int64 { return w.n }

var (
	_ motec.RecordWriter = (*Writer)(nil)
)
