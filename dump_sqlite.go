package tsinfer

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteDumpMirror is a diagnostic, write-only mirror of a tree
// sequence's dumped nodes/edges/mutations into a SQLite database, for ad
// hoc inspection with any SQL client. It is explicitly not the canonical
// dump/restore contract (§6 defines that as flat arrays) and has no
// corresponding restore path: restoring a builder always goes through
// the flat-array restore calls, never through this database.
//
// Modeled on the teacher's SQLiteLogger: one table per record kind,
// created in Init, populated by draining a channel inside one
// transaction.
type SQLiteDumpMirror struct {
	path       string
	instanceID int
}

// NewSQLiteDumpMirror returns a mirror that will write to path, tagging
// every table name with instanceID the way SQLiteLogger tags its tables
// per simulation instance.
func NewSQLiteDumpMirror(path string, instanceID int) *SQLiteDumpMirror {
	m := new(SQLiteDumpMirror)
	m.SetBasePath(path, instanceID)
	return m
}

// SetBasePath changes the database path, suffixing it the way
// SQLiteLogger.SetBasePath does when handed a directory.
func (m *SQLiteDumpMirror) SetBasePath(basepath string, instanceID int) {
	if info, err := os.Stat(basepath); err == nil && info.IsDir() {
		basepath += fmt.Sprintf("dump.%03d", instanceID)
	}
	m.path = strings.TrimSuffix(basepath, ".") + ".db"
	m.instanceID = instanceID
}

// Init creates the Nodes, Edges and Mutations tables, dropping any
// previous rows under this instance's table suffix.
func (m *SQLiteDumpMirror) Init() error {
	db, err := openSQLiteDB(m.path)
	if err != nil {
		return err
	}
	defer db.Close()

	newTable := func(tableName, cols string) error {
		fullName := fmt.Sprintf("%s%03d", tableName, m.instanceID)
		stmt := fmt.Sprintf("create table if not exists %s %s; delete from %s;", fullName, cols, fullName)
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "creating table %s", fullName)
		}
		return nil
	}
	if err := newTable("Nodes", "(id integer not null primary key, flags integer, time real)"); err != nil {
		return err
	}
	if err := newTable("Edges", "(id integer not null primary key, left_site integer, right_site integer, parent integer, child integer)"); err != nil {
		return err
	}
	if err := newTable("Mutations", "(id integer not null primary key, site integer, node integer, derived_state integer, parent integer)"); err != nil {
		return err
	}
	return nil
}

// WriteNodes drains c, writing one row per node inside a single
// transaction, in dump order (so row id equals NodeID).
func (m *SQLiteDumpMirror) WriteNodes(c <-chan DumpedNode) error {
	tableName := fmt.Sprintf("Nodes%03d", m.instanceID)
	return m.writeRows(tableName, "id, flags, time", func(tx *sql.Tx, stmt *sql.Stmt) error {
		id := 0
		for n := range c {
			if _, err := stmt.Exec(id, n.Flags, n.Time); err != nil {
				return err
			}
			id++
		}
		return nil
	})
}

// WriteEdges drains c, writing one row per edge inside a single
// transaction, in canonical dump order.
func (m *SQLiteDumpMirror) WriteEdges(c <-chan DumpedEdge) error {
	tableName := fmt.Sprintf("Edges%03d", m.instanceID)
	return m.writeRows(tableName, "left_site, right_site, parent, child", func(tx *sql.Tx, stmt *sql.Stmt) error {
		for e := range c {
			if _, err := stmt.Exec(e.Left, e.Right, e.Parent, e.Child); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteMutations drains c, writing one row per mutation inside a single
// transaction, in canonical dump order.
func (m *SQLiteDumpMirror) WriteMutations(c <-chan DumpedMutation) error {
	tableName := fmt.Sprintf("Mutations%03d", m.instanceID)
	return m.writeRows(tableName, "site, node, derived_state, parent", func(tx *sql.Tx, stmt *sql.Stmt) error {
		for mu := range c {
			if _, err := stmt.Exec(mu.Site, mu.Node, mu.DerivedState, mu.Parent); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *SQLiteDumpMirror) writeRows(tableName, cols string, drain func(*sql.Tx, *sql.Stmt) error) error {
	db, err := openSQLiteDB(m.path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	insertStmt := fmt.Sprintf("insert into %s(%s) values(%s)", tableName, cols, placeholders(strings.Count(cols, ",")+1))
	stmt, err := tx.Prepare(insertStmt)
	if err != nil {
		return errors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()

	if err := drain(tx, stmt); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "writing rows to %s", tableName)
	}
	return tx.Commit()
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return strings.Join(ph, ", ")
}

func openSQLiteDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sqlite database %q", path)
	}
	return db, nil
}
