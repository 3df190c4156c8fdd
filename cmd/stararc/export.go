package main

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	_ "modernc.org/sqlite"

	"stararc"
)

// exportArchive writes a full star iteration into db: one table per row
// type, extension tables carrying a coreid column referencing the core
// identifier. Everything happens in one transaction so a failed export
// leaves no half-filled tables.
func exportArchive(a *stararc.Archive, db *sql.DB) error {
	it, err := a.Iterator(true)
	if err != nil {
		return err
	}
	defer it.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	coreIns, err := createTable(tx, a.Core(), "id")
	if err != nil {
		return err
	}
	extIns := make(map[string]*sql.Stmt, len(a.Extensions()))
	for _, ext := range a.Extensions() {
		ins, err := createTable(tx, ext, "coreid")
		if err != nil {
			return err
		}
		extIns[ext.RowType] = ins
	}

	for {
		sr, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := insertRecord(coreIns, a.Core(), sr.Core.ID(), sr.Core.Values()); err != nil {
			return err
		}
		for rowType, recs := range sr.Extensions() {
			ext := a.Extension(rowType)
			for _, rec := range recs {
				if err := insertRecord(extIns[rowType], ext, sr.Core.ID(), rec.Values()); err != nil {
					return err
				}
			}
		}
	}
	return tx.Commit()
}

// createTable creates the table for one archive file and prepares its
// insert statement. keyColumn is "id" for the core table and "coreid"
// for extension tables.
func createTable(tx *sql.Tx, af *stararc.ArchiveFile, keyColumn string) (*sql.Stmt, error) {
	name := tableName(af.RowType)
	cols := []string{quoteIdent(keyColumn) + " TEXT"}
	params := []string{"?"}
	for _, f := range af.Fields {
		cols = append(cols, quoteIdent(f.Name)+" TEXT")
		params = append(params, "?")
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := tx.Exec(ddl); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	ins, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)",
		quoteIdent(name), strings.Join(params, ", ")))
	if err != nil {
		return nil, fmt.Errorf("prepare insert %s: %w", name, err)
	}
	return ins, nil
}

func insertRecord(ins *sql.Stmt, af *stararc.ArchiveFile, key string, values map[string]string) error {
	args := make([]interface{}, 0, len(af.Fields)+1)
	args = append(args, key)
	for _, f := range af.Fields {
		args = append(args, values[f.Name])
	}
	if _, err := ins.Exec(args...); err != nil {
		return fmt.Errorf("insert into %s: %w", tableName(af.RowType), err)
	}
	return nil
}

// tableName derives a SQL-friendly table name from a row type label,
// keeping only the unqualified part of a URI-style label.
func tableName(rowType string) string {
	if i := strings.LastIndex(rowType, "/"); i >= 0 {
		rowType = rowType[i+1:]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(rowType)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "records"
	}
	return b.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
