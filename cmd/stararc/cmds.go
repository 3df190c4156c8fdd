package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"stararc"
	"stararc/record"
)

func addCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "info archive-dir",
		Short: "Describe an archive",
		Args:  cobra.ExactArgs(1),
		Run:   info}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "sort archive-dir",
		Short: "Write sorted companion files now instead of on first iteration",
		Args:  cobra.ExactArgs(1),
		Run:   sortArchive}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "dump archive-dir",
		Short: "Stream joined records as JSON lines",
		Args:  cobra.ExactArgs(1),
		Run:   dump}
	cmd.Flags().Bool("core-only", false, "stream core records only, skipping the sort step")
	cmd.Flags().Bool("raw", false, "keep literal null tokens instead of replacing them")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "export archive-dir sqlite-file",
		Short: "Export an archive into a SQLite database, one table per row type",
		Args:  cobra.ExactArgs(2),
		Run:   export}
	root.AddCommand(cmd)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func openArchive(dir string) *stararc.Archive {
	a, err := stararc.Open(dir)
	if err != nil {
		fatal("%v", err)
	}
	return a
}

func info(cmd *cobra.Command, args []string) {
	a := openArchive(args[0])
	core := a.Core()
	fmt.Printf("archive: %s\n", a.Location())
	fmt.Printf("core: %s (%s), %d fields, id column %d\n",
		core.RowType, core.Location, len(core.Fields), core.IDIndex)
	for _, ext := range a.Extensions() {
		fmt.Printf("extension: %s (%s), %d fields, id column %d\n",
			ext.RowType, ext.Location, len(ext.Fields), ext.IDIndex)
	}
	fmt.Printf("sorted companions: %s\n", sortedState(a))
}

func sortedState(a *stararc.Archive) string {
	for _, af := range append([]*stararc.ArchiveFile{a.Core()}, a.Extensions()...) {
		loc := af.SortedLocation()
		if !filepath.IsAbs(loc) {
			loc = filepath.Join(a.Location(), loc)
		}
		if _, err := os.Stat(loc); err != nil {
			return "absent"
		}
	}
	return "present"
}

func sortArchive(cmd *cobra.Command, args []string) {
	a := openArchive(args[0])
	if err := a.Sort(); err != nil {
		fatal("%v", err)
	}
}

type dumpRecord struct {
	ID         string                         `json:"id"`
	RowType    string                         `json:"rowType"`
	Fields     map[string]string              `json:"fields"`
	Extensions map[string][]map[string]string `json:"extensions,omitempty"`
}

func coreJSON(rec *record.Record) dumpRecord {
	return dumpRecord{ID: rec.ID(), RowType: rec.RowType(), Fields: rec.Values()}
}

func dump(cmd *cobra.Command, args []string) {
	coreOnly, _ := cmd.Flags().GetBool("core-only")
	raw, _ := cmd.Flags().GetBool("raw")
	a := openArchive(args[0])

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	enc := json.NewEncoder(w)

	if coreOnly {
		it, err := a.CoreIterator(!raw)
		if err != nil {
			fatal("%v", err)
		}
		defer it.Close()
		for {
			rec, err := it.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				fatal("%v", err)
			}
			enc.Encode(coreJSON(rec))
		}
		return
	}

	it, err := a.Iterator(!raw)
	if err != nil {
		fatal("%v", err)
	}
	defer it.Close()
	for {
		sr, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fatal("%v", err)
		}
		out := coreJSON(sr.Core)
		for rowType, recs := range sr.Extensions() {
			if out.Extensions == nil {
				out.Extensions = make(map[string][]map[string]string)
			}
			for _, rec := range recs {
				out.Extensions[rowType] = append(out.Extensions[rowType], rec.Values())
			}
		}
		enc.Encode(out)
	}
}

func export(cmd *cobra.Command, args []string) {
	a := openArchive(args[0])
	db, err := sql.Open("sqlite", args[1])
	if err != nil {
		fatal("open sqlite: %v", err)
	}
	defer db.Close()
	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	if err := exportArchive(a, db); err != nil {
		fatal("%v", err)
	}
}
