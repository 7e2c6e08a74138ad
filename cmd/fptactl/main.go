// Command fptactl opens an fpta database file and prints, for each table of
// the schema it opens with, the column layout and row count, followed by
// the open-transaction diagnostics. It opens with an empty schema (fpta does
// not store schemas in the file), so no table is listed and -table has
// nothing to select; only the diagnostics line is printed. Grounded in the smoke-test
// conformance driver from libfpta's own C sources, re-cast as a Go
// stdlib-flag CLI since the teacher repo ships no CLI framework either.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/magniff/libfpta"
)

func main() {
	dbPath := flag.String("db", "", "path to the database file")
	table := flag.String("table", "", "restrict output to one table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "fptactl: -db is required")
		os.Exit(2)
	}

	schema := fpta.NewSchema()
	db, err := fpta.Open(*dbPath, schema, fpta.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fptactl: open: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	tables := schema.Tables()
	for _, t := range tables {
		if *table != "" && t.Name != *table {
			continue
		}
		describeTable(db, t)
	}

	fmt.Println(db.DescribeOpenTxns())
}

func describeTable(db *fpta.DB, t *fpta.Table) {
	fmt.Printf("table %s (bucket %s)\n", t.Name, t.Bucket())
	for _, c := range t.Columns() {
		role := "column"
		switch {
		case c.IndexKind().IsPrimary():
			role = "primary"
		case c.IndexKind().IsSecondary():
			role = "secondary"
		}
		fmt.Printf("  %-20s %-10s %s\n", c.Name, c.Type(), role)
	}
	var n int
	db.View(func(tx *fpta.Tx) error {
		cur, err := tx.OpenCursor(t.Primary(), fpta.CursorOpts{})
		if err != nil {
			return err
		}
		n = cur.Count(1 << 30)
		return nil
	})
	fmt.Printf("  %d rows\n", n)
}
