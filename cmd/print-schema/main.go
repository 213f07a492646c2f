// Command print-schema lists every table in a sqlite database file along
// with its columns and the indexes defined over it.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"go.riyazali.net/dotlite"
)

var CLI struct {
	File string `arg:"" help:"Path to the sqlite database file." type:"existingfile"`
}

func main() {
	kong.Parse(&CLI, kong.Description("Print the tables and indexes defined in a sqlite database file."))

	var db, err = dotlite.OpenDatabase(CLI.File, dotlite.ReadOnly())
	if err != nil {
		fmt.Fprintln(os.Stderr, "print-schema:", err)
		os.Exit(1)
	}
	defer db.Close()

	var objects = db.File()
	var schemaObjects, lerr = objects.Schema()
	if lerr != nil {
		fmt.Fprintln(os.Stderr, "print-schema:", lerr)
		os.Exit(1)
	}

	for _, obj := range schemaObjects {
		if obj.Type() != "table" {
			continue
		}

		var ts = db.TableSchema(obj.Name())
		fmt.Printf("%s", obj.Name())
		if ts != nil && ts.WithoutRowid {
			fmt.Print(" (without rowid)")
		}
		fmt.Println()

		if ts != nil {
			for _, col := range ts.Columns {
				var marker = ""
				if col.Rowid {
					marker = " [rowid]"
				} else if col.PrimaryKey {
					marker = " [pk]"
				}
				fmt.Printf("  %-20s %-12s%s\n", col.Name, col.Affinity, marker)
			}
		}

		for _, idx := range schemaObjects {
			if idx.Type() == "index" && idx.TableName() == obj.Name() {
				fmt.Printf("  index %s\n", idx.Name())
			}
		}
	}

	fmt.Printf("\n%s file, %d pages\n", humanize.Bytes(uint64(objects.NumPages()*objects.PageSize())), objects.NumPages())
}
