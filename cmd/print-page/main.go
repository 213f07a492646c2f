// Command print-page dumps every page of a sqlite database file: a summary
// line with the file and page sizes, then each page's number and type.
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
	kong.Parse(&CLI, kong.Description("Dump every page of a sqlite database file."))

	var file, err = dotlite.OpenFileReadOnly(CLI.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "print-page:", err)
		os.Exit(1)
	}
	defer file.Close()

	fmt.Printf("%s: %s across %d pages of %s each\n",
		CLI.File,
		humanize.Bytes(uint64(file.NumPages()*file.PageSize())),
		file.NumPages(),
		humanize.Bytes(uint64(file.PageSize())),
	)

	for pgno := 1; pgno <= file.NumPages(); pgno++ {
		var page, perr = file.Pager.ReadPage(pgno)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "print-page: page %d: %v\n", pgno, perr)
			continue
		}
		describePage(pgno, page)
	}
}

func describePage(pgno int, page *dotlite.Page) {
	var kindName = pageKindName(page)
	fmt.Printf("page %6d  %-16s\n", pgno, kindName)
}

func pageKindName(page *dotlite.Page) string {
	switch page.Kind() {
	case dotlite.NodeTableLeaf:
		return "table-leaf"
	case dotlite.NodeTableInterior:
		return "table-interior"
	case dotlite.NodeIndexLeaf:
		return "index-leaf"
	case dotlite.NodeIndexInterior:
		return "index-interior"
	default:
		return "free/overflow"
	}
}
