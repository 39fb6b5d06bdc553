package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/ngxgen/symbols"
)

// handleSymbolsCommand processes `ngxgen symbols`.
// Usage:
//
//	ngxgen symbols ./...                  # print the contract
//	ngxgen symbols -cbor out.cbor ./...   # also write it as CBOR
//	ngxgen symbols -db symbols.db ./...   # also store it in SQLite
func handleSymbolsCommand(args []string) error {
	flags := flag.NewFlagSet("symbols", flag.ExitOnError)
	var c common
	c.register(flags)
	cborPath := flags.String("cbor", "", "Write the symbol table as CBOR to this file")
	dbPath := flags.String("db", "", "Store the symbol table in this SQLite database")
	flags.Parse(args)

	m, err := c.setup()
	if err != nil {
		return err
	}

	res, err := run(m, runConfig{Dir: c.dir}, flags.Args()...)
	if err != nil {
		return err
	}

	printSymbols(os.Stdout, res.Symbols)

	// Flag paths are relative to the working directory, not the manifest.
	if *cborPath != "" {
		if m.Symbols.CBOR, err = filepath.Abs(*cborPath); err != nil {
			return err
		}
	}
	if *dbPath != "" {
		if m.Symbols.SQLite, err = filepath.Abs(*dbPath); err != nil {
			return err
		}
	}
	return writeSymbolArtifacts(m, res.Symbols)
}

// printSymbols lists one symbol per line in C-like notation.
func printSymbols(w io.Writer, t *symbols.Table) {
	for _, s := range t.Symbols {
		params := make([]string, len(s.Params))
		for i, p := range s.Params {
			ctype := p.CType
			if ctype == "" {
				ctype = p.GoType
			}
			params[i] = ctype + " " + p.Name
		}
		result := s.Result
		if result == "" {
			result = "void"
		}
		fmt.Fprintf(w, "%-8s %s %s(%s)  // %s.%s at %s\n",
			s.Kind, result, s.Name, strings.Join(params, ", "), s.Package, s.Decl, s.Position)
	}
}
