package main

import (
	"flag"
	"fmt"

	"github.com/chazu/ngxgen/server"
	"github.com/chazu/ngxgen/symbols"
)

// handleLSPCommand processes `ngxgen lsp`, which talks LSP on stdio.
func handleLSPCommand(args []string) error {
	flags := flag.NewFlagSet("lsp", flag.ExitOnError)
	var c common
	c.register(flags)
	flags.Parse(args)

	m, err := c.setup()
	if err != nil {
		return err
	}
	srv, err := server.NewLSP(m)
	if err != nil {
		return err
	}
	return srv.Run()
}

// handleServeCommand processes `ngxgen serve`.
// Usage:
//
//	ngxgen serve                     # :4567
//	ngxgen serve -port 8080 -db s.db # with symbol lookups
func handleServeCommand(args []string) error {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	var c common
	c.register(flags)
	port := flags.Int("port", 4567, "Port to listen on")
	dbPath := flags.String("db", "", "Symbol database for lookups (default: [symbols] sqlite)")
	flags.Parse(args)

	m, err := c.setup()
	if err != nil {
		return err
	}

	path := *dbPath
	if path == "" {
		path = m.SymbolsDBPath()
	}
	var store *symbols.Store
	if path != "" {
		if store, err = symbols.OpenStore(path); err != nil {
			return err
		}
		defer store.Close()
	}

	svc, err := server.NewService(m, store)
	if err != nil {
		return err
	}
	return svc.ListenAndServe(fmt.Sprintf(":%d", *port))
}
