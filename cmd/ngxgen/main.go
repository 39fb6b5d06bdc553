// ngxgen generates the cgo glue between Go handlers and a C host.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/ngxgen/manifest"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "generate":
		err = handleGenerateCommand(args, false)
	case "check":
		err = handleGenerateCommand(args, true)
	case "symbols":
		err = handleSymbolsCommand(args)
	case "lsp":
		err = handleLSPCommand(args)
	case "serve":
		err = handleServeCommand(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: ngxgen <command> [options] [packages...]\n\n")
	fmt.Fprintf(os.Stderr, "Generates cgo glue for //ngx:handler, //ngx:setter and //ngx:callback declarations.\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  generate   write the glue files of every package\n")
	fmt.Fprintf(os.Stderr, "  check      report diagnostics without writing anything\n")
	fmt.Fprintf(os.Stderr, "  symbols    print the exported symbol contract\n")
	fmt.Fprintf(os.Stderr, "  lsp        run the language server on stdio\n")
	fmt.Fprintf(os.Stderr, "  serve      serve checks and symbol lookups over Connect/gRPC\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  ngxgen generate ./...            # all packages of the module\n")
	fmt.Fprintf(os.Stderr, "  ngxgen check -typecheck .        # also type-check the output\n")
	fmt.Fprintf(os.Stderr, "  ngxgen symbols -cbor out.cbor ./...\n")
	fmt.Fprintf(os.Stderr, "  //go:generate go run github.com/chazu/ngxgen/cmd/ngxgen generate .\n")
}

// common holds the flags every command accepts.
type common struct {
	dir     string
	verbose bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.dir, "C", ".", "Directory to run in; ngxgen.toml is searched from here upwards")
	fs.BoolVar(&c.verbose, "v", false, "Verbose output")
}

// setup configures logging and loads the manifest, falling back to defaults
// when there is none.
func (c *common) setup() (*manifest.Manifest, error) {
	verbosity := 0
	if c.verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	m, err := manifest.FindAndLoad(c.dir)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	if m == nil {
		m = manifest.Default(c.dir)
	}
	return m, nil
}
