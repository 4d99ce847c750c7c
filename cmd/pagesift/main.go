// Command pagesift crawls document sources, OCRs every page and serves
// search over the results.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/pagesift/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
