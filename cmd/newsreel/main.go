// Command newsreel is the article synchronisation engine CLI.
package main

import (
	"os"

	"github.com/custodia-labs/newsreel-cli/internal/adapters/driving/cli"
)

// version is overridable at build time via -ldflags.
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
