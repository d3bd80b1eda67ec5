// Command showcase is the admin CLI for portfolio content.
package main

import (
	"os"

	"github.com/mesh-intelligence/showcase/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
