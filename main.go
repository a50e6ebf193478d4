// treefind finds files matching glob patterns in git repositories, either as
// an HTTP service or from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/treefind/treefind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
