// Command oasrouter serves, checks and scaffolds OpenAPI 3 operation
// dispatchers.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/oasrouter/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
