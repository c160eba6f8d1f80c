// Command decide evaluates release files against a policy file without
// running the service.
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand(newCommandContext(nil))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
