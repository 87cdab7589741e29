package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes: 1 for conversion failures (malformed input included), 2 for
// invalid usage or configuration detected before any conversion starts.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var usageErr *usageError
		if errors.As(err, &usageErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
