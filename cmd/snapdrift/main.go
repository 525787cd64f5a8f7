package main

import (
	"fmt"
	"os"

	"github.com/pratik-mahalle/snapdrift/internal/cli"
)

// @title snapdrift API
// @version 1.0
// @description Read-only access to cluster snapshot history, change records and drift analysis.
// @BasePath /
func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
