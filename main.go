package main

import (
	"fmt"
	"os"

	"docweave/cmd/docweave"
)

func main() {
	if err := docweave.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "docweave: %v\n", err)
		os.Exit(1)
	}
}
