// Package main is the entry point for the park-ledger CLI.
package main

import (
	"os"

	"github.com/shunichi-ikebuchi/park-ledger/cmd/park-ledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
