package main

import (
	"os"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
