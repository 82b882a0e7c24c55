package main

import (
	"os"

	"github.com/rustyeddy/rebalance/cmd/rebalance/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
