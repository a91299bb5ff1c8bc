package main

import (
	"os"

	"github.com/tphakala/dbfixture/cmd/dbfixture/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
