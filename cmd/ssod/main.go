package main

import (
	"os"

	"ssod/cmd/ssod/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
