package main

import (
	"os"

	"github.com/4abishai/secura/cmd/secura/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
