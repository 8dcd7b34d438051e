package main

import (
	"os"

	"github.com/xraph/smsrelay/cmd/smsrelay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
