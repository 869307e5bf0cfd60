// Package main is the doafavor command-line client.
package main

import (
	"os"

	"github.com/atinyakov/doafavor/cmd/client/commands"
)

func main() {
	if err := commands.Execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
