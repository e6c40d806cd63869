// Package main is the entry point for the shapescan CLI.
//
// All logic lives in the commands package.
package main

import (
	"os"

	"github.com/JNZader/shapescan/cmd/shapescan/commands"
)

func main() {
	os.Exit(commands.Execute())
}
