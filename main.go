package main

import (
	"os"

	"github.com/namesLeon/trivialaugment/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
