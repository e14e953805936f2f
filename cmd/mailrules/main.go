package main

import (
	"os"

	"github.com/solatis/mailrules/cmd/mailrules/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
