package main

import (
	"os"

	"github.com/coderDevDev/dxp-dubai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
