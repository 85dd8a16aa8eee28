package main

import (
	"os"

	"mlxconv/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
