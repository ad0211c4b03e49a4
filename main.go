package main

import (
	"context"
	"os"

	"github.com/chesspuzzlekit/chesspuzzlekit/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
