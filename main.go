package main

import (
	"context"
	"os"

	"github.com/secmon-lab/tasklane/pkg/cli"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx := context.Background()
	if err := cli.Run(ctx, os.Args, version); err != nil {
		os.Exit(1)
	}
}
