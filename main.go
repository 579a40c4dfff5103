package main

import (
	"context"
	"fmt"
	"os"

	"github.com/isdelr/ender-accounts-be/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "accountsd: %v\n", err)
		os.Exit(1)
	}
}
