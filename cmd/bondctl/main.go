// ====================================
// File: cmd/bondctl/main.go
// ====================================
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Musing-io/musing-protocol/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "bondctl:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
