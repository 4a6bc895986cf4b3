package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/shepherd/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var gfErr *cli.GroupFailedError
		if errors.As(err, &gfErr) {
			os.Exit(gfErr.ExitCode())
		}
		os.Exit(1)
	}
}
