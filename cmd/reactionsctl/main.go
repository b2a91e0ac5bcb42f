package main

import (
	"fmt"
	"os"

	"github.com/pscheid92/likelovehate/internal/cli"
	"github.com/pscheid92/likelovehate/internal/platform/version"
)

func main() {
	if err := cli.Execute(version.Get().String()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
