package main

import (
	"os"

	"github.com/grovetools/tabd/cli"
	"github.com/grovetools/tabd/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		_ = cli.NewErrorHandler(cli.GetOptions(rootCmd).Verbose).Handle(err)
		os.Exit(1)
	}
}
