// Package cmd holds the tabd command tree.
package cmd

import (
	"github.com/grovetools/tabd/cli"
	"github.com/grovetools/tabd/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the tabd command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("tabd", "Multi-tab text browser with a shared coordination daemon")
	cli.SetVersionTemplate(root, version.GetInfo())

	root.AddCommand(NewDaemonCmd())
	root.AddCommand(NewTabCmd())
	root.AddCommand(NewSendCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewPathsCmd())
	root.AddCommand(cli.NewVersionCommand("tabd"))

	applyStyledHelp(root)
	return root
}

func applyStyledHelp(cmd *cobra.Command) {
	cli.SetStyledHelp(cmd)
	for _, sub := range cmd.Commands() {
		applyStyledHelp(sub)
	}
}
