package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grovetools/tabd/cli"
	"github.com/grovetools/tabd/pkg/tabclient"
	"github.com/spf13/cobra"
)

// NewSendCmd returns a command that sends one command as a tab and prints the reply.
func NewSendCmd() *cobra.Command {
	var tabID int

	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send a single command as a tab",
		Long: `Send a single command to the browser daemon and print the reply.

Examples:
  tabd send --id 1 load home
  tabd send --id 1 bookmarks
  tabd send --id 2 --json status`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			client := tabclient.NewRemoteClient(cfg.Daemon.Socket, tabID)
			defer client.Close()

			reply, err := client.Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printReply(cmd, reply)
		},
	}

	cmd.Flags().IntVar(&tabID, "id", 1, "Tab identifier")
	return cmd
}

func printReply(cmd *cobra.Command, reply *tabclient.Reply) error {
	if cli.GetOptions(cmd).JSONOutput {
		data, err := json.MarshalIndent(reply, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	return nil
}
