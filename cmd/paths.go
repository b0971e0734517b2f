package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/tabd/cli"
	"github.com/grovetools/tabd/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput represents the paths used by tabd.
type PathsOutput struct {
	ConfigDir  string `json:"config_dir"`
	StateDir   string `json:"state_dir"`
	LogDir     string `json:"log_dir"`
	RuntimeDir string `json:"runtime_dir"`
	Socket     string `json:"socket"`
	PidFile    string `json:"pid_file"`
}

func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by tabd",
		Long: `Print the paths used by tabd in JSON format.

- config_dir: Configuration files (tabd.yml)
- state_dir: Persistent state
- log_dir: Log files
- runtime_dir: Socket and PID file
- socket/pid_file: Effective daemon socket and PID file, after config`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			output := PathsOutput{
				ConfigDir:  paths.ConfigDir(),
				StateDir:   paths.StateDir(),
				LogDir:     paths.LogDir(),
				RuntimeDir: paths.RuntimeDir(),
				Socket:     cfg.Daemon.Socket,
				PidFile:    cfg.Daemon.PidFile,
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
			return nil
		},
	}

	return cmd
}
