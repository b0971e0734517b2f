package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/tabd/cli"
	"github.com/grovetools/tabd/config"
	"github.com/grovetools/tabd/internal/daemon/browser"
	"github.com/grovetools/tabd/internal/daemon/pidfile"
	"github.com/grovetools/tabd/internal/daemon/server"
	"github.com/grovetools/tabd/internal/daemon/watcher"
	"github.com/grovetools/tabd/logging"
	"github.com/grovetools/tabd/pkg/tabclient"
	"github.com/spf13/cobra"
)

// NewDaemonCmd returns the browser daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the browser daemon",
		Long:  "The browser daemon owns the coordination store and serves every tab.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the browser daemon in foreground mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd, "tabd")

			cfg, configFile, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			// 1. Acquire Lock
			if err := pidfile.Acquire(cfg.Daemon.PidFile); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(cfg.Daemon.PidFile); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			// 2. Setup daemon
			var opts []browser.Option
			if noStore {
				opts = append(opts, browser.WithoutStore())
			}
			d := browser.New(cfg, logger, opts...)

			srv := server.New(d, logger)
			srv.SetConfigFile(configFile)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// 3. Watch the config file, if there is one
			if configFile != "" {
				onReload := func(cfg *config.Config) {
					d.ApplyConfig(cfg)
					if err := logging.ApplyConfig(cfg); err != nil {
						logger.WithError(err).Warn("Ignoring logging section")
					}
				}
				w, err := watcher.NewConfigWatcher(configFile, watcher.DefaultDebounce, logger.WithField("task", "config-watcher"), onReload)
				if err != nil {
					logger.WithError(err).Warn("Config watching disabled")
				} else {
					go func() {
						if err := w.Run(ctx); err != nil {
							logger.WithError(err).Warn("Config watcher stopped")
						}
					}()
				}
			}

			// 4. Handle Signals
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)

			go func() {
				<-stop
				logger.Info("Received stop signal")
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
			}()

			// 5. Start the control loop in background
			loopDone := make(chan struct{})
			go func() {
				defer close(loopDone)
				if err := d.Run(ctx); err != nil {
					logger.WithError(err).Error("Control loop failed")
				}
			}()

			// 6. Start Server (Blocking)
			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			serveErr := srv.ListenAndServe(cfg.Daemon.Socket)

			// 7. Let the control loop finish before the pidfile goes
			cancel()
			<-loopDone
			if serveErr != nil {
				return fmt.Errorf("server error: %w", serveErr)
			}
			logger.Info("Daemon stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noStore, "no-store", false, "Run without the coordination store (bookmarks, sync and status disabled)")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			running, pid, err := pidfile.IsRunning(cfg.Daemon.PidFile)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}

			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			running, pid, err := pidfile.IsRunning(cfg.Daemon.PidFile)
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if !running {
				pretty.WarnPretty("Stopped")
				os.Exit(1) // Return non-zero for stopped state (useful for scripts)
			}

			client := tabclient.NewRemoteClient(cfg.Daemon.Socket, 0)
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()
			status, err := client.Status(ctx)
			printStatus(pretty, cfg, pid, status, err)
			return nil
		},
	}
}

func printStatus(pretty *logging.PrettyLogger, cfg *config.Config, pid int, status *tabclient.Status, err error) {
	pretty.Success("Running")
	pretty.Field("PID", pid)
	pretty.Field("Socket", cfg.Daemon.Socket)
	if err != nil {
		pretty.ErrorPretty("Status unavailable", err)
		return
	}
	pretty.Field("Health", status.Health)
	pretty.Field("Active tabs", status.ActiveTabs)
	pretty.Field("Sessions", status.Sessions)
	pretty.Field("Connections", status.Connections)
	pretty.Field("Pages loaded", status.TotalPagesLoaded)
	pretty.Field("Bookmarks", status.BookmarkCount)
	pretty.Field("Broadcasts", status.BroadcastCount)
}
