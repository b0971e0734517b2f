package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/grovetools/tabd/cli"
	"github.com/grovetools/tabd/logging"
	"github.com/grovetools/tabd/pkg/tabclient"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewTabCmd returns the interactive tab command.
func NewTabCmd() *cobra.Command {
	var (
		tabID  int
		stream bool
	)

	cmd := &cobra.Command{
		Use:   "tab",
		Short: "Open an interactive browser tab",
		Long: `Open an interactive browser tab connected to the daemon.

Each line typed is sent as a command and the reply is printed. Notifications
from other synced tabs are shown as they arrive. Type 'exit' to close the tab.

Examples:
  # open tab 1
  tabd tab --id 1

  # receive notifications over a stream instead of polling
  tabd tab --id 2 --stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			var logOpts []cli.LoggerOption
			if cli.GetOptions(cmd).Verbose {
				logOpts = append(logOpts, cli.WithLevel(logrus.DebugLevel))
			}
			logger := cli.NewLogger("tab", logOpts...)

			client := tabclient.NewRemoteClient(cfg.Daemon.Socket, tabID)
			if !client.IsRunning() {
				return fmt.Errorf("browser daemon is not running at %s; start it with 'tabd daemon start'", cfg.Daemon.Socket)
			}
			defer client.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			out := &lockedWriter{w: cmd.OutOrStdout()}
			pretty := logging.NewPrettyLogger().WithWriter(out)
			notify := func(ev tabclient.Event) { pretty.Notification(ev.Notification) }

			if stream {
				go streamNotifications(ctx, client, tabID, notify, logger)
			} else {
				poller := tabclient.NewPoller(client, tabID, cfg.Tab.Poll(), notify, logger)
				go poller.Run(ctx)
			}

			prompt := ""
			if term.IsTerminal(int(os.Stdin.Fd())) {
				prompt = fmt.Sprintf("Tab %d> ", tabID)
			}
			return runREPL(ctx, client, cmd.InOrStdin(), out, prompt)
		},
	}

	cmd.Flags().IntVar(&tabID, "id", 1, "Tab identifier")
	cmd.Flags().BoolVar(&stream, "stream", false, "Receive notifications over a stream instead of polling")
	return cmd
}

// runREPL sends each input line as a command until EOF or "exit".
func runREPL(ctx context.Context, client tabclient.Client, in io.Reader, out io.Writer, prompt string) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt != "" {
			fmt.Fprint(out, prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}

		reply, err := client.Send(ctx, line)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply.Text)
	}
}

func streamNotifications(ctx context.Context, client tabclient.Client, tabID int, notify func(tabclient.Event), logger *logrus.Entry) {
	events, err := client.StreamBroadcasts(ctx)
	if err != nil {
		logger.WithError(err).Warn("Broadcast stream unavailable")
		return
	}
	for ev := range events {
		if ev.SenderTab == tabID || ev.Notification == "" {
			continue
		}
		notify(ev)
	}
}

// lockedWriter serializes replies and notifications written from different goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
