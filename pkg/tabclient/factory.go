package tabclient

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/tabd/pkg/paths"
)

// New returns a client for tabID bound to the default daemon socket.
func New(tabID int) *RemoteClient {
	return NewRemoteClient(paths.SocketPath(), tabID)
}

// DaemonAvailable reports whether something is accepting connections on socketPath.
func DaemonAvailable(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
