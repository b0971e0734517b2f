// Package testutil holds fixtures shared by tabd tests.
package testutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// ShortTempDir creates a temp directory under the system temp root and
// removes it when the test ends. Unix socket paths are limited to about 100
// bytes, which t.TempDir paths can exceed.
func ShortTempDir(t *testing.T, pattern string) string {
	t.Helper()

	dir, err := os.MkdirTemp("", pattern)
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// WritePages writes each body to <dir>/<name>.html, creating dir if needed.
func WritePages(t *testing.T, dir string, pages map[string]string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, body := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".html"), []byte(body), 0644))
	}
}

// DiscardLogger returns a logger entry that writes nowhere.
func DiscardLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
