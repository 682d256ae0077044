package dumputil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.html"), []byte("old"), 0o600))

	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	out.Write("courses", "<table></table>")
	out.Write("grades/CB111 A", "<p>notas</p>")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Equal(t, []string{"001-courses.html", "002-grades_CB111_A.html"}, names)

	contents, err := os.ReadFile(filepath.Join(dir, "002-grades_CB111_A.html"))
	require.NoError(t, err)
	require.Equal(t, "<p>notas</p>", string(contents))
}
