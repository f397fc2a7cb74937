package docutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kart-io/contract-assistant/internal/pkg/rag/docutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "b.PDF"), "x")
	writeFile(t, filepath.Join(dir, "docs", "a.txt"), "x")
	writeFile(t, filepath.Join(dir, "docs", "nested", "c.docx"), "x")
	writeFile(t, filepath.Join(dir, "docs", "skip.png"), "x")
	writeFile(t, filepath.Join(dir, "single.bin"), "x")

	files, err := docutil.ExpandPaths(
		[]string{filepath.Join(dir, "single.bin"), filepath.Join(dir, "docs"), filepath.Join(dir, "single.bin")},
		[]string{".pdf", ".txt", ".docx"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "single.bin"),
		filepath.Join(dir, "docs", "a.txt"),
		filepath.Join(dir, "docs", "b.PDF"),
		filepath.Join(dir, "docs", "nested", "c.docx"),
	}, files)
}

func TestExpandPathsMissing(t *testing.T) {
	_, err := docutil.ExpandPaths([]string{filepath.Join(t.TempDir(), "nope.pdf")}, nil)
	assert.Error(t, err)
}

func TestSaveFileStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	dest, err := docutil.SaveFile(dir, "../../etc/contract.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "contract.txt"), dest)
	assert.True(t, docutil.FileExists(dest))

	_, err = docutil.SaveFile(dir, "", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, docutil.EnsureDir(dir))
	assert.False(t, docutil.FileExists(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
