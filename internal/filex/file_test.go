package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureSubdDir_CreatesDirectoryInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureSubdDir("previews")
	require.NoError(t, err)

	want := filepath.Join(tmp, "previews")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureSubdDir_AbsolutePath(t *testing.T) {
	want := filepath.Join(t.TempDir(), "a", "b")

	got, err := EnsureSubdDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.DirExists(t, want)
}

func TestEnsureSubdDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	first, err := EnsureSubdDir("previews")
	require.NoError(t, err)

	second, err := EnsureSubdDir("previews")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.DirExists(t, second)
}

func TestEnsureSubdDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	require.NoError(t, os.WriteFile("previews", []byte("x"), 0o660))

	_, err := EnsureSubdDir("previews")
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestWriteTemp_And_RemoveIfExists(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteTemp(dir, "prescription-*.jpg", []byte("jpeg"))
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))
	require.Equal(t, ".jpg", filepath.Ext(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg"), b)

	require.NoError(t, RemoveIfExists(path))
	require.NoFileExists(t, path)
	require.NoError(t, RemoveIfExists(path), "second removal is a no-op")
}

func TestWriteTemp_MissingDir(t *testing.T) {
	_, err := WriteTemp(filepath.Join(t.TempDir(), "missing"), "x-*", []byte("x"))
	require.ErrorContains(t, err, "create temp")
}
