package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDirectory_Exists(t *testing.T) {
	dir := t.TempDir()
	out, err := ValidateDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, out)
}

func TestValidateDirectory_NotExists(t *testing.T) {
	_, err := ValidateDirectory(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestValidateDirectory_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := ValidateDirectory(file)
	require.Error(t, err)
}

func TestFindProjectRoot_FindsGitDirUpward(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)

	resolvedRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, resolvedRoot, found)
}

func TestFindProjectRoot_PrefersVCSOverLanguageMarkerAtSameLevel(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x"), 0o644))

	found, err := FindProjectRoot(root)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, resolved, found)
}

func TestFindProjectRoot_FallsBackToStartPathWhenNoMarkerFound(t *testing.T) {
	// A deep temp dir with no markers anywhere above it down to the
	// filesystem root would be unusual in CI, so this only checks that
	// resolution does not error and returns some canonical path.
	dir := t.TempDir()
	found, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, found)
}

func TestNamespaceAndDir_DefaultsProviderToVoyage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	ns, dir, err := NamespaceAndDir(root, "")
	require.NoError(t, err)
	assert.Contains(t, ns, "tg_voyage_")
	assert.NotEmpty(t, dir)
}

func TestNamespaceAndDir_IsStableAcrossCalls(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	ns1, dir1, err := NamespaceAndDir(root, "local")
	require.NoError(t, err)
	ns2, dir2, err := NamespaceAndDir(root, "local")
	require.NoError(t, err)

	assert.Equal(t, ns1, ns2)
	assert.Equal(t, dir1, dir2)
	assert.Contains(t, ns1, "tg_local_")
}

func TestNamespaceAndDir_DifferentRootsDifferentNamespace(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(rootA, ".git"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(rootB, ".git"), 0o755))

	nsA, _, err := NamespaceAndDir(rootA, "voyage")
	require.NoError(t, err)
	nsB, _, err := NamespaceAndDir(rootB, "voyage")
	require.NoError(t, err)

	assert.NotEqual(t, nsA, nsB)
}
