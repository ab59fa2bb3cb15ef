package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/debcore/apt/internal/arena"
)

// TestWriteLoadRoundTrip covers testable property 1 ("Cache round-trip"):
// building, writing, and re-loading a cache preserves every id and every
// string those ids resolve to.
func TestWriteLoadRoundTrip(t *testing.T) {
	c := New("amd64", []string{"amd64", "i386"})
	a := c.NewPackage("a", "amd64")
	b := c.NewPackage("b", "amd64")
	aVer := c.NewVersion(a, "1.0", naiveCompare)
	c.NewVersion(b, "1.0", naiveCompare)
	c.NewDepends(aVer, "b", "", CompGreaterEq, "1.0", Depends, false)

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")
	require.NoError(t, c.Write(path, 100))

	mapped, ok, err := Load(path, "amd64", []string{"amd64", "i386"}, 100)
	require.NoError(t, err)
	require.True(t, ok)
	defer mapped.Close()

	loaded := mapped.Cache
	require.Equal(t, c.PackageCount(), loaded.PackageCount())
	require.Equal(t, c.VersionCount(), loaded.VersionCount())
	require.Equal(t, c.DepCount(), loaded.DepCount())

	gotA := loaded.FindPkg("a", "amd64")
	require.NotZero(t, gotA)
	require.Equal(t, "a", loaded.Arena.String(arena.Package, loaded.Package(gotA).Name))

	dep := loaded.Dep(loaded.Version(loaded.Package(gotA).Versions[0]).Depends[0])
	require.Equal(t, Depends, dep.Kind)
	require.Equal(t, "b", loaded.Arena.String(arena.Package, dep.TargetName))
}

// TestLoadStaleCacheTriggersRebuild covers "sources list mtime is newer"
// from §4.1: a cache built with an older source mtime than what the caller
// now observes must be reported as stale rather than trusted.
func TestLoadStaleCacheTriggersRebuild(t *testing.T) {
	c := New("amd64", nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")
	require.NoError(t, c.Write(path, 100))

	_, ok, err := Load(path, "amd64", nil, 200)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestLoadDifferentArchSetTriggersRebuild checks the layout-signature half
// of §4.1's "header mismatches target layout" rebuild condition.
func TestLoadDifferentArchSetTriggersRebuild(t *testing.T) {
	c := New("amd64", []string{"amd64"})
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")
	require.NoError(t, c.Write(path, 100))

	_, ok, err := Load(path, "amd64", []string{"amd64", "i386"}, 100)
	require.NoError(t, err)
	require.False(t, ok)
}
