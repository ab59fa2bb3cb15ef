package indexmerge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/errstack"
)

func naiveCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const samplePackages = `Package: bash
Version: 5.2-1
Architecture: amd64
Priority: required
Section: shells
Depends: libc6 (>= 2.34)
Provides: sh
Filename: pool/main/b/bash/bash_5.2-1_amd64.deb
Size: 1234567
MD5sum: d41d8cd98f00b204e9800998ecf8427e
SHA256: e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855
Description: the GNU Bourne Again SHell

Package: libc6
Version: 2.36-1
Architecture: amd64
Priority: required
Section: libs
Filename: pool/main/g/glibc/libc6_2.36-1_amd64.deb
Size: 2000000
MD5sum: 098f6bcd4621d373cade4e832627b4f6
`

func newTestGenerator() *Generator {
	c := cache.New("amd64", []string{"amd64"})
	return NewGenerator(c, naiveCompare)
}

func TestPackagesFileMergeRegistersVersionsAndDeb(t *testing.T) {
	path := writeTemp(t, "Packages", samplePackages)
	gen := newTestGenerator()
	registry := NewRegisteredPkgFiles()
	rel := gen.Cache.NewReleaseFile("http://example.test/debian", "stable", "bookworm", "12", "Example", "Example", true)

	f := NewPackagesFile(path, rel, "main", "amd64", registry)
	diags := errstack.New()
	require.NoError(t, f.Merge(gen, diags))
	assert.False(t, diags.HasError())

	bash := gen.Cache.FindPkg("bash", "amd64")
	require.NotZero(t, bash)
	pkg := gen.Cache.Package(bash)
	require.Len(t, pkg.Versions, 1)

	ver := pkg.Versions[0]
	v := gen.Cache.Version(ver)
	assert.Equal(t, "5.2-1", gen.Cache.Arena.String(arena.Version, v.VerStr))
	assert.Equal(t, uint8(cache.PriorityRequired), v.Priority)
	assert.NotZero(t, len(v.Depends))
	assert.NotZero(t, len(v.Provides))

	deb, ok := gen.DebFiles[ver]
	require.True(t, ok)
	assert.Equal(t, "pool/main/b/bash/bash_5.2-1_amd64.deb", deb.Filename)
	assert.EqualValues(t, 1234567, deb.Size)
}

func TestFindOrNewVersionDedupesOnMatchingHash(t *testing.T) {
	gen := newTestGenerator()
	pkg := gen.Cache.NewPackage("foo", "amd64")
	diags := errstack.New()

	v1 := gen.FindOrNewVersion(pkg, "1.0", 42, diags)
	v2 := gen.FindOrNewVersion(pkg, "1.0", 42, diags)
	assert.Equal(t, v1, v2)
	assert.False(t, diags.HasError())

	v3 := gen.FindOrNewVersion(pkg, "1.0", 99, diags)
	assert.Equal(t, v1, v3, "a differing hash at the same version string keeps the first stanza")
	assert.Equal(t, errstack.Warning, diags.All()[len(diags.All())-1].Severity)
}

func TestPackagesFileSkipsMalformedStanzaButContinues(t *testing.T) {
	body := samplePackages + "\nPackage: broken\n\n"
	path := writeTemp(t, "Packages", body)
	gen := newTestGenerator()
	registry := NewRegisteredPkgFiles()
	rel := gen.Cache.NewReleaseFile("http://example.test/debian", "stable", "bookworm", "12", "Example", "Example", true)

	f := NewPackagesFile(path, rel, "main", "amd64", registry)
	diags := errstack.New()
	require.NoError(t, f.Merge(gen, diags))

	assert.NotZero(t, gen.Cache.FindPkg("bash", "amd64"))
	assert.NotZero(t, gen.Cache.FindPkg("libc6", "amd64"))
}

func TestPackagesFileExistsAndSize(t *testing.T) {
	path := writeTemp(t, "Packages", samplePackages)
	f := NewPackagesFile(path, 0, "main", "amd64", NewRegisteredPkgFiles())
	assert.True(t, f.Exists())
	assert.Equal(t, int64(len(samplePackages)), f.Size())

	missing := NewPackagesFile(filepath.Join(t.TempDir(), "nope"), 0, "main", "amd64", NewRegisteredPkgFiles())
	assert.False(t, missing.Exists())
}
