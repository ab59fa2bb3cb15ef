package indexmerge

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debcore/apt/internal/cache"
	"github.com/debcore/apt/internal/errstack"
)

func TestMergeAllSkipsMissingIndex(t *testing.T) {
	gen := newTestGenerator()
	registry := NewRegisteredPkgFiles()
	f := NewPackagesFile(filepath.Join(t.TempDir(), "missing-Packages"), 0, "main", "amd64", registry)

	diags := errstack.New()
	require.NoError(t, gen.MergeAll([]IndexFile{f}, diags))

	found := false
	for _, d := range diags.All() {
		if d.Severity == errstack.Notice {
			found = true
		}
	}
	assert.True(t, found, "a missing index should record a Notice, not abort the merge")
}

func TestResolveFileDepsConnectsPathProvides(t *testing.T) {
	gen := newTestGenerator()
	depender := gen.Cache.NewPackage("needs-sh", "amd64")
	depVer := gen.Cache.NewVersion(depender, "1.0", gen.Compare)
	gen.Cache.NewDepends(depVer, "/bin/sh", "", cache.CompNone, "", cache.Depends, false)
	gen.AddFileDependency(depVer, "/bin/sh")

	provider := gen.Cache.NewPackage("dash", "amd64")
	provVer := gen.Cache.NewVersion(provider, "1.0", gen.Compare)
	gen.RegisterProvidedPath(provVer, "/bin/sh")

	gen.resolveFileDeps()

	prov := gen.Cache.Version(provVer)
	require.Len(t, prov.Provides, 1)
	p := gen.Cache.Provide(prov.Provides[0])
	assert.Equal(t, provVer, p.Version)
}

func TestRegisteredPkgFilesRoundTrip(t *testing.T) {
	r := NewRegisteredPkgFiles()
	assert.Zero(t, r.Find("/not/registered"))
	r.Register("/a/Packages", cache.PkgFileID(7))
	assert.EqualValues(t, 7, r.Find("/a/Packages"))
}
