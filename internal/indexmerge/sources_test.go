package indexmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debcore/apt/internal/errstack"
)

const sampleSources = `Package: bash
Binary: bash
Version: 5.2-1
Priority: required
Section: shells
Directory: pool/main/b/bash
Build-Depends: debhelper (>= 12), gettext
Files:
 d41d8cd98f00b204e9800998ecf8427e 123456 bash_5.2-1.dsc
 098f6bcd4621d373cade4e832627b4f6 654321 bash_5.2.orig.tar.gz
`

func TestSourcesFileMergeAppendsRecord(t *testing.T) {
	path := writeTemp(t, "Sources", sampleSources)
	gen := newTestGenerator()
	rel := gen.Cache.NewReleaseFile("http://example.test/debian", "stable", "bookworm", "12", "Example", "Example", true)

	f := NewSourcesFile(path, rel, "main", NewRegisteredPkgFiles())
	diags := errstack.New()
	require.NoError(t, f.Merge(gen, diags))
	assert.False(t, diags.HasError())

	require.Len(t, gen.Sources, 1)
	rec := gen.Sources[0]
	assert.Equal(t, "bash", rec.Package)
	assert.Equal(t, "5.2-1", rec.Version)
	assert.Equal(t, "pool/main/b/bash", rec.Directory)
	assert.Equal(t, []string{"bash"}, rec.Binaries)
	require.Len(t, rec.Files, 2)
	assert.Equal(t, "bash_5.2-1.dsc", rec.Files[0].Name)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", rec.Files[0].MD5)
	assert.EqualValues(t, 123456, rec.Files[0].Size)
}

func TestSourcesFileExistsAndDescribe(t *testing.T) {
	path := writeTemp(t, "Sources", sampleSources)
	f := NewSourcesFile(path, 0, "main", NewRegisteredPkgFiles())
	assert.True(t, f.Exists())
	assert.Contains(t, f.Describe(true), "Sources")

	missing := NewSourcesFile(path+".missing", 0, "main", NewRegisteredPkgFiles())
	assert.False(t, missing.Exists())
}
