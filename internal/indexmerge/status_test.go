package indexmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debcore/apt/internal/errstack"
)

const sampleStatus = `Package: bash
Status: install ok installed
Priority: required
Section: shells
Architecture: amd64
Version: 5.2-1
Depends: libc6 (>= 2.34)

Package: old-purged
Status: purge ok not-installed
Architecture: amd64
Version: 1.0-1

Package: half-removed
Status: deinstall ok config-files
Architecture: amd64
Version: 0.9-1
`

func TestStatusFileSetsCurrentVer(t *testing.T) {
	path := writeTemp(t, "status", sampleStatus)
	gen := newTestGenerator()

	f := NewStatusFile(path, NewRegisteredPkgFiles())
	diags := errstack.New()
	require.NoError(t, f.Merge(gen, diags))
	assert.False(t, diags.HasError())

	bash := gen.Cache.FindPkg("bash", "amd64")
	require.NotZero(t, bash)
	pkg := gen.Cache.Package(bash)
	require.NotZero(t, pkg.CurrentVer)
}

func TestStatusFileSkipsFullyPurgedPackage(t *testing.T) {
	path := writeTemp(t, "status", sampleStatus)
	gen := newTestGenerator()

	f := NewStatusFile(path, NewRegisteredPkgFiles())
	diags := errstack.New()
	require.NoError(t, f.Merge(gen, diags))

	assert.Zero(t, gen.Cache.FindPkg("old-purged", "amd64"))
}

func TestStatusFileConfigFilesNotCurrentVer(t *testing.T) {
	path := writeTemp(t, "status", sampleStatus)
	gen := newTestGenerator()

	f := NewStatusFile(path, NewRegisteredPkgFiles())
	diags := errstack.New()
	require.NoError(t, f.Merge(gen, diags))

	half := gen.Cache.FindPkg("half-removed", "amd64")
	require.NotZero(t, half)
	assert.Zero(t, gen.Cache.Package(half).CurrentVer)
}
