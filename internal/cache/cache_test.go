package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debcore/apt/internal/arena"
)

// naiveCompare is a minimal stand-in VersionComparator for tests that don't
// care about dpkg's epoch/tilde semantics, only about "is a before b".
func naiveCompare(a, b string) int { return strings.Compare(a, b) }

func verStr(c *Cache, id VerID) string {
	return c.Arena.String(arena.Version, c.Version(id).VerStr)
}

func TestFindPkgExactNameAndArch(t *testing.T) {
	c := New("amd64", []string{"amd64", "i386"})
	c.NewPackage("bash", "amd64")

	assert.NotZero(t, c.FindPkg("bash", "amd64"))
	assert.NotZero(t, c.FindPkg("BASH", "amd64")) // case-insensitive name
	assert.Zero(t, c.FindPkg("bash", "i386"))     // different arch, not inserted
	assert.Zero(t, c.FindPkg("bashful", "amd64")) // never inserted
}

func TestNewPackageSharesGroup(t *testing.T) {
	c := New("amd64", []string{"amd64", "i386"})
	amd64ID := c.NewPackage("libfoo", "amd64")
	i386ID := c.NewPackage("libfoo", "i386")

	amd64Pkg := c.Package(amd64ID)
	i386Pkg := c.Package(i386ID)
	require.Equal(t, amd64Pkg.Group, i386Pkg.Group)

	grp := c.Group(amd64Pkg.Group)
	assert.ElementsMatch(t, []PkgID{amd64ID, i386ID}, grp.Packages)
}

func TestNewVersionDescendingOrder(t *testing.T) {
	c := New("amd64", nil)
	pkg := c.NewPackage("foo", "amd64")

	c.NewVersion(pkg, "1.0", naiveCompare)
	c.NewVersion(pkg, "3.0", naiveCompare)
	c.NewVersion(pkg, "2.0", naiveCompare)

	p := c.Package(pkg)
	require.Len(t, p.Versions, 3)
	assert.Equal(t, "3.0", verStr(c, p.Versions[0]))
	assert.Equal(t, "2.0", verStr(c, p.Versions[1]))
	assert.Equal(t, "1.0", verStr(c, p.Versions[2]))
}

func TestNewDependsInstallsReverseDepend(t *testing.T) {
	c := New("amd64", nil)
	a := c.NewPackage("a", "amd64")
	b := c.NewPackage("b", "amd64")

	aVer := c.NewVersion(a, "1.0", naiveCompare)
	depID := c.NewDepends(aVer, "b", "", CompGreaterEq, "1.0", Depends, false)

	bPkg := c.Package(b)
	require.Contains(t, bPkg.ReverseDepend, depID)
}

func TestAddImplicitMultiArchSame(t *testing.T) {
	c := New("amd64", []string{"amd64", "i386"})
	amd64 := c.NewPackage("libfoo", "amd64")
	c.NewPackage("libfoo", "i386")

	ver := c.NewVersion(amd64, "1.0", naiveCompare)
	c.Version(ver).MultiArch = MultiArchSame
	c.AddImplicitMultiArch(ver)

	v := c.Version(ver)
	require.Len(t, v.Depends, 2)
	assert.Equal(t, Breaks, c.Dep(v.Depends[0]).Kind)
	assert.Equal(t, Replaces, c.Dep(v.Depends[1]).Kind)
}

func TestAddImplicitMultiArchConflicts(t *testing.T) {
	c := New("amd64", []string{"amd64", "i386"})
	amd64 := c.NewPackage("libbar", "amd64")
	c.NewPackage("libbar", "i386")

	ver := c.NewVersion(amd64, "1.0", naiveCompare)
	c.AddImplicitMultiArch(ver) // MultiArchNone is the zero value

	v := c.Version(ver)
	require.Len(t, v.Depends, 1)
	assert.Equal(t, Conflicts, c.Dep(v.Depends[0]).Kind)
}
