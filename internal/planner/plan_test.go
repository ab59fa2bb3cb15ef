package planner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/debcore/apt/internal/cache"
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

func TestSanitizeVersionEscapesEpochColon(t *testing.T) {
	assert.Equal(t, "1%3a2.0-3", sanitizeVersion("1:2.0-3"))
	assert.Equal(t, "2.0-3", sanitizeVersion("2.0-3"))
}

func TestJoinURI(t *testing.T) {
	assert.Equal(t, "http://example.test/debian/pool/main/b/bash.deb", joinURI("http://example.test/debian", "pool/main/b/bash.deb"))
	assert.Equal(t, "http://example.test/debian/pool/main/b/bash.deb", joinURI("http://example.test/debian/", "pool/main/b/bash.deb"))
}

func TestDebDestinationNamesByPackageVersionArch(t *testing.T) {
	c := cache.New("amd64", []string{"amd64"})
	pkg := c.NewPackage("bash", "amd64")
	ver := c.NewVersion(pkg, "1:5.2-1", naiveCompare)

	got := debDestination(c, ver, "/archives")
	assert.Equal(t, filepath.Join("/archives", "bash_1%3a5.2-1_amd64.deb"), got)
}

func TestArchiveURIFromRegisteredFile(t *testing.T) {
	c := cache.New("amd64", []string{"amd64"})
	pkg := c.NewPackage("bash", "amd64")
	ver := c.NewVersion(pkg, "5.2-1", naiveCompare)

	_, ok := archiveURI(c, ver)
	assert.False(t, ok, "a version with no registered file has no archive URI")

	rel := c.NewReleaseFile("http://example.test/debian", "stable", "bookworm", "12", "Example", "Example", true)
	pf := c.NewPackageFile(rel, "dists/bookworm/main/binary-amd64/Packages", "main", "amd64", "Packages", 0, 0)
	c.NewFileVer(ver, pf)

	root, ok := archiveURI(c, ver)
	assert.True(t, ok)
	assert.Equal(t, "http://example.test/debian", root)
}

func TestHashesFromOmitsEmptyFields(t *testing.T) {
	h := hashesFrom("", "")
	assert.Empty(t, h)

	h = hashesFrom("abc", "")
	assert.Equal(t, "abc", h["MD5Sum"])
	_, ok := h["SHA256"]
	assert.False(t, ok)
}
