package main

import (
	"github.com/debcore/apt/internal/arena"
	"github.com/debcore/apt/internal/cache"
)

// pkgName returns "name:arch" the way apt-cache policy prints a package
// identity, or bare "name" when arch is the native one.
func pkgName(c *cache.Cache, pkg cache.PkgID) string {
	p := c.Package(pkg)
	name := c.Arena.String(arena.Package, p.Name)
	archName := c.Arena.String(arena.Mixed, p.Arch)
	if archName == c.NativeArch || archName == "" {
		return name
	}
	return name + ":" + archName
}

// verStr returns the dpkg version string a Version carries.
func verStr(c *cache.Cache, ver cache.VerID) string {
	if ver == 0 {
		return "(none)"
	}
	return c.Arena.String(arena.Version, c.Version(ver).VerStr)
}
