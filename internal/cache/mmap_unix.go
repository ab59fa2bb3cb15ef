//go:build unix

package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/debcore/apt/internal/arena"
)

// mappedCache wraps an open, mmap'd cache image so Close can unmap it.
type mappedCache struct {
	*Cache
	data []byte
}

// Close unmaps the backing image. A cache loaded from disk must be closed
// before the file is rewritten by a new generator run.
func (m *mappedCache) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// Load mmaps path read-only and reconstructs a Cache from it, without
// copying the string arena. It returns (nil, false, nil) when the image's
// header doesn't match nativeArch/declared/sourceMTime — "the cache is
// rebuilt" per §4.1 — rather than an error, since a stale cache is the
// expected steady-state condition right after a sources-list edit.
func Load(path, nativeArch string, declared []string, sourceMTime int64) (*mappedCache, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("cache: stat %s: %w", path, err)
	}
	if fi.Size() < headerSize+8 {
		return nil, false, nil // truncated image
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, false, fmt.Errorf("cache: mmap %s: %w", path, err)
	}

	h := unmarshalHeader(data[:headerSize])
	if !h.Matches(nativeArch, declared, sourceMTime) {
		_ = unix.Munmap(data)
		return nil, false, nil
	}

	payloadLen := getUint64(data[headerSize : headerSize+8])
	payloadStart := headerSize + 8
	payloadEnd := payloadStart + int(payloadLen)
	if payloadEnd > len(data) {
		_ = unix.Munmap(data)
		return nil, false, fmt.Errorf("cache: %s: payload length out of range", path)
	}

	var tables entityTables
	dec := gob.NewDecoder(bytes.NewReader(data[payloadStart:payloadEnd]))
	if err := dec.Decode(&tables); err != nil {
		_ = unix.Munmap(data)
		return nil, false, fmt.Errorf("cache: decode entity tables: %w", err)
	}

	c := &Cache{
		Arena:                 arena.New(),
		NativeArch:            nativeArch,
		DeclaredArchitectures: declared,
		groups:                tables.Groups,
		packages:              tables.Packages,
		versions:              tables.Versions,
		deps:                  tables.Deps,
		provides:              tables.Provides,
		relFiles:              tables.RelFiles,
		pkgFiles:              tables.PkgFiles,
		descs:                 tables.Descs,
		verFiles:              tables.VerFiles,
		descFiles:             tables.DescFiles,
		groupHash:             tables.GroupHash,
		pkgHash:               tables.PkgHash,
	}

	off := payloadEnd
	for _, spec := range []struct {
		pool arena.Pool
		size uint32
	}{
		{arena.Mixed, h.MixedPoolSize},
		{arena.Package, h.PackagePoolSize},
		{arena.Version, h.VersionPoolSize},
		{arena.Section, h.SectionPoolSize},
	} {
		end := off + int(spec.size)
		if end > len(data) {
			_ = unix.Munmap(data)
			return nil, false, fmt.Errorf("cache: %s: arena pool out of range", path)
		}
		c.Arena.LoadPool(spec.pool, data[off:end])
		off = end
	}

	return &mappedCache{Cache: c, data: data}, true, nil
}
