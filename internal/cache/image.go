package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/debcore/apt/internal/arena"
)

// entityTables is the gob-serializable slice-of-structs payload. The four
// string pools are kept out of this struct: they are written as raw bytes
// immediately after it and mmap'd back in directly, which is where the bulk
// of a real cache's size (and the payoff of mmap'ing at all) actually
// lives. Entity tables are comparatively small and decoding them normally
// keeps every downstream package working with plain Go slices instead of
// hand-rolled unsafe casts over the mapped region.
type entityTables struct {
	Groups    []Group
	Packages  []Package
	Versions  []Version
	Deps      []Dependency
	Provides  []Provides
	RelFiles  []RelFile
	PkgFiles  []PkgFile
	Descs     []Description
	VerFiles  []VerFile
	DescFiles []DescFile
	GroupHash [hashTableSize]GroupID
	PkgHash   [hashTableSize]PkgID
}

// Write atomically persists c to path: the image is built up in
// "<path>.new", fsync'd, then renamed over path, per §4.1 "Atomic write".
// The dirty bit is set for the duration of the write and cleared just
// before the rename so that a crash mid-write always leaves either the old
// valid image or nothing, never a half-written one mistaken for valid.
func (c *Cache) Write(path string, sourceMTime int64) error {
	tmp := path + ".new"

	tables := entityTables{
		Groups: c.groups, Packages: c.packages, Versions: c.versions,
		Deps: c.deps, Provides: c.provides, RelFiles: c.relFiles,
		PkgFiles: c.pkgFiles, Descs: c.descs, VerFiles: c.verFiles,
		DescFiles: c.descFiles, GroupHash: c.groupHash, PkgHash: c.pkgHash,
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(tables); err != nil {
		return fmt.Errorf("cache: encode entity tables: %w", err)
	}

	h := Header{
		Magic:          magic,
		Version:        layoutVersion,
		NativeArchHash: fnv32(c.NativeArch),
		DeclaredHash:   fnv32(c.DeclaredArchitectures...),
		HashTableSize:  hashTableSize,
		GroupCount:     uint32(c.GroupCount()),
		PackageCount:   uint32(c.PackageCount()),
		VersionCount:   uint32(c.VersionCount()),
		DepCount:       uint32(c.DepCount()),
		ProvidesCount:  uint32(len(c.provides) - 1),
		RelFileCount:   uint32(len(c.relFiles) - 1),
		PkgFileCount:   uint32(len(c.pkgFiles) - 1),
		DescCount:      uint32(len(c.descs) - 1),
		VerFileCount:   uint32(len(c.verFiles) - 1),
		DescFileCount:  uint32(len(c.descFiles) - 1),
		MixedPoolSize:   uint32(c.Arena.Len(arena.Mixed)),
		PackagePoolSize: uint32(c.Arena.Len(arena.Package)),
		VersionPoolSize: uint32(c.Arena.Len(arena.Version)),
		SectionPoolSize: uint32(c.Arena.Len(arena.Section)),
		SourceMTime:     sourceMTime,
		Dirty:           1,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir: %w", err)
	}
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cache: open %s: %w", tmp, err)
	}
	defer f.Close()

	hdrBuf := make([]byte, headerSize)
	h.marshal(hdrBuf)

	payloadLenBuf := make([]byte, 8)
	putUint64(payloadLenBuf, uint64(payload.Len()))

	for _, chunk := range [][]byte{hdrBuf, payloadLenBuf, payload.Bytes(),
		c.Arena.Bytes(arena.Mixed), c.Arena.Bytes(arena.Package),
		c.Arena.Bytes(arena.Version), c.Arena.Bytes(arena.Section)} {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("cache: write: %w", err)
		}
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("cache: fsync: %w", err)
	}

	// Clear the dirty bit in place before the rename makes this the
	// production image.
	h.Dirty = 0
	h.marshal(hdrBuf)
	if _, err := f.WriteAt(hdrBuf, 0); err != nil {
		return fmt.Errorf("cache: clear dirty bit: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("cache: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cache: close: %w", err)
	}

	return os.Rename(tmp, path)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
