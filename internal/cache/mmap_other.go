//go:build !unix

package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/debcore/apt/internal/arena"
)

// mappedCache mirrors the unix variant's API on platforms without a raw
// mmap syscall; it reads the whole image into memory instead of mapping it.
type mappedCache struct {
	*Cache
	data []byte
}

func (m *mappedCache) Close() error {
	m.data = nil
	return nil
}

// Load is the non-unix fallback for mmap_unix.go's Load: same contract,
// implemented with a plain read since there is no portable mmap here.
func Load(path, nativeArch string, declared []string, sourceMTime int64) (*mappedCache, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: read %s: %w", path, err)
	}
	if len(data) < headerSize+8 {
		return nil, false, nil
	}

	h := unmarshalHeader(data[:headerSize])
	if !h.Matches(nativeArch, declared, sourceMTime) {
		return nil, false, nil
	}

	payloadLen := getUint64(data[headerSize : headerSize+8])
	payloadStart := headerSize + 8
	payloadEnd := payloadStart + int(payloadLen)
	if payloadEnd > len(data) {
		return nil, false, fmt.Errorf("cache: %s: payload length out of range", path)
	}

	var tables entityTables
	dec := gob.NewDecoder(bytes.NewReader(data[payloadStart:payloadEnd]))
	if err := dec.Decode(&tables); err != nil {
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
			return nil, false, fmt.Errorf("cache: %s: arena pool out of range", path)
		}
		c.Arena.LoadPool(spec.pool, data[off:end])
		off = end
	}

	return &mappedCache{Cache: c, data: data}, true, nil
}
