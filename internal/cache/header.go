package cache

import "encoding/binary"

// magic identifies an apt package cache image. version bumps whenever the
// on-disk layout below changes incompatibly.
const (
	magic        uint32 = 0x41505443 // "APTC"
	layoutVersion uint32 = 3
)

// Header is the fixed-size prologue of the on-disk cache image (§6, "On-disk
// cache image"). A cache whose header doesn't match the target layout, or
// whose source-list mtime has moved on, is deleted and rebuilt rather than
// trusted (§4.1 "Opening a cache").
type Header struct {
	Magic          uint32
	Version        uint32
	NativeArchHash uint32
	DeclaredHash   uint32
	HashTableSize  uint32

	GroupCount   uint32
	PackageCount uint32
	VersionCount uint32
	DepCount     uint32
	ProvidesCount uint32
	RelFileCount uint32
	PkgFileCount uint32
	DescCount    uint32
	VerFileCount uint32
	DescFileCount uint32

	MixedPoolSize   uint32
	PackagePoolSize uint32
	VersionPoolSize uint32
	SectionPoolSize uint32

	// SourceMTime is the newest mtime across every sources-list input that
	// fed this build; a newer mtime on disk than this invalidates the
	// cache.
	SourceMTime int64

	// Dirty is nonzero while a generator is mid-write. A reader that finds
	// Dirty set treats the image as if it were absent and rebuilds.
	Dirty uint8

	_ [7]byte // pad to a multiple of 8
}

// headerSize is generous padding over the fields actually marshaled above,
// keeping room to grow the header without bumping layoutVersion for every
// new field.
const headerSize = 128

// fnv32 hashes a declared-architecture list (or a single native arch
// string) into the header's layout-signature fields, so a cache built for
// a different architecture set is detected without decoding the whole
// string arena.
func fnv32(ss ...string) uint32 {
	var h uint32 = 2166136261
	for _, s := range ss {
		for i := 0; i < len(s); i++ {
			h ^= uint32(s[i])
			h *= 16777619
		}
		h ^= 0xff
		h *= 16777619
	}
	return h
}

// Matches reports whether h is a valid, up-to-date header for a cache built
// from nativeArch/declared with the given source-list mtime.
func (h Header) Matches(nativeArch string, declared []string, sourceMTime int64) bool {
	if h.Magic != magic || h.Version != layoutVersion || h.Dirty != 0 {
		return false
	}
	if h.NativeArchHash != fnv32(nativeArch) || h.DeclaredHash != fnv32(declared...) {
		return false
	}
	return h.SourceMTime >= sourceMTime
}

func (h *Header) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint32(buf[8:], h.NativeArchHash)
	binary.LittleEndian.PutUint32(buf[12:], h.DeclaredHash)
	binary.LittleEndian.PutUint32(buf[16:], h.HashTableSize)
	binary.LittleEndian.PutUint32(buf[20:], h.GroupCount)
	binary.LittleEndian.PutUint32(buf[24:], h.PackageCount)
	binary.LittleEndian.PutUint32(buf[28:], h.VersionCount)
	binary.LittleEndian.PutUint32(buf[32:], h.DepCount)
	binary.LittleEndian.PutUint32(buf[36:], h.ProvidesCount)
	binary.LittleEndian.PutUint32(buf[40:], h.RelFileCount)
	binary.LittleEndian.PutUint32(buf[44:], h.PkgFileCount)
	binary.LittleEndian.PutUint32(buf[48:], h.DescCount)
	binary.LittleEndian.PutUint32(buf[52:], h.VerFileCount)
	binary.LittleEndian.PutUint32(buf[56:], h.DescFileCount)
	binary.LittleEndian.PutUint32(buf[60:], h.MixedPoolSize)
	binary.LittleEndian.PutUint32(buf[64:], h.PackagePoolSize)
	binary.LittleEndian.PutUint32(buf[68:], h.VersionPoolSize)
	binary.LittleEndian.PutUint32(buf[72:], h.SectionPoolSize)
	binary.LittleEndian.PutUint64(buf[76:], uint64(h.SourceMTime))
	buf[84] = h.Dirty
}

func unmarshalHeader(buf []byte) Header {
	var h Header
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	h.Version = binary.LittleEndian.Uint32(buf[4:])
	h.NativeArchHash = binary.LittleEndian.Uint32(buf[8:])
	h.DeclaredHash = binary.LittleEndian.Uint32(buf[12:])
	h.HashTableSize = binary.LittleEndian.Uint32(buf[16:])
	h.GroupCount = binary.LittleEndian.Uint32(buf[20:])
	h.PackageCount = binary.LittleEndian.Uint32(buf[24:])
	h.VersionCount = binary.LittleEndian.Uint32(buf[28:])
	h.DepCount = binary.LittleEndian.Uint32(buf[32:])
	h.ProvidesCount = binary.LittleEndian.Uint32(buf[36:])
	h.RelFileCount = binary.LittleEndian.Uint32(buf[40:])
	h.PkgFileCount = binary.LittleEndian.Uint32(buf[44:])
	h.DescCount = binary.LittleEndian.Uint32(buf[48:])
	h.VerFileCount = binary.LittleEndian.Uint32(buf[52:])
	h.DescFileCount = binary.LittleEndian.Uint32(buf[56:])
	h.MixedPoolSize = binary.LittleEndian.Uint32(buf[60:])
	h.PackagePoolSize = binary.LittleEndian.Uint32(buf[64:])
	h.VersionPoolSize = binary.LittleEndian.Uint32(buf[68:])
	h.SectionPoolSize = binary.LittleEndian.Uint32(buf[72:])
	h.SourceMTime = int64(binary.LittleEndian.Uint64(buf[76:]))
	h.Dirty = buf[84]
	return h
}
