// Package cache implements the content-addressed, mmap-backed binary
// package cache: the immutable image of every group, package, version,
// dependency, provides record, and file descriptor known to a run.
//
// Entities are never referenced by pointer; every cross-reference is a
// typed 32-bit ID into one of the Cache's side-table slices. This follows
// the arena+typed-index redesign in the original's design notes rather than
// its pointer-into-mmap model: when the backing store grows there is
// nothing to rebase, because there are no raw pointers to begin with.
package cache

import "github.com/debcore/apt/internal/arena"

// GroupID identifies a package group (a package name, independent of
// architecture). Zero is "none".
type GroupID uint32

// PkgID identifies a (name, architecture) package. Zero is "none".
type PkgID uint32

// VerID identifies a version of a package. Zero is "none".
type VerID uint32

// DepID identifies a single dependency record. Zero is "none".
type DepID uint32

// ProvidesID identifies a single provides record. Zero is "none".
type ProvidesID uint32

// PkgFileID identifies a Package-file descriptor (one index file). Zero is
// "none".
type PkgFileID uint32

// RelFileID identifies a Release-file descriptor. Zero is "none".
type RelFileID uint32

// DescID identifies a description record. Zero is "none".
type DescID uint32

// VerFileID identifies a (version, package-file) binding: the same version
// string may appear in more than one index file.
type VerFileID uint32

// DescFileID identifies a (description, package-file) binding.
type DescFileID uint32

// MultiArch enumerates the multi-arch kinds a Version can declare, per the
// dpkg-multiarch proposal. It governs both co-installability within a
// Group and whether a version can satisfy an arch-agnostic dependency from
// a foreign architecture.
type MultiArch uint8

const (
	MultiArchNone MultiArch = iota
	MultiArchSame
	MultiArchForeign
	MultiArchAllowed
)

// DepKind enumerates the dependency relationship kinds. The ordering
// matches Critical/Negative classification helpers below.
type DepKind uint8

const (
	Depends DepKind = iota
	PreDepends
	Recommends
	Suggests
	Enhances
	Conflicts
	Breaks
	Replaces
	Obsoletes
)

// Critical reports whether the kind must be satisfied for the owning
// version to be considered installable.
func (k DepKind) Critical() bool {
	switch k {
	case Depends, PreDepends, Conflicts, Breaks:
		return true
	default:
		return false
	}
}

// Negative reports whether satisfying the kind requires the *absence* of
// the target rather than its presence.
func (k DepKind) Negative() bool {
	switch k {
	case Conflicts, Breaks, Obsoletes:
		return true
	default:
		return false
	}
}

func (k DepKind) String() string {
	switch k {
	case Depends:
		return "Depends"
	case PreDepends:
		return "PreDepends"
	case Recommends:
		return "Recommends"
	case Suggests:
		return "Suggests"
	case Enhances:
		return "Enhances"
	case Conflicts:
		return "Conflicts"
	case Breaks:
		return "Breaks"
	case Replaces:
		return "Replaces"
	case Obsoletes:
		return "Obsoletes"
	default:
		return "Unknown"
	}
}

// CompOp enumerates the version-comparison operators allowed in a
// dependency's version constraint, per Debian policy §7.1.
type CompOp uint8

const (
	CompNone CompOp = iota
	CompLess         // <<
	CompLessEq       // <=
	CompEq           // =
	CompGreaterEq    // >=
	CompGreater      // >>
	// CompNotEqual is not a real Debian policy operator; it backs the
	// implicit multi-arch Breaks relation ("!= version"), which the
	// solver treats as the negation of CompEq.
	CompNotEqual
)

// ProvidesFlag enumerates the distinguishing flags a Provides record may
// carry.
type ProvidesFlag uint8

const (
	ProvidesExplicit ProvidesFlag = 1 << iota
	ProvidesMultiArchImplicit
	ProvidesArchSpecific
)

// Group is a package name: the closed set of all its arch-qualified
// Packages.
type Group struct {
	Name     arena.ID // Package pool
	Packages []PkgID  // ordered by insertion
	nextHash GroupID  // hash-chain link
}

// Package is a (name, architecture) pair.
type Package struct {
	Group         GroupID
	Name          arena.ID // Package pool
	Arch          arena.ID // Mixed pool
	Versions      []VerID  // ordered, descending by NewVersion's VersionComparator
	CurrentVer    VerID    // version installed per the status file, if any
	ReverseDepend []DepID  // dependencies whose target is this package
	Provides      []ProvidesID
	nextHash      PkgID // hash-chain link
}

// Version is a single candidate install object.
type Version struct {
	Pkg            PkgID
	VerStr         arena.ID // Version pool
	Hash           uint64   // control-stanza hash, used to dedupe equal versions
	SourcePkg      arena.ID // Mixed pool
	SourceVer      arena.ID // Mixed pool
	Priority       uint8
	MultiArch      MultiArch
	Section        arena.ID // Section pool
	InstalledSize  uint64
	DownloadSize   uint64
	Depends        []DepID
	Provides       []ProvidesID
	Files          []VerFileID
	Descriptions   []DescID
	NotAutomatic   bool
	ButAutoUpgrade bool

	// Essential and Important mirror dpkg's Essential and Priority:
	// required control fields that the autoremove root set (§4.4
	// design notes) and the provider comparator (§4.2) both consult.
	Essential bool
	Important bool
}

// Priority values, ordered low to high; stored in Version.Priority.
const (
	PriorityExtra uint8 = iota
	PriorityOptional
	PriorityStandard
	PriorityImportant
	PriorityRequired
)

// Dependency is one edge: Parent depends on TargetPkg under Constraint,
// with kind Kind. OR is true when this record is not the last alternative
// in its OR-group (i.e. there is a following sibling joined by "|").
type Dependency struct {
	Parent       VerID
	TargetPkg    GroupID // resolved lazily against the target's Group
	TargetName   arena.ID
	TargetArch   arena.ID // may be None: arch-agnostic
	Constraint   CompOp
	ConstraintVer arena.ID // Version pool; None if Constraint == CompNone
	Kind         DepKind
	Or           bool
}

// Provides is a virtual capability a Version declares toward TargetName.
type Provides struct {
	Version    VerID
	TargetName arena.ID
	ProvideVer arena.ID // may be None
	Flags      ProvidesFlag
}

// RelFile describes one Release file.
type RelFile struct {
	Site     arena.ID
	Archive  arena.ID
	Codename arena.ID
	Version  arena.ID
	Origin   arena.ID
	Label    arena.ID
	Trusted  bool
	NotAutomatic bool
	ButAutomaticUpgrades bool
}

// PkgFile describes one Package/Sources index file, belonging to one
// RelFile (or none, for the dpkg status file / local .deb imports).
type PkgFile struct {
	RelFile   RelFileID
	Filename  arena.ID
	Component arena.ID
	Arch      arena.ID
	MTime     int64
	Size      int64
	IndexType arena.ID // "Packages", "Sources", "Translation-xx", "Status", ...
	NotSource bool
}

// Description is a (language, md5) pair shared across all versions whose
// long description text is identical.
type Description struct {
	Language arena.ID
	MD5      [16]byte
	Files    []DescFileID
}

// VerFile binds a Version to the PkgFile it was read from, so a version
// present in more than one index keeps a record per occurrence.
type VerFile struct {
	Ver  VerID
	File PkgFileID
}

// DescFile binds a Description to the PkgFile its translation came from.
type DescFile struct {
	Desc DescID
	File PkgFileID
}
