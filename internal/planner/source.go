package planner

import (
	"path"

	"github.com/debcore/apt/internal/acquire"
	"github.com/debcore/apt/internal/errstack"
	"github.com/debcore/apt/internal/indexmerge"
)

// FindSource looks up the SourceRecord for name: when version is non-empty
// it returns the record with exactly that version; otherwise it returns the
// first matching record in sources order (the highest-priority component
// listed first in the sources list). Versions are not compared.
func FindSource(sources []indexmerge.SourceRecord, name, version string) (indexmerge.SourceRecord, bool) {
	var best indexmerge.SourceRecord
	found := false
	for _, rec := range sources {
		if rec.Package != name {
			continue
		}
		if version != "" {
			if rec.Version == version {
				return rec, true
			}
			continue
		}
		if !found {
			best, found = rec, true
		}
	}
	return best, found
}

// BuildSourceFetchPlan builds the Items needed to download every file
// (.dsc, orig tarball, debian tarball/diff) listed in rec.Files, per §2's
// "source-fetch" share: a plain file-by-file fetch under rec.Directory,
// with no solver involvement since a source package carries its own
// manifest rather than depending on the cache's Depends graph.
func BuildSourceFetchPlan(root string, rec indexmerge.SourceRecord, destDir string, diags *errstack.Diagnostics) (*Plan, error) {
	plan := &Plan{}
	if len(rec.Files) == 0 {
		diags.Add(errstack.Error, "source package %s %s has no Files entries", rec.Package, rec.Version)
		return plan, nil
	}

	for _, f := range rec.Files {
		it := &acquire.Item{
			URI:            joinURI(root, path.Join(rec.Directory, f.Name)),
			Destination:    path.Join(destDir, f.Name),
			ExpectedHashes: acquire.Hashes{"MD5Sum": f.MD5},
			ExpectedSize:   f.Size,
			HashesRequired: f.MD5 != "",
		}
		plan.Items = append(plan.Items, it)
	}
	return plan, nil
}
