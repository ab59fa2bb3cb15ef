package planner

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/debcore/apt/internal/indexmerge"
)

// ParseCDROMDatabase reads the apt-config-grammar CDROM database (§6): one
// `%f "%v";` line per known disc, mapping its content-hash identifier to
// the human-visible label the user was asked for the first time it was
// seen.
func ParseCDROMDatabase(r io.Reader) (map[string]string, error) {
	db := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		hash, label, ok := parseCDROMLine(line)
		if !ok {
			return nil, fmt.Errorf("planner: malformed CDROM database line %q", line)
		}
		db[hash] = label
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return db, nil
}

// parseCDROMLine splits one `"hash" "label";` line at its first space and
// unquotes both halves with strconv.Unquote, so escaped quotes in the label
// are decoded. A quoted hash that contains a space is rejected as
// malformed.
func parseCDROMLine(line string) (hash, label string, ok bool) {
	if !strings.HasSuffix(line, ";") {
		return "", "", false
	}
	line = strings.TrimSuffix(line, ";")
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	hash, ok1 := unquote(parts[0])
	label, ok2 := unquote(strings.TrimSpace(parts[1]))
	if !ok1 || !ok2 {
		return "", "", false
	}
	return hash, label, true
}

func unquote(s string) (string, bool) {
	unquoted, err := strconv.Unquote(s)
	if err != nil {
		return "", false
	}
	return unquoted, true
}

// BuildCDROMImportPlan registers a trusted local RelFile for a mounted
// disc (trusted because the user physically inserted it, the same trust
// basis real apt gives cdrom sources) and returns one IndexFile producer
// per Packages/Sources file found under mountPoint/dists, plus recording
// the disc's (contentHash -> label) pair into db for WriteCDROMDatabase.
// Unlike the network plans above this does no fetching: the files are
// already local, so the caller runs indexmerge.Generator.MergeAll directly
// against the returned producers rather than going through Acquire.
func BuildCDROMImportPlan(gen *indexmerge.Generator, registry *indexmerge.RegisteredPkgFiles, mountPoint, label, contentHash string, db map[string]string) ([]indexmerge.IndexFile, error) {
	rel := gen.Cache.NewReleaseFile("cdrom://"+contentHash+"/", "", "", "", "", label, true)

	var files []indexmerge.IndexFile

	pkgMatches, err := filepath.Glob(filepath.Join(mountPoint, "dists", "*", "*", "binary-*", "Packages*"))
	if err != nil {
		return nil, err
	}
	for _, p := range pkgMatches {
		component, arch := componentArchFromPath(p)
		files = append(files, indexmerge.NewPackagesFile(p, rel, component, arch, registry))
	}

	srcMatches, err := filepath.Glob(filepath.Join(mountPoint, "dists", "*", "*", "source", "Sources*"))
	if err != nil {
		return nil, err
	}
	for _, p := range srcMatches {
		component, _ := componentArchFromPath(p)
		files = append(files, indexmerge.NewSourcesFile(p, rel, component, registry))
	}

	db[contentHash] = label
	return files, nil
}

// componentArchFromPath recovers "main"/"amd64" out of a path like
// ".../dists/bookworm/main/binary-amd64/Packages.xz", the fixed layout
// every repository (cdrom included) uses under its dists tree.
func componentArchFromPath(p string) (component, arch string) {
	dir := filepath.Dir(p)
	leaf := filepath.Base(dir)           // "binary-amd64" or "source"
	component = filepath.Base(filepath.Dir(dir))
	arch = strings.TrimPrefix(leaf, "binary-")
	return component, arch
}

// WriteCDROMDatabase writes db back out in the same `%f "%v";` grammar,
// sorted by hash so the on-disk file doesn't churn on every write when
// nothing changed (map iteration order is otherwise random).
func WriteCDROMDatabase(w io.Writer, db map[string]string) error {
	hashes := make([]string, 0, len(db))
	for h := range db {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	bw := bufio.NewWriter(w)
	for _, h := range hashes {
		if _, err := fmt.Fprintf(bw, "%s %s;\n", strconv.Quote(h), strconv.Quote(db[h])); err != nil {
			return err
		}
	}
	return bw.Flush()
}
