package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/debcore/apt/internal/errstack"
	"github.com/debcore/apt/internal/indexmerge"
)

// archiveURI is the root URI recorded against every RelFile discovered
// under dir, joined with a PkgFile's Filename by internal/planner to build
// a download URI. A local lists directory has no real archive root, so this
// synthesizes one the same way apt treats a cdrom or hand-copied mirror.
func archiveURI(dir string) string {
	return "file://" + dir
}

// discoverIndexFiles walks dir/dists/<suite>/{Release, <component>/binary-
// <arch>/Packages*, <component>/source/Sources*}, the fixed archive layout
// every repository (network mirror, cdrom, local copy) shares, registering
// one RelFile per suite and one Packages/Sources producer per match.
// Trust verification is a separate, explicit step (verifyRelease) rather
// than folded in here, per §4.6's "registered ahead of" ordering: a suite
// with no usable signature is still merged when --allow-unauthenticated is
// set, exactly like real apt's Release file handling.
func discoverIndexFiles(gen *indexmerge.Generator, dir string, registry *indexmerge.RegisteredPkgFiles, diags *errstack.Diagnostics) ([]indexmerge.IndexFile, error) {
	releases, err := filepath.Glob(filepath.Join(dir, "dists", "*", "Release"))
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		diags.Add(errstack.Notice, "no Release files found under %s, nothing to merge", dir)
		return nil, nil
	}

	var files []indexmerge.IndexFile
	for _, relPath := range releases {
		body, err := os.ReadFile(relPath)
		if err != nil {
			diags.Wrap(errstack.Error, err, "reading %s", relPath)
			continue
		}

		trusted, parsedBody, err := verifyRelease(relPath, body, diags)
		if err != nil {
			diags.Wrap(errstack.Error, err, "verifying %s", relPath)
			continue
		}

		relID, err := indexmerge.RegisterRelease(gen, archiveURI(dir), relPath, parsedBody, trusted)
		if err != nil {
			diags.Wrap(errstack.Error, err, "parsing %s", relPath)
			continue
		}

		suiteDir := filepath.Dir(relPath)

		pkgMatches, err := filepath.Glob(filepath.Join(suiteDir, "*", "binary-*", "Packages*"))
		if err != nil {
			return nil, err
		}
		for _, p := range pkgMatches {
			component, arch := componentArch(p)
			files = append(files, indexmerge.NewPackagesFile(p, relID, component, arch, registry))
		}

		srcMatches, err := filepath.Glob(filepath.Join(suiteDir, "*", "source", "Sources*"))
		if err != nil {
			return nil, err
		}
		for _, p := range srcMatches {
			component, _ := componentArch(p)
			files = append(files, indexmerge.NewSourcesFile(p, relID, component, registry))
		}
	}
	return files, nil
}

// componentArch recovers "main"/"amd64" out of a path like
// ".../main/binary-amd64/Packages.xz" or ".../main/source/Sources", the
// same fixed-layout convention planner.componentArchFromPath uses for
// cdrom imports.
func componentArch(p string) (component, arch string) {
	dir := filepath.Dir(p)
	leaf := filepath.Base(dir)
	component = filepath.Base(filepath.Dir(dir))
	arch = strings.TrimPrefix(leaf, "binary-")
	return component, arch
}

var (
	keyringPath          = pflag.String("keyring", "trusted.gpg", "OpenPGP keyring used to verify Release file signatures")
	allowUnauthenticated = pflag.Bool("allow-unauthenticated", false, "merge index files from a suite whose Release file couldn't be verified")
)

// verifyRelease checks relPath against keyringPath, either as a clearsigned
// InRelease file or, when a detached path+".gpg" signature sits alongside
// a plain Release file, via VerifyDetached, per §4.6's trust step. It
// returns the parsed body RegisterRelease should decode: InRelease's
// clearsign wrapper stripped, or body unchanged for the detached form. A
// suite with no keyring configured, or whose signature doesn't check out,
// is untrusted; the caller only proceeds past that when allowUnauthenticated
// is set, mirroring apt's own "can't verify this" halt.
func verifyRelease(relPath string, body []byte, diags *errstack.Diagnostics) (trusted bool, parsedBody []byte, err error) {
	keyringFile, err := os.Open(*keyringPath)
	if err != nil {
		if !*allowUnauthenticated {
			return false, nil, fmt.Errorf("no usable keyring at %s and --allow-unauthenticated not set", *keyringPath)
		}
		diags.Add(errstack.Warning, "no keyring at %s, merging %s unauthenticated", *keyringPath, relPath)
		return false, body, nil
	}
	defer keyringFile.Close()

	keyring, err := indexmerge.LoadKeyring(keyringFile)
	if err != nil {
		return false, nil, err
	}

	sigFile, sigErr := os.Open(relPath + ".gpg")
	if sigErr != nil {
		decision, err := indexmerge.VerifyInRelease(strings.NewReader(string(body)), keyring)
		if err != nil {
			if !*allowUnauthenticated {
				return false, nil, err
			}
			diags.Add(errstack.Warning, "%s: %v, merging unauthenticated", relPath, err)
			return false, body, nil
		}
		return decision.Trusted, decision.Body, nil
	}
	defer sigFile.Close()

	decision, err := indexmerge.VerifyDetached(strings.NewReader(string(body)), sigFile, keyring)
	if err != nil {
		if !*allowUnauthenticated {
			return false, nil, err
		}
		diags.Add(errstack.Warning, "%s: %v, merging unauthenticated", relPath, err)
		return false, body, nil
	}
	return decision.Trusted, decision.Body, nil
}
