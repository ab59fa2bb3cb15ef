// Package mirrors implements the JSON mirror-status lookup that populates
// an Acquire Item's AlternateURIs list (§4.5 "Fail fallover"): a sources
// list entry may name a mirror-redirector URI instead of one fixed
// archive, and this package resolves that redirector's status document
// into the ordered list of concrete mirrors the engine falls back through
// when the primary URI's worker reports a retryable failure.
//
// Grounded on the teacher's own use of gojsonq
// (pkg/dockerhub.GetTags: "query a JSON document for matching entries"),
// applied here to a different document shape.
package mirrors

import (
	"fmt"
	"io"
	"net/http"

	"github.com/thedevsaddam/gojsonq"
)

// Mirror is one entry of a mirror-status document: a concrete archive
// root URI, its rough geographic region (for distance-based ordering) and
// whether the mirror operator's own health check currently reports it up.
type Mirror struct {
	URL    string
	Region string
	Up     bool
}

// FetchStatus downloads and parses the mirror-status JSON document at
// statusURL. The document is a JSON array of objects carrying at least
// "url", "up" and "region" fields, the shape Debian's mirror-redirector
// services (e.g. httpredir/deb.debian.org's status.json) publish.
func FetchStatus(statusURL string) ([]Mirror, error) {
	resp, err := http.Get(statusURL)
	if err != nil {
		return nil, fmt.Errorf("mirrors: fetching %s: %w", statusURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mirrors: reading %s: %w", statusURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mirrors: %s: unexpected HTTP status %d", statusURL, resp.StatusCode)
	}

	return ParseStatus(string(body))
}

// ParseStatus decodes a mirror-status JSON document already read into
// memory, querying it with gojsonq the same way GetTags plucks "name"
// out of a DockerHub tags response.
func ParseStatus(raw string) ([]Mirror, error) {
	jq := gojsonq.New().FromString(raw)
	if err := jq.Error(); err != nil {
		return nil, fmt.Errorf("mirrors: parsing status document: %w", err)
	}

	var entries []map[string]interface{}
	if err := jq.Out(&entries); err != nil {
		return nil, fmt.Errorf("mirrors: decoding status document: %w", err)
	}

	mirrors := make([]Mirror, 0, len(entries))
	for _, e := range entries {
		m := Mirror{}
		if v, ok := e["url"].(string); ok {
			m.URL = v
		}
		if v, ok := e["region"].(string); ok {
			m.Region = v
		}
		if v, ok := e["up"].(bool); ok {
			m.Up = v
		}
		if m.URL != "" {
			mirrors = append(mirrors, m)
		}
	}
	return mirrors, nil
}

// AlternateURIs filters mirrors to the ones reporting up, preferring
// region over the rest (region carrying the caller's own nearest-region
// hint, e.g. from a sources-list option), and returns their archive root
// URIs joined with path — the form an acquire.Item.AlternateURIs list
// expects: a full URI per entry, not a bare host.
func AlternateURIs(list []Mirror, region, path string) []string {
	var near, far []string
	for _, m := range list {
		if !m.Up {
			continue
		}
		uri := joinURL(m.URL, path)
		if region != "" && m.Region == region {
			near = append(near, uri)
		} else {
			far = append(far, uri)
		}
	}
	return append(near, far...)
}

func joinURL(root, path string) string {
	if len(root) == 0 {
		return path
	}
	if root[len(root)-1] == '/' {
		root = root[:len(root)-1]
	}
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return root + "/" + path
}
