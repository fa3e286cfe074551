package manifest

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// IndexName is the fixed manifest filename embedded in pack archives.
const IndexName = "modrinth.index.json"

// ErrNotFound reports that an extracted archive carries no manifest.
// Whether that is fatal is the caller's policy.
var ErrNotFound = errors.New("no manifest found")

// FileEntry is a normalized file descriptor: one destination-relative
// path and the single URL chosen at parse time.
type FileEntry struct {
	Path string
	URL  string
}

// Manifest describes the files a pack installs plus its dependency
// constraints. Read-only after Load.
type Manifest struct {
	Files        []FileEntry
	Dependencies map[string]string
}

// rawFile tolerates both descriptor shapes the wire format allows: a
// plain "url" string, or a "downloads" mirror list whose members are
// either strings or {url: ...} objects.
type rawFile struct {
	Path      string            `json:"path"`
	Filename  string            `json:"filename"`
	URL       string            `json:"url"`
	Downloads []json.RawMessage `json:"downloads"`
}

type rawManifest struct {
	Files        []rawFile         `json:"files"`
	Dependencies map[string]string `json:"dependencies"`
}

func (r *rawFile) resolveURL() string {
	for _, raw := range r.Downloads {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}

		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.URL != "" {
			return obj.URL
		}
	}

	return r.URL
}

func (r *rawFile) resolvePath(url string) string {
	if r.Path != "" {
		return r.Path
	}

	if r.Filename != "" {
		return r.Filename
	}

	return filepath.Base(url)
}

// Parse decodes a manifest document, folding each descriptor's url
// shapes into one FileEntry. Descriptors yielding no URL are skipped by
// policy, not reported.
func Parse(data []byte) (*Manifest, error) {
	var raw rawManifest

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing manifest")
	}

	m := &Manifest{
		Dependencies: raw.Dependencies,
	}

	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}

	for _, rf := range raw.Files {
		url := rf.resolveURL()
		if url == "" {
			continue
		}

		m.Files = append(m.Files, FileEntry{
			Path: rf.resolvePath(url),
			URL:  url,
		})
	}

	return m, nil
}

var errFoundManifest = errors.New("manifest located")

// Load searches root recursively for the manifest file and parses it.
func Load(root string) (*Manifest, error) {
	var found string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && d.Name() == IndexName {
			found = path
			return errFoundManifest
		}

		return nil
	})
	if err != nil && !errors.Is(err, errFoundManifest) {
		return nil, errors.Wrapf(err, "searching for manifest")
	}

	if found == "" {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(found)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest")
	}

	return Parse(data)
}

// LoaderVersion returns the companion loader version constraint, if the
// manifest declares one under any of its accepted keys.
func (m *Manifest) LoaderVersion() (string, bool) {
	for _, key := range []string{"fabric-loader", "fabric_loader", "loader"} {
		if v, ok := m.Dependencies[key]; ok && v != "" {
			return v, true
		}
	}

	return "", false
}

// GameVersion returns the target platform version constraint, if any.
func (m *Manifest) GameVersion() (string, bool) {
	for _, key := range []string{"minecraft", "minecraft_version"} {
		if v, ok := m.Dependencies[key]; ok && v != "" {
			return v, true
		}
	}

	return "", false
}
