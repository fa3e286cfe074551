package transfer

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/packmule-io/packmule/pkg/manifest"
	"github.com/pkg/errors"
)

// Entry is one resolved transfer: a source URL and the absolute
// destination it lands at.
type Entry struct {
	URL  string
	Rel  string
	Dest string

	// Size is the probed byte size, 0 when the probe failed.
	Size int64
}

// Plan is the resolved set of transfers for one manifest against one
// destination root.
type Plan struct {
	DestRoot string
	Entries  []*Entry

	// Skipped holds relative paths excluded because the destination
	// already existed and overwrite was off.
	Skipped []string
}

// Result is the aggregated outcome of executing a plan. Individual
// transfer errors are folded into Failed, never surfaced one by one.
type Result struct {
	Succeeded  int
	Failed     int
	TotalBytes int64
	Elapsed    time.Duration
}

var errUnsafePath = errors.New("unsafe path in manifest")

// sanitizeRel normalizes a manifest-supplied relative path. Leading
// separators are stripped and any path that would escape the
// destination root is rejected.
func sanitizeRel(rel string) (string, error) {
	rel = strings.TrimLeft(rel, "/\\")
	if rel == "" {
		return "", errors.Wrapf(errUnsafePath, "empty path")
	}

	cleaned := path.Clean(strings.ReplaceAll(rel, "\\", "/"))

	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.Wrapf(errUnsafePath, "path escapes destination: %s", rel)
	}

	return filepath.FromSlash(cleaned), nil
}

// BuildPlan derives the transfer plan for m rooted at destRoot. With
// overwrite off, entries whose destination already exists are excluded
// and each exclusion is emitted as an observable notice.
func (a *Acquire) BuildPlan(m *manifest.Manifest, destRoot string, overwrite bool) (*Plan, error) {
	destRoot, err := filepath.Abs(destRoot)
	if err != nil {
		return nil, err
	}

	plan := &Plan{DestRoot: destRoot}

	for _, fe := range m.Files {
		rel, err := sanitizeRel(fe.Path)
		if err != nil {
			a.events().Warnf("Rejecting unsafe manifest path %q", fe.Path)
			continue
		}

		dest := filepath.Join(destRoot, rel)

		if !overwrite {
			if _, err := os.Stat(dest); err == nil {
				plan.Skipped = append(plan.Skipped, rel)
				a.events().Infof("Skipping existing %s", rel)
				continue
			}
		}

		plan.Entries = append(plan.Entries, &Entry{
			URL:  fe.URL,
			Rel:  rel,
			Dest: dest,
		})
	}

	return plan, nil
}
