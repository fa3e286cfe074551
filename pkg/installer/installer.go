package installer

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-getter"
	"github.com/packmule-io/packmule/pkg/cleanhttp"
	"github.com/packmule-io/packmule/pkg/config"
	"github.com/packmule-io/packmule/pkg/events"
	"github.com/packmule-io/packmule/pkg/progress"
	"github.com/packmule-io/packmule/pkg/registry"
	"github.com/packmule-io/packmule/pkg/transfer"
	"github.com/packmule-io/packmule/pkg/ui"
	"github.com/pkg/errors"
)

// ErrExtract reports a corrupt or unreadable pack archive.
var ErrExtract = errors.New("archive extraction failed")

// Installer drives a whole run: resolve version, fetch and extract the
// pack archive, bootstrap the loader when applicable, then acquire and
// place the pack's files.
type Installer struct {
	common

	Config *config.Config
	Events *events.Sink
	UI     ui.UI

	UserAgent string

	registry *registry.Client
	state    State
}

func New(cfg *config.Config, sink *events.Sink, u ui.UI) *Installer {
	inst := &Installer{
		Config:    cfg,
		Events:    sink,
		UI:        u,
		UserAgent: registry.DefaultUserAgent,
	}

	return inst
}

func (i *Installer) Registry() *registry.Client {
	if i.registry == nil {
		i.registry = registry.NewClient(i.Config.RegistryURL, i.L())
		i.registry.UserAgent = i.UserAgent
	}

	return i.registry
}

// State reports the stage the last run reached.
func (i *Installer) State() State {
	return i.state
}

func (i *Installer) to(s State) {
	i.L().Debug("state transition", "from", i.state, "to", s)
	i.state = s
}

func (i *Installer) abort(err error, format string, args ...interface{}) error {
	i.to(Aborted)
	i.Events.Criticalf(format, args...)

	return track(err)
}

// FetchVersions resolves the registry catalog. A transport failure and
// an empty catalog are both fatal, but reported as distinct events to
// keep the two conditions diagnosable.
func (i *Installer) FetchVersions(ctx context.Context) ([]registry.Version, error) {
	i.to(SelectingVersion)
	i.Events.Infof("Fetching available versions")

	versions, err := i.Registry().FetchVersions(ctx)
	if err != nil {
		return nil, i.abort(err, "Network error fetching versions: %s", err)
	}

	if len(versions) == 0 {
		return nil, i.abort(registry.ErrNoVersions, "No versions found; aborting")
	}

	i.Events.Successf("Fetched %d versions", len(versions))

	return versions, nil
}

// downloadArchive streams the pack archive into the scratch directory.
func (i *Installer) downloadArchive(ctx context.Context, url, scratch string) (string, error) {
	i.Events.Infof("Downloading package %s", url)

	resp, err := cleanhttp.Get(ctx, url, i.UserAgent)
	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status %d for package", resp.StatusCode)
	}

	path := filepath.Join(scratch, filepath.Base(url))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	bar := progress.Bytes(ctx, resp.ContentLength, "Downloading package")
	defer bar.Close()

	_, err = io.Copy(io.MultiWriter(f, barWriter{bar}), resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(path)
		return "", err
	}

	i.Events.Successf("Downloaded package: %s", filepath.Base(url))

	return path, nil
}

type barWriter struct {
	bar *progress.Progress
}

func (b barWriter) Write(p []byte) (int, error) {
	b.bar.Add(int64(len(p)))
	return len(p), nil
}

// extract unpacks the zip-compatible archive into a directory under
// scratch and returns that directory.
func (i *Installer) extract(archive, scratch string) (string, error) {
	dir := filepath.Join(scratch, "extracted")

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}

	i.Events.Infof("Extracting package to %s", dir)

	dec, ok := getter.Decompressors["zip"]
	if !ok {
		return "", errors.Wrapf(ErrExtract, "no zip decompressor available")
	}

	err = dec.Decompress(dir, archive, true, 0)
	if err != nil {
		return "", errors.Wrapf(ErrExtract, "%v", err)
	}

	i.Events.Successf("Extraction complete")

	return dir, nil
}

func (i *Installer) acquire() *transfer.Acquire {
	return &transfer.Acquire{
		L:         i.L(),
		Events:    i.Events,
		UserAgent: i.UserAgent,
	}
}

// cleanupScratch removes the run's scratch directory. Best effort:
// failure is logged, never fatal. Done and Aborted are terminal, so a
// deferred cleanup never transitions out of them.
func (i *Installer) cleanupScratch(scratch string) {
	if i.state != Done && i.state != Aborted {
		i.to(Cleanup)
	}

	err := os.RemoveAll(scratch)
	if err != nil {
		i.Events.Warnf("Could not remove temporary directory %s", scratch)
	}
}
