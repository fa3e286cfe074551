package installer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/packmule-io/packmule/pkg/bootstrap"
	"github.com/packmule-io/packmule/pkg/humanize"
	"github.com/packmule-io/packmule/pkg/lockfile"
	"github.com/packmule-io/packmule/pkg/manifest"
	"github.com/packmule-io/packmule/pkg/overrides"
	"github.com/packmule-io/packmule/pkg/registry"
)

// Product is the human name used when deriving pack folder names.
const Product = "OptiFine for Fabric"

// prepare runs the stages shared by both flows: resolve the archive
// URL, download, extract, and load the manifest. The returned cleanup
// removes the scratch directory; it is idempotent, so flows invoke it
// before entering Done and still defer it for the abort paths.
func (i *Installer) prepare(ctx context.Context, sel *registry.Version) (*manifest.Manifest, string, func(), error) {
	noop := func() {}

	i.to(ResolvingArchiveURL)

	url, ok := sel.ArchiveURL()
	if !ok {
		return nil, "", noop, i.abort(registry.ErrNoArchive, "No .mrpack found for this version")
	}

	scratch, err := os.MkdirTemp("", "packmule-")
	if err != nil {
		return nil, "", noop, i.abort(err, "Could not create temporary directory: %s", err)
	}

	var once sync.Once

	cleanup := func() {
		once.Do(func() { i.cleanupScratch(scratch) })
	}

	i.to(DownloadingArchive)

	archive, err := i.downloadArchive(ctx, url, scratch)
	if err != nil {
		return nil, "", cleanup, i.abort(err, "Download error: %s", err)
	}

	i.to(Extracting)

	extracted, err := i.extract(archive, scratch)
	if err != nil {
		return nil, "", cleanup, i.abort(err, "Extract error: %s", err)
	}

	i.to(LoadingManifest)

	man, err := manifest.Load(extracted)
	if err != nil {
		if err == manifest.ErrNotFound {
			return nil, "", cleanup, i.abort(err, "No manifest found in package")
		}

		return nil, "", cleanup, i.abort(err, "Manifest error: %s", err)
	}

	return man, extracted, cleanup, nil
}

func (i *Installer) logSelection(sel *registry.Version) {
	i.Events.Infof("Selected version: %s (%s) for %s",
		sel.VersionNumber, sel.Channel(), strings.Join(sel.GameVersions, ","))
}

// Install delivers the pack into an existing environment directory.
// Skips files already present, and bootstraps the companion loader
// first when the manifest wants one and the environment supports it.
func (i *Installer) Install(ctx context.Context, sel *registry.Version, targetDir string) error {
	i.logSelection(sel)

	var shownLock bool
	unlock, err := lockfile.Take(ctx, filepath.Join(targetDir, ".packmule-lock"), func() {
		if !shownLock {
			i.Events.Infof("Another install is running; waiting for it to finish")
			shownLock = true
		}
	})
	if err != nil {
		return i.abort(err, "Could not lock %s: %s", targetDir, err)
	}

	defer unlock()

	man, extracted, cleanup, err := i.prepare(ctx, sel)
	defer cleanup()

	if err != nil {
		return err
	}

	i.maybeBootstrap(ctx, man, targetDir)

	i.to(AcquiringFiles)
	i.Events.Infof("Downloading and installing files into %s", targetDir)

	acq := i.acquire()

	plan, err := acq.BuildPlan(man, targetDir, false)
	if err != nil {
		return i.abort(err, "Could not plan transfers: %s", err)
	}

	if len(plan.Entries) > 0 {
		i.Events.Infof("Downloading %d %s to %s",
			len(plan.Entries), humanize.Pluralize(len(plan.Entries), "file"), targetDir)
	}

	acq.Execute(ctx, plan, "Downloading files")

	i.to(ApplyingOverrides)

	cp := &overrides.Copy{L: i.L(), Events: i.Events}

	_, err = cp.Apply(ctx, extracted, targetDir)
	if err != nil {
		i.Events.Errorf("Overrides error: %s", err)
	}

	cleanup()

	i.to(Done)
	i.Events.Successf("Installation complete")
	i.Events.Successf("Launch Minecraft with Fabric loader to use %s", sel.DisplayName(Product))

	return nil
}

// maybeBootstrap installs the companion loader when the manifest asks
// for one and the target looks like a launcher environment. Failures
// never stop the run.
func (i *Installer) maybeBootstrap(ctx context.Context, man *manifest.Manifest, targetDir string) {
	loaderVersion, ok := man.LoaderVersion()
	if !ok {
		i.Events.Warnf("No loader version found in manifest; skipping automatic loader install")
		return
	}

	if !bootstrap.LauncherPresent(targetDir) {
		i.Events.Warnf("Official launcher not detected; skipping automatic loader install")
		return
	}

	gameVersion, _ := man.GameVersion()

	display := gameVersion
	if display == "" {
		display = "unknown"
	}

	i.to(BootstrappingLoader)
	i.Events.Infof("Installing Fabric loader %s for Minecraft %s", loaderVersion, display)

	b := &bootstrap.Bootstrap{
		L:            i.L(),
		Events:       i.Events,
		InstallerURL: i.Config.InstallerURL,
		UserAgent:    i.UserAgent,
		JavaPath:     i.Config.JavaPath,
	}

	// Outcome already reported through the sink; bootstrap failure is
	// fatal to this step only.
	b.Run(ctx, targetDir, loaderVersion, gameVersion)
}

// Fetch downloads and organizes the pack into a fresh named folder
// under the user's download area, overwriting freely.
func (i *Installer) Fetch(ctx context.Context, sel *registry.Version, destDir string) error {
	i.logSelection(sel)

	man, extracted, cleanup, err := i.prepare(ctx, sel)
	defer cleanup()

	if err != nil {
		return err
	}

	err = os.MkdirAll(destDir, 0755)
	if err != nil {
		return i.abort(err, "Could not create destination %s: %s", destDir, err)
	}

	i.to(AcquiringFiles)

	acq := i.acquire()

	plan, err := acq.BuildPlan(man, destDir, true)
	if err != nil {
		return i.abort(err, "Could not plan transfers: %s", err)
	}

	if len(plan.Entries) > 0 {
		i.Events.Infof("Downloading %d %s to %s",
			len(plan.Entries), humanize.Pluralize(len(plan.Entries), "file"), destDir)
	}

	acq.Execute(ctx, plan, "Downloading files")

	i.to(ApplyingOverrides)

	cp := &overrides.Copy{L: i.L(), Events: i.Events}

	_, err = cp.Apply(ctx, extracted, destDir)
	if err != nil {
		i.Events.Errorf("Overrides error: %s", err)
	}

	cleanup()

	i.to(Done)
	i.Events.Successf("All files downloaded and organized")
	i.Events.Infof("Files are available in: %s", destDir)

	return nil
}
