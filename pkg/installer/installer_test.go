package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/packmule-io/packmule/pkg/config"
	"github.com/packmule-io/packmule/pkg/events"
	"github.com/packmule-io/packmule/pkg/manifest"
	"github.com/packmule-io/packmule/pkg/registry"
	"github.com/packmule-io/packmule/pkg/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildArchive assembles a pack archive in memory: the manifest plus
// any extra entries, overrides included.
func buildArchive(t *testing.T, manifestDoc string, extra map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	w, err := zw.Create(manifest.IndexName)
	require.NoError(t, err)

	_, err = w.Write([]byte(manifestDoc))
	require.NoError(t, err)

	for name, body := range extra {
		w, err := zw.Create(name)
		require.NoError(t, err)

		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}

// packServer hosts a one-version catalog, its archive, and the pack's
// individual files.
func packServer(t *testing.T, archive func(base string) []byte, files map[string]string) *httptest.Server {
	t.Helper()

	var srv *httptest.Server

	mux := http.NewServeMux()

	mux.HandleFunc("/versions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[
			{
				"version_number": "1.7.2+1.20.4",
				"version_type": "release",
				"game_versions": ["1.20.4"],
				"files": [{"filename": "pack.mrpack", "url": %q}]
			}
		]`, srv.URL+"/pack.mrpack")
	})

	mux.HandleFunc("/pack.mrpack", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive(srv.URL))
	})

	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[filepath.Base(r.URL.Path)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Write([]byte(body))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newTestInstaller(t *testing.T, registryURL string) (*Installer, *events.Sink) {
	t.Helper()

	sink := events.NewSink(nil)

	cfg := &config.Config{
		RegistryURL:  registryURL,
		InstallerURL: "http://127.0.0.1:1/installer.jar",
	}

	return New(cfg, sink, &ui.Scripted{}), sink
}

func findEvent(sink *events.Sink, sev events.Severity, msg string) bool {
	for _, ev := range sink.Events() {
		if ev.Severity == sev && ev.Message == msg {
			return true
		}
	}

	return false
}

func TestInstall(t *testing.T) {
	t.Run("installs new files, skips present ones, places overrides", func(t *testing.T) {
		srv := packServer(t, func(base string) []byte {
			doc := fmt.Sprintf(`{
				"files": [
					{"path": "mods/have.jar", "url": %q},
					{"path": "mods/need.jar", "url": %q}
				],
				"dependencies": {"minecraft": "1.20.4"}
			}`, base+"/files/have.jar", base+"/files/need.jar")

			return buildArchive(t, doc, map[string]string{
				"overrides/config/options.txt": "render=fancy",
			})
		}, map[string]string{
			"have.jar": "stale",
			"need.jar": "fresh",
		})

		target := t.TempDir()

		require.NoError(t, os.MkdirAll(filepath.Join(target, "mods"), 0755))
		require.NoError(t, os.WriteFile(
			filepath.Join(target, "mods", "have.jar"), []byte("mine"), 0644))

		inst, sink := newTestInstaller(t, srv.URL+"/versions")

		ctx := context.Background()

		versions, err := inst.FetchVersions(ctx)
		require.NoError(t, err)
		require.Len(t, versions, 1)

		require.NoError(t, inst.Install(ctx, &versions[0], target))

		assert.Equal(t, Done, inst.State())

		// The file already present was left alone.
		data, err := os.ReadFile(filepath.Join(target, "mods", "have.jar"))
		require.NoError(t, err)
		assert.Equal(t, "mine", string(data))

		data, err = os.ReadFile(filepath.Join(target, "mods", "need.jar"))
		require.NoError(t, err)
		assert.Equal(t, "fresh", string(data))

		data, err = os.ReadFile(filepath.Join(target, "config", "options.txt"))
		require.NoError(t, err)
		assert.Equal(t, "render=fancy", string(data))

		assert.True(t, findEvent(sink, events.Info,
			"Skipping existing "+filepath.Join("mods", "have.jar")))
		assert.True(t, findEvent(sink, events.Success, "Received 1/1 file"))
		assert.True(t, findEvent(sink, events.Success, "Installation complete"))

		// No loader constraint, so the bootstrap step was skipped.
		assert.True(t, findEvent(sink, events.Warn,
			"No loader version found in manifest; skipping automatic loader install"))

		// Scratch lock released.
		_, err = os.Stat(filepath.Join(target, ".packmule-lock"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("a failed loader bootstrap does not stop the install", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("shell stub requires a POSIX shell")
		}

		srv := packServer(t, func(base string) []byte {
			doc := fmt.Sprintf(`{
				"files": [{"path": "mods/need.jar", "url": %q}],
				"dependencies": {"minecraft": "1.20.4", "fabric-loader": "0.14.24"}
			}`, base+"/files/need.jar")

			return buildArchive(t, doc, nil)
		}, map[string]string{
			"need.jar":      "fresh",
			"installer.jar": "jar-bytes",
		})

		target := t.TempDir()

		// Marker file makes the directory count as a launcher environment.
		require.NoError(t, os.WriteFile(
			filepath.Join(target, "launcher_profiles.json"), []byte("{}"), 0644))

		java := filepath.Join(t.TempDir(), "java")
		require.NoError(t, os.WriteFile(java, []byte("#!/bin/sh\nexit 3\n"), 0755))

		inst, sink := newTestInstaller(t, srv.URL+"/versions")
		inst.Config.InstallerURL = srv.URL + "/files/installer.jar"
		inst.Config.JavaPath = java

		ctx := context.Background()

		versions, err := inst.FetchVersions(ctx)
		require.NoError(t, err)

		require.NoError(t, inst.Install(ctx, &versions[0], target))

		assert.Equal(t, Done, inst.State())
		assert.True(t, findEvent(sink, events.Error, "Loader installer failed (exit 3)"))
		assert.True(t, findEvent(sink, events.Success, "Installation complete"))

		data, err := os.ReadFile(filepath.Join(target, "mods", "need.jar"))
		require.NoError(t, err)
		assert.Equal(t, "fresh", string(data))
	})
}

func TestFetch(t *testing.T) {
	t.Run("downloads everything, overwriting freely", func(t *testing.T) {
		srv := packServer(t, func(base string) []byte {
			doc := fmt.Sprintf(`{
				"files": [{"path": "mods/a.jar", "url": %q}]
			}`, base+"/files/a.jar")

			return buildArchive(t, doc, map[string]string{
				"overrides/readme.txt": "hello",
			})
		}, map[string]string{
			"a.jar": "new-bytes",
		})

		dest := t.TempDir()

		require.NoError(t, os.MkdirAll(filepath.Join(dest, "mods"), 0755))
		require.NoError(t, os.WriteFile(
			filepath.Join(dest, "mods", "a.jar"), []byte("old-bytes"), 0644))

		inst, sink := newTestInstaller(t, srv.URL+"/versions")

		ctx := context.Background()

		versions, err := inst.FetchVersions(ctx)
		require.NoError(t, err)

		require.NoError(t, inst.Fetch(ctx, &versions[0], dest))

		assert.Equal(t, Done, inst.State())

		data, err := os.ReadFile(filepath.Join(dest, "mods", "a.jar"))
		require.NoError(t, err)
		assert.Equal(t, "new-bytes", string(data))

		data, err = os.ReadFile(filepath.Join(dest, "readme.txt"))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))

		assert.True(t, findEvent(sink, events.Success, "All files downloaded and organized"))
	})
}

func TestCleanupState(t *testing.T) {
	t.Run("cleanup transitions before the run completes", func(t *testing.T) {
		inst, _ := newTestInstaller(t, "http://127.0.0.1:1/versions")

		inst.to(ApplyingOverrides)
		inst.cleanupScratch(t.TempDir())

		assert.Equal(t, Cleanup, inst.State())
	})

	t.Run("a finished run stays finished", func(t *testing.T) {
		inst, _ := newTestInstaller(t, "http://127.0.0.1:1/versions")

		inst.to(Done)
		inst.cleanupScratch(t.TempDir())

		assert.Equal(t, Done, inst.State())
	})

	t.Run("an aborted run stays aborted", func(t *testing.T) {
		inst, _ := newTestInstaller(t, "http://127.0.0.1:1/versions")

		inst.to(Aborted)
		inst.cleanupScratch(t.TempDir())

		assert.Equal(t, Aborted, inst.State())
	})

	t.Run("the scratch directory is removed either way", func(t *testing.T) {
		inst, _ := newTestInstaller(t, "http://127.0.0.1:1/versions")

		scratch, err := os.MkdirTemp("", "packmule-")
		require.NoError(t, err)

		inst.to(Aborted)
		inst.cleanupScratch(scratch)

		_, err = os.Stat(scratch)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestFetchVersions(t *testing.T) {
	t.Run("an unreachable registry aborts with a network event", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		inst, sink := newTestInstaller(t, srv.URL)

		_, err := inst.FetchVersions(context.Background())
		require.Error(t, err)

		assert.Equal(t, Aborted, inst.State())

		var criticals []string
		for _, ev := range sink.Events() {
			if ev.Severity == events.Critical {
				criticals = append(criticals, ev.Message)
			}
		}

		require.Len(t, criticals, 1)
		assert.Contains(t, criticals[0], "Network error fetching versions")
	})

	t.Run("an empty catalog aborts with its own event", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		inst, sink := newTestInstaller(t, srv.URL)

		_, err := inst.FetchVersions(context.Background())
		require.Error(t, err)

		assert.Equal(t, Aborted, inst.State())
		assert.True(t, findEvent(sink, events.Critical, "No versions found; aborting"))
	})
}

func TestPrepareFailures(t *testing.T) {
	t.Run("a version with no archive aborts", func(t *testing.T) {
		inst, sink := newTestInstaller(t, "http://127.0.0.1:1/versions")

		sel := &registry.Version{VersionNumber: "1.0.0"}

		err := inst.Install(context.Background(), sel, t.TempDir())
		require.Error(t, err)

		assert.Equal(t, Aborted, inst.State())
		assert.True(t, findEvent(sink, events.Critical, "No .mrpack found for this version"))
	})

	t.Run("a corrupt archive aborts during extraction", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("this is not a zip"))
		}))
		defer srv.Close()

		inst, sink := newTestInstaller(t, "http://127.0.0.1:1/versions")

		sel := &registry.Version{
			VersionNumber: "1.0.0",
			Files:         []registry.File{{Filename: "pack.mrpack", URL: srv.URL + "/pack.mrpack"}},
		}

		err := inst.Install(context.Background(), sel, t.TempDir())
		require.Error(t, err)

		assert.Equal(t, Aborted, inst.State())

		var sawExtract bool
		for _, ev := range sink.Events() {
			if ev.Severity == events.Critical {
				sawExtract = true
			}
		}

		assert.True(t, sawExtract)
	})

	t.Run("an archive with no manifest aborts", func(t *testing.T) {
		var buf bytes.Buffer

		zw := zip.NewWriter(&buf)
		w, err := zw.Create("just-a-file.txt")
		require.NoError(t, err)
		_, err = w.Write([]byte("nothing to see"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(buf.Bytes())
		}))
		defer srv.Close()

		inst, sink := newTestInstaller(t, "http://127.0.0.1:1/versions")

		sel := &registry.Version{
			VersionNumber: "1.0.0",
			Files:         []registry.File{{Filename: "pack.mrpack", URL: srv.URL + "/pack.mrpack"}},
		}

		err = inst.Install(context.Background(), sel, t.TempDir())
		require.Error(t, err)

		assert.Equal(t, Aborted, inst.State())
		assert.True(t, findEvent(sink, events.Critical, "No manifest found in package"))
	})
}
