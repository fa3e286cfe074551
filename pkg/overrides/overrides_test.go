package overrides

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/packmule-io/packmule/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	t.Run("a missing overrides tree is a notice, not an error", func(t *testing.T) {
		src := t.TempDir()
		dst := t.TempDir()

		sink := events.NewSink(nil)
		c := &Copy{Events: sink}

		res, err := c.Apply(context.Background(), src, dst)
		require.NoError(t, err)

		assert.Equal(t, 0, res.Copied)
		assert.Equal(t, 0, res.Failed)

		evs := sink.Events()
		require.Len(t, evs, 1)
		assert.Equal(t, "No overrides directory present", evs[0].Message)
	})

	t.Run("copies the tree preserving layout and modification times", func(t *testing.T) {
		src := t.TempDir()
		dst := t.TempDir()

		deep := filepath.Join(src, DirName, "config", "client")
		require.NoError(t, os.MkdirAll(deep, 0755))

		stamp := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

		path := filepath.Join(deep, "options.txt")
		require.NoError(t, os.WriteFile(path, []byte("render=fancy"), 0644))
		require.NoError(t, os.Chtimes(path, stamp, stamp))

		require.NoError(t, os.WriteFile(
			filepath.Join(src, DirName, "servers.dat"), []byte("servers"), 0644))

		c := &Copy{Events: events.NewSink(nil)}

		res, err := c.Apply(context.Background(), src, dst)
		require.NoError(t, err)

		assert.Equal(t, 2, res.Copied)
		assert.Equal(t, 0, res.Failed)

		copied := filepath.Join(dst, "config", "client", "options.txt")

		data, err := os.ReadFile(copied)
		require.NoError(t, err)
		assert.Equal(t, "render=fancy", string(data))

		fi, err := os.Stat(copied)
		require.NoError(t, err)
		assert.True(t, fi.ModTime().Equal(stamp))
	})

	t.Run("existing destination files are replaced", func(t *testing.T) {
		src := t.TempDir()
		dst := t.TempDir()

		require.NoError(t, os.MkdirAll(filepath.Join(src, DirName), 0755))
		require.NoError(t, os.WriteFile(
			filepath.Join(src, DirName, "options.txt"), []byte("new"), 0644))
		require.NoError(t, os.WriteFile(
			filepath.Join(dst, "options.txt"), []byte("old"), 0644))

		c := &Copy{Events: events.NewSink(nil)}

		res, err := c.Apply(context.Background(), src, dst)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Copied)

		data, err := os.ReadFile(filepath.Join(dst, "options.txt"))
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})

	t.Run("per-file failures are counted, not fatal", func(t *testing.T) {
		src := t.TempDir()
		dst := t.TempDir()

		require.NoError(t, os.MkdirAll(filepath.Join(src, DirName), 0755))
		require.NoError(t, os.WriteFile(
			filepath.Join(src, DirName, "good.txt"), []byte("ok"), 0644))
		require.NoError(t, os.WriteFile(
			filepath.Join(src, DirName, "blocked.txt"), []byte("no"), 0644))

		// A directory at the destination path makes the copy fail.
		require.NoError(t, os.MkdirAll(filepath.Join(dst, "blocked.txt"), 0755))

		sink := events.NewSink(nil)
		c := &Copy{Events: sink}

		res, err := c.Apply(context.Background(), src, dst)
		require.NoError(t, err)

		assert.Equal(t, 1, res.Copied)
		assert.Equal(t, 1, res.Failed)

		var sawWarn bool
		for _, ev := range sink.Events() {
			if ev.Severity == events.Warn && ev.Message == "Failed to copy 1 file" {
				sawWarn = true
			}
		}

		assert.True(t, sawWarn)
	})
}
