package overrides

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/packmule-io/packmule/pkg/events"
	"github.com/packmule-io/packmule/pkg/humanize"
	"github.com/packmule-io/packmule/pkg/progress"
)

// DirName is the archive subtree copied verbatim into the destination.
const DirName = "overrides"

// Result mirrors the transfer package's reporting shape.
type Result struct {
	Copied int
	Failed int
}

// Copy places an extracted archive's overrides tree into a destination
// root, preserving relative layout and file modification times.
type Copy struct {
	L      hclog.Logger
	Events *events.Sink
}

func (c *Copy) logger() hclog.Logger {
	if c.L == nil {
		c.L = hclog.L()
	}

	return c.L
}

func (c *Copy) events() *events.Sink {
	if c.Events == nil {
		c.Events = events.NewSink(c.logger())
	}

	return c.Events
}

type pending struct {
	src string
	dst string
	rel string
}

// Apply walks extractedRoot's overrides subtree and copies every
// regular file under destRoot. A missing subtree is a notice, not an
// error. Per-file failures are counted and never abort the walk.
func (c *Copy) Apply(ctx context.Context, extractedRoot, destRoot string) (*Result, error) {
	res := &Result{}

	src := filepath.Join(extractedRoot, DirName)

	fi, err := os.Stat(src)
	if err != nil || !fi.IsDir() {
		c.events().Infof("No overrides directory present")
		return res, nil
	}

	var files []pending

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		files = append(files, pending{
			src: path,
			dst: filepath.Join(destRoot, rel),
			rel: rel,
		})

		return nil
	})
	if err != nil {
		return res, err
	}

	c.events().Infof("Placing overrides: %d %s",
		len(files), humanize.Pluralize(len(files), "file"))

	bar := progress.Count(ctx, int64(len(files)), "Placing overrides")
	defer bar.Close()

	for _, p := range files {
		if ctx.Err() != nil {
			res.Failed++
			continue
		}

		err := copyFile(p.src, p.dst)
		if err != nil {
			c.logger().Debug("override copy failed", "path", p.rel, "error", err)
			res.Failed++
		} else {
			res.Copied++
		}

		bar.Tick()
	}

	c.report(res)

	return res, nil
}

func (c *Copy) report(res *Result) {
	total := res.Copied + res.Failed
	if total == 0 {
		return
	}

	if res.Failed == 0 {
		c.events().Successf("Copied %d/%d %s",
			res.Copied, total, humanize.Pluralize(total, "file"))
		return
	}

	c.events().Warnf("Copied %d/%d %s",
		res.Copied, total, humanize.Pluralize(total, "file"))
	c.events().Warnf("Failed to copy %d %s",
		res.Failed, humanize.Pluralize(res.Failed, "file"))
}

// copyFile copies one regular file, creating parent directories and
// carrying the source's modification time over to the copy.
func copyFile(from, to string) error {
	f, err := os.Open(from)
	if err != nil {
		return err
	}

	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(to), 0755)
	if err != nil {
		return err
	}

	tg, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}

	_, err = io.Copy(tg, f)
	if cerr := tg.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(to)
		return err
	}

	return os.Chtimes(to, fi.ModTime(), fi.ModTime())
}
