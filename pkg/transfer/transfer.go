package transfer

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/packmule-io/packmule/pkg/cleanhttp"
	"github.com/packmule-io/packmule/pkg/events"
	"github.com/packmule-io/packmule/pkg/humanize"
	"github.com/packmule-io/packmule/pkg/progress"
	"github.com/pkg/errors"
)

// Acquire plans and executes manifest file transfers. Transfers run
// sequentially; each one sits behind fetchEntry so a bounded worker
// pool could replace the loop without touching planning or accounting.
type Acquire struct {
	L         hclog.Logger
	Events    *events.Sink
	UserAgent string
	Client    *http.Client
}

func (a *Acquire) logger() hclog.Logger {
	if a.L == nil {
		a.L = hclog.L()
	}

	return a.L
}

func (a *Acquire) events() *events.Sink {
	if a.Events == nil {
		a.Events = events.NewSink(a.logger())
	}

	return a.Events
}

func (a *Acquire) httpClient() *http.Client {
	if a.Client != nil {
		return a.Client
	}

	return cleanhttp.DefaultClient
}

// probeSizes fills in each entry's approximate size via HEAD requests.
// A failed probe leaves the entry at 0 and never aborts the plan.
func (a *Acquire) probeSizes(ctx context.Context, plan *Plan) int64 {
	var total int64

	for _, ent := range plan.Entries {
		resp, err := cleanhttp.Head(ctx, ent.URL, a.UserAgent)
		if err != nil {
			a.logger().Debug("size probe failed", "url", ent.URL, "error", err)
			continue
		}

		if resp.ContentLength > 0 {
			ent.Size = resp.ContentLength
			total += ent.Size
		}
	}

	return total
}

// fetchEntry downloads one entry. The file is streamed to a scratch
// name next to the destination and renamed only once complete, so the
// destination is never left truncated.
func (a *Acquire) fetchEntry(ctx context.Context, ent *Entry, bar *progress.Progress) error {
	err := os.MkdirAll(filepath.Dir(ent.Dest), 0755)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", ent.URL, nil)
	if err != nil {
		return err
	}

	if a.UserAgent != "" {
		req.Header.Set("User-Agent", a.UserAgent)
	}

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d for %s", resp.StatusCode, ent.URL)
	}

	part := ent.Dest + ".part"

	f, err := os.Create(part)
	if err != nil {
		return err
	}

	var w io.Writer = f
	if bar != nil {
		w = io.MultiWriter(f, barWriter{bar})
	}

	_, err = io.Copy(w, resp.Body)
	if err != nil {
		f.Close()
		os.Remove(part)
		return err
	}

	err = f.Close()
	if err != nil {
		os.Remove(part)
		return err
	}

	return os.Rename(part, ent.Dest)
}

type barWriter struct {
	bar *progress.Progress
}

func (b barWriter) Write(p []byte) (int, error) {
	b.bar.Add(int64(len(p)))
	return len(p), nil
}

// Execute runs every entry of the plan sequentially and reports the
// aggregate. Per-entry failures are counted, not propagated. Once ctx
// is done no further transfer is initiated; entries never attempted
// count as failed so the totals still cover the whole plan.
func (a *Acquire) Execute(ctx context.Context, plan *Plan, label string) *Result {
	res := &Result{}

	if len(plan.Entries) == 0 {
		return res
	}

	res.TotalBytes = a.probeSizes(ctx, plan)

	a.events().Infof("Starting %s: %d %s, approx %s",
		label, len(plan.Entries),
		humanize.Pluralize(len(plan.Entries), "file"),
		humanize.SizeString(res.TotalBytes))

	bar := progress.Bytes(ctx, res.TotalBytes, label)
	defer bar.Close()

	start := time.Now()

	for _, ent := range plan.Entries {
		if ctx.Err() != nil {
			res.Failed++
			continue
		}

		err := a.fetchEntry(ctx, ent, bar)
		if err != nil {
			a.logger().Debug("transfer failed", "url", ent.URL, "error", err)
			res.Failed++
			continue
		}

		res.Succeeded++
	}

	res.Elapsed = time.Since(start)

	a.report(res, label)

	return res
}

func (a *Acquire) report(res *Result, label string) {
	total := res.Succeeded + res.Failed

	if res.Failed == 0 {
		a.events().Successf("Received %d/%d %s",
			res.Succeeded, total, humanize.Pluralize(total, "file"))
	} else {
		a.events().Warnf("Received %d/%d %s",
			res.Succeeded, total, humanize.Pluralize(total, "file"))
		a.events().Warnf("Failed to receive %d %s",
			res.Failed, humanize.Pluralize(res.Failed, "file"))
	}

	a.events().Infof("%s finished; elapsed %.1fs; approx %s",
		label, res.Elapsed.Seconds(), humanize.SizeString(res.TotalBytes))
}
