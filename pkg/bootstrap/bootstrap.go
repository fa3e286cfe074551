package bootstrap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/mr-tron/base58"
	"github.com/packmule-io/packmule/pkg/cleanhttp"
	"github.com/packmule-io/packmule/pkg/events"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// markerFiles are the known launcher artifacts whose presence marks a
// directory as a usable install environment.
var markerFiles = []string{
	"launcher_profiles.json",
	"launcher_accounts.json",
	"launcher_profiles.json.old",
}

// LauncherPresent reports whether dir carries environment markers.
func LauncherPresent(dir string) bool {
	for _, name := range markerFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}

	return false
}

// ProcessError reports a non-zero exit from the installer child
// process.
type ProcessError struct {
	ExitCode int
}

func (p *ProcessError) Error() string {
	return fmt.Sprintf("installer exited with status %d", p.ExitCode)
}

// Bootstrap downloads the companion loader's installer and runs it
// against a target directory. The whole step is best effort: callers
// continue delivering the primary file set whatever happens here.
type Bootstrap struct {
	L      hclog.Logger
	Events *events.Sink

	InstallerURL string
	UserAgent    string
	JavaPath     string
	ScratchDir   string
}

func (b *Bootstrap) logger() hclog.Logger {
	if b.L == nil {
		b.L = hclog.L()
	}

	return b.L
}

func (b *Bootstrap) events() *events.Sink {
	if b.Events == nil {
		b.Events = events.NewSink(b.logger())
	}

	return b.Events
}

func (b *Bootstrap) java() string {
	if b.JavaPath != "" {
		return b.JavaPath
	}

	return "java"
}

// scratchPath derives a stable scratch filename from the installer URL.
func (b *Bootstrap) scratchPath() string {
	dir := b.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}

	h, _ := blake2b.New256(nil)
	fmt.Fprintln(h, b.InstallerURL)

	return filepath.Join(dir, "installer-"+base58.Encode(h.Sum(nil)[:8])+".jar")
}

func (b *Bootstrap) download(ctx context.Context) (string, error) {
	path := b.scratchPath()

	b.events().Infof("Downloading loader installer to %s", path)

	resp, err := cleanhttp.Get(ctx, b.InstallerURL, b.UserAgent)
	if err != nil {
		return "", errors.Wrapf(err, "fetching installer")
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status %d for installer", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	_, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}

// Run installs the companion loader for targetDir. A download failure
// is fatal to this step only; a non-zero installer exit is reported as
// an error outcome. Neither aborts the caller's run.
func (b *Bootstrap) Run(ctx context.Context, targetDir, loaderVersion, gameVersion string) error {
	jar, err := b.download(ctx)
	if err != nil {
		b.events().Errorf("Failed to download loader installer: %s", err)
		return err
	}

	args := []string{"-jar", jar, "client", "-dir", targetDir, "-loader", loaderVersion}
	if gameVersion != "" {
		args = append(args, "-mcversion", gameVersion)
	}

	b.events().Infof("Running loader installer")
	b.logger().Debug("installer command", "java", b.java(), "args", args)

	cmd := exec.CommandContext(ctx, b.java(), args...)

	err = b.runCmd(cmd)
	if err != nil {
		var pe *ProcessError
		if errors.As(err, &pe) {
			b.events().Errorf("Loader installer failed (exit %d)", pe.ExitCode)
		} else {
			b.events().Errorf("Loader installer failed: %s", err)
		}

		return err
	}

	b.events().Successf("Loader installed successfully")

	return nil
}

// runCmd runs the child with its output folded into the debug log,
// line by line under a fixed prefix.
func (b *Bootstrap) runCmd(cmd *exec.Cmd) error {
	or, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	er, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	pipe := func(r io.Reader) {
		defer wg.Done()

		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if len(line) > 0 {
				b.logger().Debug("installer │ " + strings.TrimRight(line, " \n\t"))
			}

			if err != nil {
				return
			}
		}
	}

	wg.Add(2)
	go pipe(or)
	go pipe(er)

	err = cmd.Start()
	if err != nil {
		return err
	}

	wg.Wait()

	err = cmd.Wait()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return &ProcessError{ExitCode: ee.ExitCode()}
		}

		return err
	}

	return nil
}
