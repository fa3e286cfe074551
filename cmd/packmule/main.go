package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/packmule-io/packmule/pkg/bootstrap"
	"github.com/packmule-io/packmule/pkg/cmd"
	"github.com/packmule-io/packmule/pkg/config"
	"github.com/packmule-io/packmule/pkg/events"
	"github.com/packmule-io/packmule/pkg/installer"
	"github.com/packmule-io/packmule/pkg/registry"
	"github.com/packmule-io/packmule/pkg/ui"
	"github.com/pkg/errors"
)

func main() {
	c := cli.NewCLI("packmule", "1.0.0")
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"install": func() (cli.Command, error) {
			return cmd.New(
				"install",
				"Install a pack into an existing Minecraft environment",
				installF,
			), nil
		},
		"fetch": func() (cli.Command, error) {
			return cmd.New(
				"fetch",
				"Download and organize a pack's files without installing",
				fetchF,
			), nil
		},
		"versions": func() (cli.Command, error) {
			return cmd.New(
				"versions",
				"List the versions the registry offers",
				versionsF,
			), nil
		},
		"debug": func() (cli.Command, error) {
			return cmd.New(
				"debug",
				"Dump raw registry records",
				debugF,
			), nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}

type session struct {
	cfg  *config.Config
	sink *events.Sink
	term ui.UI
	inst *installer.Installer
}

func newSession(trace bool) (*session, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, errors.Wrapf(err, "loading configuration")
	}

	level := hclog.Warn
	if trace {
		level = hclog.Trace
	}

	L := hclog.New(&hclog.LoggerOptions{
		Name:   "packmule",
		Level:  level,
		Output: os.Stderr,
	})

	sink := events.NewSink(L)
	sink.Infof("Starting packmule on %s", cfg.HostSummary())

	term := ui.NewTerminal(os.Stdin, os.Stdout)

	inst := installer.New(cfg, sink, term)
	inst.SetLogger(L)

	return &session{cfg: cfg, sink: sink, term: term, inst: inst}, nil
}

// finish renders the run summary and persists the session log. Always
// runs, whatever state the run reached.
func (s *session) finish() {
	fmt.Printf("\nRun Summary\n\n")
	s.sink.Render(os.Stdout)

	err := os.MkdirAll(s.cfg.LogDir, 0755)
	if err != nil {
		fmt.Printf("could not create log dir: %s\n", err)
		return
	}

	name := fmt.Sprintf("packmule-[%s].txt", time.Now().Format("01-02-06_15-04.05"))
	path := filepath.Join(s.cfg.LogDir, name)

	f, err := os.Create(path)
	if err != nil {
		fmt.Printf("could not save log: %s\n", err)
		return
	}

	defer f.Close()

	err = s.sink.WriteTo(f)
	if err != nil {
		fmt.Printf("could not save log: %s\n", err)
		return
	}

	fmt.Printf("Saved log to: %s\n", path)
}

// pickVersion resolves an explicit -version flag against the catalog,
// or hands selection to the interactive picker.
func (s *session) pickVersion(ctx context.Context, want string) (*registry.Version, error) {
	versions, err := s.inst.FetchVersions(ctx)
	if err != nil {
		return nil, err
	}

	if want != "" {
		for idx := range versions {
			v := &versions[idx]
			if v.VersionNumber == want || v.ModpackVersion() == want {
				return v, nil
			}
		}

		s.sink.Criticalf("No version matching %q", want)
		return nil, errors.Errorf("no version matching %q", want)
	}

	sel, err := s.term.SelectVersion(versions)
	if err != nil {
		s.sink.Criticalf("No version selected; aborting")
		return nil, err
	}

	return sel, nil
}

func installF(ctx context.Context, opts struct {
	Dir     string `short:"d" long:"dir" description:"Minecraft directory to install into"`
	Version string `short:"v" long:"version" description:"install this version instead of asking"`
	Yes     bool   `short:"y" long:"yes" description:"continue even when no launcher is detected"`
	Trace   bool   `long:"trace" description:"log in trace mode"`
}) error {
	s, err := newSession(opts.Trace)
	if err != nil {
		return err
	}

	defer s.finish()

	sel, err := s.pickVersion(ctx, opts.Version)
	if err != nil {
		return err
	}

	dir := opts.Dir
	if dir == "" {
		dir, err = s.term.PromptText("Minecraft directory", s.cfg.MinecraftDir)
		if err != nil {
			return err
		}
	}

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		s.sink.Criticalf("Could not create or access %s: %s", dir, err)
		return err
	}

	dir, fetchInstead, err := s.confirmInstallDir(dir, opts.Yes)
	if err != nil {
		return err
	}

	if fetchInstead {
		dest, err := s.fetchDest(sel)
		if err != nil {
			return err
		}

		return s.inst.Fetch(ctx, sel, dest)
	}

	return s.inst.Install(ctx, sel, dir)
}

const (
	optChangeDir = "Change the Minecraft directory"
	optContinue  = "Continue and install anyway"
	optFetch     = "Download and organize the files instead"
)

// confirmInstallDir settles on an install directory when no launcher is
// detected: the user can point at another directory (re-checked), push
// on anyway, or divert to the fetch flow.
func (s *session) confirmInstallDir(dir string, assumeYes bool) (string, bool, error) {
	for {
		if assumeYes || bootstrap.LauncherPresent(dir) {
			return dir, false, nil
		}

		s.sink.Warnf("Official launcher not detected in %s", dir)

		choice, err := s.term.ChooseOne("Launcher not detected. Choose an action:", []string{
			optChangeDir,
			optContinue,
			optFetch,
		})
		if err != nil {
			return "", false, err
		}

		switch choice {
		case optChangeDir:
			next, err := s.term.PromptText("Minecraft directory", dir)
			if err != nil {
				return "", false, err
			}

			err = os.MkdirAll(next, 0755)
			if err != nil {
				s.sink.Criticalf("Could not create or access %s: %s", next, err)
				return "", false, err
			}

			dir = next
		case optFetch:
			return "", true, nil
		default:
			s.sink.Warnf("Continuing with installation despite missing launcher")
			return dir, false, nil
		}
	}
}

// fetchDest derives the output folder for the fetch flow and prepares
// it, asking before clobbering an existing one.
func (s *session) fetchDest(sel *registry.Version) (string, error) {
	dest := filepath.Join(s.cfg.DownloadsDir, sel.DisplayName(installer.Product))

	if _, err := os.Stat(dest); err == nil {
		choice, err := s.term.ChooseOne(
			fmt.Sprintf("Destination exists: %s. Overwrite?", dest),
			[]string{"Yes, overwrite", "No, use existing"},
		)
		if err != nil {
			return "", err
		}

		if choice == "Yes, overwrite" {
			os.RemoveAll(dest)
		}
	}

	err := os.MkdirAll(dest, 0755)
	if err != nil {
		s.sink.Criticalf("Could not prepare destination %s: %s", dest, err)
		return "", err
	}

	s.sink.Successf("Destination prepared: %s", dest)

	return dest, nil
}

func fetchF(ctx context.Context, opts struct {
	Out     string `short:"o" long:"out" description:"output directory (defaults to a named folder under Downloads)"`
	Version string `short:"v" long:"version" description:"fetch this version instead of asking"`
	Trace   bool   `long:"trace" description:"log in trace mode"`
}) error {
	s, err := newSession(opts.Trace)
	if err != nil {
		return err
	}

	defer s.finish()

	sel, err := s.pickVersion(ctx, opts.Version)
	if err != nil {
		return err
	}

	dest := opts.Out
	if dest == "" {
		dest, err = s.fetchDest(sel)
		if err != nil {
			return err
		}
	}

	return s.inst.Fetch(ctx, sel, dest)
}

func versionsF(ctx context.Context, opts struct {
	Channel string `short:"c" long:"channel" description:"only list this channel (stable, beta, alpha)"`
}) error {
	s, err := newSession(false)
	if err != nil {
		return err
	}

	versions, err := s.inst.FetchVersions(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 4, 2, 1, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "CHANNEL\tGAME VERSIONS\tVERSION")

	for idx := range versions {
		v := &versions[idx]

		if opts.Channel != "" && v.Channel() != strings.ToLower(opts.Channel) {
			continue
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			v.Channel(), strings.Join(v.GameVersions, ","), v.ModpackVersion())
	}

	return nil
}

func debugF(ctx context.Context, opts struct {
	Versions bool `short:"V" long:"versions" description:"dump raw version records"`
}) error {
	s, err := newSession(true)
	if err != nil {
		return err
	}

	if opts.Versions {
		versions, err := s.inst.FetchVersions(ctx)
		if err != nil {
			return err
		}

		spew.Dump(versions)
	}

	return nil
}
