package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/morikuni/aec"
	"github.com/packmule-io/packmule/pkg/registry"
)

// Terminal is the line-oriented interactive implementation.
type Terminal struct {
	In  io.Reader
	Out io.Writer

	br *bufio.Reader
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		In:  in,
		Out: out,
		br:  bufio.NewReader(in),
	}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.br.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func (t *Terminal) ChooseOne(title string, options []string) (string, error) {
	fmt.Fprintln(t.Out, aec.CyanF.Apply(title))

	for i, opt := range options {
		fmt.Fprintf(t.Out, "  %d) %s\n", i+1, opt)
	}

	for {
		fmt.Fprint(t.Out, "> ")

		line, err := t.readLine()
		if err != nil {
			return "", ErrCancelled
		}

		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}

		fmt.Fprintf(t.Out, "Enter a number between 1 and %d\n", len(options))
	}
}

func (t *Terminal) PromptText(title, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(t.Out, "%s [%s]: ", aec.CyanF.Apply(title), def)
	} else {
		fmt.Fprintf(t.Out, "%s: ", aec.CyanF.Apply(title))
	}

	line, err := t.readLine()
	if err != nil {
		return "", ErrCancelled
	}

	if line == "" {
		return def, nil
	}

	return line, nil
}

var channelColors = map[string]aec.ANSI{
	"stable": aec.GreenF,
	"beta":   aec.YellowF,
	"alpha":  aec.RedF,
}

// capitalize uppercases the leading letter of an ASCII channel tag.
func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

func versionLabel(v *registry.Version) string {
	channel := v.Channel()

	label := fmt.Sprintf("%-6s  %-14s  %-12s",
		capitalize(channel),
		strings.Join(v.GameVersions, ","),
		v.ModpackVersion(),
	)

	return channelColors[channel].Apply(label)
}

// Haystack is the lowercased text a filter query matches against.
func Haystack(v *registry.Version) string {
	return strings.ToLower(fmt.Sprintf("%s %s %s",
		v.Channel(), strings.Join(v.GameVersions, ","), v.ModpackVersion()))
}

// Filter returns the versions whose haystack contains query.
func Filter(versions []registry.Version, query string) []registry.Version {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return versions
	}

	var out []registry.Version

	for _, v := range versions {
		v := v
		if strings.Contains(Haystack(&v), query) {
			out = append(out, v)
		}
	}

	return out
}

// SelectVersion lists versions and accepts either a selection number or
// a filter query, narrowing the list until a number is entered. An
// empty line on an unfiltered list cancels.
func (t *Terminal) SelectVersion(versions []registry.Version) (*registry.Version, error) {
	shown := versions

	fmt.Fprintln(t.Out, aec.CyanF.Apply(
		"Pick a version: enter its number, or type to filter (empty to cancel)"))

	for {
		for i := range shown {
			fmt.Fprintf(t.Out, "  %3d) %s\n", i+1, versionLabel(&shown[i]))
		}

		fmt.Fprint(t.Out, "> ")

		line, err := t.readLine()
		if err != nil {
			return nil, ErrCancelled
		}

		if line == "" {
			if len(shown) == len(versions) {
				return nil, ErrCancelled
			}

			shown = versions
			continue
		}

		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(shown) {
			return &shown[n-1], nil
		}

		filtered := Filter(versions, line)
		if len(filtered) == 0 {
			fmt.Fprintln(t.Out, "No versions match; filter cleared")
			shown = versions
			continue
		}

		shown = filtered
	}
}
