package ui

import (
	"github.com/packmule-io/packmule/pkg/registry"
	"github.com/pkg/errors"
)

// ErrCancelled reports that the user backed out of a selection.
var ErrCancelled = errors.New("selection cancelled")

// UI is the presentation collaborator the core consults for decisions.
// The core contains no rendering logic; supplying a Scripted value
// makes every flow runnable headless.
type UI interface {
	// ChooseOne presents options and returns the chosen one.
	ChooseOne(title string, options []string) (string, error)

	// PromptText asks for free text, offering def as the default.
	PromptText(title, def string) (string, error)

	// SelectVersion picks one version record, supporting filtering by
	// channel, game version, and version-number substring.
	SelectVersion(versions []registry.Version) (*registry.Version, error)
}

// Scripted replays canned answers, for headless runs and tests.
type Scripted struct {
	Choices []string
	Texts   []string
	Version *registry.Version
}

func (s *Scripted) ChooseOne(title string, options []string) (string, error) {
	if len(s.Choices) == 0 {
		return "", ErrCancelled
	}

	choice := s.Choices[0]
	s.Choices = s.Choices[1:]

	return choice, nil
}

func (s *Scripted) PromptText(title, def string) (string, error) {
	if len(s.Texts) == 0 {
		return def, nil
	}

	text := s.Texts[0]
	s.Texts = s.Texts[1:]

	if text == "" {
		return def, nil
	}

	return text, nil
}

func (s *Scripted) SelectVersion(versions []registry.Version) (*registry.Version, error) {
	if s.Version == nil {
		return nil, ErrCancelled
	}

	return s.Version, nil
}
