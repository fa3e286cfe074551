package events

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/morikuni/aec"
)

type Severity int

const (
	Info Severity = iota
	Success
	Warn
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "OK"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return "INFO"
	}
}

type Event struct {
	Time     time.Time
	Severity Severity
	Message  string
}

// Sink collects the events a run emits. It is handed through the
// pipeline explicitly; nothing writes to process-global state.
type Sink struct {
	mu     sync.Mutex
	logger hclog.Logger
	events []Event
}

func NewSink(l hclog.Logger) *Sink {
	if l == nil {
		l = hclog.L()
	}

	return &Sink{logger: l}
}

func (s *Sink) emit(sev Severity, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	s.mu.Lock()
	s.events = append(s.events, Event{
		Time:     time.Now(),
		Severity: sev,
		Message:  msg,
	})
	s.mu.Unlock()

	switch sev {
	case Critical, Error:
		s.logger.Error(msg)
	case Warn:
		s.logger.Warn(msg)
	default:
		s.logger.Info(msg)
	}
}

func (s *Sink) Infof(format string, args ...interface{})    { s.emit(Info, format, args...) }
func (s *Sink) Successf(format string, args ...interface{}) { s.emit(Success, format, args...) }
func (s *Sink) Warnf(format string, args ...interface{})    { s.emit(Warn, format, args...) }
func (s *Sink) Errorf(format string, args ...interface{})   { s.emit(Error, format, args...) }
func (s *Sink) Criticalf(format string, args ...interface{}) {
	s.emit(Critical, format, args...)
}

// Events returns a copy of everything emitted so far, in order.
func (s *Sink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)

	return out
}

var (
	colors = map[Severity]aec.ANSI{
		Critical: aec.LightRedF,
		Error:    aec.RedF,
		Warn:     aec.YellowF,
		Info:     aec.WhiteF,
		Success:  aec.GreenF,
	}

	symbols = map[Severity]string{
		Critical: "✖",
		Error:    "✘",
		Warn:     "⚠",
		Info:     "•",
		Success:  "✔",
	}
)

const stampLayout = "2006-01-02 15:04:05"

// Render writes the severity-colored human summary of the run.
func (s *Sink) Render(w io.Writer) {
	for _, ev := range s.Events() {
		line := fmt.Sprintf("%s %s %s",
			ev.Time.Format(stampLayout), symbols[ev.Severity], ev.Message)

		fmt.Fprintln(w, colors[ev.Severity].Apply(line))
	}
}

// WriteTo persists the session log in a tab separated form.
func (s *Sink) WriteTo(w io.Writer) error {
	for _, ev := range s.Events() {
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\n",
			ev.Time.Format(stampLayout), ev.Severity, ev.Message)
		if err != nil {
			return err
		}
	}

	return nil
}
