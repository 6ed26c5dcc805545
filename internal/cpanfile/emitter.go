package cpanfile

import (
	"fmt"
	"io"
	"strings"

	"github.com/frederic-klein/cpanfile/internal/prereqs"
)

const indent = "    "

// Emitter writes a model back out as cpanfile text.
type Emitter struct {
	w io.Writer
}

// NewEmitter creates a new cpanfile emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes runtime requirements at top level followed by one
// on '<phase>' => sub { ... }; block per other non-empty phase.
func (e *Emitter) Emit(m *prereqs.Model) error {
	first := true
	section := func() error {
		if first {
			first = false
			return nil
		}
		_, err := fmt.Fprint(e.w, "\n")
		return err
	}

	if !m.PhaseIsEmpty(prereqs.PhaseRuntime) {
		if err := section(); err != nil {
			return err
		}
		if err := e.emitPhase(m, prereqs.PhaseRuntime, ""); err != nil {
			return err
		}
	}

	for _, phase := range prereqs.Phases() {
		if phase == prereqs.PhaseRuntime || m.PhaseIsEmpty(phase) {
			continue
		}
		if err := section(); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(e.w, "on %s => sub {\n", quote(string(phase))); err != nil {
			return err
		}
		if err := e.emitPhase(m, phase, indent); err != nil {
			return err
		}
		if _, err := fmt.Fprint(e.w, "};\n"); err != nil {
			return err
		}
	}

	return nil
}

func (e *Emitter) emitPhase(m *prereqs.Model, phase prereqs.Phase, prefix string) error {
	for _, rel := range prereqs.Relations() {
		for _, req := range m.Requirements(phase, rel) {
			if _, err := fmt.Fprintf(e.w, "%s%s;\n", prefix, statement(req)); err != nil {
				return err
			}
		}
	}
	return nil
}

func statement(req prereqs.Requirement) string {
	if req.Version.IsAny() {
		return fmt.Sprintf("%s %s", req.Relation, quote(req.Module))
	}
	return fmt.Sprintf("%s %s, %s", req.Relation, quote(req.Module), quote(string(req.Version)))
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}
